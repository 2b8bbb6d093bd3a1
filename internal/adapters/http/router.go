// Package httpadapter exposes the archive search engine over JSON
// HTTP. Handlers translate between wire requests and the inbound
// ports; all retrieval semantics live in the use cases.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
	"github.com/archivelab/newspaper-search/internal/observability/metrics"
)

const serviceName = "archive-api"

type Router struct {
	searcher ports.ArchiveSearcher
	answers  ports.AnswerService
	analyzer ports.SourceAnalyzer
	sessions ports.SessionManager
	usage    ports.UsageMonitor

	excelWriter ports.ReportWriter
	pdfWriter   ports.ReportWriter

	metrics   *metrics.APIMetrics
	logger    *slog.Logger
	authToken string

	defaultThreshold float64
}

type RouterOptions struct {
	Searcher    ports.ArchiveSearcher
	Answers     ports.AnswerService
	Analyzer    ports.SourceAnalyzer
	Sessions    ports.SessionManager
	Usage       ports.UsageMonitor
	ExcelWriter ports.ReportWriter
	PDFWriter   ports.ReportWriter
	Metrics     *metrics.APIMetrics
	Logger      *slog.Logger
	AuthToken   string

	// DefaultThreshold applies when a search request leaves the
	// threshold field unset. Zero means no cutoff.
	DefaultThreshold float64
}

func NewRouter(options RouterOptions) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		searcher:    options.Searcher,
		answers:     options.Answers,
		analyzer:    options.Analyzer,
		sessions:    options.Sessions,
		usage:       options.Usage,
		excelWriter: options.ExcelWriter,
		pdfWriter:   options.PDFWriter,
		metrics:     options.Metrics,
		logger:      logger,
		authToken:   options.AuthToken,

		defaultThreshold: options.DefaultThreshold,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("POST /v1/search/analyze", rt.analyzeSources)
	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.resetSession)
	mux.HandleFunc("POST /v1/export/excel", rt.exportExcel)
	mux.HandleFunc("POST /v1/export/pdf", rt.exportPDF)
	mux.HandleFunc("GET /v1/usage", rt.usageSummary)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = bearerAuthMiddleware(rt.authToken, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type searchRequest struct {
	Query      string   `json:"query"`
	Mode       string   `json:"mode,omitempty"`
	StartDate  string   `json:"start_date,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Newspapers []string `json:"newspapers,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
	Synthesize bool     `json:"synthesize,omitempty"`
}

type searchResponse struct {
	SessionID      string                `json:"session_id,omitempty"`
	Mode           domain.SearchMode     `json:"mode"`
	Degraded       bool                  `json:"degraded,omitempty"`
	DegradedReason string                `json:"degraded_reason,omitempty"`
	Results        []domain.SearchResult `json:"results"`
	Answer         string                `json:"answer,omitempty"`
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	query, err := rt.buildQuery(req)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}

	if err := rt.usage.CheckSearchAllowed(r.Context()); err != nil {
		rt.recordQuotaRejection("search")
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}

	start := time.Now()
	resp, err := rt.searcher.Search(r.Context(), query, req.SessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}

	out := searchResponse{
		SessionID:      req.SessionID,
		Mode:           resp.Mode,
		Degraded:       resp.Degraded,
		DegradedReason: resp.DegradedReason,
		Results:        resp.Results,
	}

	usedAI := false
	if req.Synthesize && rt.answers != nil && len(resp.Results) > 0 {
		answer, err := rt.answers.Answer(r.Context(), req.Query, resp.Results)
		if err != nil {
			// Results are still useful without the synthesis; surface the
			// failure in the degradation fields instead of failing the search.
			rt.logger.Warn("answer_synthesis_failed", "error", err)
			rt.recordAIResponse("answer", "error")
			out.Degraded = true
			out.DegradedReason = joinReasons(out.DegradedReason, "answer synthesis unavailable")
		} else {
			usedAI = true
			out.Answer = answer.Text
			rt.recordAIResponse("answer", "success")
		}
	}
	rt.usage.RecordSearch(r.Context(), usedAI)

	if req.SessionID != "" {
		exchange := domain.Exchange{
			Query:     req.Query,
			Answer:    out.Answer,
			SourceIDs: chunkIDs(resp.Results),
			Results:   resp.Results,
		}
		if err := rt.sessions.RecordExchange(r.Context(), req.SessionID, exchange); err != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
			return
		}
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(serviceName, string(resp.Mode), resp.Degraded, len(resp.Results), time.Since(start))
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) buildQuery(req searchRequest) (domain.SearchQuery, error) {
	mode, err := domain.ParseSearchMode(req.Mode)
	if err != nil {
		return domain.SearchQuery{}, err
	}

	query := domain.SearchQuery{
		QueryText:      req.Query,
		NewspaperNames: req.Newspapers,
		MaxResults:     req.MaxResults,
		Threshold:      rt.defaultThreshold,
		Mode:           mode,
	}
	if req.Threshold != nil {
		// An explicit zero is a request to disable the cutoff, which is
		// why the wire field is a pointer rather than a bare float.
		query.Threshold = *req.Threshold
	}
	if req.StartDate != "" {
		query.StartDate, err = parseDay(req.StartDate, "start_date")
		if err != nil {
			return domain.SearchQuery{}, err
		}
	}
	if req.EndDate != "" {
		query.EndDate, err = parseDay(req.EndDate, "end_date")
		if err != nil {
			return domain.SearchQuery{}, err
		}
	}
	return query, nil
}

type analyzeRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (rt *Router) analyzeSources(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("session_id is required"))
		return
	}

	snapshot, err := rt.sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	if len(snapshot.Exchanges) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("session has no searches to analyze"))
		return
	}
	last := snapshot.Exchanges[len(snapshot.Exchanges)-1]
	if len(last.Results) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("most recent search returned no sources"))
		return
	}

	if err := rt.usage.CheckSearchAllowed(r.Context()); err != nil {
		rt.recordQuotaRejection("analyze")
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}

	question := req.Query
	if strings.TrimSpace(question) == "" {
		question = last.Query
	}
	analyses, err := rt.analyzer.AnalyzeSources(r.Context(), question, last.Results)
	if err != nil {
		rt.recordAIResponse("analysis", "error")
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	rt.usage.RecordSearch(r.Context(), true)
	rt.recordAIResponse("analysis", "success")

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": req.SessionID,
		"query":      question,
		"analyses":   analyses,
	})
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rt.sessions.Create(r.Context())
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	snapshot, err := rt.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (rt *Router) resetSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Reset(r.Context(), r.PathValue("id")); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type exportRequest struct {
	SessionID string `json:"session_id"`
}

func (rt *Router) exportExcel(w http.ResponseWriter, r *http.Request) {
	rt.export(w, r, rt.excelWriter, "xlsx",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

func (rt *Router) exportPDF(w http.ResponseWriter, r *http.Request) {
	rt.export(w, r, rt.pdfWriter, "pdf", "application/pdf")
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request, writer ports.ReportWriter, format, contentType string) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("session_id is required"))
		return
	}

	if err := rt.usage.CheckExportAllowed(r.Context()); err != nil {
		rt.recordQuotaRejection("export")
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}
	snapshot, err := rt.sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "archive-session-"+snapshot.SessionID+"."+format))
	if err := writer.Write(w, snapshot); err != nil {
		// Headers are already out; all that is left is to log.
		rt.logger.Error("report_render_failed", "format", format, "error", err)
		return
	}
	rt.usage.RecordExport(r.Context())
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, format)
	}
}

func (rt *Router) usageSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.usage.Summary(r.Context()))
}

func (rt *Router) recordQuotaRejection(operation string) {
	if rt.metrics != nil {
		rt.metrics.RecordQuotaRejection(serviceName, operation)
	}
}

func (rt *Router) recordAIResponse(kind, status string) {
	if rt.metrics != nil {
		rt.metrics.RecordAIResponse(serviceName, kind, status)
	}
}

func parseDay(value, field string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, domain.WrapError(domain.ErrInvalidQuery, "parse "+field, err)
	}
	return day, nil
}

func chunkIDs(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, result := range results {
		out = append(out, result.Chunk.ChunkID)
	}
	return out
}

func joinReasons(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
