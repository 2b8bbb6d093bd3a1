package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

func newspaperResult(id, paper, content string) domain.SearchResult {
	return domain.SearchResult{
		Chunk: domain.Chunk{
			ChunkID: id,
			Content: content,
			Metadata: domain.NewspaperMetadata{
				NewspaperName:   paper,
				PublicationDate: time.Date(1936, 5, 1, 0, 0, 0, 0, time.UTC),
				PageNumber:      3,
			},
		},
		Score: 0.9,
	}
}

func TestEmbedOrdersVectorsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		// Reversed order on purpose.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0.3,0.4]},
			{"index":0,"embedding":[0.1,0.2]}
		]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{}))
	vectors, err := embedder.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if vectors[0][0] != 0.1 || vectors[1][0] != 0.3 {
		t.Fatalf("vectors not reordered by index: %v", vectors)
	}
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{}))
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestGenerateAnswerSendsNumberedSources(t *testing.T) {
	var captured struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode chat request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"The strike began in May 1936 [Source 1]."}}]}`))
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{}))
	results := []domain.SearchResult{
		newspaperResult("c-1", "Daily Worker", "steel workers walked out"),
		newspaperResult("c-2", "Morning Freiheit", "dock workers joined the strike"),
	}
	answer, err := generator.GenerateAnswer(context.Background(), "when did the strike begin", results)
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if !strings.Contains(answer, "[Source 1]") {
		t.Fatalf("unexpected answer %q", answer)
	}

	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("expected system+user messages, got %+v", captured.Messages)
	}
	user := captured.Messages[1].Content
	if !strings.Contains(user, "[Source 1] Daily Worker, May 1, 1936, p. 3") {
		t.Fatalf("prompt missing first citation:\n%s", user)
	}
	if !strings.Contains(user, "[Source 2] Morning Freiheit") {
		t.Fatalf("prompt missing second citation:\n%s", user)
	}
}

func TestGenerateSourceAnalysisUsesSinglePassage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []chatMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		user := body.Messages[1].Content
		if !strings.Contains(user, "steel workers walked out") {
			t.Errorf("prompt missing passage text:\n%s", user)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"This passage reports the walkout."}}]}`))
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{}))
	analysis, err := generator.GenerateSourceAnalysis(context.Background(), "strike origins", newspaperResult("c-1", "Daily Worker", "steel workers walked out"))
	if err != nil {
		t.Fatalf("GenerateSourceAnalysis() error = %v", err)
	}
	if analysis == "" {
		t.Fatalf("expected non-empty analysis")
	}
}

func TestChatWrapsRateLimitAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-key", "gpt-4o-mini", "text-embedding-3-small", Options{}))
	_, err := generator.GenerateAnswer(context.Background(), "q", []domain.SearchResult{newspaperResult("c-1", "Daily Worker", "text")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
}
