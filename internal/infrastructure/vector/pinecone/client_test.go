package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

func TestQuerySendsFilterAndRebuildsChunks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/query" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Api-Key"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["topK"].(float64) != 5 {
			t.Errorf("expected topK 5, got %v", body["topK"])
		}
		filter, ok := body["filter"].(map[string]any)
		if !ok {
			t.Errorf("expected newspaper filter in request, got %v", body["filter"])
		} else if _, ok := filter["newspaper_name"]; !ok {
			t.Errorf("filter missing newspaper_name clause: %v", filter)
		}

		_, _ = w.Write([]byte(`{"matches":[
			{"id":"dw_1936-05-01_p3_c12","score":0.91,"metadata":{
				"text":"steel workers walked out of the mills",
				"newspaper_name":"Daily Worker",
				"publication_date":"1936-05-01",
				"page_number":3,
				"chunk_index":12,
				"start_char":4200,
				"end_char":4560,
				"language":"en"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", Options{})
	results, err := client.Query(context.Background(), []float32{0.1, 0.2}, 5, []string{"Daily Worker"})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	got := results[0]
	if got.Score != 0.91 {
		t.Fatalf("score = %g, want 0.91", got.Score)
	}
	chunk := got.Chunk
	if chunk.ChunkID != "dw_1936-05-01_p3_c12" {
		t.Fatalf("chunk id = %q", chunk.ChunkID)
	}
	if chunk.Metadata.NewspaperName != "Daily Worker" || chunk.Metadata.PageNumber != 3 {
		t.Fatalf("metadata not reconstructed: %+v", chunk.Metadata)
	}
	if chunk.Metadata.PublicationDate.Year() != 1936 {
		t.Fatalf("publication date not parsed: %v", chunk.Metadata.PublicationDate)
	}
	if chunk.ChunkIndex != 12 || chunk.StartChar != 4200 || chunk.EndChar != 4560 {
		t.Fatalf("chunk offsets not reconstructed: %+v", chunk)
	}
}

func TestQueryOmitsFilterWithoutNewspaperNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["filter"]; ok {
			t.Errorf("filter must be omitted when no newspapers are selected")
		}
		_, _ = w.Write([]byte(`{"matches":[]}`))
	}))
	defer server.Close()

	client := New(server.URL, "test-key", Options{})
	results, err := client.Query(context.Background(), []float32{0.1}, 5, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %d", len(results))
	}
}

func TestUpsertBatchesVectors(t *testing.T) {
	var batches int32
	var total int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vectors/upsert" {
			http.NotFound(w, r)
			return
		}
		var body upsertRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode upsert: %v", err)
		}
		atomic.AddInt32(&batches, 1)
		atomic.AddInt32(&total, int32(len(body.Vectors)))
		_, _ = w.Write([]byte(`{"upsertedCount":1}`))
	}))
	defer server.Close()

	count := upsertBatchSize + 7
	chunks := make([]domain.Chunk, count)
	vectors := make([][]float32, count)
	for i := range chunks {
		chunks[i] = domain.Chunk{ChunkID: "c", Content: "text"}
		vectors[i] = []float32{0.1}
	}

	client := New(server.URL, "test-key", Options{})
	if err := client.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&batches); got != 2 {
		t.Fatalf("expected 2 batches, got %d", got)
	}
	if got := atomic.LoadInt32(&total); int(got) != count {
		t.Fatalf("expected %d vectors sent, got %d", count, got)
	}
}

func TestUpsertRejectsMismatchedLengths(t *testing.T) {
	client := New("http://unused", "test-key", Options{})
	err := client.Upsert(context.Background(), []domain.Chunk{{ChunkID: "a"}}, nil)
	if err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestQuerySurfacesServerErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", Options{})
	_, err := client.Query(context.Background(), []float32{0.1}, 5, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "index not found") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestQueryWrapsRetryableStatusAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "test-key", Options{})
	_, err := client.Query(context.Background(), []float32{0.1}, 5, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}
