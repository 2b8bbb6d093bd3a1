// Package pinecone is the dense-index client. It talks to a Pinecone
// index over its REST surface and maps between corpus chunks and the
// store's id/vector/metadata records. Chunk ids double as vector ids
// so dense and lexical hits fuse on the same key.
package pinecone

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/infrastructure/resilience"
)

const upsertBatchSize = 100

type Client struct {
	host       string
	apiKey     string
	namespace  string
	transport  *transport
	executor   *resilience.Executor
	maxContent int
}

type Options struct {
	Namespace string
	Timeout   time.Duration
	Executor  *resilience.Executor
	// MaxContentBytes truncates chunk text stored in vector metadata.
	// Pinecone caps metadata size per vector; the lexical index keeps
	// the full text, so truncation here only affects snippets.
	MaxContentBytes int
}

func New(host, apiKey string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxContent := options.MaxContentBytes
	if maxContent <= 0 {
		maxContent = 20000
	}
	return &Client{
		host:       strings.TrimRight(host, "/"),
		apiKey:     apiKey,
		namespace:  options.Namespace,
		transport:  newTransport(timeout),
		executor:   options.Executor,
		maxContent: maxContent,
	}
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Namespace       string         `json:"namespace,omitempty"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query runs a dense similarity search. The newspaper allow-list is
// pushed down as a metadata filter; date ranges are not, the store's
// string comparison on date fields is not trusted and callers filter
// post-hoc.
func (c *Client) Query(ctx context.Context, vector []float32, topK int, newspaperNames []string) ([]domain.SearchResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("pinecone query: empty vector")
	}
	if topK <= 0 {
		topK = 10
	}

	request := queryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       c.namespace,
		IncludeMetadata: true,
	}
	if len(newspaperNames) > 0 {
		request.Filter = map[string]any{
			"newspaper_name": map[string]any{"$in": newspaperNames},
		}
	}

	var response queryResponse
	call := func(ctx context.Context) error {
		return c.transport.postJSON(ctx, c.host+"/query", c.apiKey, request, &response, "query")
	}
	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "pinecone.query", call, classifyPineconeError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("pinecone query", err)
	}

	out := make([]domain.SearchResult, 0, len(response.Matches))
	for _, match := range response.Matches {
		out = append(out, domain.SearchResult{
			Chunk: chunkFromMetadata(match.ID, match.Metadata),
			Score: match.Score,
		})
	}
	return out, nil
}

type upsertRequest struct {
	Vectors   []vectorRecord `json:"vectors"`
	Namespace string         `json:"namespace,omitempty"`
}

type vectorRecord struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata"`
}

// Upsert writes chunk vectors in batches. Partial failure leaves
// earlier batches in place; re-running the same issue overwrites them
// under the same ids, so indexing is idempotent per issue.
func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("pinecone upsert: %d chunks vs %d vectors", len(chunks), len(vectors))
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))

		records := make([]vectorRecord, 0, end-start)
		for i := start; i < end; i++ {
			records = append(records, vectorRecord{
				ID:       chunks[i].ChunkID,
				Values:   vectors[i],
				Metadata: c.metadataFromChunk(chunks[i]),
			})
		}
		request := upsertRequest{Vectors: records, Namespace: c.namespace}

		call := func(ctx context.Context) error {
			var response struct {
				UpsertedCount int `json:"upsertedCount"`
			}
			return c.transport.postJSON(ctx, c.host+"/vectors/upsert", c.apiKey, request, &response, "upsert")
		}
		var err error
		if c.executor != nil {
			err = c.executor.Do(ctx, "pinecone.upsert", call, classifyPineconeError)
		} else {
			err = call(ctx)
		}
		if err != nil {
			return wrapTemporaryIfNeeded("pinecone upsert", err)
		}
	}
	return nil
}

func (c *Client) metadataFromChunk(chunk domain.Chunk) map[string]any {
	content := chunk.Content
	if len(content) > c.maxContent {
		content = content[:c.maxContent]
	}
	meta := map[string]any{
		"text":             content,
		"newspaper_name":   chunk.Metadata.NewspaperName,
		"publication_date": chunk.Metadata.PublicationDate.Format("2006-01-02"),
		"page_number":      chunk.Metadata.PageNumber,
		"chunk_index":      chunk.ChunkIndex,
		"start_char":       chunk.StartChar,
		"end_char":         chunk.EndChar,
	}
	if chunk.Metadata.Section != "" {
		meta["section"] = chunk.Metadata.Section
	}
	if chunk.Metadata.SourceURL != "" {
		meta["source_url"] = chunk.Metadata.SourceURL
	}
	if chunk.Metadata.Language != "" {
		meta["language"] = chunk.Metadata.Language
	}
	if chunk.Metadata.OCRQualityScore > 0 {
		meta["ocr_quality"] = chunk.Metadata.OCRQualityScore
	}
	return meta
}

func chunkFromMetadata(id string, meta map[string]any) domain.Chunk {
	pubDate, err := time.Parse("2006-01-02", metaString(meta, "publication_date"))
	if err != nil {
		pubDate = time.Time{}
	}
	return domain.Chunk{
		ChunkID: id,
		Content: metaString(meta, "text"),
		Metadata: domain.NewspaperMetadata{
			NewspaperName:   metaString(meta, "newspaper_name"),
			PublicationDate: pubDate,
			PageNumber:      metaInt(meta, "page_number"),
			Section:         metaString(meta, "section"),
			SourceURL:       metaString(meta, "source_url"),
			OCRQualityScore: metaFloat(meta, "ocr_quality"),
			Language:        metaString(meta, "language"),
		},
		ChunkIndex: metaInt(meta, "chunk_index"),
		StartChar:  metaInt(meta, "start_char"),
		EndChar:    metaInt(meta, "end_char"),
	}
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Pinecone stores all metadata numbers as float64.
func metaInt(meta map[string]any, key string) int {
	if f, ok := meta[key].(float64); ok {
		return int(f)
	}
	return 0
}

func metaFloat(meta map[string]any, key string) float64 {
	if f, ok := meta[key].(float64); ok {
		return f
	}
	return 0
}
