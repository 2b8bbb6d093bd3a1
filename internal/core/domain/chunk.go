package domain

import (
	"fmt"
	"strconv"
	"time"
)

// NewspaperMetadata describes the issue a chunk was extracted from.
// PublicationDate carries a calendar date only; the time component is
// always midnight UTC.
type NewspaperMetadata struct {
	NewspaperName   string    `json:"newspaper_name"`
	PublicationDate time.Time `json:"publication_date"`
	PageNumber      int       `json:"page_number,omitempty"`
	Section         string    `json:"section,omitempty"`
	SourceURL       string    `json:"source_url,omitempty"`
	OCRQualityScore float64   `json:"ocr_quality_score,omitempty"`
	Language        string    `json:"language,omitempty"`
}

// Chunk is the atomic unit of retrieval: a fixed word-count window of
// OCR text with attached issue metadata. Chunks are created once at
// ingestion and never mutated afterwards; ChunkID is unique across the
// corpus and identical in the lexical and dense indices.
type Chunk struct {
	ChunkID    string            `json:"chunk_id"`
	Content    string            `json:"content"`
	Metadata   NewspaperMetadata `json:"newspaper_metadata"`
	ChunkIndex int               `json:"chunk_index"`
	StartChar  int               `json:"start_char"`
	EndChar    int               `json:"end_char"`
}

// SearchResult pairs a chunk with a relevance score in [0,1]. Score
// adjustments (fusion, diversification) always produce a new value
// referencing the same chunk, never an in-place mutation.
type SearchResult struct {
	Chunk      Chunk    `json:"chunk"`
	Score      float64  `json:"relevance_score"`
	Highlights []string `json:"highlights,omitempty"`
}

// WithScore returns a copy of the result carrying the adjusted score.
func (r SearchResult) WithScore(score float64) SearchResult {
	out := r
	out.Score = score
	return out
}

// Citation formats the result's provenance for display and reports.
func (r SearchResult) Citation() string {
	meta := r.Chunk.Metadata
	page := "N/A"
	if meta.PageNumber > 0 {
		page = strconv.Itoa(meta.PageNumber)
	}
	return fmt.Sprintf("%s, %s, p. %s", meta.NewspaperName, meta.PublicationDate.Format("January 2, 2006"), page)
}
