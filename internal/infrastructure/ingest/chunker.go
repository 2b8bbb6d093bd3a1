// Package ingest turns raw OCR text into retrieval chunks: artifact
// cleanup, fixed word-window splitting with overlap, and deterministic
// chunk ids so re-indexing an issue overwrites its previous vectors
// instead of duplicating them.
package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

const (
	DefaultChunkWords   = 350
	DefaultOverlapWords = 75
)

type Chunker struct {
	chunkWords   int
	overlapWords int
}

func NewChunker(chunkWords, overlapWords int) *Chunker {
	if chunkWords <= 0 {
		chunkWords = DefaultChunkWords
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= chunkWords {
		overlapWords = chunkWords / 4
	}
	return &Chunker{chunkWords: chunkWords, overlapWords: overlapWords}
}

// Split cleans the text and cuts it into overlapping word windows.
// Offsets are character positions into the cleaned text, which is what
// every downstream consumer sees.
func (c *Chunker) Split(meta domain.NewspaperMetadata, text string) []domain.Chunk {
	cleaned := CleanOCRText(text)
	if cleaned == "" {
		return nil
	}

	words := strings.Fields(cleaned)
	if len(words) <= c.chunkWords {
		return []domain.Chunk{{
			ChunkID:    chunkID(meta, 0),
			Content:    cleaned,
			Metadata:   meta,
			ChunkIndex: 0,
			StartChar:  0,
			EndChar:    len(cleaned),
		}}
	}

	// Word start offsets in the cleaned text. Cleaning collapses runs
	// of whitespace to single spaces, so offsets advance by word length
	// plus one separator.
	starts := make([]int, len(words))
	offset := 0
	for i, word := range words {
		starts[i] = offset
		offset += len(word) + 1
	}

	step := c.chunkWords - c.overlapWords
	out := make([]domain.Chunk, 0, len(words)/step+1)
	for i := 0; i < len(words); i += step {
		end := min(i+c.chunkWords, len(words))

		startChar := starts[i]
		endChar := starts[end-1] + len(words[end-1])
		out = append(out, domain.Chunk{
			ChunkID:    chunkID(meta, len(out)),
			Content:    cleaned[startChar:endChar],
			Metadata:   meta,
			ChunkIndex: len(out),
			StartChar:  startChar,
			EndChar:    endChar,
		})
		if end == len(words) {
			break
		}
	}
	return out
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	loneLowerL    = regexp.MustCompile(`\bl\b`)
	slugStrip     = regexp.MustCompile(`[^a-z0-9]+`)
)

// CleanOCRText collapses whitespace and fixes the most common scanner
// artifacts seen in the corpus (a lone lowercase l read for I).
func CleanOCRText(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")
	text = loneLowerL.ReplaceAllString(text, "I")
	return strings.TrimSpace(text)
}

func chunkID(meta domain.NewspaperMetadata, index int) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(meta.NewspaperName), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "unknown"
	}
	return fmt.Sprintf("%s_%s_c%d", slug, meta.PublicationDate.Format("2006-01-02"), index)
}
