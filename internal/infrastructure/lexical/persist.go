package lexical

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// blob is the persisted form of the index: the chunks and their tokens.
// Statistics are recomputed on load, which is deterministic, so a loaded
// index scores identically to one built fresh from the same chunks.
type blob struct {
	Ceiling   float64
	Chunks    []domain.Chunk
	DocTokens [][]string
}

// Save writes the index as an opaque blob. The write goes through a
// temp file and rename so a crashed save never leaves a truncated blob
// behind.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	payload := blob{
		Ceiling:   idx.ceiling,
		Chunks:    idx.chunks,
		DocTokens: idx.docTokens,
	}
	idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bm25-*")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encode lexical index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename index file: %w", err)
	}
	return nil
}

// Load replaces the index state from a saved blob and rebuilds the BM25
// statistics.
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	defer f.Close()

	var payload blob
	if err := gob.NewDecoder(f).Decode(&payload); err != nil {
		return fmt.Errorf("decode lexical index: %w", err)
	}
	if len(payload.Chunks) != len(payload.DocTokens) {
		return fmt.Errorf("corrupt lexical index: %d chunks vs %d token lists", len(payload.Chunks), len(payload.DocTokens))
	}

	rebuilt := newBM25Okapi(payload.DocTokens)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if payload.Ceiling > 0 {
		idx.ceiling = payload.Ceiling
	}
	idx.chunks = payload.Chunks
	idx.docTokens = payload.DocTokens
	idx.bm25 = rebuilt
	return nil
}
