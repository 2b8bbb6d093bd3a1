package lexical

import "math"

// Okapi BM25 parameters matching the corpus the normalization ceiling
// was calibrated against.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// bm25Okapi holds the corpus-wide term statistics. Built once from all
// chunk tokens, read-only afterwards.
type bm25Okapi struct {
	docFreqs  []map[string]int
	idf       map[string]float64
	docLens   []int
	avgDocLen float64
	corpusLen int
}

func newBM25Okapi(corpus [][]string) *bm25Okapi {
	b := &bm25Okapi{
		docFreqs:  make([]map[string]int, len(corpus)),
		idf:       make(map[string]float64),
		docLens:   make([]int, len(corpus)),
		corpusLen: len(corpus),
	}

	termDocCount := make(map[string]int)
	totalLen := 0
	for i, doc := range corpus {
		b.docLens[i] = len(doc)
		totalLen += len(doc)

		freqs := make(map[string]int, len(doc))
		for _, token := range doc {
			freqs[token]++
		}
		b.docFreqs[i] = freqs
		for token := range freqs {
			termDocCount[token]++
		}
	}
	if len(corpus) > 0 {
		b.avgDocLen = float64(totalLen) / float64(len(corpus))
	}

	// idf = ln(N - n + 0.5) - ln(n + 0.5). Terms in more than half the
	// corpus go negative; those are floored to epsilon times the average
	// idf so common terms still contribute a small positive weight.
	var idfSum float64
	var negative []string
	for token, n := range termDocCount {
		idf := math.Log(float64(b.corpusLen)-float64(n)+0.5) - math.Log(float64(n)+0.5)
		b.idf[token] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, token)
		}
	}
	if len(b.idf) > 0 {
		averageIDF := idfSum / float64(len(b.idf))
		floor := bm25Epsilon * averageIDF
		for _, token := range negative {
			b.idf[token] = floor
		}
	}
	return b
}

// scores computes the raw BM25 score of every document for the query
// tokens. Raw scores are unbounded; callers normalize.
func (b *bm25Okapi) scores(queryTokens []string) []float64 {
	out := make([]float64, b.corpusLen)
	if b.avgDocLen == 0 {
		return out
	}
	for _, token := range queryTokens {
		idf, ok := b.idf[token]
		if !ok {
			continue
		}
		for i, freqs := range b.docFreqs {
			f := float64(freqs[token])
			if f == 0 {
				continue
			}
			norm := bm25K1 * (1 - bm25B + bm25B*float64(b.docLens[i])/b.avgDocLen)
			out[i] += idf * (f * (bm25K1 + 1)) / (f + norm)
		}
	}
	return out
}
