package hybrid

import (
	"sort"

	"github.com/carqa/carqa/internal/vectorstore"
)

// ScoredDocument is a fused search result with its combined score.
type ScoredDocument struct {
	Document vectorstore.Document
	Score    float64
}

// candidate is a document with the score contributed by one retriever.
type candidate struct {
	doc   vectorstore.Document
	score float64
}

// fuse merges dense and sparse candidate lists into one ranked list.
//
// Results are keyed by document content: a document appearing in both lists
// gets combined score dense*denseWeight + sparse*sparseWeight, a document in
// only one list receives only that contribution. Ties are broken stably by
// first appearance (dense list first, then sparse). At most k results are
// returned.
func fuse(dense, sparse []candidate, denseWeight, sparseWeight float64, k int) []ScoredDocument {
	if k <= 0 {
		return []ScoredDocument{}
	}

	combined := make(map[string]int, len(dense)+len(sparse))
	fused := make([]ScoredDocument, 0, len(dense)+len(sparse))

	for _, c := range dense {
		if i, ok := combined[c.doc.Content]; ok {
			fused[i].Score += c.score * denseWeight
			continue
		}
		combined[c.doc.Content] = len(fused)
		fused = append(fused, ScoredDocument{Document: c.doc, Score: c.score * denseWeight})
	}

	for _, c := range sparse {
		if i, ok := combined[c.doc.Content]; ok {
			fused[i].Score += c.score * sparseWeight
			continue
		}
		combined[c.doc.Content] = len(fused)
		fused = append(fused, ScoredDocument{Document: c.doc, Score: c.score * sparseWeight})
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].Score > fused[j].Score
	})

	if len(fused) > k {
		fused = fused[:k]
	}
	return fused
}

// rankScores converts rank-ordered dense results into candidates with
// synthetic 1/(rank+1) scores.
func rankScores(results []vectorstore.SearchResult) []candidate {
	out := make([]candidate, len(results))
	for i, r := range results {
		out[i] = candidate{doc: r.Document, score: 1.0 / float64(i+1)}
	}
	return out
}

// rawScores converts sparse results into candidates carrying their raw
// relevance scores.
func rawScores(results []vectorstore.SearchResult) []candidate {
	out := make([]candidate, len(results))
	for i, r := range results {
		out[i] = candidate{doc: r.Document, score: float64(r.Score)}
	}
	return out
}
