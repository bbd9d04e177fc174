package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// rerankCandidates is the number of hits fetched per requested passage when
// reranking.
const rerankCandidates = 3

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true, "from": true,
	"was": true, "are": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "can": true, "this": true, "that": true,
	"these": true, "those": true, "you": true, "she": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true, "how": true,
	"question": true, "context": true, "selected": true, "text": true,
}

// terms returns the distinct lowercase words of text longer than two
// characters, minus stopwords.
func terms(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > 2 && !stopwords[w] {
			out[w] = struct{}{}
		}
	}
	return out
}

// termOverlap is the share of query terms that occur in text.
func termOverlap(query map[string]struct{}, text string) float32 {
	if len(query) == 0 {
		return 0
	}
	found := 0
	for w := range terms(text) {
		if _, ok := query[w]; ok {
			found++
		}
	}
	return float32(found) / float32(len(query))
}

// rerank orders hits by an even blend of similarity and term overlap with
// query, then keeps the first limit. Without usable query terms the vector
// order stands. Scores on the returned hits are left untouched.
func rerank(query string, hits []vectorstore.Hit, limit int) []vectorstore.Hit {
	q := terms(query)
	if len(q) > 0 {
		blended := make([]float32, len(hits))
		order := make([]int, len(hits))
		for i, h := range hits {
			blended[i] = 0.5*h.Score + 0.5*termOverlap(q, h.Payload.Text)
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return blended[order[a]] > blended[order[b]]
		})
		ranked := make([]vectorstore.Hit, len(hits))
		for i, j := range order {
			ranked[i] = hits[j]
		}
		hits = ranked
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
