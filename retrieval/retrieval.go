// Package retrieval defines the contract for document fragment lookup.
package retrieval

import "context"

// Fragment is a scored, identified excerpt of source text returned by
// retrieval. IDs are stable across calls for a fixed corpus and take the form
// "<source>::chunk<n>".
type Fragment struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Retriever returns the top-k most relevant fragments for a query. Results
// are ordered by descending relevance and deterministic for a fixed corpus.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Fragment, error)
}
