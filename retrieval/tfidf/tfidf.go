// Package tfidf implements sparse lexical retrieval over a markdown corpus.
// Chunks are scored against queries by cosine similarity of l2-normalised
// TF-IDF vectors, which keeps ranking deterministic for a fixed corpus.
package tfidf

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/sweetpotato0/askdata/errors"
	"github.com/sweetpotato0/askdata/retrieval"
)

const defaultMaxFeatures = 500

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// stopwords mirrors the usual English list trimmed to terms that actually
// show up in analytics questions and policy text.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"their": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "which": {}, "will": {}, "with": {}, "what": {},
	"when": {}, "how": {}, "do": {}, "does": {}, "not": {}, "no": {}, "all": {},
	"any": {}, "can": {}, "per": {}, "each": {}, "into": {}, "than": {},
}

// Option customises the index.
type Option func(*Index)

// WithMaxFeatures caps the vocabulary size (most frequent terms win).
func WithMaxFeatures(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.maxFeatures = n
		}
	}
}

// Index is a TF-IDF retrieval index over markdown documents. It is immutable
// after construction and safe for concurrent use.
type Index struct {
	maxFeatures int
	chunks      []chunk
	vocabulary  map[string]int
	idf         []float64
	vectors     [][]float64 // one l2-normalised row per chunk
}

// New loads all markdown files under docsDir, chunks them, and builds the
// index. It fails with ErrCorpusUnavailable when the directory is missing or
// yields no chunks; an unusable corpus must surface before any run begins.
func New(docsDir string, opts ...Option) (*Index, error) {
	idx := &Index{maxFeatures: defaultMaxFeatures}
	for _, opt := range opts {
		opt(idx)
	}

	chunks, err := loadCorpus(docsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorpusUnavailable, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no document chunks found under %s", apperrors.ErrCorpusUnavailable, docsDir)
	}
	idx.chunks = chunks
	idx.fit()
	return idx, nil
}

// Retrieve implements retrieval.Retriever.
func (idx *Index) Retrieve(_ context.Context, query string, topK int) ([]retrieval.Fragment, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", apperrors.ErrInvalidInput)
	}

	queryVec := idx.transform(query)

	type scored struct {
		pos   int
		score float64
	}
	results := make([]scored, len(idx.chunks))
	for i := range idx.chunks {
		results[i] = scored{pos: i, score: dot(queryVec, idx.vectors[i])}
	}
	// Stable ordering: score descending, corpus position breaks ties.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})

	if topK > len(results) {
		topK = len(results)
	}
	fragments := make([]retrieval.Fragment, 0, topK)
	for _, res := range results[:topK] {
		c := idx.chunks[res.pos]
		fragments = append(fragments, retrieval.Fragment{
			ID:      c.id,
			Content: c.content,
			Source:  c.source,
			Score:   res.score,
		})
	}
	return fragments, nil
}

// FragmentByID returns a specific chunk as a fragment (zero score).
func (idx *Index) FragmentByID(id string) (retrieval.Fragment, bool) {
	for _, c := range idx.chunks {
		if c.id == id {
			return retrieval.Fragment{ID: c.id, Content: c.content, Source: c.source}, true
		}
	}
	return retrieval.Fragment{}, false
}

// Len reports how many chunks are indexed.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// fit builds the vocabulary, idf weights, and per-chunk vectors.
func (idx *Index) fit() {
	docTerms := make([][]string, len(idx.chunks))
	corpusFreq := make(map[string]int)
	docFreq := make(map[string]int)

	for i, c := range idx.chunks {
		terms := tokenize(c.content)
		docTerms[i] = terms
		seen := make(map[string]struct{})
		for _, term := range terms {
			corpusFreq[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				docFreq[term]++
			}
		}
	}

	// Vocabulary capped at maxFeatures, most frequent terms first, term text
	// breaking ties so the mapping is reproducible.
	terms := make([]string, 0, len(corpusFreq))
	for term := range corpusFreq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(a, b int) bool {
		if corpusFreq[terms[a]] != corpusFreq[terms[b]] {
			return corpusFreq[terms[a]] > corpusFreq[terms[b]]
		}
		return terms[a] < terms[b]
	})
	if len(terms) > idx.maxFeatures {
		terms = terms[:idx.maxFeatures]
	}

	idx.vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		idx.vocabulary[term] = i
	}

	// Smoothed idf, matching the classic formulation ln((1+n)/(1+df)) + 1.
	n := float64(len(idx.chunks))
	idx.idf = make([]float64, len(terms))
	for term, col := range idx.vocabulary {
		idx.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	idx.vectors = make([][]float64, len(idx.chunks))
	for i, terms := range docTerms {
		idx.vectors[i] = idx.vectorize(terms)
	}
}

// transform converts a query into the index's vector space.
func (idx *Index) transform(query string) []float64 {
	return idx.vectorize(tokenize(query))
}

func (idx *Index) vectorize(terms []string) []float64 {
	vec := make([]float64, len(idx.vocabulary))
	for _, term := range terms {
		col, ok := idx.vocabulary[term]
		if !ok {
			continue
		}
		vec[col] += idx.idf[col]
	}
	normalize(vec)
	return vec
}

// tokenize lowercases, strips punctuation, drops stopwords, and emits
// unigrams plus adjacent bigrams.
func tokenize(s string) []string {
	words := tokenPattern.FindAllString(strings.ToLower(s), -1)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}

	terms := make([]string, 0, len(kept)*2)
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
