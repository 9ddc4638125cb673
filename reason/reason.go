// Package reason adapts language-model backends to the four reasoning tasks
// the question-answering workflow needs: route classification, query
// generation, query repair, and answer synthesis (plus constraint
// extraction). Implementations share one contract so the workflow never
// branches on which backend is active.
package reason

import "context"

// RouteDecision is the raw routing output. Label is not guaranteed to be one
// of rag/sql/hybrid; callers normalise it.
type RouteDecision struct {
	Label     string `json:"route"`
	Reasoning string `json:"reasoning"`
}

// SynthesisInput bundles everything the synthesis task sees.
type SynthesisInput struct {
	Question   string
	FormatHint string
	DocContext string
	SQLResult  string
}

// SynthesisResult is the synthesis task output: free-form reasoning plus the
// answer text to be parsed into the requested shape.
type SynthesisResult struct {
	Reasoning string `json:"reasoning"`
	Answer    string `json:"answer"`
}

// Service is the reasoning backend contract. All operations are synchronous
// and blocking; timeouts are the implementation's responsibility.
type Service interface {
	// Route classifies a question into a processing path.
	Route(ctx context.Context, question string) (RouteDecision, error)

	// ExtractConstraints pulls query constraints (date ranges, categories,
	// KPI formulas) out of retrieved document context.
	ExtractConstraints(ctx context.Context, question, docContext string) (string, error)

	// GenerateQuery produces a SQL query for the question given a schema and
	// optional document-derived context.
	GenerateQuery(ctx context.Context, question, schema, context string) (string, error)

	// RepairQuery fixes a query that failed or returned nothing.
	RepairQuery(ctx context.Context, question, failedQuery, errorMsg, schema string) (string, error)

	// Synthesize produces the final answer text for the requested shape.
	Synthesize(ctx context.Context, input SynthesisInput) (SynthesisResult, error)
}
