// Package qa implements the question-answering workflow: an explicit state
// machine that routes a question, optionally retrieves document fragments,
// optionally generates and executes a SQL query with a bounded repair loop,
// synthesizes a typed answer, and scores confidence from the run's signals.
package qa

import (
	"strings"

	"github.com/sweetpotato0/askdata/retrieval"
	"github.com/sweetpotato0/askdata/store"
)

// Route classifies a question into a processing path.
type Route string

const (
	RouteUnclassified Route = ""
	RouteRAG          Route = "rag"
	RouteSQL          Route = "sql"
	RouteHybrid       Route = "hybrid"
)

// needsSQL reports whether this route runs the query stages.
func (r Route) needsSQL() bool {
	return r == RouteSQL || r == RouteHybrid
}

// ShapeKind enumerates the answer shapes a question can request.
type ShapeKind int

const (
	ShapeString ShapeKind = iota
	ShapeInt
	ShapeFloat
	ShapeRecord
	ShapeList
)

// ShapeSpec is the expected structure of a synthesized answer. Hint keeps the
// raw descriptor for prompt framing; Kind drives parsing.
type ShapeSpec struct {
	Kind ShapeKind
	Hint string
}

// ParseShape interprets a format hint. Unrecognized hints fall back to
// free-text.
func ParseShape(hint string) ShapeSpec {
	trimmed := strings.TrimSpace(hint)
	switch {
	case strings.EqualFold(trimmed, "int"):
		return ShapeSpec{Kind: ShapeInt, Hint: trimmed}
	case strings.EqualFold(trimmed, "float"):
		return ShapeSpec{Kind: ShapeFloat, Hint: trimmed}
	case strings.HasPrefix(trimmed, "{"):
		return ShapeSpec{Kind: ShapeRecord, Hint: trimmed}
	case strings.HasPrefix(strings.ToLower(trimmed), "list["):
		return ShapeSpec{Kind: ShapeList, Hint: trimmed}
	default:
		return ShapeSpec{Kind: ShapeString, Hint: trimmed}
	}
}

// TraceEntry records one node execution for observability. Entries are
// append-only for the run's lifetime.
type TraceEntry struct {
	Node     string         `json:"node"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunState is the mutable state of one in-flight question evaluation. A run
// owns its state exclusively; nothing here is shared across questions.
type RunState struct {
	Question string
	Shape    ShapeSpec

	Route         Route
	Fragments     []retrieval.Fragment
	DocContext    string
	Constraints   string
	CurrentQuery  string
	QueryAttempts int
	QueryResult   *store.QueryOutcome
	RepairCount   int

	FinalAnswer any
	Reasoning   string
	Confidence  float64
	Citations   []string
	Errors      []string
	Trace       []TraceEntry
}

// NewRunState creates the state for one question evaluation.
func NewRunState(question string, shape ShapeSpec) *RunState {
	return &RunState{
		Question:  question,
		Shape:     shape,
		Citations: []string{},
	}
}

func (s *RunState) appendTrace(node string, metadata map[string]any) {
	s.Trace = append(s.Trace, TraceEntry{Node: node, Metadata: metadata})
}

func (s *RunState) appendError(msg string) {
	s.Errors = append(s.Errors, msg)
}
