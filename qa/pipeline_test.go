package qa

import (
	"context"
	"fmt"
	"testing"

	"github.com/sweetpotato0/askdata/reason"
	"github.com/sweetpotato0/askdata/retrieval"
	"github.com/sweetpotato0/askdata/store"
)

// fakeReasoner lets each test script backend behavior per task.
type fakeReasoner struct {
	routeLabel  string
	constraints string
	query       string
	repairQuery string
	synthFn     func(reason.SynthesisInput) (reason.SynthesisResult, error)

	repairCalls int
}

func (f *fakeReasoner) Route(context.Context, string) (reason.RouteDecision, error) {
	return reason.RouteDecision{Label: f.routeLabel, Reasoning: "scripted"}, nil
}

func (f *fakeReasoner) ExtractConstraints(context.Context, string, string) (string, error) {
	if f.constraints == "" {
		return "No specific constraints found", nil
	}
	return f.constraints, nil
}

func (f *fakeReasoner) GenerateQuery(context.Context, string, string, string) (string, error) {
	if f.query == "" {
		return "SELECT COUNT(*) FROM Orders", nil
	}
	return f.query, nil
}

func (f *fakeReasoner) RepairQuery(context.Context, string, string, string, string) (string, error) {
	f.repairCalls++
	if f.repairQuery == "" {
		return "SELECT COUNT(*) FROM Orders", nil
	}
	return f.repairQuery, nil
}

func (f *fakeReasoner) Synthesize(_ context.Context, in reason.SynthesisInput) (reason.SynthesisResult, error) {
	if f.synthFn != nil {
		return f.synthFn(in)
	}
	return reason.SynthesisResult{Reasoning: "scripted", Answer: in.SQLResult}, nil
}

type fakeRetriever struct {
	fragments []retrieval.Fragment
	calls     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topK int) ([]retrieval.Fragment, error) {
	f.calls++
	if len(f.fragments) > topK {
		return f.fragments[:topK], nil
	}
	return f.fragments, nil
}

type fakeStore struct {
	executeFn func(string) store.QueryOutcome
	calls     int
}

func (f *fakeStore) Execute(_ context.Context, query string) store.QueryOutcome {
	f.calls++
	if f.executeFn != nil {
		return f.executeFn(query)
	}
	return store.QueryOutcome{Success: true, Columns: []string{"count"}, Rows: [][]any{{51}}, Tables: []string{"Orders"}}
}

func (f *fakeStore) CompactSchema() string {
	return "Orders(OrderID, CustomerID, OrderDate)"
}

func (f *fakeStore) SchemaDescription() string { return "Table: Orders" }

func (f *fakeStore) Ping(context.Context) error { return nil }

func TestPipelineCountOrders(t *testing.T) {
	reasoner := &fakeReasoner{
		routeLabel: "sql",
		synthFn: func(in reason.SynthesisInput) (reason.SynthesisResult, error) {
			return reason.SynthesisResult{Reasoning: "Read from query result.", Answer: "51"}, nil
		},
	}
	st := &fakeStore{}
	p := New(reasoner, &fakeRetriever{}, st)

	run, err := p.Answer(context.Background(), "Count total orders", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if run.FinalAnswer != 51 {
		t.Errorf("FinalAnswer = %v, want 51", run.FinalAnswer)
	}
	if run.Route != RouteSQL {
		t.Errorf("Route = %q, want sql", run.Route)
	}
	if run.RepairCount != 0 {
		t.Errorf("RepairCount = %d, want 0", run.RepairCount)
	}
}

func TestPipelineSQLRouteSkipsRetrieval(t *testing.T) {
	retriever := &fakeRetriever{}
	p := New(&fakeReasoner{routeLabel: "sql"}, retriever, &fakeStore{})

	run, err := p.Answer(context.Background(), "Count total orders", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if retriever.calls != 0 {
		t.Errorf("retrieval calls = %d, want 0 for sql route", retriever.calls)
	}
	// The plan step still runs and produces the no-context marker.
	if run.Constraints != noContextMarker {
		t.Errorf("Constraints = %q, want %q", run.Constraints, noContextMarker)
	}
}

func TestPipelineRepairLoopTerminates(t *testing.T) {
	reasoner := &fakeReasoner{routeLabel: "sql"}
	st := &fakeStore{
		executeFn: func(string) store.QueryOutcome {
			return store.QueryOutcome{Success: false, Error: "table not found"}
		},
	}
	p := New(reasoner, &fakeRetriever{}, st)

	run, err := p.Answer(context.Background(), "Count total orders", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if st.calls != 1+maxRepairs {
		t.Errorf("execution attempts = %d, want %d", st.calls, 1+maxRepairs)
	}
	if run.RepairCount != maxRepairs {
		t.Errorf("RepairCount = %d, want %d", run.RepairCount, maxRepairs)
	}
	if run.QueryAttempts != 1+maxRepairs {
		t.Errorf("QueryAttempts = %d, want %d", run.QueryAttempts, 1+maxRepairs)
	}
	if run.FinalAnswer == nil {
		t.Error("FinalAnswer is nil, want graceful degradation to a typed fallback")
	}
}

func TestPipelineEmptyResultTriggersRepair(t *testing.T) {
	reasoner := &fakeReasoner{routeLabel: "sql"}
	calls := 0
	st := &fakeStore{
		executeFn: func(string) store.QueryOutcome {
			calls++
			if calls == 1 {
				return store.QueryOutcome{Success: true, Columns: []string{"count"}}
			}
			return store.QueryOutcome{Success: true, Columns: []string{"count"}, Rows: [][]any{{7}}, Tables: []string{"Orders"}}
		},
	}
	p := New(reasoner, &fakeRetriever{}, st)

	run, err := p.Answer(context.Background(), "Count total orders", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if run.RepairCount != 1 {
		t.Errorf("RepairCount = %d, want 1", run.RepairCount)
	}
	if run.FinalAnswer != 7 {
		t.Errorf("FinalAnswer = %v, want 7", run.FinalAnswer)
	}
}

func TestPipelineRAGRoute(t *testing.T) {
	retriever := &fakeRetriever{
		fragments: []retrieval.Fragment{
			{ID: "policy.md::chunk0", Content: "Unopened Beverages may be returned within 14 days.", Source: "policy.md", Score: 0.8},
		},
	}
	reasoner := &fakeReasoner{
		routeLabel: "rag",
		synthFn: func(in reason.SynthesisInput) (reason.SynthesisResult, error) {
			if in.DocContext == "" {
				return reason.SynthesisResult{}, fmt.Errorf("expected document context")
			}
			return reason.SynthesisResult{Reasoning: "From the return policy.", Answer: "14"}, nil
		},
	}
	st := &fakeStore{}
	p := New(reasoner, retriever, st)

	run, err := p.Answer(context.Background(), "How many days to return unopened Beverages?", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if run.FinalAnswer != 14 {
		t.Errorf("FinalAnswer = %v, want 14", run.FinalAnswer)
	}
	if st.calls != 0 {
		t.Errorf("store calls = %d, want 0 for rag route", st.calls)
	}
	if len(run.Citations) != 1 || run.Citations[0] != "policy.md::chunk0" {
		t.Errorf("Citations = %v, want the retrieved fragment id", run.Citations)
	}
}

func TestPipelineHybridRoute(t *testing.T) {
	retriever := &fakeRetriever{
		fragments: []retrieval.Fragment{
			{ID: "marketing.md::chunk2", Content: "The summer campaign ran June 1997.", Source: "marketing.md", Score: 0.6},
		},
	}
	p := New(&fakeReasoner{routeLabel: "hybrid"}, retriever, &fakeStore{})

	run, err := p.Answer(context.Background(), "Revenue during the summer campaign?", "float")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if retriever.calls != 1 {
		t.Errorf("retrieval calls = %d, want 1", retriever.calls)
	}
	if run.QueryResult == nil || !run.QueryResult.Success {
		t.Error("hybrid route should have executed a query")
	}
	// Citations carry both the fragment and the table the query touched.
	if len(run.Citations) != 2 {
		t.Errorf("Citations = %v, want fragment plus table", run.Citations)
	}
}

func TestPipelineUnrecognizedRouteFallsBackToKeywords(t *testing.T) {
	p := New(&fakeReasoner{routeLabel: "banana"}, &fakeRetriever{
		fragments: []retrieval.Fragment{{ID: "policy.md::chunk0", Content: "Returns accepted.", Score: 0.5}},
	}, &fakeStore{})

	run, err := p.Answer(context.Background(), "What is the return policy window?", "short answer")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if run.Route != RouteRAG {
		t.Errorf("Route = %q, want rag from keyword fallback", run.Route)
	}
}

func TestKeywordRoute(t *testing.T) {
	tests := []struct {
		question string
		want     Route
	}{
		{"What is the return policy?", RouteRAG},
		{"What is the definition of AOV?", RouteRAG},
		{"Total revenue by product", RouteSQL},
		{"Count orders", RouteSQL},
		{"Total revenue during the marketing campaign", RouteHybrid},
		{"Tell me something", RouteHybrid},
	}
	for _, tt := range tests {
		if got := keywordRoute(tt.question); got != tt.want {
			t.Errorf("keywordRoute(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}

func TestCollectCitations(t *testing.T) {
	run := NewRunState("q", ShapeSpec{Kind: ShapeString})
	run.Fragments = []retrieval.Fragment{
		{ID: "policy.md::chunk0", Score: 0.5},
		{ID: "policy.md::chunk1", Score: 0.02},
		{ID: "policy.md::chunk2", Score: 0.005},
	}
	run.QueryResult = &store.QueryOutcome{Tables: []string{"Orders", "Orders"}}

	got := collectCitations(run)
	want := []string{"policy.md::chunk0", "policy.md::chunk1", "Orders"}
	if len(got) != len(want) {
		t.Fatalf("citations = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("citations[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPipelineTraceAppendOnly(t *testing.T) {
	p := New(&fakeReasoner{routeLabel: "sql"}, &fakeRetriever{}, &fakeStore{})

	run, err := p.Answer(context.Background(), "Count total orders", "int")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	wantOrder := []string{"route", "plan", "generate_sql", "execute_sql", "synthesize", "validate"}
	if len(run.Trace) != len(wantOrder) {
		t.Fatalf("trace has %d entries, want %d: %v", len(run.Trace), len(wantOrder), run.Trace)
	}
	for i, want := range wantOrder {
		if run.Trace[i].Node != want {
			t.Errorf("trace[%d] = %q, want %q", i, run.Trace[i].Node, want)
		}
	}
}

func TestFormatOutcome(t *testing.T) {
	t.Run("nil outcome", func(t *testing.T) {
		if got := formatOutcome(nil); got != "" {
			t.Errorf("formatOutcome(nil) = %q, want empty", got)
		}
	})

	t.Run("failure", func(t *testing.T) {
		got := formatOutcome(&store.QueryOutcome{Success: false, Error: "no such table"})
		if got != "Query failed: no such table" {
			t.Errorf("formatOutcome() = %q", got)
		}
	})

	t.Run("caps rows", func(t *testing.T) {
		rows := make([][]any, 25)
		for i := range rows {
			rows[i] = []any{i}
		}
		got := formatOutcome(&store.QueryOutcome{Success: true, Columns: []string{"n"}, Rows: rows})
		lines := 1
		for _, c := range got {
			if c == '\n' {
				lines++
			}
		}
		if lines != 1+maxResultRows {
			t.Errorf("formatted %d lines, want %d", lines, 1+maxResultRows)
		}
	})
}

func TestResultRecords(t *testing.T) {
	run := NewRunState("q", ShapeSpec{Kind: ShapeInt, Hint: "int"})
	run.FinalAnswer = 51
	run.CurrentQuery = "SELECT COUNT(*) FROM Orders"
	run.Confidence = 0.81
	run.Reasoning = "Read from the count column."
	run.Citations = []string{"Orders"}

	rec := ResultRecord("q1", run)
	if rec.ID != "q1" || rec.FinalAnswer != 51 || rec.Confidence != 0.81 {
		t.Errorf("ResultRecord() = %+v", rec)
	}

	fail := FailureRecord("q2", fmt.Errorf("corpus unavailable"))
	if fail.FinalAnswer != nil || fail.Confidence != 0.0 {
		t.Errorf("FailureRecord() = %+v", fail)
	}
	if fail.Citations == nil || len(fail.Citations) != 0 {
		t.Errorf("FailureRecord().Citations = %v, want empty non-nil", fail.Citations)
	}
}
