package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/askdata/graph"
	"github.com/sweetpotato0/askdata/pkg/logging"
	"github.com/sweetpotato0/askdata/pkg/telemetry"
	"github.com/sweetpotato0/askdata/reason"
	"github.com/sweetpotato0/askdata/retrieval"
	"github.com/sweetpotato0/askdata/store"
)

const (
	// maxRepairs bounds the query repair loop; it is the workflow's only
	// internal cycle and its sole backpressure against a backend that keeps
	// producing failing queries.
	maxRepairs = 2

	defaultTopK = 3

	// maxResultRows caps how many result rows are formatted into the
	// synthesis prompt.
	maxResultRows = 10

	noContextMarker = "No document context available."

	runStateKey = "qa.run"
)

// Pipeline runs the question-answering workflow. One Pipeline serves many
// questions; each call to Answer owns its RunState exclusively, so a single
// Pipeline is safe for concurrent use when its adapters are.
type Pipeline struct {
	reasoner  reason.Service
	retriever retrieval.Retriever
	store     store.Store
	topK      int

	workflow *graph.Graph
	logger   *slog.Logger
	tracer   oteltrace.Tracer
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many fragments retrieval requests per question.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// New builds a Pipeline over the given adapters.
func New(reasoner reason.Service, retriever retrieval.Retriever, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		reasoner:  reasoner,
		retriever: retriever,
		store:     st,
		topK:      defaultTopK,
		logger:    logging.WithComponent("qa"),
		tracer:    otel.Tracer("qa"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.workflow = p.buildWorkflow()
	return p
}

func (p *Pipeline) buildWorkflow() *graph.Graph {
	return graph.NewBuilder().
		AddNode("route", graph.NodeTypeStart, p.traced("route", p.nodeRoute)).
		AddNode("retrieve", graph.NodeTypeCustom, p.traced("retrieve", p.nodeRetrieve)).
		AddNode("plan", graph.NodeTypeCustom, p.traced("plan", p.nodePlan)).
		AddNode("generate_sql", graph.NodeTypeCustom, p.traced("generate_sql", p.nodeGenerateSQL)).
		AddNode("execute_sql", graph.NodeTypeCustom, p.traced("execute_sql", p.nodeExecuteSQL)).
		AddNode("repair_sql", graph.NodeTypeCustom, p.traced("repair_sql", p.nodeRepairSQL)).
		AddNode("synthesize", graph.NodeTypeCustom, p.traced("synthesize", p.nodeSynthesize)).
		AddNode("validate", graph.NodeTypeEnd, p.traced("validate", p.nodeValidate)).
		AddConditionalEdges("route", p.afterRoute, map[string]string{
			"rag":    "retrieve",
			"hybrid": "retrieve",
			"sql":    "plan",
		}).
		AddEdge("retrieve", "plan").
		AddConditionalEdges("plan", p.afterPlan, map[string]string{
			"sql":        "generate_sql",
			"synthesize": "synthesize",
		}).
		AddEdge("generate_sql", "execute_sql").
		AddConditionalEdges("execute_sql", p.afterExecution, map[string]string{
			"synthesize": "synthesize",
			"repair":     "repair_sql",
		}).
		AddEdge("repair_sql", "execute_sql").
		AddEdge("synthesize", "validate").
		Build()
}

// Answer evaluates one question and returns its result record. The run either
// completes or returns an error; callers turn errors into failure records
// rather than aborting a batch.
func (p *Pipeline) Answer(ctx context.Context, question, formatHint string) (_ *RunState, err error) {
	ctx, span := p.tracer.Start(ctx, "qa.answer",
		oteltrace.WithAttributes(attribute.String("qa.format_hint", formatHint)))
	defer func() { telemetry.End(span, err) }()

	run := NewRunState(question, ParseShape(formatHint))
	state := graph.State{runStateKey: run}

	if _, err := p.workflow.Execute(ctx, state); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("qa.route", string(run.Route)),
		attribute.Int("qa.repair_count", run.RepairCount),
		attribute.Float64("qa.confidence", run.Confidence),
	)
	return run, nil
}

// traced wraps a node handler in a span named after the node.
func (p *Pipeline) traced(name string, fn graph.NodeFunc) graph.NodeFunc {
	return func(ctx context.Context, s graph.State) (graph.State, error) {
		ctx, span := p.tracer.Start(ctx, "qa.node."+name)
		out, err := fn(ctx, s)
		telemetry.End(span, err)
		return out, err
	}
}

func runState(s graph.State) *RunState {
	return s[runStateKey].(*RunState)
}

func (p *Pipeline) nodeRoute(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)
	run.RepairCount = 0
	run.QueryAttempts = 0

	decision, err := p.reasoner.Route(ctx, run.Question)
	if err != nil {
		return nil, fmt.Errorf("route question: %w", err)
	}

	route := normalizeRoute(decision.Label)
	if route == RouteUnclassified {
		route = keywordRoute(run.Question)
		p.logger.Debug("route label unrecognized, using keyword heuristics",
			"label", decision.Label, "route", string(route))
	}
	run.Route = route
	run.appendTrace("route", map[string]any{
		"route":     string(route),
		"reasoning": decision.Reasoning,
	})
	p.logger.Info("question routed", "route", string(route))
	return s, nil
}

func normalizeRoute(label string) Route {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "rag":
		return RouteRAG
	case "sql":
		return RouteSQL
	case "hybrid":
		return RouteHybrid
	default:
		return RouteUnclassified
	}
}

// keywordRoute is the heuristic fallback when the backend's route label is
// not one of the recognized three.
func keywordRoute(question string) Route {
	q := strings.ToLower(question)
	if containsAny(q, "policy", "return", "window", "definition") {
		return RouteRAG
	}
	if containsAny(q, "revenue", "top", "total", "sum", "count") {
		if containsAny(q, "during", "campaign", "marketing", "calendar") {
			return RouteHybrid
		}
		return RouteSQL
	}
	return RouteHybrid
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (p *Pipeline) afterRoute(_ context.Context, s graph.State) (string, error) {
	return string(runState(s).Route), nil
}

func (p *Pipeline) nodeRetrieve(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	fragments, err := p.retriever.Retrieve(ctx, run.Question, p.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve fragments: %w", err)
	}
	run.Fragments = fragments

	var parts []string
	for _, f := range fragments {
		parts = append(parts, fmt.Sprintf("[%s] %s", f.ID, f.Content))
	}
	run.DocContext = strings.Join(parts, "\n\n")
	run.appendTrace("retrieve", map[string]any{"fragments": len(fragments)})
	return s, nil
}

func (p *Pipeline) nodePlan(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	if run.DocContext == "" {
		run.Constraints = noContextMarker
	} else {
		constraints, err := p.reasoner.ExtractConstraints(ctx, run.Question, run.DocContext)
		if err != nil {
			return nil, fmt.Errorf("extract constraints: %w", err)
		}
		run.Constraints = constraints
	}
	run.appendTrace("plan", map[string]any{"constraints": run.Constraints})
	return s, nil
}

func (p *Pipeline) afterPlan(_ context.Context, s graph.State) (string, error) {
	if runState(s).Route.needsSQL() {
		return "sql", nil
	}
	return "synthesize", nil
}

func (p *Pipeline) nodeGenerateSQL(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	queryContext := run.Constraints
	if queryContext == "" {
		queryContext = run.DocContext
	}
	query, err := p.reasoner.GenerateQuery(ctx, run.Question, p.store.CompactSchema(), queryContext)
	if err != nil {
		return nil, fmt.Errorf("generate query: %w", err)
	}
	run.CurrentQuery = query
	run.QueryAttempts++
	run.appendTrace("generate_sql", map[string]any{"query": query})
	return s, nil
}

func (p *Pipeline) nodeExecuteSQL(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	outcome := p.store.Execute(ctx, run.CurrentQuery)
	run.QueryResult = &outcome
	if !outcome.Success {
		run.appendError(outcome.Error)
	}
	run.appendTrace("execute_sql", map[string]any{
		"success": outcome.Success,
		"rows":    outcome.RowCount(),
	})
	return s, nil
}

func (p *Pipeline) afterExecution(_ context.Context, s graph.State) (string, error) {
	run := runState(s)
	if run.QueryResult.Success && run.QueryResult.RowCount() > 0 {
		return "synthesize", nil
	}
	if run.RepairCount < maxRepairs {
		return "repair", nil
	}
	// Retries exhausted: synthesis degrades gracefully with the failed or
	// empty outcome instead of aborting.
	return "synthesize", nil
}

func (p *Pipeline) nodeRepairSQL(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	errMsg := run.QueryResult.Error
	if errMsg == "" {
		errMsg = "query returned no results"
	}
	repaired, err := p.reasoner.RepairQuery(ctx, run.Question, run.CurrentQuery, errMsg, p.store.CompactSchema())
	if err != nil {
		return nil, fmt.Errorf("repair query: %w", err)
	}
	run.CurrentQuery = repaired
	run.QueryAttempts++
	run.RepairCount++
	run.appendTrace("repair_sql", map[string]any{
		"repair_count": run.RepairCount,
		"query":        repaired,
	})
	p.logger.Info("query repaired", "repair_count", run.RepairCount)
	return s, nil
}

func (p *Pipeline) nodeSynthesize(ctx context.Context, s graph.State) (graph.State, error) {
	run := runState(s)

	result, err := p.reasoner.Synthesize(ctx, reason.SynthesisInput{
		Question:   run.Question,
		FormatHint: run.Shape.Hint,
		DocContext: run.DocContext,
		SQLResult:  formatOutcome(run.QueryResult),
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}

	run.Reasoning = result.Reasoning
	run.FinalAnswer = ParseAnswer(result.Answer, run.Shape)
	run.Citations = collectCitations(run)
	run.Confidence = Confidence(run)
	run.appendTrace("synthesize", map[string]any{"confidence": run.Confidence})
	return s, nil
}

func (p *Pipeline) nodeValidate(_ context.Context, s graph.State) (graph.State, error) {
	run := runState(s)
	run.appendTrace("validate", map[string]any{
		"answer_type": fmt.Sprintf("%T", run.FinalAnswer),
	})
	return s, nil
}

// formatOutcome renders column names and up to the first maxResultRows rows
// for the synthesis prompt.
func formatOutcome(outcome *store.QueryOutcome) string {
	if outcome == nil {
		return ""
	}
	if !outcome.Success {
		return fmt.Sprintf("Query failed: %s", outcome.Error)
	}

	var b strings.Builder
	b.WriteString(strings.Join(outcome.Columns, " | "))
	rows := outcome.Rows
	if len(rows) > maxResultRows {
		rows = rows[:maxResultRows]
	}
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}

// collectCitations gathers fragment ids with meaningful relevance plus the
// tables the final query touched, deduplicated in first-seen order.
func collectCitations(run *RunState) []string {
	seen := make(map[string]struct{})
	citations := []string{}

	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		citations = append(citations, c)
	}

	for _, f := range run.Fragments {
		if f.Score > 0.01 {
			add(f.ID)
		}
	}
	if run.QueryResult != nil {
		for _, t := range run.QueryResult.Tables {
			add(t)
		}
	}
	return citations
}
