package reason

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/sweetpotato0/askdata/errors"
	"github.com/sweetpotato0/askdata/llm"
	"github.com/sweetpotato0/askdata/message"
	"github.com/sweetpotato0/askdata/pkg/logging"
)

// Option customises the LLM-backed service.
type Option func(*LLMService)

// WithContextBudget caps how many tokens of document context are passed to a
// single prompt (default 1024).
func WithContextBudget(maxTokens int) Option {
	return func(s *LLMService) {
		if maxTokens > 0 {
			s.budget = newPromptBudget(maxTokens)
		}
	}
}

// LLMService implements Service against any llm.Client.
type LLMService struct {
	client llm.Client
	budget *promptBudget
	logger *slog.Logger
}

// NewLLMService wraps a language-model client in the Service contract.
func NewLLMService(client llm.Client, opts ...Option) *LLMService {
	s := &LLMService{
		client: client,
		budget: newPromptBudget(1024),
		logger: logging.WithComponent("reason"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LLMService) complete(ctx context.Context, system, user string) (string, error) {
	msgs := []*message.Message{
		message.NewMessage(message.RoleSystem, system),
		message.NewMessage(message.RoleUser, user),
	}
	resp, err := s.client.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrBackendUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text()) == "" {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Text(), nil
}

// Route implements Service.
func (s *LLMService) Route(ctx context.Context, question string) (RouteDecision, error) {
	raw, err := s.complete(ctx, routePrompt, fmt.Sprintf("Question: %s\nReturn JSON only.", question))
	if err != nil {
		return RouteDecision{}, fmt.Errorf("route classification failed: %w", err)
	}

	decision, err := decodeJSON[RouteDecision](raw)
	if err != nil {
		// A bare label is still usable.
		return RouteDecision{Label: strings.ToLower(strings.TrimSpace(raw))}, nil
	}
	decision.Label = strings.ToLower(strings.TrimSpace(decision.Label))
	return *decision, nil
}

// ExtractConstraints implements Service.
func (s *LLMService) ExtractConstraints(ctx context.Context, question, docContext string) (string, error) {
	user := fmt.Sprintf("Question: %s\n\nDocument context:\n%s", question, s.budget.truncate(docContext))
	raw, err := s.complete(ctx, constraintsPrompt, user)
	if err != nil {
		return "", fmt.Errorf("constraint extraction failed: %w", err)
	}

	parsed, err := decodeJSON[struct {
		Constraints string `json:"constraints"`
	}](raw)
	if err != nil {
		return strings.TrimSpace(raw), nil
	}
	if parsed.Constraints == "" {
		return strings.TrimSpace(raw), nil
	}
	return parsed.Constraints, nil
}

// GenerateQuery implements Service.
func (s *LLMService) GenerateQuery(ctx context.Context, question, schema, context string) (string, error) {
	if context == "" {
		context = "No additional context"
	}
	system := fmt.Sprintf(generatePrompt, schema)
	user := fmt.Sprintf("Question: %s\n\nContext:\n%s", question, s.budget.truncate(context))
	raw, err := s.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	sql := extractSQL(raw)
	if sql == "" {
		return "", fmt.Errorf("no SQL found in model output")
	}
	return sql, nil
}

// RepairQuery implements Service.
func (s *LLMService) RepairQuery(ctx context.Context, question, failedQuery, errorMsg, schema string) (string, error) {
	system := fmt.Sprintf(repairPrompt, schema)
	user := fmt.Sprintf("Original question: %s\n\nFailed query:\n%s\n\nProblem: %s", question, failedQuery, errorMsg)
	raw, err := s.complete(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("query repair failed: %w", err)
	}

	sql := extractSQL(raw)
	if sql == "" {
		return "", fmt.Errorf("no SQL found in repair output")
	}
	return sql, nil
}

// Synthesize implements Service.
func (s *LLMService) Synthesize(ctx context.Context, input SynthesisInput) (SynthesisResult, error) {
	docContext := input.DocContext
	if docContext == "" {
		docContext = "No document context"
	}
	sqlResult := input.SQLResult
	if sqlResult == "" {
		sqlResult = "No SQL results"
	}

	user := fmt.Sprintf(
		"Question: %s\nRequested format: %s\n\nDocument context:\n%s\n\nSQL result:\n%s",
		input.Question, input.FormatHint, s.budget.truncate(docContext), sqlResult,
	)
	raw, err := s.complete(ctx, synthesizePrompt, user)
	if err != nil {
		return SynthesisResult{}, fmt.Errorf("answer synthesis failed: %w", err)
	}

	parsed, err := decodeJSON[SynthesisResult](raw)
	if err != nil {
		// Malformed output still carries the answer; the parser downstream
		// copes with raw text.
		s.logger.Debug("synthesis output not JSON, using raw text")
		return SynthesisResult{Answer: strings.TrimSpace(raw)}, nil
	}
	return *parsed, nil
}
