package reason

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/askdata/pkg/logging"
)

// fallbackService wraps a primary Service and degrades to a secondary one
// when the primary fails, so transient backend outages do not abort a run.
type fallbackService struct {
	primary   Service
	secondary Service
	logger    *slog.Logger
}

// WithFallback returns a Service that tries primary first and retries each
// call on secondary when primary returns an error.
func WithFallback(primary, secondary Service) Service {
	return &fallbackService{
		primary:   primary,
		secondary: secondary,
		logger:    logging.WithComponent("reason.fallback"),
	}
}

func (f *fallbackService) Route(ctx context.Context, question string) (RouteDecision, error) {
	out, err := f.primary.Route(ctx, question)
	if err != nil {
		f.logger.Warn("primary route failed, using fallback", "error", err)
		return f.secondary.Route(ctx, question)
	}
	return out, nil
}

func (f *fallbackService) ExtractConstraints(ctx context.Context, question, docContext string) (string, error) {
	out, err := f.primary.ExtractConstraints(ctx, question, docContext)
	if err != nil {
		f.logger.Warn("primary constraint extraction failed, using fallback", "error", err)
		return f.secondary.ExtractConstraints(ctx, question, docContext)
	}
	return out, nil
}

func (f *fallbackService) GenerateQuery(ctx context.Context, question, schema, context string) (string, error) {
	out, err := f.primary.GenerateQuery(ctx, question, schema, context)
	if err != nil {
		f.logger.Warn("primary query generation failed, using fallback", "error", err)
		return f.secondary.GenerateQuery(ctx, question, schema, context)
	}
	return out, nil
}

func (f *fallbackService) RepairQuery(ctx context.Context, question, failedQuery, errorMsg, schema string) (string, error) {
	out, err := f.primary.RepairQuery(ctx, question, failedQuery, errorMsg, schema)
	if err != nil {
		f.logger.Warn("primary query repair failed, using fallback", "error", err)
		return f.secondary.RepairQuery(ctx, question, failedQuery, errorMsg, schema)
	}
	return out, nil
}

func (f *fallbackService) Synthesize(ctx context.Context, input SynthesisInput) (SynthesisResult, error) {
	out, err := f.primary.Synthesize(ctx, input)
	if err != nil {
		f.logger.Warn("primary synthesis failed, using fallback", "error", err)
		return f.secondary.Synthesize(ctx, input)
	}
	return out, nil
}
