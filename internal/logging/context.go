package logging

import (
	"context"
	"log/slog"

	"torrank/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRequestID is the standardized structured logging key for API request identifiers.
	FieldRequestID = "request_id"
	// FieldRuleGroup names the rule group that decided a ranking.
	FieldRuleGroup = "rule_group"
	// FieldRule carries rule text.
	FieldRule = "rule"
	// FieldResource is a resource label (site and title).
	FieldResource = "resource"
	FieldRank     = "rank"
	FieldPriority = "priority"
	FieldLayer    = "layer"
	FieldToken    = "token"
	// FieldMissing lists tokens a resource had no data for.
	FieldMissing = "missing"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	if group, ok := services.GroupFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRuleGroup, group))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
