package services

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	groupKey
)

// WithRequestID tags ctx with the API request identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithGroup tags ctx with the rule group deciding a ranking.
func WithGroup(ctx context.Context, group string) context.Context {
	return withString(ctx, groupKey, group)
}

func GroupFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, groupKey)
}

// Empty values are not stored, so lookups never report "".
func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}
