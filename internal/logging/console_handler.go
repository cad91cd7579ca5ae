package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

// highlightKeys lead the field list in this order. Other fields follow in
// the order they were logged.
var highlightKeys = []string{
	FieldEventType,
	FieldRuleGroup,
	FieldRule,
	FieldResource,
	FieldRank,
	FieldPriority,
	FieldLayer,
	FieldToken,
	FieldMissing,
	"error",
	FieldErrorHint,
	FieldImpact,
}

// maxInfoFields caps the fields printed for info and above; debug prints all.
const maxInfoFields = 10

type field struct {
	key   string
	value slog.Value
}

// consoleHandler writes one logfmt-style line per record:
//
//	2026-01-02 15:04:05.000 INFO  [engine] req=abc ranked resources rank=2 layer="4K & CN"
//
// Keeping records on a single line lets the log file be tailed and grepped.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	prefix    []string
	fields    []field
}

func newConsoleHandler(w io.Writer, level *slog.LevelVar, addSource bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	fields := append([]field(nil), h.fields...)
	r.Attrs(func(a slog.Attr) bool {
		fields = appendAttr(fields, h.prefix, a)
		return true
	})
	fields = lastWins(fields)

	var component, requestID string
	rest := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = f.value.String()
		case FieldRequestID:
			requestID = f.value.String()
		default:
			rest = append(rest, f)
		}
	}

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	fmt.Fprintf(&b, " %-5s", levelName(r.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if requestID != "" {
		b.WriteString(" req=" + requestID)
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(" " + msg)

	limit := 0
	if r.Level >= slog.LevelInfo {
		limit = maxInfoFields
	}
	shown, hidden := orderFields(rest, limit)
	for _, f := range shown {
		b.WriteString(" " + f.key + "=" + renderValue(f.value))
	}
	if hidden > 0 {
		fmt.Fprintf(&b, " (+%d more)", hidden)
	}
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			b.WriteString(" @" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line))
		}
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = append([]field(nil), h.fields...)
	for _, a := range attrs {
		clone.fields = appendAttr(clone.fields, h.prefix, a)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = append(append([]string(nil), h.prefix...), name)
	return &clone
}

func appendAttr(dst []field, prefix []string, a slog.Attr) []field {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() == slog.KindGroup {
		next := prefix
		if a.Key != "" {
			next = append(append([]string(nil), prefix...), a.Key)
		}
		for _, child := range a.Value.Group() {
			dst = appendAttr(dst, next, child)
		}
		return dst
	}
	key := a.Key
	if len(prefix) > 0 {
		key = strings.Join(append(append([]string(nil), prefix...), key), ".")
	}
	return append(dst, field{key: key, value: a.Value})
}

// lastWins drops earlier duplicates of a key, keeping the first position.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if f.key == "" {
			continue
		}
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

// orderFields puts highlighted keys first. limit 0 means unlimited.
func orderFields(fields []field, limit int) ([]field, int) {
	rank := make(map[string]int, len(highlightKeys))
	for i, k := range highlightKeys {
		rank[k] = i
	}
	out := make([]field, 0, len(fields))
	for _, k := range highlightKeys {
		for _, f := range fields {
			if f.key == k {
				out = append(out, f)
			}
		}
	}
	for _, f := range fields {
		if _, ok := rank[f.key]; !ok {
			out = append(out, f)
		}
	}
	if limit > 0 && len(out) > limit {
		return out[:limit], len(out) - limit
	}
	return out, 0
}

func renderValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().Local().Format(consoleTimeLayout)
	case slog.KindDuration:
		s = v.Duration().Round(time.Millisecond).String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
