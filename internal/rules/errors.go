package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks rule text that cannot be compiled. Fix the rule and reload.
	ErrConfiguration = errors.New("configuration error")
	// ErrEvaluation marks a resource that lacks data needed by a rule. Skip the resource.
	ErrEvaluation = errors.New("evaluation error")
)

// ConfigurationError describes why rule text was rejected. Layer is the
// 0-based layer index, or -1 when the problem is not tied to a layer. Column
// is the 1-based rune offset into the full rule text, or 0 when unknown.
type ConfigurationError struct {
	Layer  int
	Column int
	Token  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	parts := make([]string, 0, 3)
	if e.Layer >= 0 {
		parts = append(parts, fmt.Sprintf("layer %d", e.Layer))
	}
	if e.Column > 0 {
		parts = append(parts, fmt.Sprintf("column %d", e.Column))
	}
	msg := e.Reason
	if e.Token != "" {
		msg = fmt.Sprintf("%s %q", e.Reason, e.Token)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: %s", ErrConfiguration, msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, strings.Join(parts, " "), msg)
}

// Is lets errors.Is match the ErrConfiguration marker.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// EvaluationError reports a token whose attribute was missing from the
// resource while evaluating in strict mode.
type EvaluationError struct {
	Layer    int
	Token    string
	Resource string
}

func (e *EvaluationError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: layer %d: attribute %q unknown for %q", ErrEvaluation, e.Layer, e.Token, e.Resource)
	}
	return fmt.Sprintf("%s: layer %d: attribute %q unknown", ErrEvaluation, e.Layer, e.Token)
}

// Is lets errors.Is match the ErrEvaluation marker.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluation
}

func configErr(layer, column int, token, reason string) *ConfigurationError {
	return &ConfigurationError{Layer: layer, Column: column, Token: token, Reason: reason}
}
