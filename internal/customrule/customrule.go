package customrule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"torrank/internal/rules"
	"torrank/internal/torrent"
)

// Rule is the stored definition of a custom token.
type Rule struct {
	ID          string `json:"id" toml:"id"`
	Name        string `json:"name,omitempty" toml:"name"`
	Include     string `json:"include,omitempty" toml:"include"`
	Exclude     string `json:"exclude,omitempty" toml:"exclude"`
	SizeRange   string `json:"size_range,omitempty" toml:"size_range"`
	Seeders     string `json:"seeders,omitempty" toml:"seeders"`
	PublishTime string `json:"publish_time,omitempty" toml:"publish_time"`
}

// NewID returns a fresh token ID for a rule created without one.
func NewID() string {
	return "CUSTOM_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Compiled is a validated custom rule ready for evaluation.
type Compiled struct {
	rule       Rule
	token      string
	include    *regexp.Regexp
	exclude    *regexp.Regexp
	size       *bounds
	minSeeders int
	age        *bounds

	now func() time.Time
}

type bounds struct {
	min, max float64
	hasMax   bool
}

func (b *bounds) contains(v float64) bool {
	if v < b.min {
		return false
	}
	return !b.hasMax || v <= b.max
}

// Compile validates the rule. Every failure is a *rules.ConfigurationError
// naming the rule ID.
func (r Rule) Compile() (*Compiled, error) {
	token := torrent.NormalizeToken(r.ID)
	if err := validateID(token); err != nil {
		return nil, err
	}
	c := &Compiled{rule: r, token: token, now: time.Now}

	var err error
	if c.include, err = compilePattern(token, "include", r.Include); err != nil {
		return nil, err
	}
	if c.exclude, err = compilePattern(token, "exclude", r.Exclude); err != nil {
		return nil, err
	}
	if c.size, err = parseBounds(token, "size_range", r.SizeRange); err != nil {
		return nil, err
	}
	if c.age, err = parseBounds(token, "publish_time", r.PublishTime); err != nil {
		return nil, err
	}
	if value := strings.TrimSpace(r.Seeders); value != "" {
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n < 0 {
			return nil, invalid(token, "seeders must be a non-negative integer")
		}
		c.minSeeders = n
	}
	return c, nil
}

// CompileAll compiles every rule and rejects duplicate IDs.
func CompileAll(defs []Rule) ([]*Compiled, error) {
	out := make([]*Compiled, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		c, err := def.Compile()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c.token]; dup {
			return nil, invalid(c.token, "duplicate custom rule id")
		}
		seen[c.token] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// Predicates adapts compiled rules for rules.WithCustom.
func Predicates(compiled []*Compiled) []rules.Predicate {
	out := make([]rules.Predicate, 0, len(compiled))
	for _, c := range compiled {
		out = append(out, c)
	}
	return out
}

// Token returns the canonical token name.
func (c *Compiled) Token() string {
	return c.token
}

// Rule returns the source definition.
func (c *Compiled) Rule() Rule {
	return c.rule
}

// Eval reports whether the resource satisfies every configured condition.
// A definite mismatch wins over missing data; otherwise missing size or
// publish time make the result unknown.
func (c *Compiled) Eval(r *torrent.Resource) (bool, bool) {
	if r == nil {
		return false, false
	}
	text := r.Text()
	if c.include != nil && !c.include.MatchString(text) {
		return false, true
	}
	if c.exclude != nil && c.exclude.MatchString(text) {
		return false, true
	}
	if c.minSeeders > 0 && r.Seeders < c.minSeeders {
		return false, true
	}
	known := true
	if c.size != nil {
		mb, ok := r.SizeMB()
		switch {
		case !ok:
			known = false
		case !c.size.contains(mb):
			return false, true
		}
	}
	if c.age != nil {
		age, ok := r.Age(c.now())
		switch {
		case !ok:
			known = false
		case !c.age.contains(age.Minutes()):
			return false, true
		}
	}
	if !known {
		return false, false
	}
	return true, true
}

func validateID(token string) error {
	if token == "" {
		return invalid(token, "id is required")
	}
	for _, r := range token {
		switch {
		case r == '!', r == '&', r == '|', r == '(', r == ')', r == '>':
			return invalid(token, "id must not contain rule operators")
		case r == ' ', r == '\t', r == '\n':
			return invalid(token, "id must not contain whitespace")
		}
	}
	if torrent.IsBuiltin(token) {
		return invalid(token, "id collides with a built-in token")
	}
	return nil
}

func compilePattern(token, field, pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, invalid(token, fmt.Sprintf("%s: %v", field, err))
	}
	return re, nil
}

// parseBounds accepts "min-max" or a single "min" value.
func parseBounds(token, field, value string) (*bounds, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	lo, hi, hasMax := strings.Cut(value, "-")
	min, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil || min < 0 {
		return nil, invalid(token, fmt.Sprintf("%s: invalid lower bound %q", field, lo))
	}
	b := &bounds{min: min}
	if hasMax {
		max, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if err != nil || max < min {
			return nil, invalid(token, fmt.Sprintf("%s: invalid upper bound %q", field, hi))
		}
		b.max = max
		b.hasMax = true
	}
	return b, nil
}

func invalid(token, reason string) *rules.ConfigurationError {
	return &rules.ConfigurationError{Layer: -1, Token: token, Reason: "custom rule: " + reason}
}
