package rules

import (
	"errors"
	"sort"

	"torrank/internal/torrent"
)

// Unranked is the Rank of a Result that carries no layer position, either
// because nothing matched or because the rule set is disabled.
const Unranked = -1

// Result is the outcome of evaluating one resource.
type Result struct {
	// Rank is the 0-based index of the first matching layer, or Unranked.
	Rank int `json:"rank"`
	// Matched is false when the resource fell through every layer and must
	// not be selected. A disabled rule set matches everything with Unranked.
	Matched bool `json:"matched"`
	// Missing lists tokens whose attribute was unknown and was read as false.
	Missing []string `json:"missing,omitempty"`
}

// Ranked reports whether the result has a layer position.
func (r Result) Ranked() bool {
	return r.Matched && r.Rank >= 0
}

// Priority converts the rank to the legacy descending order value used when
// sorting downloads: layer 0 is 100, layer 1 is 99, and so on. Unranked
// results report 0.
func (r Result) Priority() int {
	if !r.Ranked() {
		return 0
	}
	return 100 - r.Rank
}

// Evaluate returns the first layer the resource satisfies. In lenient mode a
// missing attribute reads as false, is recorded in Result.Missing, and err is
// always nil. In strict mode a layer whose outcome depends on a missing
// attribute aborts evaluation with an *EvaluationError. The operand order
// inside a layer never changes the outcome.
func (rs *RuleSet) Evaluate(r *torrent.Resource) (Result, error) {
	if !rs.Enabled() {
		return Result{Rank: Unranked, Matched: true}, nil
	}
	var missing []string
	for _, layer := range rs.layers {
		matched, undecided := false, ""
		for _, clause := range layer.Clauses {
			ok, unknown := clause.eval(r)
			if rs.strict {
				if ok && len(unknown) == 0 {
					matched = true
					break
				}
				if len(unknown) > 0 && undecided == "" {
					undecided = unknown[0]
				}
				continue
			}
			for _, token := range unknown {
				recordMissing(&missing, token)
			}
			if ok {
				matched = true
				break
			}
		}
		if matched {
			return Result{Rank: layer.Index, Matched: true, Missing: missing}, nil
		}
		if undecided != "" {
			return Result{Rank: Unranked}, &EvaluationError{Layer: layer.Index, Token: undecided, Resource: r.Label()}
		}
	}
	return Result{Rank: Unranked, Missing: missing}, nil
}

// eval reports whether the clause holds with unknown attributes read as
// false, and the unknown tokens that outcome rests on. A known term that
// fails decides the clause alone, so no tokens are returned then.
func (c Clause) eval(r *torrent.Resource) (bool, []string) {
	var unknown []Term
	for _, term := range c {
		value, known := false, false
		if term.get != nil {
			value, known = term.get(r)
		}
		if !known {
			unknown = append(unknown, term)
			continue
		}
		if value == term.Negated {
			return false, nil
		}
	}
	if len(unknown) == 0 {
		return true, nil
	}
	ok := true
	tokens := make([]string, 0, len(unknown))
	for _, term := range unknown {
		tokens = append(tokens, term.Token)
		if !term.Negated {
			ok = false
		}
	}
	return ok, tokens
}

func recordMissing(missing *[]string, token string) {
	for _, existing := range *missing {
		if existing == token {
			return
		}
	}
	*missing = append(*missing, token)
}

// Ranked pairs a resource with its evaluation result.
type Ranked struct {
	Resource *torrent.Resource `json:"resource"`
	Result   Result            `json:"result"`
}

// Rank evaluates every resource, drops the ones that match no layer, and
// stable-sorts the rest by ascending rank so input order breaks ties. With a
// disabled rule set every resource is returned unranked in input order.
// In strict mode resources that fail evaluation are skipped and their
// errors joined into the returned error.
func (rs *RuleSet) Rank(resources []*torrent.Resource) ([]Ranked, error) {
	out := make([]Ranked, 0, len(resources))
	var errs []error
	for _, r := range resources {
		if r == nil {
			continue
		}
		result, err := rs.Evaluate(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !result.Matched {
			continue
		}
		out = append(out, Ranked{Resource: r, Result: result})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Result.Rank < out[j].Result.Rank
	})
	return out, errors.Join(errs...)
}
