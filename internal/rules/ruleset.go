package rules

import (
	"strings"

	"torrank/internal/torrent"
)

// Predicate resolves a token that is not part of the built-in vocabulary,
// such as a user-defined custom rule.
type Predicate interface {
	Token() string
	Eval(*torrent.Resource) (value, known bool)
}

// Term is a single, optionally negated token inside a conjunction.
type Term struct {
	Token   string
	Negated bool

	get torrent.Accessor
}

// Clause is a conjunction of terms.
type Clause []Term

// Layer is one priority tier: a disjunction of clauses.
type Layer struct {
	Index   int
	Clauses []Clause
}

// RuleSet is an immutable compiled rule configuration.
type RuleSet struct {
	source string
	layers []Layer
	strict bool
}

// Disabled returns a RuleSet that ranks nothing and passes resources through.
func Disabled() *RuleSet {
	return &RuleSet{}
}

// Enabled reports whether the rule set has at least one layer.
func (rs *RuleSet) Enabled() bool {
	return rs != nil && len(rs.layers) > 0
}

// Strict reports whether missing attributes fail evaluation.
func (rs *RuleSet) Strict() bool {
	return rs != nil && rs.strict
}

// Source returns the rule text the set was compiled from.
func (rs *RuleSet) Source() string {
	if rs == nil {
		return ""
	}
	return rs.source
}

// Len returns the number of layers.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.layers)
}

// Layers returns a copy of the compiled layers.
func (rs *RuleSet) Layers() []Layer {
	if rs == nil {
		return nil
	}
	out := make([]Layer, len(rs.layers))
	for i, layer := range rs.layers {
		clauses := make([]Clause, len(layer.Clauses))
		for j, clause := range layer.Clauses {
			clauses[j] = append(Clause(nil), clause...)
		}
		out[i] = Layer{Index: layer.Index, Clauses: clauses}
	}
	return out
}

// Describe returns the layers as nested string slices, one string per clause.
func (rs *RuleSet) Describe() [][]string {
	if rs == nil {
		return nil
	}
	out := make([][]string, len(rs.layers))
	for i, layer := range rs.layers {
		clauses := make([]string, len(layer.Clauses))
		for j, clause := range layer.Clauses {
			clauses[j] = clause.String()
		}
		out[i] = clauses
	}
	return out
}

// Tokens returns the distinct canonical tokens referenced by the rule set.
func (rs *RuleSet) Tokens() []string {
	if rs == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, layer := range rs.layers {
		for _, clause := range layer.Clauses {
			for _, term := range clause {
				if _, ok := seen[term.Token]; ok {
					continue
				}
				seen[term.Token] = struct{}{}
				out = append(out, term.Token)
			}
		}
	}
	return out
}

// String renders the canonical rule text. Parsing the result yields an
// equivalent RuleSet.
func (rs *RuleSet) String() string {
	if rs == nil {
		return ""
	}
	layers := make([]string, len(rs.layers))
	for i, layer := range rs.layers {
		layers[i] = layer.String()
	}
	return strings.Join(layers, " > ")
}

func (l Layer) String() string {
	clauses := make([]string, len(l.Clauses))
	for i, clause := range l.Clauses {
		clauses[i] = clause.String()
	}
	return strings.Join(clauses, " | ")
}

func (c Clause) String() string {
	terms := make([]string, len(c))
	for i, term := range c {
		terms[i] = term.String()
	}
	return strings.Join(terms, " & ")
}

func (t Term) String() string {
	if t.Negated {
		return "!" + t.Token
	}
	return t.Token
}
