package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"

	"torrank/internal/torrent"
)

// MaxClauses bounds the size of a layer after normalisation to disjunctive
// normal form. Nested groups multiply out, so a handful of parenthesised
// disjunctions can otherwise explode.
const MaxClauses = 256

// Option adjusts how rule text is compiled.
type Option func(*parseOptions)

type parseOptions struct {
	strict     bool
	custom     map[string]Predicate
	syntaxOnly bool
}

// WithStrict makes evaluation fail with an EvaluationError when a resource
// lacks an attribute a rule needs, instead of treating it as false.
func WithStrict(strict bool) Option {
	return func(o *parseOptions) {
		o.strict = strict
	}
}

// WithCustom registers additional tokens backed by predicates. Built-in tokens
// keep precedence over custom tokens with the same name.
func WithCustom(preds ...Predicate) Option {
	return func(o *parseOptions) {
		if o.custom == nil {
			o.custom = make(map[string]Predicate, len(preds))
		}
		for _, p := range preds {
			if p == nil {
				continue
			}
			name := torrent.NormalizeToken(p.Token())
			if name == "" {
				continue
			}
			o.custom[name] = p
		}
	}
}

// Parse compiles rule text into a RuleSet. Blank text yields a disabled set.
// Any unknown token or malformed expression fails with a *ConfigurationError.
func Parse(text string, opts ...Option) (*RuleSet, error) {
	var o parseOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	folded := width.Narrow.String(text)
	if strings.TrimSpace(folded) == "" {
		return &RuleSet{strict: o.strict}, nil
	}

	runes := []rune(folded)
	var layers []Layer
	start := 0
	for i := 0; i <= len(runes); i++ {
		if i < len(runes) && runes[i] != '>' {
			continue
		}
		layer, err := parseLayer(runes[start:i], start, len(layers), &o)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
		start = i + 1
	}

	return &RuleSet{
		source: strings.TrimSpace(text),
		layers: layers,
		strict: o.strict,
	}, nil
}

// CheckSyntax reports grammar errors in rule text without resolving tokens.
// It lets callers validate a rule before the custom tokens it may reference
// are known; Parse still rejects unknown tokens later.
func CheckSyntax(text string) error {
	_, err := Parse(text, func(o *parseOptions) { o.syntaxOnly = true })
	return err
}

// MustParse is Parse for rule text known to be valid at compile time.
func MustParse(text string, opts ...Option) *RuleSet {
	rs, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return rs
}

type lexKind int

const (
	lexIdent lexKind = iota
	lexNot
	lexAnd
	lexOr
	lexOpen
	lexClose
	lexEOF
)

type lexeme struct {
	kind   lexKind
	text   string
	column int
}

func isDelimiter(r rune) bool {
	switch r {
	case '!', '&', '|', '(', ')', '>':
		return true
	}
	return unicode.IsSpace(r)
}

func lex(runes []rune, offset int) []lexeme {
	out := make([]lexeme, 0, len(runes)/2+1)
	for i := 0; i < len(runes); {
		r := runes[i]
		column := offset + i + 1
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '!':
			out = append(out, lexeme{kind: lexNot, text: "!", column: column})
			i++
		case r == '&':
			out = append(out, lexeme{kind: lexAnd, text: "&", column: column})
			i++
		case r == '|':
			out = append(out, lexeme{kind: lexOr, text: "|", column: column})
			i++
		case r == '(':
			out = append(out, lexeme{kind: lexOpen, text: "(", column: column})
			i++
		case r == ')':
			out = append(out, lexeme{kind: lexClose, text: ")", column: column})
			i++
		default:
			j := i
			for j < len(runes) && !isDelimiter(runes[j]) {
				j++
			}
			out = append(out, lexeme{kind: lexIdent, text: string(runes[i:j]), column: column})
			i = j
		}
	}
	return append(out, lexeme{kind: lexEOF, column: offset + len(runes) + 1})
}

type parser struct {
	items []lexeme
	pos   int
	layer int
	opts  *parseOptions
}

func parseLayer(runes []rune, offset, index int, opts *parseOptions) (Layer, error) {
	p := &parser{items: lex(runes, offset), layer: index, opts: opts}
	if p.peek().kind == lexEOF {
		return Layer{}, configErr(index, offset+1, "", "empty layer")
	}
	clauses, err := p.parseOr()
	if err != nil {
		return Layer{}, err
	}
	switch tail := p.peek(); tail.kind {
	case lexEOF:
	case lexClose:
		return Layer{}, configErr(index, tail.column, "", "unbalanced parenthesis")
	case lexIdent, lexNot, lexOpen:
		return Layer{}, configErr(index, tail.column, tail.text, "missing operator before")
	default:
		return Layer{}, configErr(index, tail.column, tail.text, "unexpected operator")
	}
	return Layer{Index: index, Clauses: clauses}, nil
}

func (p *parser) peek() lexeme {
	return p.items[p.pos]
}

func (p *parser) next() lexeme {
	item := p.items[p.pos]
	if item.kind != lexEOF {
		p.pos++
	}
	return item
}

func (p *parser) parseOr() ([]Clause, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == lexOr {
		op := p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if len(left)+len(right) > MaxClauses {
			return nil, configErr(p.layer, op.column, "", "expression too large")
		}
		left = append(left, right...)
	}
	return left, nil
}

func (p *parser) parseAnd() ([]Clause, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == lexAnd {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if len(left)*len(right) > MaxClauses {
			return nil, configErr(p.layer, op.column, "", "expression too large")
		}
		left = product(left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() ([]Clause, error) {
	item := p.next()
	switch item.kind {
	case lexIdent:
		term, err := p.resolve(item, false)
		if err != nil {
			return nil, err
		}
		return []Clause{{term}}, nil
	case lexNot:
		operand := p.next()
		switch operand.kind {
		case lexIdent:
			term, err := p.resolve(operand, true)
			if err != nil {
				return nil, err
			}
			return []Clause{{term}}, nil
		case lexNot:
			return nil, configErr(p.layer, item.column, "", "double negation is not allowed")
		case lexOpen:
			return nil, configErr(p.layer, item.column, "", "negation applies to a single token")
		case lexEOF:
			return nil, configErr(p.layer, item.column, "", "missing token after !")
		default:
			return nil, configErr(p.layer, operand.column, operand.text, "missing token after !, found")
		}
	case lexOpen:
		clauses, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != lexClose {
			return nil, configErr(p.layer, item.column, "", "unbalanced parenthesis")
		}
		return clauses, nil
	case lexEOF:
		return nil, configErr(p.layer, item.column, "", "expected token at end of layer")
	case lexClose:
		return nil, configErr(p.layer, item.column, "", "unbalanced parenthesis")
	default:
		return nil, configErr(p.layer, item.column, item.text, "expected token, found")
	}
}

func (p *parser) resolve(item lexeme, negated bool) (Term, error) {
	if canonical, get, ok := torrent.Lookup(item.text); ok {
		return Term{Token: canonical, Negated: negated, get: get}, nil
	}
	name := torrent.NormalizeToken(item.text)
	if pred, ok := p.opts.custom[name]; ok {
		return Term{Token: name, Negated: negated, get: pred.Eval}, nil
	}
	if p.opts.syntaxOnly {
		return Term{Token: name, Negated: negated}, nil
	}
	return Term{}, configErr(p.layer, item.column, item.text, "unknown token")
}

func product(left, right []Clause) []Clause {
	out := make([]Clause, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			clause := make(Clause, 0, len(l)+len(r))
			clause = append(clause, l...)
			clause = append(clause, r...)
			out = append(out, clause)
		}
	}
	return out
}
