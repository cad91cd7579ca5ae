package rulegroup

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"torrank/internal/rules"
	"torrank/internal/torrent"
)

// Media type values used by groups.
const (
	MediaMovie = "电影"
	MediaTV    = "电视剧"
)

// Group is a named rule string scoped to a media type and category. Empty
// MediaType applies to everything; empty Category applies to every category
// of the media type.
type Group struct {
	Name       string `json:"name" toml:"name"`
	RuleString string `json:"rule_string" toml:"rule_string"`
	MediaType  string `json:"media_type,omitempty" toml:"media_type"`
	Category   string `json:"category,omitempty" toml:"category"`
}

// Media identifies what the candidate resources are for.
type Media struct {
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
}

// Validate checks the group can be stored.
func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return errors.New("group name is required")
	}
	if g.Category != "" && g.MediaType == "" {
		return fmt.Errorf("group %q: category requires media_type", g.Name)
	}
	return nil
}

// Select returns the groups applicable to media, in input order. When names
// is non-empty only groups with those names are considered.
func Select(groups []Group, media *Media, names []string) []Group {
	var out []Group
	for _, g := range groups {
		if len(names) > 0 && !slices.Contains(names, g.Name) {
			continue
		}
		switch {
		case g.MediaType == "":
			out = append(out, g)
		case media != nil && g.Category == "" && g.MediaType == media.Type:
			out = append(out, g)
		case media != nil && g.Category != "" && g.Category == media.Category:
			out = append(out, g)
		}
	}
	return out
}

// Compiled is a group with its parsed rule string.
type Compiled struct {
	Group
	Rules *rules.RuleSet
}

// Compile parses every group's rule string with the same options.
func Compile(groups []Group, opts ...rules.Option) ([]Compiled, error) {
	out := make([]Compiled, 0, len(groups))
	for _, g := range groups {
		rs, err := rules.Parse(g.RuleString, opts...)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		out = append(out, Compiled{Group: g, Rules: rs})
	}
	return out, nil
}

// Apply ranks resources with the first group and uses every further group
// as a filter: a resource survives only if each later group matches it.
// With no groups resources pass through unranked.
func Apply(groups []Compiled, resources []*torrent.Resource) ([]rules.Ranked, error) {
	if len(groups) == 0 {
		return rules.Disabled().Rank(resources)
	}
	ranked, err := groups[0].Rules.Rank(resources)
	errs := wrapGroup(groups[0].Name, err)
	for _, g := range groups[1:] {
		kept := ranked[:0]
		for _, item := range ranked {
			result, evalErr := g.Rules.Evaluate(item.Resource)
			if evalErr != nil {
				errs = append(errs, wrapGroup(g.Name, evalErr)...)
				continue
			}
			if result.Matched {
				kept = append(kept, item)
			}
		}
		ranked = kept
	}
	return ranked, errors.Join(errs...)
}

// wrapGroup prefixes each joined failure with the group name. The failures
// stay separate so callers can count skipped resources.
func wrapGroup(name string, err error) []error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		out = append(out, fmt.Errorf("group %q: %w", name, e))
	}
	return out
}

// Find returns the group with the given name.
func Find(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}
