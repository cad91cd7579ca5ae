package rules_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"torrank/internal/rules"
	"torrank/internal/torrent"
)

const docsRule = "!BLU & 4K & CN > !BLU & 1080P & CN > !BLU & 4K > !BLU & 1080P"

func TestParseDocsRule(t *testing.T) {
	rs, err := rules.Parse(docsRule)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := [][]string{
		{"!BLU & 4K & CN"},
		{"!BLU & 1080P & CN"},
		{"!BLU & 4K"},
		{"!BLU & 1080P"},
	}
	if diff := cmp.Diff(want, rs.Describe()); diff != "" {
		t.Fatalf("unexpected layers (-want +got):\n%s", diff)
	}
	if !rs.Enabled() {
		t.Fatal("expected rule set to be enabled")
	}
	if rs.String() != docsRule {
		t.Fatalf("String() = %q", rs.String())
	}
}

func TestParseLayerCountMatchesSeparators(t *testing.T) {
	inputs := []string{
		"BLU",
		"BLU > 4K",
		"4K & CN | 1080P > FREE > !HR",
		"(4K | 1080P) & CN > REMUX > WEB-DL > H265 > H264",
		docsRule,
		"国语配音 & CN > CN",
	}
	for _, input := range inputs {
		rs, err := rules.Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		want := strings.Count(input, ">") + 1
		if rs.Len() != want {
			t.Fatalf("Parse(%q) produced %d layers, want %d", input, rs.Len(), want)
		}
		for i, layer := range rs.Layers() {
			if layer.Index != i {
				t.Fatalf("layer %d has index %d", i, layer.Index)
			}
		}
	}
}

func TestParsePrecedenceAndGrouping(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"4K & CN | 1080P", []string{"4K & CN", "1080P"}},
		{"4K | 1080P & CN", []string{"4K", "1080P & CN"}},
		{"(4K | 1080P) & CN", []string{"4K & CN", "1080P & CN"}},
		{"!BLU & (4K | 1080P) & (CN | 国语配音)", []string{
			"!BLU & 4K & CN", "!BLU & 4K & 国语配音", "!BLU & 1080P & CN", "!BLU & 1080P & 国语配音",
		}},
		{"((FREE))", []string{"FREE"}},
	}
	for _, tc := range cases {
		rs, err := rules.Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.input, err)
		}
		got := rs.Describe()
		if len(got) != 1 {
			t.Fatalf("Parse(%q) produced %d layers", tc.input, len(got))
		}
		if diff := cmp.Diff(tc.want, got[0]); diff != "" {
			t.Fatalf("Parse(%q) clauses (-want +got):\n%s", tc.input, diff)
		}
	}
}

func TestParseNormalisesSpellings(t *testing.T) {
	rs, err := rules.Parse("！blu ＆ webdl ｜ hevc ＞ cnsub")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := rs.String(), "!BLU & WEB-DL | H265 > CN"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestCanonicalFormRoundTrips(t *testing.T) {
	inputs := []string{docsRule, "(4K | 1080P) & !BLU", "FREE | HR > 60FPS & 3D"}
	for _, input := range inputs {
		first, err := rules.Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		second, err := rules.Parse(first.String())
		if err != nil {
			t.Fatalf("re-Parse(%q): %v", first.String(), err)
		}
		if diff := cmp.Diff(first.Describe(), second.Describe()); diff != "" {
			t.Fatalf("round trip changed layers (-first +second):\n%s", diff)
		}
	}
}

func TestParseEmptyDisables(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n", "　"} {
		rs, err := rules.Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if rs.Enabled() {
			t.Fatalf("Parse(%q) should be disabled", input)
		}
	}
}

func TestParseUnknownTokenReportsLayer(t *testing.T) {
	_, err := rules.Parse("BLU & 4K > 1080P & XYZ")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *rules.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if cfgErr.Token != "XYZ" || cfgErr.Layer != 1 {
		t.Fatalf("unexpected error detail: %+v", cfgErr)
	}
	if cfgErr.Column != 20 {
		t.Fatalf("expected column 20, got %d", cfgErr.Column)
	}
	if !strings.Contains(err.Error(), "XYZ") || !strings.Contains(err.Error(), "layer 1") {
		t.Fatalf("error message lacks detail: %q", err.Error())
	}
}

func TestParseRejectsMalformedRules(t *testing.T) {
	cases := []struct {
		input string
		layer int
	}{
		{"!!BLU", 0},
		{"4K > !!BLU", 1},
		{"BLU &", 0},
		{"& BLU", 0},
		{"BLU | | 4K", 0},
		{"BLU >", 1},
		{"> BLU", 0},
		{"BLU > > 4K", 1},
		{"BLU 4K", 0},
		{"!(BLU | 4K)", 0},
		{"(BLU | 4K", 0},
		{"BLU | 4K)", 0},
		{"()", 0},
		{"!", 0},
		{"4K & !", 0},
		{"4K > CN & (1080P", 1},
	}
	for _, tc := range cases {
		_, err := rules.Parse(tc.input)
		if err == nil {
			t.Fatalf("Parse(%q) expected error", tc.input)
		}
		var cfgErr *rules.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("Parse(%q) returned %T, want *ConfigurationError", tc.input, err)
		}
		if cfgErr.Layer != tc.layer {
			t.Fatalf("Parse(%q) layer = %d, want %d (%v)", tc.input, cfgErr.Layer, tc.layer, err)
		}
	}
}

func TestParseRejectsExplodingExpressions(t *testing.T) {
	group := "(4K | 1080P | 720P | CN)"
	input := strings.Repeat(group+" & ", 4) + group
	_, err := rules.Parse(input)
	if !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected configuration error for %d-clause expansion, got %v", 4*4*4*4*4, err)
	}
}

type titlePredicate struct {
	token string
	word  string
}

func (p titlePredicate) Token() string { return p.token }

func (p titlePredicate) Eval(r *torrent.Resource) (bool, bool) {
	return strings.Contains(r.Title, p.word), true
}

func TestParseCustomTokens(t *testing.T) {
	custom := titlePredicate{token: "chd", word: "CHD"}
	if _, err := rules.Parse("CHD & 4K"); err == nil {
		t.Fatal("expected unregistered custom token to be rejected")
	}
	rs, err := rules.Parse("chd & 4K > 4K", rules.WithCustom(custom))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := rs.String(); got != "CHD & 4K > 4K" {
		t.Fatalf("String() = %q", got)
	}
	r := &torrent.Resource{Title: "Movie 2160p-CHD", Attributes: torrent.Attributes{UHD: torrent.Bool(true)}}
	result, err := rs.Evaluate(r)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Rank != 0 {
		t.Fatalf("expected rank 0, got %d", result.Rank)
	}
}

func TestCheckSyntaxIgnoresUnknownTokens(t *testing.T) {
	if err := rules.CheckSyntax("ATMOS & 4K > 1080P"); err != nil {
		t.Fatalf("CheckSyntax: %v", err)
	}
	if err := rules.CheckSyntax("ATMOS & > 1080P"); !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected grammar error, got %v", err)
	}
}
