package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"torrank/internal/config"
	"torrank/internal/customrule"
	"torrank/internal/logging"
	"torrank/internal/recognize"
	"torrank/internal/rulegroup"
	"torrank/internal/rules"
	"torrank/internal/services"
	"torrank/internal/torrent"
)

const defaultRuleLabel = "default"

// Source supplies persisted groups and custom rules. *store.Store satisfies it.
type Source interface {
	Groups(ctx context.Context) ([]rulegroup.Group, error)
	CustomRules(ctx context.Context) ([]customrule.Rule, error)
}

// Snapshot is an immutable compiled view of every rule the engine applies.
type Snapshot struct {
	Filter   config.Filter
	Default  *rules.RuleSet
	Groups   []rulegroup.Compiled
	Custom   []*customrule.Compiled
	Version  uint64
	LoadedAt time.Time
}

// Service ranks resources against the live snapshot.
type Service struct {
	source  Source
	logger  *slog.Logger
	metrics *Metrics

	reloadMu sync.Mutex
	filter   config.Filter
	version  uint64
	current  atomic.Pointer[Snapshot]
}

// New builds a Service and performs the initial load. source may be nil, in
// which case only the default rule is used.
func New(ctx context.Context, filter config.Filter, source Source, logger *slog.Logger, metrics *Metrics) (*Service, error) {
	s := &Service{
		source:  source,
		logger:  logging.NewComponentLogger(logger, "engine"),
		metrics: metrics,
		filter:  filter,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the live snapshot.
func (s *Service) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload recompiles the snapshot from the store with the current filter
// settings. On failure the previous snapshot stays live.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	return s.reloadLocked(ctx, s.filter)
}

// ApplyFilter swaps in new filter settings, typically after the config file
// changed. Settings that fail to compile are discarded.
func (s *Service) ApplyFilter(ctx context.Context, filter config.Filter) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	if err := s.reloadLocked(ctx, filter); err != nil {
		return err
	}
	s.filter = filter
	return nil
}

func (s *Service) reloadLocked(ctx context.Context, filter config.Filter) error {
	snap, err := s.build(ctx, filter)
	if err != nil {
		s.countReload("failed")
		return err
	}
	s.version++
	snap.Version = s.version
	snap.LoadedAt = time.Now().UTC()
	s.current.Store(snap)
	s.countReload("ok")
	s.metrics.observeSnapshot(snap)
	s.logger.Info("rule snapshot loaded",
		logging.Uint64("version", snap.Version),
		logging.Rule(snap.Default.String()),
		logging.Int("groups", len(snap.Groups)),
		logging.Int("custom_rules", len(snap.Custom)),
		logging.Bool("strict", filter.Strict),
	)
	return nil
}

func (s *Service) build(ctx context.Context, filter config.Filter) (*Snapshot, error) {
	var (
		groupDefs  []rulegroup.Group
		customDefs []customrule.Rule
		err        error
	)
	if s.source != nil {
		if customDefs, err = s.source.CustomRules(ctx); err != nil {
			return nil, services.Wrap(services.ErrUnavailable, "engine", "load custom rules", "", err)
		}
		if groupDefs, err = s.source.Groups(ctx); err != nil {
			return nil, services.Wrap(services.ErrUnavailable, "engine", "load rule groups", "", err)
		}
	}

	custom, err := customrule.CompileAll(customDefs)
	if err != nil {
		return nil, err
	}
	opts := s.parseOptions(filter, custom)

	def, err := rules.Parse(filter.Rule, opts...)
	if err != nil {
		return nil, fmt.Errorf("filter.rule: %w", err)
	}
	groups, err := rulegroup.Compile(groupDefs, opts...)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Filter: filter, Default: def, Groups: groups, Custom: custom}, nil
}

func (s *Service) parseOptions(filter config.Filter, custom []*customrule.Compiled) []rules.Option {
	return []rules.Option{
		rules.WithStrict(filter.Strict),
		rules.WithCustom(customrule.Predicates(custom)...),
	}
}

// Request asks for a ranking of candidate resources.
type Request struct {
	Resources []*torrent.Resource `json:"resources"`
	// Groups restricts group selection to these names.
	Groups []string `json:"groups,omitempty"`
	// Media scopes groups by media type and category.
	Media *rulegroup.Media `json:"media,omitempty"`
}

// Response carries the ranked resources in selection order.
type Response struct {
	Ranked    []rules.Ranked `json:"ranked"`
	Unmatched int            `json:"unmatched"`
	// Groups lists the applied groups; empty means the default rule decided.
	Groups  []string `json:"groups,omitempty"`
	Version uint64   `json:"version"`
	// Errors lists resources skipped in strict mode.
	Errors []string `json:"errors,omitempty"`
}

// Rank recognizes missing attributes when enabled, selects applicable groups
// and ranks the resources. With no applicable group the default rule decides.
// Strict-mode evaluation failures skip the affected resources and are
// reported in Response.Errors rather than failing the request.
func (s *Service) Rank(ctx context.Context, req Request) (Response, error) {
	started := time.Now()
	snap := s.Snapshot()
	logger := logging.WithContext(ctx, s.logger)

	resources := make([]*torrent.Resource, 0, len(req.Resources))
	for _, r := range req.Resources {
		if r != nil {
			resources = append(resources, r)
		}
	}
	if snap.Filter.Recognize {
		resources = recognize.FillAll(resources)
	}

	selected, err := selectGroups(snap, req.Media, req.Groups)
	if err != nil {
		return Response{}, err
	}

	var (
		ranked  []rules.Ranked
		rankErr error
		names   []string
	)
	if len(selected) == 0 {
		ranked, rankErr = snap.Default.Rank(resources)
	} else {
		for _, g := range selected {
			names = append(names, g.Name)
		}
		ranked, rankErr = rulegroup.Apply(selected, resources)
	}

	resp := Response{Ranked: ranked, Groups: names, Version: snap.Version}
	failed := 0
	for _, err := range unwrapJoined(rankErr) {
		resp.Errors = append(resp.Errors, err.Error())
		failed++
	}
	resp.Unmatched = len(resources) - len(ranked) - failed
	if resp.Unmatched < 0 {
		resp.Unmatched = 0
	}
	if resp.Ranked == nil {
		resp.Ranked = []rules.Ranked{}
	}

	s.observeRank(resp, failed, time.Since(started))
	logger.Debug("resources ranked",
		logging.Int("resources", len(resources)),
		logging.Int("ranked", len(resp.Ranked)),
		logging.Int("unmatched", resp.Unmatched),
		logging.Strings("groups", names),
	)
	if failed > 0 {
		logging.WarnWithContext(logger, "resources skipped in strict mode", "strict_evaluation",
			logging.Int("skipped", failed),
			logging.Error(rankErr),
			logging.String(logging.FieldErrorHint, "supply the missing attributes or disable filter.strict"),
			logging.String(logging.FieldImpact, "skipped resources cannot be selected"),
		)
	}
	return resp, nil
}

func selectGroups(snap *Snapshot, media *rulegroup.Media, names []string) ([]rulegroup.Compiled, error) {
	defs := make([]rulegroup.Group, 0, len(snap.Groups))
	for _, g := range snap.Groups {
		defs = append(defs, g.Group)
	}
	for _, name := range names {
		if _, ok := rulegroup.Find(defs, name); !ok {
			return nil, services.Wrap(services.ErrNotFound, "engine", "rank", fmt.Sprintf("unknown rule group %q", name), nil)
		}
	}
	chosen := rulegroup.Select(defs, media, names)
	out := make([]rulegroup.Compiled, 0, len(chosen))
	for _, g := range snap.Groups {
		if slices.ContainsFunc(chosen, func(c rulegroup.Group) bool { return c.Name == g.Name }) {
			out = append(out, g)
		}
	}
	return out, nil
}

// unwrapJoined flattens nested errors.Join values into one error per
// skipped resource.
func unwrapJoined(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, unwrapJoined(e)...)
	}
	return out
}

func (s *Service) observeRank(resp Response, failed int, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.RankDuration.Observe(elapsed.Seconds())
	s.metrics.Evaluations.WithLabelValues("ranked").Add(float64(len(resp.Ranked)))
	s.metrics.Evaluations.WithLabelValues("unmatched").Add(float64(resp.Unmatched))
	s.metrics.Evaluations.WithLabelValues("failed").Add(float64(failed))
	for _, item := range resp.Ranked {
		for _, token := range item.Result.Missing {
			s.metrics.MissingTokens.WithLabelValues(token).Inc()
		}
	}
}

func (s *Service) countReload(result string) {
	if s.metrics != nil {
		s.metrics.Reloads.WithLabelValues(result).Inc()
	}
}

// TestRequest evaluates a single title, the way a user checks a rule while
// editing it. Rule takes precedence over Group; with neither the default rule
// is used.
type TestRequest struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Group    string `json:"group,omitempty"`
	Rule     string `json:"rule,omitempty"`
}

// TestResult reports how a title fared against a rule.
type TestResult struct {
	Rule       string             `json:"rule"`
	Matched    bool               `json:"matched"`
	Rank       int                `json:"rank"`
	Priority   int                `json:"priority"`
	Layer      string             `json:"layer,omitempty"`
	Missing    []string           `json:"missing,omitempty"`
	Attributes torrent.Attributes `json:"attributes"`
}

// Test recognizes the title and evaluates it. Priority is the 1-based layer
// number, or 0 when no layer matched.
func (s *Service) Test(ctx context.Context, req TestRequest) (TestResult, error) {
	if req.Title == "" {
		return TestResult{}, services.Wrap(services.ErrValidation, "engine", "test", "title is required", nil)
	}
	snap := s.Snapshot()

	var rs *rules.RuleSet
	switch {
	case req.Rule != "":
		parsed, err := rules.Parse(req.Rule, s.parseOptions(snap.Filter, snap.Custom)...)
		if err != nil {
			return TestResult{}, err
		}
		rs = parsed
	case req.Group != "":
		idx := slices.IndexFunc(snap.Groups, func(g rulegroup.Compiled) bool { return g.Name == req.Group })
		if idx < 0 {
			return TestResult{}, services.Wrap(services.ErrNotFound, "engine", "test", fmt.Sprintf("unknown rule group %q", req.Group), nil)
		}
		rs = snap.Groups[idx].Rules
	default:
		rs = snap.Default
	}

	resource := &torrent.Resource{Title: req.Title, Description: req.Subtitle}
	recognize.Fill(resource)
	result, err := rs.Evaluate(resource)
	if err != nil {
		return TestResult{}, err
	}

	out := TestResult{
		Rule:       rs.String(),
		Matched:    result.Matched,
		Rank:       result.Rank,
		Missing:    result.Missing,
		Attributes: resource.Attributes,
	}
	if result.Ranked() {
		out.Priority = result.Rank + 1
		out.Layer = rs.Layers()[result.Rank].String()
	}
	logging.WithContext(ctx, s.logger).Debug("rule tested",
		logging.String(logging.FieldResource, req.Title),
		logging.Rule(out.Rule),
		logging.Int(logging.FieldRank, out.Rank),
		logging.Strings(logging.FieldMissing, out.Missing),
	)
	return out, nil
}

// CompileRule compiles text against the live custom tokens without touching
// the snapshot. Callers use it to reject a group before persisting it.
func (s *Service) CompileRule(text string) (*rules.RuleSet, error) {
	snap := s.Snapshot()
	return rules.Parse(text, s.parseOptions(snap.Filter, snap.Custom)...)
}
