package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"torrank/internal/config"
	"torrank/internal/customrule"
	"torrank/internal/engine"
	"torrank/internal/logging"
	"torrank/internal/rulegroup"
	"torrank/internal/services"
	"torrank/internal/torrent"
)

const maxRequestBody = 8 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/rules", s.handleRules)
	mux.HandleFunc("POST /api/rules/test", s.handleRuleTest)
	mux.HandleFunc("POST /api/rank", s.handleRank)
	mux.HandleFunc("GET /api/groups", s.handleGroups)
	mux.HandleFunc("GET /api/groups/{name}", s.handleGroup)
	mux.HandleFunc("PUT /api/groups/{name}", s.handleSaveGroup)
	mux.HandleFunc("DELETE /api/groups/{name}", s.handleDeleteGroup)
	mux.HandleFunc("GET /api/custom-rules", s.handleCustomRules)
	mux.HandleFunc("POST /api/custom-rules", s.handleSaveCustomRule)
	mux.HandleFunc("DELETE /api/custom-rules/{id}", s.handleDeleteCustomRule)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.daemon.registry, promhttp.HandlerOpts{}))
	return requestIDMiddleware(authMiddleware(s.token, mux))
}

func (s *apiServer) listen() error {
	if s.bind == "" {
		return errors.New("api listen: paths.api_bind is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	return nil
}

// serve blocks until ctx is done, then drains in-flight requests for at most
// grace.
func (s *apiServer) serve(ctx context.Context, grace time.Duration) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("api server not listening")
	}
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
		_ = s.server.Close()
	}
	return nil
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

type groupView struct {
	rulegroup.Group
	Layers [][]string `json:"layers"`
}

type rulesResponse struct {
	Rule        string              `json:"rule"`
	Strict      bool                `json:"strict"`
	Layers      [][]string          `json:"layers"`
	Version     uint64              `json:"version"`
	LoadedAt    time.Time           `json:"loaded_at"`
	Groups      []groupView         `json:"groups"`
	CustomRules []customrule.Rule   `json:"custom_rules"`
	Tokens      []torrent.TokenInfo `json:"tokens"`
}

func (s *apiServer) handleRules(w http.ResponseWriter, r *http.Request) {
	snap := s.daemon.engine.Snapshot()
	resp := rulesResponse{
		Rule:        snap.Default.String(),
		Strict:      snap.Filter.Strict,
		Layers:      snap.Default.Describe(),
		Version:     snap.Version,
		LoadedAt:    snap.LoadedAt,
		Groups:      make([]groupView, 0, len(snap.Groups)),
		CustomRules: make([]customrule.Rule, 0, len(snap.Custom)),
		Tokens:      torrent.Tokens(),
	}
	for _, g := range snap.Groups {
		resp.Groups = append(resp.Groups, groupView{Group: g.Group, Layers: g.Rules.Describe()})
	}
	for _, c := range snap.Custom {
		resp.CustomRules = append(resp.CustomRules, c.Rule())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleRuleTest(w http.ResponseWriter, r *http.Request) {
	var req engine.TestRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.daemon.engine.Test(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleRank(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.daemon.engine.Rank(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.daemon.store.Groups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if groups == nil {
		groups = []rulegroup.Group{}
	}
	s.writeJSON(w, http.StatusOK, groups)
}

func (s *apiServer) handleGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	group, err := s.daemon.store.Group(r.Context(), name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if group == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "get group", fmt.Sprintf("rule group %q not found", name), nil))
		return
	}
	s.writeJSON(w, http.StatusOK, group)
}

func (s *apiServer) handleSaveGroup(w http.ResponseWriter, r *http.Request) {
	var group rulegroup.Group
	if !s.decode(w, r, &group) {
		return
	}
	group.Name = r.PathValue("name")
	ctx := services.WithGroup(r.Context(), group.Name)
	if _, err := s.daemon.engine.CompileRule(group.RuleString); err != nil {
		s.writeError(w, r, fmt.Errorf("group %q: %w", group.Name, err))
		return
	}
	if err := s.daemon.store.SaveGroup(ctx, group); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.reload(ctx, w, r) {
		return
	}
	logging.WithContext(ctx, s.logger).Info("rule group saved", logging.Rule(group.RuleString))
	saved, err := s.daemon.store.Group(ctx, group.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *apiServer) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := services.WithGroup(r.Context(), name)
	if err := s.daemon.store.DeleteGroup(ctx, name); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.reload(ctx, w, r) {
		return
	}
	logging.WithContext(ctx, s.logger).Info("rule group removed")
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleCustomRules(w http.ResponseWriter, r *http.Request) {
	defs, err := s.daemon.store.CustomRules(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if defs == nil {
		defs = []customrule.Rule{}
	}
	s.writeJSON(w, http.StatusOK, defs)
}

func (s *apiServer) handleSaveCustomRule(w http.ResponseWriter, r *http.Request) {
	var def customrule.Rule
	if !s.decode(w, r, &def) {
		return
	}
	saved, created, err := s.daemon.store.SaveCustomRule(r.Context(), def)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.reload(r.Context(), w, r) {
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("custom rule saved",
		logging.String(logging.FieldToken, saved.ID),
		logging.Bool("created", created),
	)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, saved)
}

// handleDeleteCustomRule puts the definition back when a rule still
// references the token, so the store never holds a set the engine cannot
// compile.
func (s *apiServer) handleDeleteCustomRule(w http.ResponseWriter, r *http.Request) {
	id := torrent.NormalizeToken(r.PathValue("id"))
	ctx := r.Context()
	if err := s.daemon.store.RemoveCustomRule(ctx, id, s.daemon.engine.Reload); err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(ctx, s.logger).Info("custom rule removed", logging.String(logging.FieldToken, id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) reload(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if err := s.daemon.engine.Reload(ctx); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("request body is empty")
		}
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "decode request", "", err))
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "api request failed", "api_error",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
	} else {
		logger.Debug("api request rejected", logging.String("path", r.URL.Path), logging.Error(err))
	}
	payload := map[string]string{"error": err.Error()}
	if rid, ok := services.RequestIDFromContext(r.Context()); ok {
		payload["request_id"] = rid
	}
	s.writeJSON(w, status, payload)
}
