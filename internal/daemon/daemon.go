package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"torrank/internal/config"
	"torrank/internal/engine"
	"torrank/internal/logging"
	"torrank/internal/store"
)

// ErrAlreadyRunning reports that another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another torrank daemon instance is already running")

// Daemon serves the ranking API and keeps the engine snapshot in step with
// the config file. Only one instance may run per data directory.
type Daemon struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	store      *store.Store
	engine     *engine.Service
	registry   *prometheus.Registry
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	startedAt time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running     bool         `json:"running"`
	PID         int          `json:"pid"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	ConfigPath  string       `json:"config_path,omitempty"`
	LockPath    string       `json:"lock_path"`
	Address     string       `json:"address,omitempty"`
	Rule        string       `json:"rule"`
	Strict      bool         `json:"strict"`
	Version     uint64       `json:"version"`
	LoadedAt    time.Time    `json:"loaded_at"`
	Groups      int          `json:"groups"`
	CustomRules int          `json:"custom_rules"`
	Database    store.Health `json:"database"`
}

// New builds the engine on top of st and prepares the API server. configPath
// is the file watched for changes; an empty path disables watching.
func New(ctx context.Context, cfg *config.Config, configPath string, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	eng, err := engine.New(ctx, cfg.Filter, st, logger, engine.NewMetrics(registry))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:        cfg,
		configPath: configPath,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		engine:     eng,
		registry:   registry,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Engine exposes the ranking service.
func (d *Daemon) Engine() *engine.Service {
	return d.engine
}

// Handler returns the API handler, including auth and request IDs.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler()
}

// Run acquires the instance lock and serves until ctx is cancelled or a
// component fails. The lock is released on return.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := d.api.listen(); err != nil {
		return err
	}

	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()
	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("torrank daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
		logging.String("config", d.configPath),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.api.serve(gctx, d.cfg.ShutdownGraceDuration())
	})
	if d.cfg.Daemon.WatchConfig && d.configPath != "" {
		w, err := newConfigWatcher(d.configPath, d.cfg.ReloadDebounceDuration(), d.ReloadConfig, d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "config watcher unavailable", "config_watch",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that the config directory exists and is readable"),
				logging.String(logging.FieldImpact, "config changes require a restart"),
			)
		} else {
			g.Go(func() error {
				return w.run(gctx)
			})
		}
	}

	err = g.Wait()
	d.logger.Info("torrank daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Running reports whether Run is serving.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Address returns the bound API address once Run is serving.
func (d *Daemon) Address() string {
	return d.api.address()
}

// ReloadConfig re-reads the config file and swaps in its filter settings. An
// invalid file leaves the live snapshot untouched. Path and logging changes
// take effect on restart.
func (d *Daemon) ReloadConfig(ctx context.Context) error {
	if d.configPath == "" {
		return errors.New("no config file to reload")
	}
	cfg, _, _, err := config.Load(d.configPath)
	if err != nil {
		logging.WarnWithContext(d.logger, "config reload rejected", "config_reload",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the config file; torrank config validate shows the error"),
			logging.String(logging.FieldImpact, "previous rules stay active"),
		)
		return err
	}
	if err := d.engine.ApplyFilter(ctx, cfg.Filter); err != nil {
		logging.WarnWithContext(d.logger, "config reload rejected", "config_reload",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix filter.rule or the custom rules it references"),
			logging.String(logging.FieldImpact, "previous rules stay active"),
		)
		return err
	}
	if cfg.Paths != d.cfg.Paths {
		d.logger.Info("path changes take effect after restart")
	}
	d.logger.Info("config reloaded", logging.String("path", d.configPath))
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	snap := d.engine.Snapshot()
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		StartedAt:   started,
		ConfigPath:  d.configPath,
		LockPath:    d.lockPath,
		Address:     d.api.address(),
		Rule:        snap.Default.String(),
		Strict:      snap.Filter.Strict,
		Version:     snap.Version,
		LoadedAt:    snap.LoadedAt,
		Groups:      len(snap.Groups),
		CustomRules: len(snap.Custom),
	}
	health, err := d.store.Health(ctx)
	if err != nil {
		health.Error = err.Error()
	}
	status.Database = health
	return status
}
