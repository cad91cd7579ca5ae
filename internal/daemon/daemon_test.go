package daemon_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"torrank/internal/config"
	"torrank/internal/daemon"
	"torrank/internal/logging"
	"torrank/internal/services"
	"torrank/internal/testsupport"
)

const docsRule = "!BLU & 4K & CN > !BLU & 1080P & CN > !BLU & 4K > !BLU & 1080P"

func newDaemon(t *testing.T, cfg *config.Config, configPath string) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(context.Background(), cfg, configPath, st, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func writeConfig(t *testing.T, cfg *config.Config, path, rule string) {
	t.Helper()
	body := fmt.Sprintf(`[paths]
data_dir = '%s'
log_dir = '%s'
api_bind = '%s'

[filter]
rule = '%s'
`, cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.APIBind, rule)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func startDaemon(t *testing.T, d *daemon.Daemon) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	deadline := time.Now().Add(5 * time.Second)
	for !d.Running() || d.Address() == "" {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon did not start: %v", <-done)
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cancel, done
}

func TestDaemonRunServesAndStops(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRule(docsRule))
	d := newDaemon(t, cfg, "")

	cancel, done := startDaemon(t, d)
	defer cancel()

	resp, err := http.Get("http://" + d.Address() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}

	status := d.Status(context.Background())
	if !status.Running || status.Rule != docsRule || status.Version != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Database.SchemaVersion != 1 {
		t.Fatalf("unexpected database health: %+v", status.Database)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.Running() {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg, "")

	other := flock.New(cfg.LockPath())
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock()

	if err := d.Run(context.Background()); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestReloadConfigKeepsSnapshotOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRule(docsRule))
	path := filepath.Join(testsupport.BaseDir(cfg), "torrank.toml")
	writeConfig(t, cfg, path, docsRule)
	d := newDaemon(t, cfg, path)
	ctx := context.Background()

	writeConfig(t, cfg, path, "4K > 1080P")
	if err := d.ReloadConfig(ctx); err != nil {
		t.Fatalf("ReloadConfig: %v", err)
	}
	if got := d.Engine().Snapshot().Default.String(); got != "4K > 1080P" {
		t.Fatalf("expected reloaded rule, got %q", got)
	}

	writeConfig(t, cfg, path, "4K >")
	if err := d.ReloadConfig(ctx); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for syntax, got %v", err)
	}
	writeConfig(t, cfg, path, "4K > XYZ")
	if err := d.ReloadConfig(ctx); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown token, got %v", err)
	}
	if got := d.Engine().Snapshot().Default.String(); got != "4K > 1080P" {
		t.Fatalf("expected previous rule to stay live, got %q", got)
	}
}

func TestConfigWatcherAppliesEdits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRule(docsRule))
	cfg.Daemon.WatchConfig = true
	cfg.Daemon.ReloadDebounce = 20
	path := filepath.Join(testsupport.BaseDir(cfg), "torrank.toml")
	writeConfig(t, cfg, path, docsRule)
	d := newDaemon(t, cfg, path)

	cancel, done := startDaemon(t, d)
	defer func() {
		cancel()
		<-done
	}()

	writeConfig(t, cfg, path, "REMUX > WEB-DL")
	deadline := time.Now().Add(5 * time.Second)
	for d.Engine().Snapshot().Default.String() != "REMUX > WEB-DL" {
		if time.Now().After(deadline) {
			t.Fatalf("config edit not applied, rule is %q", d.Engine().Snapshot().Default.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
}
