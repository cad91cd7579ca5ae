package testsupport

import (
	"path/filepath"
	"testing"

	"torrank/internal/config"
)

// ConfigOption adjusts the config built by NewConfig.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a per-test temp directory: data and
// logs under it, the API on an ephemeral loopback port, watching off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Daemon.WatchConfig = false
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithRule(rule string) ConfigOption {
	return func(c *config.Config) { c.Filter.Rule = rule }
}

func WithStrict() ConfigOption {
	return func(c *config.Config) { c.Filter.Strict = true }
}

// WithoutRecognition makes resources rely on their explicit attributes only.
func WithoutRecognition() ConfigOption {
	return func(c *config.Config) { c.Filter.Recognize = false }
}

func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) { c.Paths.APIToken = token }
}

// BaseDir returns the temp directory NewConfig rooted cfg in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
