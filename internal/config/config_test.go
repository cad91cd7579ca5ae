package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"torrank/internal/config"
	"torrank/internal/rules"
	"torrank/internal/services"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FILTER_RULE", "")
	t.Setenv("TORRANK_API_TOKEN", "")
	t.Setenv(config.ConfigEnv, "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "torrank")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Filter.Rule != "" {
		t.Fatalf("expected empty default rule, got %q", cfg.Filter.Rule)
	}
	if !cfg.Filter.Recognize {
		t.Fatal("expected recognition enabled by default")
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "torrank.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("FILTER_RULE", "4K")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "torrank.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
			APIBind string `toml:"api_bind"`
		} `toml:"paths"`
		Filter struct {
			Rule   string `toml:"rule"`
			Strict bool   `toml:"strict"`
		} `toml:"filter"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Paths.APIBind = "0.0.0.0:9000"
	custom.Filter.Rule = "!BLU & 4K > 1080P"
	custom.Filter.Strict = true
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Filter.Rule != "!BLU & 4K > 1080P" {
		t.Fatalf("expected rule from file to win over env, got %q", cfg.Filter.Rule)
	}
	if !cfg.Filter.Strict {
		t.Fatal("expected strict mode from file")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected format to be lowercased, got %q", cfg.Logging.Format)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FILTER_RULE", "  4K & CN > 1080P  ")
	t.Setenv("TORRANK_API_TOKEN", "secret")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Filter.Rule != "4K & CN > 1080P" {
		t.Fatalf("expected rule from env, got %q", cfg.Filter.Rule)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestLoadRejectsMalformedRule(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "torrank.toml")
	if err := os.WriteFile(configPath, []byte("[filter]\nrule = \"4K & > 1080P\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(configPath)
	if !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *rules.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Layer != 0 {
		t.Fatalf("expected layer 0 in error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "filter.rule:") {
		t.Fatalf("expected field prefix, got %q", err.Error())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "torrank.toml")
	if err := os.WriteFile(configPath, []byte("[filter]\nrules = \"4K\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected misspelled key to fail")
	}
}

func TestLoadReportsUnknownKeyPosition(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "torrank.toml")
	if err := os.WriteFile(configPath, []byte("[filter]\nrule = \"4K\"\nstrickt = true\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "filter.strickt (line 3") {
		t.Fatalf("expected key and line in error, got %q", err.Error())
	}
}

func TestLocatePrefersEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	envPath := filepath.Join(dir, "env.toml")
	if err := os.WriteFile(envPath, []byte("[filter]\nrule = \"REMUX\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "torrank.toml"), []byte("[filter]\nrule = \"4K\"\n"), 0o644); err != nil {
		t.Fatalf("write local config: %v", err)
	}
	t.Setenv("FILTER_RULE", "")
	t.Setenv(config.ConfigEnv, envPath)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != envPath || !exists || cfg.Filter.Rule != "REMUX" {
		t.Fatalf("expected env config, got %q exists=%v rule=%q", resolved, exists, cfg.Filter.Rule)
	}

	t.Setenv(config.ConfigEnv, "")
	cfg, resolved, _, err = config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != filepath.Join(dir, "torrank.toml") || cfg.Filter.Rule != "4K" {
		t.Fatalf("expected working directory config, got %q rule=%q", resolved, cfg.Filter.Rule)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if _, err := rules.Parse(cfg.Filter.Rule); err != nil {
		t.Fatalf("sample rule does not parse: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.DataDir, "torrank") {
			t.Fatalf("expected data dir to contain torrank, got %q", cfg.Paths.DataDir)
		}
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.APIBind = "localhost"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for bind without port")
	}

	cfg = config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log format")
	}

	cfg = config.Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}

	cfg = config.Default()
	cfg.Filter.Rule = "(4K | 1080P"
	if err := cfg.Validate(); !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected configuration error for unbalanced rule, got %v", err)
	}

	cfg = config.Default()
	cfg.Filter.Rule = "ATMOS & 4K"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("custom tokens are resolved later, got %v", err)
	}
}
