package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"torrank/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Filter holds the default priority rule applied when no rule group matches.
type Filter struct {
	// Rule is the FILTER_RULE string, e.g. "!BLU & 4K & CN > !BLU & 1080P".
	// Empty disables ranking: every resource passes through unranked.
	Rule string `toml:"rule"`
	// Strict fails evaluation when a resource lacks an attribute the rule
	// needs instead of treating the attribute as false.
	Strict bool `toml:"strict"`
	// Recognize derives attributes from titles for resources that arrive
	// without them.
	Recognize bool `toml:"recognize"`
}

// Daemon contains settings for the long-running service.
type Daemon struct {
	WatchConfig    bool `toml:"watch_config"`
	ReloadDebounce int  `toml:"reload_debounce_ms"`
	ShutdownGrace  int  `toml:"shutdown_grace_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the parsed torrank.toml. Rule groups and custom rules live in
// the database, not here.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Filter  Filter  `toml:"filter"`
	Daemon  Daemon  `toml:"daemon"`
	Logging Logging `toml:"logging"`
}

// Load reads the config file at path, or the first file found by
// Locate when path is empty. A missing file is not an error: defaults apply
// and exists is false. The result is normalized and validated.
func Load(path string) (cfg *Config, resolved string, exists bool, err error) {
	resolved, exists, err = Locate(path)
	if err != nil {
		return nil, "", false, err
	}

	loaded := Default()
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &loaded); err != nil {
			return nil, "", false, fmt.Errorf("%s: %w", resolved, err)
		}
	}

	if err := loaded.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, "", false, err
	}
	return &loaded, resolved, exists, nil
}

// decode rejects unknown keys so a misspelled "rules" does not silently
// leave ranking disabled. Errors carry the line and column.
func decode(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	err := dec.Decode(cfg)
	if err == nil {
		return nil
	}

	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		var keys []string
		for _, e := range strict.Errors {
			row, col := e.Position()
			keys = append(keys, fmt.Sprintf("%s (line %d, column %d)", strings.Join(e.Key(), "."), row, col))
		}
		return services.Wrap(services.ErrConfiguration, "config", "parse",
			fmt.Sprintf("unknown key %v", keys), nil)
	}
	var syntax *toml.DecodeError
	if errors.As(err, &syntax) {
		row, col := syntax.Position()
		return services.Wrap(services.ErrConfiguration, "config", "parse",
			fmt.Sprintf("line %d, column %d: %s", row, col, syntax.Error()), nil)
	}
	return services.Wrap(services.ErrConfiguration, "config", "parse", "invalid config", err)
}

// CreateSample writes the commented sample config to path.
func CreateSample(path string) error {
	if err := ensureParent(path); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
