package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"torrank/internal/config"
	"torrank/internal/engine"
	"torrank/internal/logging"
	"torrank/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// withStore opens the rule store for the duration of fn.
func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(st)
}

// newEngine compiles the configured rule together with the stored groups and
// custom rules. One-shot commands run without metrics.
func (c *commandContext) newEngine(ctx context.Context, st *store.Store) (*engine.Service, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return engine.New(ctx, cfg.Filter, st, logging.NewNop(), nil)
}

// withEngine opens the store and builds an engine on top of it.
func (c *commandContext) withEngine(ctx context.Context, fn func(*engine.Service, *store.Store) error) error {
	return c.withStore(func(st *store.Store) error {
		eng, err := c.newEngine(ctx, st)
		if err != nil {
			return err
		}
		return fn(eng, st)
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
