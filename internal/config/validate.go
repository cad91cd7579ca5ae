package config

import (
	"fmt"
	"net"

	"torrank/internal/rules"
	"torrank/internal/services"
)

// Validate ensures the configuration is usable. A malformed filter.rule is
// reported as a rules.ConfigurationError wrapped with the field name; unknown
// tokens are only detected once custom rules are loaded.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFilter(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("paths.api_bind %q is not host:port", c.Paths.APIBind), err)
	}
	return nil
}

func (c *Config) validateFilter() error {
	if err := rules.CheckSyntax(c.Filter.Rule); err != nil {
		return fmt.Errorf("filter.rule: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format), nil)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return services.Wrap(services.ErrConfiguration, "config", "validate",
			fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level), nil)
	}
	return nil
}
