package config

import "time"

const (
	defaultConfigPath     = "~/.config/torrank/config.toml"
	defaultDataDir        = "~/.local/share/torrank"
	defaultLogDir         = "~/.local/share/torrank/logs"
	defaultAPIBind        = "127.0.0.1:7488"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultReloadDebounce = 250
	defaultShutdownGrace  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Filter: Filter{
			Recognize: true,
		},
		Daemon: Daemon{
			WatchConfig:    true,
			ReloadDebounce: defaultReloadDebounce,
			ShutdownGrace:  defaultShutdownGrace,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// ReloadDebounceDuration converts the debounce setting to a duration.
func (c *Config) ReloadDebounceDuration() time.Duration {
	return time.Duration(c.Daemon.ReloadDebounce) * time.Millisecond
}

// ShutdownGraceDuration converts the shutdown grace setting to a duration.
func (c *Config) ShutdownGraceDuration() time.Duration {
	return time.Duration(c.Daemon.ShutdownGrace) * time.Second
}
