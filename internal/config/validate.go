package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	DefaultHost         = "0.0.0.0"
	DefaultFrontendPort = 5173
	DefaultBackendPort  = 8000
	DefaultPollInterval = 500 * time.Millisecond
	DefaultGracePeriod  = 5 * time.Second
	defaultFrontendDir  = "web"
	defaultBackendDir   = "api"
	defaultVenv         = ".venv"
	defaultNPM          = "npm"
	defaultApp          = "app.main:app"
	defaultLogFormat    = "text"
	defaultLogLevel     = "info"
	maxPollInterval     = 10 * time.Second
	minPollInterval     = time.Millisecond
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() error {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Frontend.Dir == "" {
		c.Frontend.Dir = defaultFrontendDir
	}
	if c.Frontend.Port == 0 {
		c.Frontend.Port = DefaultFrontendPort
	}
	if c.Frontend.NPM == "" {
		c.Frontend.NPM = defaultNPM
	}
	if c.Backend.Dir == "" {
		c.Backend.Dir = defaultBackendDir
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = DefaultBackendPort
	}
	if c.Backend.Venv == "" {
		c.Backend.Venv = defaultVenv
	}
	if c.Backend.App == "" {
		c.Backend.App = defaultApp
	}
	if !c.Supervisor.PollInterval.IsSet() {
		c.Supervisor.PollInterval.Duration = DefaultPollInterval
	}
	if !c.Supervisor.GracePeriod.IsSet() {
		c.Supervisor.GracePeriod.Duration = DefaultGracePeriod
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Validate enforces configuration invariants. Filesystem prerequisites are
// checked later by the preflight validator.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	if strings.TrimSpace(c.Backend.App) == "" {
		return fmt.Errorf("backend.app is required")
	}
	poll := c.Supervisor.PollInterval.Duration
	if poll < minPollInterval || poll > maxPollInterval {
		return fmt.Errorf("supervisor.pollInterval must be between %s and %s, got %s", minPollInterval, maxPollInterval, poll)
	}
	if c.Supervisor.GracePeriod.Duration < 0 {
		return fmt.Errorf("supervisor.gracePeriod must not be negative")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
