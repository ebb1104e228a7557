package config

import (
	"fmt"
	"path/filepath"
	goruntime "runtime"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// Config mirrors the skymood.yaml document structure.
type Config struct {
	Root       string         `yaml:"root"`
	Host       string         `yaml:"host"`
	Frontend   FrontendSpec   `yaml:"frontend"`
	Backend    BackendSpec    `yaml:"backend"`
	Supervisor SupervisorSpec `yaml:"supervisor"`
	Logging    LoggingSpec    `yaml:"logging"`
	Metrics    MetricsSpec    `yaml:"metrics"`

	// Source is the file the configuration was read from, empty when only
	// defaults are in effect.
	Source string `yaml:"-"`
}

// FrontendSpec configures the web dev server task.
type FrontendSpec struct {
	Dir  string `yaml:"dir"`
	Port int    `yaml:"port"`
	NPM  string `yaml:"npm"`
}

// BackendSpec configures the API dev server task.
type BackendSpec struct {
	Dir     string `yaml:"dir"`
	Port    int    `yaml:"port"`
	Venv    string `yaml:"venv"`
	App     string `yaml:"app"`
	EnvFile string `yaml:"envFile"`

	// Env holds values loaded from EnvFile.
	Env map[string]string `yaml:"-"`
}

// SupervisorSpec tunes the monitoring loop and shutdown sequence.
type SupervisorSpec struct {
	PollInterval Duration `yaml:"pollInterval"`
	GracePeriod  Duration `yaml:"gracePeriod"`
}

// LoggingSpec configures diagnostic logging and task output persistence.
type LoggingSpec struct {
	Directory string `yaml:"directory"`
	Format    string `yaml:"format"`
	Level     string `yaml:"level"`
}

// MetricsSpec configures the optional Prometheus listener.
type MetricsSpec struct {
	Addr string `yaml:"addr"`
}

// FrontendDir returns the absolute frontend project root.
func (c *Config) FrontendDir() string {
	return resolveDir(c.Root, c.Frontend.Dir)
}

// BackendDir returns the absolute API project root.
func (c *Config) BackendDir() string {
	return resolveDir(c.Root, c.Backend.Dir)
}

// VenvDir returns the absolute virtual environment directory.
func (c *Config) VenvDir() string {
	return resolveDir(c.BackendDir(), c.Backend.Venv)
}

// Interpreter returns the path of the virtual environment's python binary.
func (c *Config) Interpreter() string {
	if goruntime.GOOS == "windows" {
		return filepath.Join(c.VenvDir(), "Scripts", "python.exe")
	}
	return filepath.Join(c.VenvDir(), "bin", "python")
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	if len(c.Backend.Env) > 0 {
		cp.Backend.Env = make(map[string]string, len(c.Backend.Env))
		for k, v := range c.Backend.Env {
			cp.Backend.Env[k] = v
		}
	}
	return &cp
}

func resolveDir(base, dir string) string {
	if dir == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Clean(filepath.Join(base, dir))
}
