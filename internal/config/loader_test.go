package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, DefaultFile)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	apiDir := filepath.Join(dir, "services", "api")
	if err := os.MkdirAll(apiDir, 0o755); err != nil {
		t.Fatalf("mkdir api: %v", err)
	}
	if err := os.WriteFile(filepath.Join(apiDir, "dev.env"), []byte("export DATABASE_URL=\"sqlite:///${DB_NAME}.db\"\nPYTHONPATH=/ignored\nDEBUG=1 # local\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DB_NAME", "skymood")
	t.Setenv("API_DIR", "services/api")
	t.Setenv("SKYMOOD_ROOT", "")
	t.Setenv("SKYMOOD_LOG_DIR", "")

	path := writeConfig(t, dir, `host: 127.0.0.1
frontend:
  dir: client
  port: 3000
backend:
  dir: ${API_DIR}
  port: 9000
  envFile: dev.env
supervisor:
  pollInterval: 250ms
  gracePeriod: 0s
logging:
  format: json
  level: debug
metrics:
  addr: 127.0.0.1:9100
`)

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Root != dir {
		t.Fatalf("expected root %s, got %s", dir, cfg.Root)
	}
	if cfg.Source != path {
		t.Fatalf("expected source %s, got %s", path, cfg.Source)
	}
	if got, want := cfg.FrontendDir(), filepath.Join(dir, "client"); got != want {
		t.Fatalf("unexpected frontend dir: got %q want %q", got, want)
	}
	if got := cfg.BackendDir(); got != apiDir {
		t.Fatalf("unexpected backend dir: got %q want %q", got, apiDir)
	}
	if got, want := cfg.Interpreter(), filepath.Join(apiDir, ".venv", "bin", "python"); got != want && !strings.HasSuffix(got, "python.exe") {
		t.Fatalf("unexpected interpreter: got %q want %q", got, want)
	}
	if cfg.Frontend.Port != 3000 || cfg.Backend.Port != 9000 {
		t.Fatalf("unexpected ports %d/%d", cfg.Frontend.Port, cfg.Backend.Port)
	}
	if cfg.Supervisor.PollInterval.Duration != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval %s", cfg.Supervisor.PollInterval.Duration)
	}
	if cfg.Supervisor.GracePeriod.Duration != 0 {
		t.Fatalf("explicit zero grace period should be kept, got %s", cfg.Supervisor.GracePeriod.Duration)
	}
	if got := cfg.Backend.Env["DATABASE_URL"]; got != "sqlite:///skymood.db" {
		t.Fatalf("unexpected DATABASE_URL %q", got)
	}
	if got := cfg.Backend.Env["DEBUG"]; got != "1" {
		t.Fatalf("expected inline comment stripped, got %q", got)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Fatalf("unexpected metrics addr %q", cfg.Metrics.Addr)
	}
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
	t.Setenv("SKYMOOD_ROOT", "")
	t.Setenv("SKYMOOD_LOG_DIR", "")

	cfg, err := Load("", false)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	wd, _ := os.Getwd()
	if cfg.Root != wd {
		t.Fatalf("expected root %s, got %s", wd, cfg.Root)
	}
	if cfg.Source != "" {
		t.Fatalf("expected no source, got %q", cfg.Source)
	}
	if cfg.Host != DefaultHost || cfg.Frontend.Port != DefaultFrontendPort || cfg.Backend.Port != DefaultBackendPort {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Supervisor.PollInterval.Duration != DefaultPollInterval || cfg.Supervisor.GracePeriod.Duration != DefaultGracePeriod {
		t.Fatalf("unexpected supervisor defaults: %+v", cfg.Supervisor)
	}
	if cfg.FrontendDir() != filepath.Join(wd, "web") || cfg.BackendDir() != filepath.Join(wd, "api") {
		t.Fatalf("unexpected task dirs %s %s", cfg.FrontendDir(), cfg.BackendDir())
	}
}

func TestLoadRequiredFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	if err == nil {
		t.Fatalf("expected error for missing required config")
	}
	if !strings.Contains(err.Error(), "open config file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "frontend:\n  prot: 3000\n")
	_, err := Load(path, true)
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if !strings.Contains(err.Error(), "prot") {
		t.Fatalf("expected error to name the field, got %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.App != defaultApp {
		t.Fatalf("expected default app, got %q", cfg.Backend.App)
	}
}

func TestLoadRootFromEnvironment(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SKYMOOD_ROOT", root)
	t.Setenv("SKYMOOD_LOG_DIR", filepath.Join(root, "logs"))

	path := writeConfig(t, t.TempDir(), "frontend:\n  port: 5175\n")
	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Root != root {
		t.Fatalf("expected root from environment %s, got %s", root, cfg.Root)
	}
	if cfg.Logging.Directory != filepath.Join(root, "logs") {
		t.Fatalf("expected log dir from environment, got %q", cfg.Logging.Directory)
	}
}

func TestLoadEnvFileErrors(t *testing.T) {
	t.Setenv("SKYMOOD_ROOT", "")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "api"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "api", ".env"), []byte("NOT A PAIR\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	path := writeConfig(t, dir, "backend:\n  envFile: .env\n")
	_, err := Load(path, true)
	if err == nil || !strings.Contains(err.Error(), "invalid line 1") {
		t.Fatalf("expected invalid line error, got %v", err)
	}
}
