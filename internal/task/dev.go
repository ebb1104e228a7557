package task

import (
	"sort"
	"strconv"

	"github.com/Paintersrp/skymood/internal/config"
)

const (
	FrontendName = "frontend"
	BackendName  = "backend"
)

// DevTasks builds the frontend and backend dev server specifications, in
// launch order.
func DevTasks(cfg *config.Config) (Set, error) {
	frontend, err := Frontend(cfg)
	if err != nil {
		return nil, err
	}
	backend, err := Backend(cfg)
	if err != nil {
		return nil, err
	}
	return NewSet(frontend, backend)
}

// Frontend returns the web dev server task.
func Frontend(cfg *config.Config) (Spec, error) {
	command := []string{
		cfg.Frontend.NPM, "run", "dev", "--",
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Frontend.Port),
	}
	return New(FrontendName, command, cfg.FrontendDir())
}

// Backend returns the API dev server task. The API root is prefixed onto
// PYTHONPATH so the application package resolves without installation.
func Backend(cfg *config.Config) (Spec, error) {
	command := []string{
		cfg.Interpreter(), "-m", "uvicorn", cfg.Backend.App,
		"--reload",
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Backend.Port),
	}

	keys := make([]string, 0, len(cfg.Backend.Env))
	for k := range cfg.Backend.Env {
		if k == "PYTHONPATH" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]EnvVar, 0, len(keys)+1)
	for _, k := range keys {
		env = append(env, EnvVar{Key: k, Value: cfg.Backend.Env[k]})
	}
	env = append(env, EnvVar{Key: "PYTHONPATH", Value: cfg.BackendDir(), Mode: EnvPrependPath})

	return New(BackendName, command, cfg.BackendDir(), env...)
}
