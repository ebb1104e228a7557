package preflight

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/Paintersrp/skymood/internal/config"
	"github.com/Paintersrp/skymood/internal/task"
)

// Outcome is the result of a single check.
type Outcome struct {
	Name string
	Err  error
}

// Passed reports whether the check succeeded.
func (o Outcome) Passed() bool {
	return o.Err == nil
}

// String renders the outcome as a checklist line.
func (o Outcome) String() string {
	if o.Err == nil {
		return fmt.Sprintf("  ✓ %s", o.Name)
	}
	return fmt.Sprintf("  ✗ %s: %v", o.Name, o.Err)
}

// Report holds the outcome of every check in the order they ran.
type Report struct {
	Outcomes []Outcome
}

// Passed reports whether every check succeeded.
func (r *Report) Passed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Err combines all failures, or returns nil when every check passed.
func (r *Report) Err() error {
	var err error
	for _, o := range r.Outcomes {
		err = multierr.Append(err, o.Err)
	}
	return err
}

// Print writes the checklist to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, o := range r.Outcomes {
		fmt.Fprintln(w, o.String())
	}
	if r.Passed() {
		fmt.Fprintln(w, "All checks passed.")
		return
	}
	fmt.Fprintf(w, "%d check(s) failed.\n", len(multierr.Errors(r.Err())))
}

// Validator runs an ordered list of checks.
type Validator struct {
	checks []Check
}

// New returns a validator for the given checks.
func New(checks ...Check) *Validator {
	return &Validator{checks: append([]Check(nil), checks...)}
}

// Add appends checks.
func (v *Validator) Add(checks ...Check) {
	v.checks = append(v.checks, checks...)
}

// Check runs every check and collects the outcomes. Every check runs even
// after a failure so all problems are reported together.
func (v *Validator) Check() *Report {
	report := &Report{Outcomes: make([]Outcome, 0, len(v.checks))}
	for _, c := range v.checks {
		report.Outcomes = append(report.Outcomes, Outcome{Name: c.Name(), Err: c.Run()})
	}
	return report
}

// Run runs every check and returns the combined failures. errors.As on the
// result yields the first *ValidationError.
func (v *Validator) Run() error {
	return v.Check().Err()
}

// ForDev builds the checks required before the dev tasks may launch.
func ForDev(cfg *config.Config, tasks task.Set) *Validator {
	v := New()

	frontend, hasFrontend := tasks.Lookup(task.FrontendName)
	backend, hasBackend := tasks.Lookup(task.BackendName)

	if hasFrontend {
		v.Add(DirExists("frontend directory", frontend.Dir, "did you scaffold the frontend?"))
	}
	if hasBackend {
		v.Add(
			DirExists("api directory", backend.Dir, "did you scaffold the backend?"),
			Executable("api interpreter", backend.Executable(), venvHint(cfg)),
		)
	}
	if hasFrontend {
		npm := frontend.Executable()
		if filepath.IsAbs(npm) {
			v.Add(Executable("npm", npm, "install Node.js"))
		} else {
			v.Add(OnPath("npm", npm, "install Node.js"))
		}
	}

	v.Add(
		Port("frontend-port", cfg.Frontend.Port),
		Port("backend-port", cfg.Backend.Port),
		DistinctPorts("ports",
			NamedPort{Name: "frontend-port", Port: cfg.Frontend.Port},
			NamedPort{Name: "backend-port", Port: cfg.Backend.Port},
		),
	)
	return v
}

func venvHint(cfg *config.Config) string {
	venv := relativeTo(cfg.Root, cfg.VenvDir())
	api := relativeTo(cfg.Root, cfg.BackendDir())
	pip := filepath.ToSlash(filepath.Join(venv, "bin", "pip"))
	return fmt.Sprintf("run 'python3 -m venv %s && %s install -r %s'",
		venv, pip, filepath.ToSlash(filepath.Join(api, "requirements.txt")))
}

func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
