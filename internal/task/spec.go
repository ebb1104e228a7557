// Package task defines the immutable description of a supervised child task.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvMode controls how an overlay entry combines with the inherited value.
type EnvMode int

const (
	// EnvSet replaces any inherited value.
	EnvSet EnvMode = iota
	// EnvPrependPath prefixes the inherited value using the OS path-list
	// separator, so search-path variables keep their existing entries.
	EnvPrependPath
)

// EnvVar is a single environment overlay entry.
type EnvVar struct {
	Key   string
	Value string
	Mode  EnvMode
}

// Spec describes one supervised task. Values are created through New and are
// not modified afterwards.
type Spec struct {
	Name    string
	Command []string
	Dir     string
	Env     []EnvVar
}

// New validates the provided fields and returns a task specification.
func New(name string, command []string, dir string, env ...EnvVar) (Spec, error) {
	if strings.TrimSpace(name) == "" {
		return Spec{}, fmt.Errorf("task name is required")
	}
	if len(command) == 0 || command[0] == "" {
		return Spec{}, fmt.Errorf("task %s requires a command", name)
	}
	if !filepath.IsAbs(dir) {
		return Spec{}, fmt.Errorf("task %s working directory %q must be absolute", name, dir)
	}
	seen := make(map[string]struct{}, len(env))
	for i, v := range env {
		if v.Key == "" || strings.Contains(v.Key, "=") {
			return Spec{}, fmt.Errorf("task %s env entry %d has invalid key %q", name, i, v.Key)
		}
		if _, dup := seen[v.Key]; dup {
			return Spec{}, fmt.Errorf("task %s env key %s defined more than once", name, v.Key)
		}
		seen[v.Key] = struct{}{}
	}
	return Spec{
		Name:    name,
		Command: append([]string(nil), command...),
		Dir:     filepath.Clean(dir),
		Env:     append([]EnvVar(nil), env...),
	}, nil
}

// Executable returns the first argv token.
func (s Spec) Executable() string {
	if len(s.Command) == 0 {
		return ""
	}
	return s.Command[0]
}

// String renders the command line for display.
func (s Spec) String() string {
	return strings.Join(s.Command, " ")
}

// Environ merges the overlay onto base, which is usually os.Environ(). Entries
// of base that the overlay does not mention are kept in their original order.
func (s Spec) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(s.Env))
	index := make(map[string]int, len(base))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if i, exists := index[key]; exists {
			out[i] = kv
			continue
		}
		index[key] = len(out)
		out = append(out, kv)
	}

	for _, v := range s.Env {
		value := v.Value
		i, exists := index[v.Key]
		if v.Mode == EnvPrependPath && exists {
			_, current, _ := strings.Cut(out[i], "=")
			if current != "" {
				value = value + string(os.PathListSeparator) + current
			}
		}
		entry := v.Key + "=" + value
		if exists {
			out[i] = entry
			continue
		}
		index[v.Key] = len(out)
		out = append(out, entry)
	}
	return out
}

// Set is an ordered collection of task specifications with unique names.
type Set []Spec

// NewSet checks name uniqueness and returns the ordered set.
func NewSet(specs ...Spec) (Set, error) {
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("task %s defined more than once", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}
	return append(Set(nil), specs...), nil
}

// Names returns the task names in launch order.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for _, spec := range s {
		out = append(out, spec.Name)
	}
	return out
}

// Lookup returns the spec with the given name.
func (s Set) Lookup(name string) (Spec, bool) {
	for _, spec := range s {
		if spec.Name == name {
			return spec, true
		}
	}
	return Spec{}, false
}
