// Package preflight validates the filesystem and network prerequisites of a
// dev session before any task is launched.
package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	goruntime "runtime"
	"strconv"

	"github.com/docker/go-connections/nat"
)

// ValidationError describes an unmet prerequisite.
type ValidationError struct {
	Resource string
	Problem  string
	Hint     string
}

func (e *ValidationError) Error() string {
	msg := e.Resource + ": " + e.Problem
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Check is a single prerequisite. Run returns *ValidationError on failure.
type Check interface {
	Name() string
	Run() error
}

type dirExists struct {
	name string
	path string
	hint string
}

// DirExists requires path to be an existing directory.
func DirExists(name, path, hint string) Check {
	return dirExists{name: name, path: path, hint: hint}
}

func (c dirExists) Name() string { return c.name }

func (c dirExists) Run() error {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ValidationError{Resource: c.path, Problem: "directory does not exist", Hint: c.hint}
	case err != nil:
		return &ValidationError{Resource: c.path, Problem: err.Error(), Hint: c.hint}
	case !info.IsDir():
		return &ValidationError{Resource: c.path, Problem: "not a directory", Hint: c.hint}
	}
	return nil
}

type fileExists struct {
	name       string
	path       string
	hint       string
	executable bool
}

// FileExists requires path to be an existing non-directory file.
func FileExists(name, path, hint string) Check {
	return fileExists{name: name, path: path, hint: hint}
}

// Executable requires path to be an existing file with an execute bit set.
// Windows has no execute bit, so only existence is checked there.
func Executable(name, path, hint string) Check {
	return fileExists{name: name, path: path, hint: hint, executable: true}
}

func (c fileExists) Name() string { return c.name }

func (c fileExists) Run() error {
	info, err := os.Stat(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &ValidationError{Resource: c.path, Problem: "file does not exist", Hint: c.hint}
	case err != nil:
		return &ValidationError{Resource: c.path, Problem: err.Error(), Hint: c.hint}
	case info.IsDir():
		return &ValidationError{Resource: c.path, Problem: "is a directory", Hint: c.hint}
	}
	if c.executable && goruntime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return &ValidationError{Resource: c.path, Problem: "not executable", Hint: c.hint}
	}
	return nil
}

type onPath struct {
	name   string
	binary string
	hint   string
}

// OnPath requires binary to resolve through PATH.
func OnPath(name, binary, hint string) Check {
	return onPath{name: name, binary: binary, hint: hint}
}

func (c onPath) Name() string { return c.name }

func (c onPath) Run() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return &ValidationError{Resource: c.binary, Problem: "not found in PATH", Hint: c.hint}
	}
	return nil
}

type port struct {
	name  string
	value int
}

// Port requires value to be a usable TCP port number.
func Port(name string, value int) Check {
	return port{name: name, value: value}
}

func (c port) Name() string { return c.name }

func (c port) Run() error {
	p, err := nat.NewPort("tcp", strconv.Itoa(c.value))
	if err != nil || p.Int() < 1 {
		return &ValidationError{
			Resource: c.name,
			Problem:  fmt.Sprintf("invalid port %d", c.value),
			Hint:     "use a value between 1 and 65535",
		}
	}
	return nil
}

type distinctPorts struct {
	name  string
	ports map[string]int
	order []string
}

// DistinctPorts requires every named port to differ from the others. Names
// are reported in the order given.
func DistinctPorts(name string, ports ...NamedPort) Check {
	c := distinctPorts{name: name, ports: make(map[string]int, len(ports))}
	for _, p := range ports {
		c.ports[p.Name] = p.Port
		c.order = append(c.order, p.Name)
	}
	return c
}

// NamedPort pairs a flag or task name with its port.
type NamedPort struct {
	Name string
	Port int
}

func (c distinctPorts) Name() string { return c.name }

func (c distinctPorts) Run() error {
	owner := make(map[int]string, len(c.ports))
	for _, name := range c.order {
		p := c.ports[name]
		if prev, taken := owner[p]; taken {
			return &ValidationError{
				Resource: c.name,
				Problem:  fmt.Sprintf("%s and %s both use port %d", prev, name, p),
				Hint:     "choose different ports",
			}
		}
		owner[p] = name
	}
	return nil
}
