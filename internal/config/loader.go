package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "skymood.yaml"

// Load reads a project configuration from path. When required is false and
// the file does not exist, defaults rooted at the current directory are
// returned instead.
func Load(path string, required bool) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	f, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Default()
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	var doc Config
	if err := decoder.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: decode: %w", absPath, err)
	}
	doc.Source = absPath

	doc.resolve(filepath.Dir(absPath))
	if err := doc.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	if err := doc.loadBackendEnv(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return &doc, nil
}

// Default returns the configuration used when no file is present.
func Default() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	doc := &Config{}
	doc.resolve(wd)
	if err := doc.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Config) resolve(base string) {
	root := os.ExpandEnv(c.Root)
	if root == "" {
		root = os.Getenv("SKYMOOD_ROOT")
	}
	c.Root = resolveDir(base, root)
	c.Frontend.Dir = os.ExpandEnv(c.Frontend.Dir)
	c.Backend.Dir = os.ExpandEnv(c.Backend.Dir)
	c.Backend.Venv = os.ExpandEnv(c.Backend.Venv)
	if c.Logging.Directory == "" {
		c.Logging.Directory = os.Getenv("SKYMOOD_LOG_DIR")
	}
	c.Logging.Directory = os.ExpandEnv(c.Logging.Directory)
	if c.Logging.Directory != "" && !filepath.IsAbs(c.Logging.Directory) {
		c.Logging.Directory = filepath.Join(base, c.Logging.Directory)
	}
}

// loadBackendEnv reads backend.envFile relative to the API directory.
func (c *Config) loadBackendEnv() error {
	if c.Backend.EnvFile == "" {
		return nil
	}
	expanded := os.ExpandEnv(c.Backend.EnvFile)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Clean(filepath.Join(c.BackendDir(), expanded))
	}
	c.Backend.EnvFile = expanded
	values, err := loadEnvFile(expanded)
	if err != nil {
		return fmt.Errorf("backend.envFile: %w", err)
	}
	c.Backend.Env = values
	return nil
}

func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	values := make(map[string]string)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "export "))
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("load env file %q: invalid line %d", path, lineNo)
		}
		value = strings.TrimSpace(value)
		switch {
		case strings.HasPrefix(value, `"`):
			unquoted, err := strconv.Unquote(value)
			if err != nil {
				return nil, fmt.Errorf("load env file %q: parse value for %s on line %d: %w", path, key, lineNo, err)
			}
			value = unquoted
		case strings.HasPrefix(value, "'"):
			if len(value) < 2 || value[len(value)-1] != '\'' {
				return nil, fmt.Errorf("load env file %q: unmatched quote on line %d", path, lineNo)
			}
			value = value[1 : len(value)-1]
		default:
			if comment := strings.IndexRune(value, '#'); comment >= 0 {
				value = strings.TrimSpace(value[:comment])
			}
		}
		values[key] = os.ExpandEnv(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	return values, nil
}
