// Package config holds the settings of the narrow command, read from a
// `.narrow.yaml` file next to the analysed program or in the working directory.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cottand/narrow/frontend/narrowing"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file looked up by Find
const FileName = ".narrow.yaml"

const (
	OutputText = "text"
	OutputJSON = "json"
)

type Config struct {
	// MaxIterations bounds the rounds of the narrowing fixpoint of each function
	MaxIterations int `yaml:"maxIterations"`
	// Parallelism is how many functions are analysed at once
	Parallelism int    `yaml:"parallelism"`
	LogLevel    string `yaml:"logLevel"`
	// Output is either "text" or "json"
	Output string `yaml:"output"`
	// LogSections restricts debug logs to these sections, like "narrowing"
	LogSections []string `yaml:"logSections"`
}

func Default() Config {
	return Config{
		MaxIterations: narrowing.DefaultMaxIterations,
		Parallelism:   runtime.GOMAXPROCS(0),
		LogLevel:      "error",
		Output:        OutputText,
	}
}

// Load reads the configuration at path. Settings missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Find loads the first configuration file found in dirs, or returns the
// default configuration when there is none.
func Find(dirs ...string) (Config, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return Load(path)
	}
	return Default(), nil
}

func (c Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("maxIterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		return fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputJSON, c.Output)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel, which is one of debug, info, warn or error
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("invalid logLevel: %w", err)
	}
	return l, nil
}
