package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Loader reads a Config from defaults, a config file, the environment,
// and explicit overrides, in increasing priority.
type Loader struct {
	fs   afero.Fs
	path string
	env  *EnvLoader
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system the config file is read from.
func WithFS(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		if fs != nil {
			l.fs = fs
		}
	}
}

// WithEnv replaces the environment loader. A nil loader disables
// environment overrides.
func WithEnv(env *EnvLoader) LoaderOption {
	return func(l *Loader) {
		l.env = env
	}
}

// NewLoader creates a loader for the config file at path. An empty path
// skips the file layer.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:   afero.NewOsFs(),
		path: path,
		env:  NewEnvLoader(DefaultEnvPrefix),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load builds and validates the configuration. overrides uses dotted keys
// ("log.level") and wins over every other layer.
//
// A config file that does not exist is not an error.
func (l *Loader) Load(overrides map[string]any) (Config, error) {
	merged := make(map[string]any)

	if l.path != "" {
		fileCfg, err := l.readFile(l.path)
		if err != nil {
			return Config{}, err
		}
		merged = DeepMerge(merged, fileCfg)
	}

	if l.env != nil {
		merged = DeepMerge(merged, l.env.Load())
	}

	if len(overrides) > 0 {
		flags := make(map[string]any)
		for k, v := range overrides {
			SetPath(flags, k, v)
		}
		merged = DeepMerge(merged, flags)
	}

	cfg, err := decode(merged)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readFile parses the config file into a map, choosing the format from the
// file extension.
func (l *Loader) readFile(path string) (map[string]any, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	return Parse(path, data)
}

// Parse decodes TOML or YAML config data into a map. The format is chosen
// from the extension of name.
func Parse(name string, data []byte) (map[string]any, error) {
	var out map[string]any

	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if err := toml.Unmarshal(data, &out); err != nil {
			perr := &ParseError{Path: name, Message: err.Error(), Err: err}
			var derr *toml.DecodeError
			if errors.As(err, &derr) {
				perr.Line, perr.Column = derr.Position()
			}
			return nil, perr
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	if out == nil {
		out = make(map[string]any)
	}
	normalize(out)
	return out, nil
}

// decode lays the merged map over Default() by round-tripping it through
// TOML, so fields absent from every layer keep their defaults.
func decode(m map[string]any) (Config, error) {
	cfg := Default()
	if len(m) == 0 {
		return cfg, nil
	}

	data, err := toml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	// Lists replace rather than extend the defaults.
	cfg.Runtimes = overlayRuntimes(cfg.Runtimes, m)

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

func overlayRuntimes(def RuntimesConfig, m map[string]any) RuntimesConfig {
	section, ok := m["runtimes"].(map[string]any)
	if !ok {
		return def
	}
	if _, ok := section["java_versions"]; ok {
		def.JavaVersions = nil
	}
	if _, ok := section["java_dirs"]; ok {
		def.JavaDirs = nil
	}
	if _, ok := section["pythons"]; ok {
		def.Pythons = nil
	}
	return def
}
