package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultEnvPrefix is the prefix of environment overrides.
const DefaultEnvPrefix = "SCAFFOLDHOST_"

// EnvLoader loads configuration from environment variables.
//
// SCAFFOLDHOST_LOG_LEVEL maps to log.level and
// SCAFFOLDHOST_PROCESS_RUNTIME_HOME_ENV to process.runtime_home_env: the
// first segment after the prefix names the section and the rest is the key.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	lookup  func() []string
}

// NewEnvLoader creates an environment loader for prefix, which should
// include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: map[string]string{},
		lookup:  os.Environ,
	}
}

// AddMapping maps an environment variable to an explicit config path.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// Load reads environment variables into a configuration map.
// Empty values are treated as set.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)

	for _, env := range l.lookup() {
		name, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}

		path, mapped := l.mapping[name]
		if !mapped {
			if !strings.HasPrefix(name, l.prefix) {
				continue
			}
			path = l.envToPath(name)
			if path == "" {
				continue
			}
		}

		SetPath(config, path, parseEnvValue(path, value))
	}

	return config
}

// envToPath converts SCAFFOLDHOST_SERVER_VERSION_URL to server.version_url.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || section == "" || key == "" {
		return ""
	}
	return section + "." + key
}

var listKeys = map[string]bool{
	"runtimes.java_versions": true,
	"runtimes.java_dirs":     true,
	"runtimes.pythons":       true,
}

// parseEnvValue converts the string value to the type the key expects.
// List keys are comma separated.
func parseEnvValue(path, s string) any {
	if listKeys[path] {
		var out []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}

	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	return s
}
