package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete host configuration.
type Config struct {
	Log      LogConfig      `toml:"log" yaml:"log"`
	Process  ProcessConfig  `toml:"process" yaml:"process"`
	Events   EventsConfig   `toml:"events" yaml:"events"`
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Runtimes RuntimesConfig `toml:"runtimes" yaml:"runtimes"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `toml:"level" yaml:"level"`
	// Format is text or json.
	Format string `toml:"format" yaml:"format"`
	// File, when set, receives log output instead of stderr.
	File string `toml:"file" yaml:"file"`
}

// ProcessConfig controls how children are launched.
type ProcessConfig struct {
	WrapperUnix    string `toml:"wrapper_unix" yaml:"wrapper_unix"`
	WrapperWindows string `toml:"wrapper_windows" yaml:"wrapper_windows"`
	RuntimeHomeEnv string `toml:"runtime_home_env" yaml:"runtime_home_env"`
	Python         string `toml:"python" yaml:"python"`
	// WaitDelay is a duration string such as "2s".
	WaitDelay string `toml:"wait_delay" yaml:"wait_delay"`
}

// EventsConfig controls event delivery to the client.
type EventsConfig struct {
	// Buffer is the number of events queued for the transport before
	// new events are dropped.
	Buffer int `toml:"buffer" yaml:"buffer"`
}

// ServerConfig controls the remote version check.
type ServerConfig struct {
	// VersionURL is a format string taking the year.
	VersionURL string `toml:"version_url" yaml:"version_url"`
	// VersionField is the JSON path of the version in the response.
	VersionField string `toml:"version_field" yaml:"version_field"`
	// Timeout is a duration string such as "10s".
	Timeout string `toml:"timeout" yaml:"timeout"`
}

// RuntimesConfig controls runtime discovery.
type RuntimesConfig struct {
	// JavaVersions lists the major versions offered to the client.
	JavaVersions []string `toml:"java_versions" yaml:"java_versions"`
	// JavaDirs lists extra directories scanned for JDK installs.
	JavaDirs []string `toml:"java_dirs" yaml:"java_dirs"`
	// Pythons lists interpreter names looked up on PATH.
	Pythons []string `toml:"pythons" yaml:"pythons"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Process: ProcessConfig{
			WrapperUnix:    "gradlew",
			WrapperWindows: "gradlew.bat",
			RuntimeHomeEnv: "JAVA_HOME",
			Python:         "python",
			WaitDelay:      "2s",
		},
		Events: EventsConfig{
			Buffer: 1024,
		},
		Server: ServerConfig{
			VersionURL:   "https://api.battlecode.org/api/episode/e/bc%s/?format=json",
			VersionField: "release_version_public",
			Timeout:      "10s",
		},
		Runtimes: RuntimesConfig{
			JavaVersions: []string{"21"},
			Pythons:      []string{"python3", "python"},
		},
	}
}

// Validate checks every field. Errors wrap ErrInvalidConfiguration.
func (c Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfiguration, c.Log.Level)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfiguration, c.Log.Format)
	}

	if c.Process.WrapperUnix == "" || c.Process.WrapperWindows == "" {
		return fmt.Errorf("%w: process wrapper names must be set", ErrInvalidConfiguration)
	}
	if c.Process.RuntimeHomeEnv == "" {
		return fmt.Errorf("%w: process.runtime_home_env must be set", ErrInvalidConfiguration)
	}
	if _, err := parseDuration("process.wait_delay", c.Process.WaitDelay); err != nil {
		return err
	}

	if c.Events.Buffer < 1 {
		return fmt.Errorf("%w: events.buffer must be positive, got %d", ErrInvalidConfiguration, c.Events.Buffer)
	}

	if !strings.Contains(c.Server.VersionURL, "%s") {
		return fmt.Errorf("%w: server.version_url must contain %%s", ErrInvalidConfiguration)
	}
	if _, err := parseDuration("server.timeout", c.Server.Timeout); err != nil {
		return err
	}

	return nil
}

// WaitDelayDuration returns process.wait_delay as a duration.
func (c ProcessConfig) WaitDelayDuration() time.Duration {
	d, _ := parseDuration("process.wait_delay", c.WaitDelay)
	return d
}

// TimeoutDuration returns server.timeout as a duration.
func (c ServerConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration("server.timeout", c.Timeout)
	return d
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidConfiguration, key)
	}
	return d, nil
}
