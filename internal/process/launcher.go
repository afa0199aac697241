package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Language selects how a SpawnRequest is launched.
type Language string

const (
	// LanguageJava runs the scaffold's Gradle wrapper.
	LanguageJava Language = "java"
	// LanguagePython runs a Python interpreter.
	LanguagePython Language = "python"
)

// ParseLanguage maps a client-supplied name to a Language. Matching is
// case-insensitive and an empty name selects LanguageJava.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "java":
		return LanguageJava, nil
	case "python":
		return LanguagePython, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedLanguage, s)
	}
}

// SpawnRequest describes a child to start.
type SpawnRequest struct {
	// WorkDir is the scaffold directory. It is the child's working
	// directory and, for Java, the directory holding the wrapper script.
	WorkDir string

	// RuntimeHome, when non-empty, is exported to the child as the runtime
	// home variable (JAVA_HOME by default). Java only.
	RuntimeHome string

	// Language defaults to LanguageJava.
	Language Language

	// Interpreter overrides the Python executable. Python only.
	Interpreter string

	// Args are passed to the launched program unchanged.
	Args []string
}

// Launcher starts the child described by a SpawnRequest.
type Launcher interface {
	Launch(ctx context.Context, req SpawnRequest) (Handle, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, req SpawnRequest) (Handle, error)

// Launch calls f(ctx, req).
func (f LauncherFunc) Launch(ctx context.Context, req SpawnRequest) (Handle, error) {
	return f(ctx, req)
}

// LauncherConfig names the programs and variables the ExecLauncher uses.
type LauncherConfig struct {
	WrapperUnix    string
	WrapperWindows string
	RuntimeHomeEnv string
	Python         string
	WaitDelay      time.Duration
}

// DefaultLauncherConfig returns the Gradle and Python defaults.
func DefaultLauncherConfig() LauncherConfig {
	return LauncherConfig{
		WrapperUnix:    "gradlew",
		WrapperWindows: "gradlew.bat",
		RuntimeHomeEnv: "JAVA_HOME",
		Python:         "python",
		WaitDelay:      DefaultWaitDelay,
	}
}

// ExecLauncher launches children with os/exec.
type ExecLauncher struct {
	cfg LauncherConfig
}

// NewExecLauncher creates an ExecLauncher. Empty fields of cfg take their
// defaults.
func NewExecLauncher(cfg LauncherConfig) *ExecLauncher {
	def := DefaultLauncherConfig()
	if cfg.WrapperUnix == "" {
		cfg.WrapperUnix = def.WrapperUnix
	}
	if cfg.WrapperWindows == "" {
		cfg.WrapperWindows = def.WrapperWindows
	}
	if cfg.RuntimeHomeEnv == "" {
		cfg.RuntimeHomeEnv = def.RuntimeHomeEnv
	}
	if cfg.Python == "" {
		cfg.Python = def.Python
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	return &ExecLauncher{cfg: cfg}
}

// Wrapper returns the wrapper script name for the current platform.
func (l *ExecLauncher) Wrapper() string {
	if runtime.GOOS == "windows" {
		return l.cfg.WrapperWindows
	}
	return l.cfg.WrapperUnix
}

// Command builds the exec.Cmd for req without starting it.
//
// The child inherits the host environment. For Java, the runtime home
// variable is added only when req.RuntimeHome is set.
func (l *ExecLauncher) Command(req SpawnRequest) (*exec.Cmd, error) {
	if req.WorkDir == "" {
		return nil, ErrMissingWorkDir
	}

	lang := req.Language
	if lang == "" {
		lang = LanguageJava
	}

	var cmd *exec.Cmd
	switch lang {
	case LanguageJava:
		cmd = exec.Command(filepath.Join(req.WorkDir, l.Wrapper()), req.Args...)
		cmd.Env = os.Environ()
		if req.RuntimeHome != "" {
			cmd.Env = append(cmd.Env, l.cfg.RuntimeHomeEnv+"="+req.RuntimeHome)
		}
	case LanguagePython:
		interp := req.Interpreter
		if interp == "" {
			interp = l.cfg.Python
		}
		cmd = exec.Command(interp, req.Args...)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedLanguage, string(lang))
	}

	cmd.Dir = req.WorkDir
	cmd.WaitDelay = l.cfg.WaitDelay
	return cmd, nil
}

// Launch builds and starts the child. The context only gates the start;
// cancelling it later does not affect the running child.
func (l *ExecLauncher) Launch(ctx context.Context, req SpawnRequest) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd, err := l.Command(req)
	if err != nil {
		return nil, err
	}

	p, err := Start(cmd)
	if err != nil {
		return nil, err
	}
	return p, nil
}
