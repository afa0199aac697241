package bridge

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dshills/scaffoldhost/internal/logging"
	"github.com/dshills/scaffoldhost/internal/process"
)

// Operation names.
const (
	OpOpenScaffoldDirectory = "openScaffoldDirectory"
	OpGetRootPath           = "getRootPath"
	OpGetJavas              = "getJavas"
	OpGetPythons            = "getPythons"
	OpExportMap             = "exportMap"
	OpGetServerVersion      = "getServerVersion"
	OpPathJoin              = "path.join"
	OpPathRelative          = "path.relative"
	OpPathDirname           = "path.dirname"
	OpPathSep               = "path.sep"
	OpFsExists              = "fs.existsSync"
	OpFsMkdir               = "fs.mkdirSync"
	OpFsGetFiles            = "fs.getFiles"
	OpSpawn                 = "child_process.spawn"
	OpKill                  = "child_process.kill"
)

// Spawner starts and kills supervised processes.
type Spawner interface {
	Spawn(ctx context.Context, req process.SpawnRequest) (string, error)
	Kill(pid string)
}

type handler func(ctx context.Context, args []string, data []byte) ([]string, error)

// Dispatcher routes native API operations to their collaborators.
// It is safe for concurrent use.
type Dispatcher struct {
	spawner  Spawner
	chooser  Chooser
	runtimes Runtimes
	files    *Files
	versions VersionSource
	rootPath func() (string, error)
	logger   *logging.Logger

	ops map[string]handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChooser sets the directory and save chooser.
func WithChooser(c Chooser) Option {
	return func(d *Dispatcher) { d.chooser = c }
}

// WithRuntimes sets runtime discovery.
func WithRuntimes(r Runtimes) Option {
	return func(d *Dispatcher) { d.runtimes = r }
}

// WithFiles sets the filesystem operations.
func WithFiles(f *Files) Option {
	return func(d *Dispatcher) { d.files = f }
}

// WithVersionSource sets the remote version check.
func WithVersionSource(v VersionSource) Option {
	return func(d *Dispatcher) { d.versions = v }
}

// WithRootPath overrides how the host executable path is found.
func WithRootPath(fn func() (string, error)) Option {
	return func(d *Dispatcher) { d.rootPath = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher creates a Dispatcher that starts processes through
// spawner.
func NewDispatcher(spawner Spawner, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		spawner:  spawner,
		chooser:  StaticChooser{},
		runtimes: NewDiscovery(DiscoveryConfig{}),
		files:    NewFiles(nil),
		versions: NewVersionChecker("https://api.battlecode.org/api/episode/e/bc%s/?format=json", "release_version_public", 10*time.Second),
		rootPath: os.Executable,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("bridge")

	d.ops = map[string]handler{
		OpOpenScaffoldDirectory: d.openScaffoldDirectory,
		OpGetRootPath:           d.getRootPath,
		OpGetJavas:              d.getJavas,
		OpGetPythons:            d.getPythons,
		OpExportMap:             d.exportMap,
		OpGetServerVersion:      d.getServerVersion,
		OpPathJoin:              d.pathJoin,
		OpPathRelative:          d.pathRelative,
		OpPathDirname:           d.pathDirname,
		OpPathSep:               d.pathSep,
		OpFsExists:              d.fsExists,
		OpFsMkdir:               d.fsMkdir,
		OpFsGetFiles:            d.fsGetFiles,
		OpSpawn:                 d.spawn,
		OpKill:                  d.kill,
	}
	return d
}

// Operations returns the supported operation names in sorted order.
func (d *Dispatcher) Operations() []string {
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs operation with args and data. Unknown operations return
// ErrInvalidOperation.
func (d *Dispatcher) Call(ctx context.Context, operation string, args []string, data []byte) ([]string, error) {
	h, ok := d.ops[operation]
	if !ok {
		d.logger.WithField("operation", operation).Warn("unknown operation")
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperation, operation)
	}

	d.logger.WithFields(map[string]any{
		"operation": operation,
		"args":      len(args),
	}).Debug("native call")

	out, err := h(ctx, args, data)
	if out == nil && err == nil {
		out = []string{}
	}
	return out, err
}

func need(op string, args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrMissingArgument, op, n, len(args))
	}
	return nil
}

func (d *Dispatcher) openScaffoldDirectory(ctx context.Context, _ []string, _ []byte) ([]string, error) {
	path, ok, err := d.chooser.PickDirectory(ctx, "Please select your battlecode-scaffold directory")
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}
	return []string{path}, nil
}

func (d *Dispatcher) getRootPath(context.Context, []string, []byte) ([]string, error) {
	path, err := d.rootPath()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return []string{path}, nil
}

// getJavas lists "Auto" paired with the first install, then a
// "version (arch)" label and path for each install.
func (d *Dispatcher) getJavas(ctx context.Context, _ []string, _ []byte) ([]string, error) {
	javas := d.runtimes.Javas(ctx)

	out := make([]string, 0, 2+2*len(javas))
	out = append(out, "Auto")
	if len(javas) > 0 {
		out = append(out, javas[0].Path)
	} else {
		out = append(out, "")
	}

	for _, j := range javas {
		out = append(out, fmt.Sprintf("%s (%s)", j.Version, j.Arch), j.Path)
	}
	return out, nil
}

func (d *Dispatcher) getPythons(ctx context.Context, _ []string, _ []byte) ([]string, error) {
	pythons := d.runtimes.Pythons(ctx)

	out := make([]string, 0, 2*len(pythons))
	for _, p := range pythons {
		name := p.Name
		if name == "" {
			name = p.Path
		}
		version := p.Version
		if version == "" {
			version = "Unknown"
		}
		out = append(out, fmt.Sprintf("%s (%s)", name, version), p.Path)
	}
	return out, nil
}

func (d *Dispatcher) exportMap(ctx context.Context, args []string, data []byte) ([]string, error) {
	if err := need(OpExportMap, args, 1); err != nil {
		return nil, err
	}

	path, ok, err := d.chooser.SaveFile(ctx, "Export map", args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}

	if err := d.files.WriteFile(path, data); err != nil {
		d.logger.WithField("path", path).Warn("export map: %v", err)
	}
	return []string{}, nil
}

func (d *Dispatcher) getServerVersion(ctx context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpGetServerVersion, args, 1); err != nil {
		return nil, err
	}
	return []string{d.versions.Latest(ctx, args[0])}, nil
}

func (d *Dispatcher) pathJoin(_ context.Context, args []string, _ []byte) ([]string, error) {
	return []string{JoinPath(args...)}, nil
}

func (d *Dispatcher) pathRelative(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpPathRelative, args, 2); err != nil {
		return nil, err
	}
	return []string{RelativePath(args[0], args[1])}, nil
}

func (d *Dispatcher) pathDirname(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpPathDirname, args, 1); err != nil {
		return nil, err
	}
	return []string{DirName(args[0])}, nil
}

func (d *Dispatcher) pathSep(context.Context, []string, []byte) ([]string, error) {
	return []string{Separator()}, nil
}

func (d *Dispatcher) fsExists(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpFsExists, args, 1); err != nil {
		return nil, err
	}
	if d.files.Exists(args[0]) {
		return []string{"true"}, nil
	}
	return []string{""}, nil
}

func (d *Dispatcher) fsMkdir(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpFsMkdir, args, 1); err != nil {
		return nil, err
	}
	if err := d.files.Mkdir(args[0]); err != nil {
		d.logger.WithField("path", args[0]).Debug("mkdir: %v", err)
	}
	return []string{""}, nil
}

// fsGetFiles returns an empty list when the directory cannot be read.
func (d *Dispatcher) fsGetFiles(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpFsGetFiles, args, 1); err != nil {
		return nil, err
	}
	recursive := len(args) > 1 && args[1] == "true"

	files, err := d.files.List(args[0], recursive)
	if err != nil {
		d.logger.WithField("path", args[0]).Debug("get files: %v", err)
		return []string{}, nil
	}
	return files, nil
}

func (d *Dispatcher) spawn(ctx context.Context, args []string, _ []byte) ([]string, error) {
	req, err := ParseSpawnArgs(args)
	if err != nil {
		return nil, err
	}

	pid, err := d.spawner.Spawn(ctx, req)
	if err != nil {
		return nil, err
	}
	return []string{pid}, nil
}

func (d *Dispatcher) kill(_ context.Context, args []string, _ []byte) ([]string, error) {
	if err := need(OpKill, args, 1); err != nil {
		return nil, err
	}
	d.spawner.Kill(args[0])
	return []string{""}, nil
}

// ParseSpawnArgs decodes child_process.spawn arguments. Two forms are
// accepted:
//
//	workdir, runtimeHome, args...
//	workdir, "Java"|"Python", runtimePath, args...
//
// In the second form runtimePath is the Java home or the Python
// interpreter.
func ParseSpawnArgs(args []string) (process.SpawnRequest, error) {
	if err := need(OpSpawn, args, 1); err != nil {
		return process.SpawnRequest{}, err
	}

	req := process.SpawnRequest{WorkDir: args[0], Language: process.LanguageJava}
	if len(args) < 2 {
		return req, nil
	}

	switch args[1] {
	case "Java", "Python":
		lang, err := process.ParseLanguage(args[1])
		if err != nil {
			return process.SpawnRequest{}, err
		}
		req.Language = lang

		var path string
		if len(args) > 2 {
			path = args[2]
		}
		if lang == process.LanguagePython {
			req.Interpreter = path
		} else {
			req.RuntimeHome = path
		}
		if len(args) > 3 {
			req.Args = append([]string(nil), args[3:]...)
		}
	default:
		req.RuntimeHome = args[1]
		req.Args = append([]string(nil), args[2:]...)
	}
	return req, nil
}
