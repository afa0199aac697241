// Package app wires the host together: configuration, logging, the process
// supervisor, the native API dispatcher, and the MCP server. It owns the
// shutdown sequence that guarantees no child outlives the host.
package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dshills/scaffoldhost/internal/bridge"
	"github.com/dshills/scaffoldhost/internal/config"
	"github.com/dshills/scaffoldhost/internal/event"
	"github.com/dshills/scaffoldhost/internal/logging"
	"github.com/dshills/scaffoldhost/internal/process"
	"github.com/dshills/scaffoldhost/internal/server"
)

// Options configures the application.
type Options struct {
	// ConfigPath is the path to the configuration file. Empty means
	// built-in defaults plus environment.
	ConfigPath string

	// Overrides are dotted config keys set from the command line. They win
	// over the file and the environment.
	Overrides map[string]any

	// NoEnv disables SCAFFOLDHOST_* environment variables.
	NoEnv bool

	// Watch reloads the config file when it changes.
	Watch bool

	// ScaffoldDir answers openScaffoldDirectory.
	ScaffoldDir string

	// SaveDir receives maps written by exportMap.
	SaveDir string

	// Version is reported to MCP clients.
	Version string

	// LogOutput replaces stderr as the log destination when no log file
	// is configured.
	LogOutput io.Writer

	// Sink receives every process event in addition to the MCP client.
	Sink event.Sink

	// Launcher replaces the os/exec launcher.
	Launcher process.Launcher

	// ShutdownTimeout bounds how long Shutdown waits for exit events to
	// be delivered after killing children.
	ShutdownTimeout time.Duration
}

// Application is the host's composition root.
type Application struct {
	opts   Options
	loader *config.Loader

	mu  sync.RWMutex
	cfg config.Config

	logger     *logging.Logger
	bus        *event.Bus
	supervisor *process.Supervisor
	dispatcher *bridge.Dispatcher
	server     *server.Server
	watcher    *config.Watcher

	running      atomic.Bool
	shutdownOnce sync.Once
	killed       int
}

// New loads the configuration and builds every component. Nothing is
// served until Run.
func New(opts Options) (*Application, error) {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	app := &Application{opts: opts}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap() error {
	// 1. Config
	loaderOpts := []config.LoaderOption{}
	if app.opts.NoEnv {
		loaderOpts = append(loaderOpts, config.WithEnv(nil))
	}
	app.loader = config.NewLoader(app.opts.ConfigPath, loaderOpts...)

	cfg, err := app.loader.Load(app.opts.Overrides)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	app.cfg = cfg

	// 2. Logger
	logCfg := logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.Format(cfg.Log.Format),
		Output: app.opts.LogOutput,
	}
	app.logger, err = logging.Open(cfg.Log.File, logCfg)
	if err != nil {
		return &InitError{Component: "logger", Err: err}
	}

	// 3. Event bus
	app.bus = event.NewBus(event.WithPanicHandler(func(e event.Event, recovered any, _ []byte) {
		app.logger.WithField("topic", e.EventTopic()).Error("event handler panic: %v", recovered)
	}))

	// 4. Supervisor
	launcher := app.opts.Launcher
	if launcher == nil {
		launcher = process.NewExecLauncher(process.LauncherConfig{
			WrapperUnix:    cfg.Process.WrapperUnix,
			WrapperWindows: cfg.Process.WrapperWindows,
			RuntimeHomeEnv: cfg.Process.RuntimeHomeEnv,
			Python:         cfg.Process.Python,
			WaitDelay:      cfg.Process.WaitDelayDuration(),
		})
	}
	app.supervisor = process.NewSupervisor(
		process.WithSink(app.bus),
		process.WithLauncher(launcher),
		process.WithLogger(app.logger),
	)

	// 5. Dispatcher
	app.dispatcher = bridge.NewDispatcher(app.supervisor,
		bridge.WithChooser(bridge.StaticChooser{
			Directory: app.opts.ScaffoldDir,
			SaveDir:   app.opts.SaveDir,
		}),
		bridge.WithRuntimes(bridge.NewDiscovery(bridge.DiscoveryConfig{
			JavaVersions: cfg.Runtimes.JavaVersions,
			JavaDirs:     cfg.Runtimes.JavaDirs,
			Pythons:      cfg.Runtimes.Pythons,
		})),
		bridge.WithVersionSource(bridge.NewVersionChecker(
			cfg.Server.VersionURL,
			cfg.Server.VersionField,
			cfg.Server.TimeoutDuration(),
		)),
		bridge.WithLogger(app.logger),
	)

	// 6. Server, fed by the bus
	app.server = server.New(app.dispatcher, server.Options{
		Version: app.opts.Version,
		Buffer:  cfg.Events.Buffer,
		Logger:  app.logger,
	})
	app.bus.SubscribeSink(event.TopicAll, bridge.NewRelay(app.server))
	if app.opts.Sink != nil {
		app.bus.SubscribeSink(event.TopicAll, app.opts.Sink)
	}

	// 7. Config watcher
	if app.opts.Watch && app.opts.ConfigPath != "" {
		app.watcher, err = config.NewWatcher(app.loader, app.opts.Overrides, app.reload)
		if err != nil {
			app.logger.Warn("config watch disabled: %v", err)
			app.watcher = nil
		}
	}

	app.logger.WithFields(map[string]any{
		"config": app.opts.ConfigPath,
		"level":  cfg.Log.Level,
	}).Debug("host initialized")

	return nil
}

// reload applies a changed configuration. Only the log level takes effect
// without a restart.
func (app *Application) reload(cfg config.Config, err error) {
	if err != nil {
		app.logger.Warn("config reload failed: %v", err)
		return
	}

	app.mu.Lock()
	app.cfg = cfg
	app.mu.Unlock()

	level := logging.ParseLevel(cfg.Log.Level)
	if level != app.logger.Level() {
		app.logger.SetLevel(level)
		app.logger.Info("log level set to %s", level)
	}
}

// Run serves the native API on t until the client disconnects or ctx is
// cancelled, then shuts down.
func (app *Application) Run(ctx context.Context, t mcp.Transport) error {
	if app.isShutdown() {
		return ErrShutdown
	}
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.Shutdown()

	app.logger.Info("serving native API")
	err := app.server.Run(ctx, t)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown kills every supervised process, waits briefly for their exit
// events, and releases resources. It is safe to call more than once and
// from any goroutine; only the first call does the work.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(app.shutdown)
}

func (app *Application) shutdown() {
	// 1. Kill children
	app.killed = app.supervisor.Shutdown()
	app.logger.WithField("killed", app.killed).Info("shutting down")

	// 2. Let monitors report exits
	done := make(chan struct{})
	go func() {
		app.supervisor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(app.opts.ShutdownTimeout):
		app.logger.Warn("timed out waiting for process monitors")
	}

	// 3. Stop config watch
	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			app.logger.Debug("closing config watcher: %v", err)
		}
	}

	// 4. Stop the event sender
	app.server.Close()

	// 5. Close log file
	_ = app.logger.Close()
}

func (app *Application) isShutdown() bool {
	return app.supervisor.Closed()
}

// Killed returns the number of processes killed by Shutdown.
func (app *Application) Killed() int {
	return app.killed
}

// Config returns the current configuration.
func (app *Application) Config() config.Config {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.cfg
}

// Logger returns the application logger.
func (app *Application) Logger() *logging.Logger {
	return app.logger
}

// Supervisor returns the process supervisor.
func (app *Application) Supervisor() *process.Supervisor {
	return app.supervisor
}

// Dispatcher returns the native API dispatcher.
func (app *Application) Dispatcher() *bridge.Dispatcher {
	return app.dispatcher
}

// Server returns the MCP server.
func (app *Application) Server() *server.Server {
	return app.server
}

// Bus returns the event bus carrying process events.
func (app *Application) Bus() *event.Bus {
	return app.bus
}
