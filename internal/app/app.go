package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dshills/padstorm/internal/config"
	"github.com/dshills/padstorm/internal/input"
	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/mode"
	"github.com/dshills/padstorm/internal/input/record"
	"github.com/dshills/padstorm/internal/server"
)

// Options holds the command-line options.
type Options struct {
	// ConfigPath is the TOML file to load. Empty uses the defaults.
	ConfigPath string
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Listen overrides the configured listen address when set.
	Listen string
	// ReplayPath replays a recorded trace instead of serving.
	ReplayPath string
	// Watch reloads the configuration when the file changes.
	Watch bool

	// Output receives replayed events as JSON lines. Defaults to os.Stdout.
	Output io.Writer
	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer
}

// App is the padstorm process.
type App struct {
	opts Options
	log  *Logger

	mu      sync.Mutex
	cfg     config.Config
	server  *server.Server
	running bool
}

// New loads the configuration and prepares the application.
func New(opts Options) (*App, error) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Watch && opts.ConfigPath == "" {
		return nil, ErrWatchWithoutConfig
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, NewOperationError("load", opts.ConfigPath, err)
		}
		cfg = loaded
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Listen != "" {
		cfg.Server.Listen = opts.Listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	logCfg := DefaultLoggerConfig()
	logCfg.Level = ParseLogLevel(cfg.LogLevel)
	if opts.LogOutput != nil {
		logCfg.Output = opts.LogOutput
	}

	return &App{
		opts: opts,
		log:  NewLogger(logCfg),
		cfg:  cfg,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *Logger { return a.log }

// Config returns the active configuration.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Run serves clients, or replays a trace when ReplayPath is set, until ctx
// is cancelled or the replay finishes.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrAlreadyRunning
	}
	a.running = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	if a.opts.ReplayPath != "" {
		_, err := a.Replay(ctx, a.opts.ReplayPath)
		return err
	}
	return a.Serve(ctx)
}

// Serve runs the WebSocket server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config()
	inputCfg, err := cfg.InputConfig()
	if err != nil {
		return NewOperationError("configure", "input", err)
	}

	log := a.log.WithComponent("server")
	srv, err := server.New(serverConfig(cfg.Server), inputCfg, server.WithLogger(log))
	if err != nil {
		return NewOperationError("serve", cfg.Server.Listen, err)
	}
	a.mu.Lock()
	a.server = srv
	a.mu.Unlock()

	if a.opts.Watch {
		w, err := config.NewWatcher(a.opts.ConfigPath, func(c config.Config) {
			if err := a.Reload(c); err != nil {
				a.log.Warn("reload %s: %v", a.opts.ConfigPath, err)
			}
		}, config.WithErrorHandler(func(err error) {
			a.log.Warn("config %s: %v", a.opts.ConfigPath, err)
		}))
		if err != nil {
			return NewOperationError("watch", a.opts.ConfigPath, err)
		}
		defer w.Close()
		a.log.Info("watching %s", w.Path())
	}

	if err := srv.ListenAndServe(ctx); err != nil {
		return NewOperationError("serve", cfg.Server.Listen, err)
	}
	return nil
}

// Reload applies a new configuration to the running server. Transport
// settings take effect on the next start; everything else applies to
// connected clients immediately.
func (a *App) Reload(cfg config.Config) error {
	if a.opts.LogLevel != "" {
		cfg.LogLevel = a.opts.LogLevel
	}
	if a.opts.Listen != "" {
		cfg.Server.Listen = a.opts.Listen
	}
	inputCfg, err := cfg.InputConfig()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.cfg = cfg
	srv := a.server
	a.mu.Unlock()

	a.log.SetLevel(ParseLogLevel(cfg.LogLevel))
	if srv != nil {
		if err := srv.Reload(inputCfg); err != nil {
			return err
		}
	}
	a.log.Info("configuration reloaded")
	return nil
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Ticks  int
	Events int
	State  mode.State
}

type replayLine struct {
	Tick   uint64        `json:"tick"`
	Events []event.Event `json:"events"`
}

// Replay feeds a recorded trace through a fresh handler and writes every
// tick that produced events to Output as one JSON line.
func (a *App) Replay(ctx context.Context, path string) (ReplayResult, error) {
	trace, err := record.LoadFile(path)
	if err != nil {
		return ReplayResult{}, NewOperationError("replay", path, err)
	}

	inputCfg, err := a.Config().InputConfig()
	if err != nil {
		return ReplayResult{}, NewOperationError("configure", "input", err)
	}
	log := a.log.WithComponent("input")
	h, err := input.NewHandler(inputCfg, input.WithID(trace.ID), input.WithLogger(log))
	if err != nil {
		return ReplayResult{}, NewOperationError("replay", path, err)
	}
	defer h.Close()
	h.Hooks().RegisterWithOptions(input.LoggingHook{Logger: log}, "log", input.HookPriorityLowest)

	a.log.Info("replaying %s: %d samples over %v", path, trace.Len(), trace.Duration())

	enc := json.NewEncoder(a.opts.Output)
	res := ReplayResult{}
	player := record.NewPlayer(trace)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw, ok := player.Step()
		if !ok {
			break
		}
		events := h.Tick(raw)
		res.Ticks++
		if len(events) == 0 {
			continue
		}
		res.Events += len(events)
		if err := enc.Encode(replayLine{Tick: events[0].Tick, Events: events}); err != nil {
			return res, NewOperationError("write", "events", err)
		}
	}
	res.State = h.State()

	a.log.Info("replay done: %d ticks, %d events, final state %q", res.Ticks, res.Events, res.State)
	return res, nil
}

func serverConfig(c config.ServerConfig) server.Config {
	sc := server.DefaultConfig()
	sc.Listen = c.Listen
	sc.Path = c.Path
	sc.ReadLimit = c.ReadLimit
	sc.WriteTimeout = c.WriteTimeout.D()
	sc.PingInterval = c.PingInterval.D()
	return sc
}
