package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/dispatch"
	"github.com/matheus3301/chordd/internal/eventloop"
	"github.com/matheus3301/chordd/internal/instance"
	"github.com/matheus3301/chordd/internal/journal"
	"github.com/matheus3301/chordd/internal/lock"
	"github.com/matheus3301/chordd/internal/logging"
	"github.com/matheus3301/chordd/internal/matcher"
	"github.com/matheus3301/chordd/internal/status"
	"github.com/matheus3301/chordd/internal/store"
	"github.com/matheus3301/chordd/internal/x11"
)

// Source is a key source the daemon owns and closes on stop.
type Source interface {
	eventloop.Source
	Close() error
}

// DialFunc connects to a display.
type DialFunc func(display string, logger *zap.Logger) (Source, error)

// Params holds the resolved instance configuration passed to the fx module.
type Params struct {
	Display  string
	Key      string // instance key derived from Display
	Table    *config.Table
	Settings *config.Settings

	SocketPath string   // optional override for testing; empty = use default
	Dial       DialFunc // optional override for testing; nil = X11
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideSource,
			provideMatcher,
			provideDispatcher,
			provideLoop,
			provideJournal,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(instance.LogPath(p.Key), p.Display, p.Settings.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := instance.EnsureDir(p.Key); err != nil {
		return nil, err
	}
	logger.Info("acquiring display lock", zap.String("display", p.Display))
	l, err := lock.Acquire(instance.Dir(p.Key))
	if err != nil {
		return nil, err
	}
	logger.Info("display lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(instance.DBPath(p.Key))
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()))
	return db, nil
}

// provideSource takes the lock first so a second daemon fails before it
// touches the display.
func provideSource(p Params, _ *lock.Lock, machine *status.Machine, logger *zap.Logger) (Source, error) {
	dial := p.Dial
	if dial == nil {
		dial = dialX11
	}
	if err := machine.Transition(status.Connecting); err != nil {
		return nil, err
	}
	src, err := dial(p.Display, logger)
	if err != nil {
		_ = machine.Transition(status.Error)
		return nil, err
	}
	return src, nil
}

func dialX11(display string, logger *zap.Logger) (Source, error) {
	conn, err := x11.Dial(display, logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func provideMatcher(p Params, src Source, logger *zap.Logger) (*matcher.Matcher, error) {
	m, err := eventloop.Prepare(p.Table, src, p.Settings.Timeout)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	logger.Info("bindings loaded",
		zap.String("file", p.Table.File),
		zap.Int("bindings", m.Len()),
		zap.Duration("timeout", m.Timeout()),
	)
	return m, nil
}

func provideDispatcher(p Params, b *bus.Bus, logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(p.Settings.Shell, b, logger)
}

func provideLoop(m *matcher.Matcher, src Source, disp *dispatch.Dispatcher, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *eventloop.Loop {
	return eventloop.New(m, src, disp, machine, b, logger)
}

func provideJournal(db *store.DB, b *bus.Bus, logger *zap.Logger) *journal.Journal {
	return journal.New(db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, p Params, srv *Server, lk *lock.Lock, db *store.DB, src Source, loop *eventloop.Loop, jr *journal.Journal, machine *status.Machine, b *bus.Bus, logger *zap.Logger) {
	var cancel context.CancelFunc
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start the journal first so no dispatch goes unrecorded.
			if p.Settings.Journal {
				jr.Start(context.Background())
			}

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if err := machine.Transition(status.Ready); err != nil {
				return err
			}

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				err := loop.Run(ctx)
				if err == nil || ctx.Err() != nil {
					return
				}
				logger.Error("event loop stopped", zap.Error(err))
				_ = machine.Transition(status.Error)
				if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
					logger.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
				<-done
			}
			jr.Stop()
			if err := src.Close(); err != nil {
				logger.Warn("error closing key source", zap.Error(err))
			}
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped", zap.Uint64("dropped_events", b.Dropped()))
			return nil
		},
	})
}
