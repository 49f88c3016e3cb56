package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/jwulff/linkup-go/internal/config"
	"github.com/jwulff/linkup-go/internal/librelink"
	"github.com/jwulff/linkup-go/internal/metrics"
	"github.com/jwulff/linkup-go/internal/monitor"
	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/jwulff/linkup-go/internal/publish"
	"github.com/jwulff/linkup-go/internal/session"
	"github.com/jwulff/linkup-go/internal/storage"
	"github.com/jwulff/linkup-go/internal/storage/postgres"
	"github.com/jwulff/linkup-go/internal/storage/sqlite"
)

// DBFileName is the default sqlite file under the config dir.
const DBFileName = "linkup.db"

// App holds the wired components of one command run.
type App struct {
	cfg      *config.Config
	logger   zerolog.Logger
	out      io.Writer
	client   *librelink.Client
	session  *session.Session
	store    storage.Store
	limiter  *notify.Limiter
	notifier notify.Notifier
	sink     publish.Sink
	metrics  *metrics.Recorder
	natsConn *nats.Conn
}

// newLogger builds a console logger on w at the named level.
func newLogger(level string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().Timestamp().Str("app", appName).Logger(), nil
}

// newApp loads and validates the configuration and wires the client,
// session, store and outputs.
func newApp(ctx context.Context, flags *globalFlags, out io.Writer) (*App, error) {
	logger, err := newLogger(flags.logLevel, os.Stderr)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		metrics: metrics.New(),
	}

	a.client = librelink.NewClient(
		librelink.WithVersion(cfg.Client.Version),
		librelink.WithProduct(cfg.Client.Product),
		librelink.WithTimeout(cfg.Client.Timeout),
		librelink.WithLogger(logger),
	)

	notifiers := notify.Multi{notify.NewConsole(out)}
	sinks := publish.Multi{publish.NewConsole(out)}
	if cfg.NATS.URL != "" {
		conn, err := publish.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return nil, err
		}
		a.natsConn = conn
		n := publish.NewNATS(conn, cfg.NATS.Subject, logger)
		notifiers = append(notifiers, n)
		sinks = append(sinks, n)
		logger.Info().Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject).Msg("Publishing to NATS")
	}
	a.limiter = notify.NewLimiter(notifiers, noticeWindow(cfg))
	a.notifier = a.limiter
	a.sink = sinks

	a.session = session.New(a.client,
		session.WithNotifier(a.notifier),
		session.WithLogger(logger),
	)

	a.store, err = openStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// monitor builds a Monitor reading its configuration from provider.
func (a *App) monitor(provider config.Provider) *monitor.Monitor {
	return monitor.New(provider, a.session,
		monitor.WithStore(a.store),
		monitor.WithSink(a.sink),
		monitor.WithNotifier(a.notifier),
		monitor.WithMetrics(a.metrics),
		monitor.WithLogger(a.logger),
	)
}

// Close releases the store and the NATS connection.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
}

// noticeWindow is how long identical notices are suppressed: one poll
// interval, at least a minute.
func noticeWindow(cfg *config.Config) time.Duration {
	return max(cfg.Interval(), time.Minute)
}

// applyNoticeWindow follows a live interval change.
func (a *App) applyNoticeWindow(cfg config.Config) {
	window := noticeWindow(&cfg)
	if window == a.limiter.Window() {
		return
	}
	a.limiter.SetWindow(window)
	a.logger.Debug().Dur("window", window).Msg("Notice window updated")
}

// openStore opens the configured store. It returns nil for DriverNone and
// an in-memory store for DriverMemory; only sqlite and postgres touch disk
// or the network.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverMemory, "":
		store, err := sqlite.NewMemoryStore()
		if err != nil {
			return nil, fmt.Errorf("open memory store: %w", err)
		}
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case config.DriverSQLite:
		path := cfg.Storage.DSN
		if path == "" {
			path = filepath.Join(config.Dir(), DBFileName)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := sqlite.NewFileStore(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// loadStoreConfig reads the file without requiring account settings; the
// store commands never talk to LibreLinkUp.
func loadStoreConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return cfg, err
}
