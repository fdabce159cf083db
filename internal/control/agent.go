package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/vietddude/dbwatch/internal/core/config"
	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
	"github.com/vietddude/dbwatch/internal/infra/backend/sqldb"
	redisclient "github.com/vietddude/dbwatch/internal/infra/redis"
	"github.com/vietddude/dbwatch/internal/infra/sink"
	"github.com/vietddude/dbwatch/internal/polling/backoff"
	"github.com/vietddude/dbwatch/internal/polling/health"
	"github.com/vietddude/dbwatch/internal/polling/lifecycle"
)

const shutdownTimeout = 15 * time.Second

// Agent is the main application struct that wires the polling engine.
type Agent struct {
	cfg          Config
	manager      *lifecycle.Manager
	healthServer *health.Server
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// Config holds the application configuration.
type Config struct {
	App        *config.AppConfig
	ConfigPath string // re-read before every connect attempt
	Version    string

	// Connector overrides the sqlx connector, for tests.
	Connector backend.Connector
	Fs        afero.Fs
	Clock     clockwork.Clock
}

// NewAgent creates a new Agent with all dependencies initialized.
func NewAgent(ctx context.Context, cfg Config) (*Agent, error) {
	app := cfg.App
	log := slog.Default().With("host", app.Hostname)
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	// 1. Backend
	connector := cfg.Connector
	if connector == nil {
		c, err := sqldb.NewConnector(sqldb.Config{
			Type:           app.Database.Type,
			Driver:         app.Database.Driver,
			ConnectTimeout: app.Database.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init backend: %w", err)
		}
		connector = c
	}

	// 2. Output and transport
	if err := os.MkdirAll(app.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	transport, redisClient, err := newTransport(ctx, app.Transport)
	if err != nil {
		return nil, err
	}
	out := sink.New(app.OutputPath(), app.Hostname, transport, cfg.Clock, log)
	log.Info("Output configured", "file", out.Path(), "transport", transport.Name())

	// 3. Resource usage
	var usage lifecycle.UsageSampler
	if pu, err := lifecycle.NewProcessUsage(); err != nil {
		log.Warn("Resource usage sampling disabled", "error", err)
	} else {
		usage = pu
	}

	// 4. Lifecycle
	manager, err := lifecycle.New(lifecycle.Options{
		Connector:  connector,
		Backoff:    backoff.NewController(app.Backoff),
		Sink:       out,
		Keys:       domain.Keys{Prefix: app.Output.KeyPrefix},
		Version:    cfg.Version,
		Reload:     reloader(cfg.ConfigPath, app),
		Fs:         cfg.Fs,
		Clock:      cfg.Clock,
		Usage:      usage,
		Period:     app.Schedule.Period,
		StatsEvery: app.Schedule.StatsEvery,
		Log:        log,
	})
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, fmt.Errorf("failed to init lifecycle: %w", err)
	}

	// 5. Health
	var healthServer *health.Server
	if app.Server.Port > 0 {
		healthServer = health.NewServer(health.NewMonitor(manager, cfg.Clock), app.Server.Port)
	}

	return &Agent{
		cfg:          cfg,
		manager:      manager,
		healthServer: healthServer,
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Status returns the lifecycle status.
func (a *Agent) Status() lifecycle.Status {
	return a.manager.Status()
}

// Run polls until ctx is cancelled or the lifecycle stops on a terminal
// error, which is returned.
func (a *Agent) Run(ctx context.Context) error {
	if a.healthServer != nil {
		go func() {
			if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("Health server failed", "error", err)
			}
		}()
	}

	err := a.manager.Run(ctx)
	a.stop()
	return err
}

// stop releases what Run started.
func (a *Agent) stop() {
	a.log.Info("Stopping agent...")

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}

	if a.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.healthServer.Stop(ctx); err != nil {
			a.log.Warn("Failed to stop health server", "error", err)
		}
	}
}

func newTransport(ctx context.Context, cfg config.TransportConfig) (sink.Transport, *redisclient.Client, error) {
	switch cfg.Method {
	case "zabbix_sender":
		t, err := sink.NewCommandTransport(cfg.Args)
		if err != nil {
			return nil, nil, err
		}
		return t, nil, nil
	case "redis":
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return sink.NewRedisTransport(client, cfg.Redis.List), client, nil
	default:
		return sink.NoopTransport{}, nil, nil
	}
}

// reloader returns the settings source for connect attempts. The first
// attempt uses the config loaded at startup; later ones re-read the file
// so credential fixes apply without a restart.
func reloader(path string, initial *config.AppConfig) func() (lifecycle.Settings, error) {
	first := true
	return func() (lifecycle.Settings, error) {
		app := initial
		if !first && path != "" {
			cfg, err := config.Load(path)
			if err != nil {
				return lifecycle.Settings{}, err
			}
			app = cfg
		}
		first = false
		return Settings(app), nil
	}
}

// Settings converts the agent configuration into lifecycle settings.
func Settings(app *config.AppConfig) lifecycle.Settings {
	return lifecycle.Settings{
		Credentials: app.Database.Credentials(),
		Backend:     app.Database.Type,
		ChecksDir:   app.Checks.Dir,
		SiteChecks:  app.Checks.SiteChecks,
	}
}
