// Package sqldb implements backend sessions over database/sql drivers.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "github.com/sijms/go-ora/v2"     // registers "oracle"

	"github.com/vietddude/dbwatch/internal/core/domain"
	"github.com/vietddude/dbwatch/internal/infra/backend"
)

// Config holds the parts of the database configuration that are not
// credentials.
type Config struct {
	Type           string        `yaml:"type"`   // postgres, oracle
	Driver         string        `yaml:"driver"` // pgx, postgres, oracle
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Connector opens single-connection sessions through sqlx.
type Connector struct {
	cfg Config
}

// NewConnector creates a connector for the configured driver.
func NewConnector(cfg Config) (*Connector, error) {
	switch cfg.Driver {
	case "pgx", "postgres", "oracle":
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if _, ok := identityQueries[cfg.Type]; !ok {
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &Connector{cfg: cfg}, nil
}

// Kind returns the driver name; error classifiers are registered per driver.
func (c *Connector) Kind() string { return c.cfg.Driver }

// Connect opens a session and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context, creds domain.Credentials) (backend.Conn, error) {
	dsn, err := DSN(c.cfg.Driver, creds)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(c.cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One session, one statement at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Conn{db: db, dbType: c.cfg.Type}, nil
}
