// Package db manages the PostgreSQL connection pool and repository
// wiring for the pricing core.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/nexusx/pricer/internal/persistence"
	"github.com/nexusx/pricer/internal/persistence/postgres"
)

// Config holds database connection configuration.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultConfig returns reasonable pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

// Manager owns the connection pool and repository instances.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  persistence.Repos
}

// NewManager opens the pool, verifies connectivity and wires repos.
func NewManager(config Config) (*Manager, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Manager{
		db:     db,
		config: config,
		repos: persistence.Repos{
			Listings:     postgres.NewListingsRepo(db, config.QueryTimeout),
			Signals:      postgres.NewSignalsRepo(db, config.QueryTimeout),
			Quality:      postgres.NewQualityRepo(db, config.QueryTimeout),
			Transactions: postgres.NewTransactionsRepo(db, config.QueryTimeout),
			Snapshots:    postgres.NewSnapshotsRepo(db, config.QueryTimeout),
			Results:      postgres.NewResultsRepo(db, config.QueryTimeout),
		},
	}, nil
}

// Repos returns the wired repositories.
func (m *Manager) Repos() persistence.Repos { return m.repos }

// DB exposes the raw pool for health checks.
func (m *Manager) DB() *sqlx.DB { return m.db }

// Ping verifies connectivity within the query timeout.
func (m *Manager) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.config.QueryTimeout)
	defer cancel()
	return m.db.PingContext(ctx)
}

// Close releases the pool.
func (m *Manager) Close() error { return m.db.Close() }
