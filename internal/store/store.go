// Package store persists ranking snapshots to Postgres. Each table is a
// full-replace target: the previous snapshot is deleted and the new rows are
// inserted in batches, with no transaction spanning the pair.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// Snapshot tables. They are provisioned outside this service.
const (
	tableDownloads   = "download_rank_7d"
	tableGrowth      = "download_percent_rank_7d"
	tableDelta       = "download_delta_rank_7d"
	tableAdvertisers = "advertiser_rank_7d"
)

// batchSize is the number of rows per multi-row insert.
const batchSize = 50

// Store wraps a PostgreSQL connection for snapshot writes.
type Store struct {
	client *sql.DB
	config *Config
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string // disable, require, verify-ca, verify-full
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	DatabaseURL  string // full connection URL, overrides the individual fields
}

// ConnectionString returns the PostgreSQL connection string.
func (c *Config) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// New creates a PostgreSQL-backed snapshot store.
func New(config *Config) (*Store, error) {
	if config.DatabaseURL == "" {
		if config.Host == "" {
			return nil, fmt.Errorf("database host is required")
		}
		if config.Port == "" {
			return nil, fmt.Errorf("database port is required")
		}
		if config.User == "" {
			return nil, fmt.Errorf("database user is required")
		}
		if config.Database == "" {
			return nil, fmt.Errorf("database name is required")
		}
		if config.SSLMode == "" {
			config.SSLMode = "disable"
		}
	}

	// A run writes four small snapshots; the pool stays small.
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 2
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 5
	}
	if config.MaxLifetime == 0 {
		config.MaxLifetime = 20 * time.Minute
	}

	client, err := sql.Open("pgx", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	client.SetMaxOpenConns(config.MaxOpenConns)
	client.SetMaxIdleConns(config.MaxIdleConns)
	client.SetConnMaxLifetime(config.MaxLifetime)

	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	return &Store{client: client, config: config}, nil
}

// InitFromEnv creates a snapshot store from environment variables. A
// DATABASE_URL takes precedence over the individual POSTGRES_* settings.
func InitFromEnv() (*Store, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return New(&Config{DatabaseURL: url})
	}

	config := &Config{
		Host:     os.Getenv("POSTGRES_HOST"),
		Port:     os.Getenv("POSTGRES_PORT"),
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: os.Getenv("POSTGRES_DB"),
		SSLMode:  os.Getenv("POSTGRES_SSL_MODE"),
	}

	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == "" {
		config.Port = "5432"
	}
	if config.User == "" {
		config.User = "postgres"
	}
	if config.Database == "" {
		config.Database = "apptrack"
	}

	return New(config)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// Probe verifies each snapshot table answers a trivial select. A missing
// table logs a warning only: the tables are managed outside this service and
// inserts are attempted regardless.
func (s *Store) Probe(ctx context.Context) {
	tables := []string{tableDownloads, tableGrowth, tableDelta, tableAdvertisers}
	for _, table := range tables {
		rows, err := s.client.QueryContext(ctx, "SELECT 1 FROM "+table+" LIMIT 1")
		if err != nil {
			log.Warn().
				Err(err).
				Str("table", table).
				Msg("Snapshot table missing or unreadable")
			continue
		}
		rows.Close()

		log.Debug().Str("table", table).Msg("Snapshot table reachable")
	}
}
