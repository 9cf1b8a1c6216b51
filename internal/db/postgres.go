package db

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// InitPostgres initializes and returns a PostgreSQL connection pool
func InitPostgres() (*pgxpool.Pool, error) {
	// Get database URL from environment variable or use default
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		// Default local development configuration
		host := getEnvOrDefault("POSTGRES_HOST", "localhost")
		port := getEnvOrDefault("POSTGRES_PORT", "5432")
		user := getEnvOrDefault("POSTGRES_USER", "pushcast")
		password := getEnvOrDefault("POSTGRES_PASSWORD", "")
		dbname := getEnvOrDefault("POSTGRES_DB", "pushcast")
		sslmode := getEnvOrDefault("POSTGRES_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, password, host, port, dbname, sslmode)
	}

	// Configure connection pool
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Set connection pool settings
	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute * 5

	// Create connection pool
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Create tables if they don't exist
	if err := createTables(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pool, nil
}

// createTables creates all required tables if they don't exist
func createTables(ctx context.Context, pool *pgxpool.Pool) error {
	// Device endpoints - push destinations with their validity flag. The
	// partial unique index enforces one valid endpoint per owner; superseded
	// rows stay behind as valid = FALSE until the sweeper prunes them.
	deviceEndpointsTable := `
		CREATE TABLE IF NOT EXISTS device_endpoints (
			token TEXT PRIMARY KEY,
			owner_role VARCHAR(20) NOT NULL CHECK (owner_role IN ('passenger', 'driver')),
			owner_id VARCHAR(255) NOT NULL,
			registered_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			last_seen_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			valid BOOLEAN NOT NULL DEFAULT TRUE
		);
	`

	// Delivery records - one audit row per broadcast. Total is fixed at
	// creation; the two counters only ever grow, and never past total.
	deliveryRecordsTable := `
		CREATE TABLE IF NOT EXISTS delivery_records (
			id UUID PRIMARY KEY,
			title VARCHAR(100) NOT NULL,
			body VARCHAR(500) NOT NULL,
			target_type VARCHAR(20) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			total INTEGER NOT NULL,
			success_count INTEGER NOT NULL DEFAULT 0,
			failure_count INTEGER NOT NULL DEFAULT 0,
			CONSTRAINT delivery_records_counts_bounded CHECK (success_count + failure_count <= total)
		);
	`

	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_device_endpoints_owner_valid ON device_endpoints(owner_role, owner_id) WHERE valid;`,
		`CREATE INDEX IF NOT EXISTS idx_device_endpoints_valid_role ON device_endpoints(owner_role) WHERE valid;`,
		`CREATE INDEX IF NOT EXISTS idx_device_endpoints_last_seen ON device_endpoints(last_seen_at);`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_records_created_at ON delivery_records(created_at DESC);`,
	}

	tables := []string{deviceEndpointsTable, deliveryRecordsTable}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, index := range indexes {
		if _, err := pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
