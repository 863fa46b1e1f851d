package storages

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// PostgresDialect implements SQLDialect for PostgreSQL
type PostgresDialect struct{}

func (PostgresDialect) Name() string { return "PostgreSQL" }

func (PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d PostgresDialect) Upsert(table, key string, columns []string) string {
	updates := make([]string, 0, len(columns))
	for _, column := range columns {
		if column == key {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", column, column))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)), key, strings.Join(updates, ", "))
}

func (PostgresDialect) CreateTableStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(255) PRIMARY KEY,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(255) PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS authorization_codes (
			code VARCHAR(512) PRIMARY KEY,
			client_id VARCHAR(255) NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS access_tokens (
			token VARCHAR(512) PRIMARY KEY,
			client_id VARCHAR(255) NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token VARCHAR(512) PRIMARY KEY,
			client_id VARCHAR(255) NOT NULL,
			data JSONB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_access_tokens_client_id ON access_tokens(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_client_id ON refresh_tokens(client_id)`,
	}
}

// PostgresStore implements Storage using PostgreSQL
type PostgresStore struct {
	*BaseSQLStore
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dbURL string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	base, err := newBaseSQLStore(db, PostgresDialect{}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{BaseSQLStore: base}, nil
}
