package storages

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteDialect implements SQLDialect for SQLite
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "SQLite" }

func (SQLiteDialect) Placeholder(n int) string { return "?" }

func (d SQLiteDialect) Upsert(table, key string, columns []string) string {
	return fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders(d, len(columns)))
}

func (SQLiteDialect) CreateTableStatements() []string {
	return []string{
		// Clients table
		`CREATE TABLE IF NOT EXISTS clients (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Users table
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Authorization codes table
		`CREATE TABLE IF NOT EXISTS authorization_codes (
			code TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Access tokens table
		`CREATE TABLE IF NOT EXISTS access_tokens (
			token TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Refresh tokens table
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
}

// SQLiteStore implements Storage using SQLite
type SQLiteStore struct {
	*BaseSQLStore
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, logger *logrus.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Every connection to :memory: opens its own empty database
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	base, err := newBaseSQLStore(db, SQLiteDialect{}, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{BaseSQLStore: base}, nil
}
