package storages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"

	"github.com/sirupsen/logrus"
)

// SQLDialect defines the SQL-specific parts of the shared SQL store
type SQLDialect interface {
	Name() string
	// Placeholder returns $1, $2 for Postgres or ?, ? for SQLite
	Placeholder(n int) string
	// Upsert returns an insert statement that replaces the row identified by key
	Upsert(table, key string, columns []string) string
	CreateTableStatements() []string
}

// BaseSQLStore provides the Storage operations common to SQLite and PostgreSQL.
// Each entity is kept as a JSON document in a data column next to its lookup keys.
type BaseSQLStore struct {
	db      *sql.DB
	dialect SQLDialect
	logger  *logrus.Logger
}

func newBaseSQLStore(db *sql.DB, dialect SQLDialect, logger *logrus.Logger) (*BaseSQLStore, error) {
	store := &BaseSQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}

	if err := store.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return store, nil
}

// initTables creates the necessary database tables
func (s *BaseSQLStore) initTables() error {
	for _, query := range s.dialect.CreateTableStatements() {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	s.logger.Infof("✅ %s tables initialized", s.dialect.Name())
	return nil
}

// Close closes the database connection
func (s *BaseSQLStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *BaseSQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *BaseSQLStore) put(ctx context.Context, table, key string, columns []string, values ...interface{}) error {
	query := s.dialect.Upsert(table, key, columns)
	_, err := s.db.ExecContext(ctx, query, values...)
	return err
}

func (s *BaseSQLStore) get(ctx context.Context, table, key, value string, dest interface{}) error {
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = %s", table, key, s.dialect.Placeholder(1))

	var data string
	err := s.db.QueryRowContext(ctx, query, value).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ErrNotFound
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

// remove deletes by key and reports how many rows the statement removed.
// A single DELETE is atomic, so concurrent callers race on the row and only one sees 1.
func (s *BaseSQLStore) remove(ctx context.Context, table, key, value string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", table, key, s.dialect.Placeholder(1))
	result, err := s.db.ExecContext(ctx, query, value)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Client storage methods
func (s *BaseSQLStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.get(ctx, "clients", "id", id, &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *BaseSQLStore) CreateClient(ctx context.Context, client *models.Client) error {
	data, err := json.Marshal(client)
	if err != nil {
		return err
	}
	return s.put(ctx, "clients", "id", []string{"id", "data"}, client.ID, string(data))
}

// User storage methods
func (s *BaseSQLStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, "users", "id", id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BaseSQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := s.get(ctx, "users", "username", username, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *BaseSQLStore) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.put(ctx, "users", "id", []string{"id", "username", "data"}, user.ID, user.Username, string(data))
}

// Authorization code methods
func (s *BaseSQLStore) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	return s.put(ctx, "authorization_codes", "code", []string{"code", "client_id", "data"}, code.Code, code.ClientID, string(data))
}

func (s *BaseSQLStore) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var authCode models.AuthorizationCode
	if err := s.get(ctx, "authorization_codes", "code", code, &authCode); err != nil {
		return nil, err
	}
	return &authCode, nil
}

func (s *BaseSQLStore) DeleteAuthorizationCode(ctx context.Context, code string) (int64, error) {
	return s.remove(ctx, "authorization_codes", "code", code)
}

// Access token methods
func (s *BaseSQLStore) SaveAccessToken(ctx context.Context, token *models.AccessToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.put(ctx, "access_tokens", "token", []string{"token", "client_id", "data"}, token.Token, token.ClientID, string(data))
}

func (s *BaseSQLStore) GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error) {
	var accessToken models.AccessToken
	if err := s.get(ctx, "access_tokens", "token", token, &accessToken); err != nil {
		return nil, err
	}
	return &accessToken, nil
}

func (s *BaseSQLStore) DeleteAccessToken(ctx context.Context, token string) error {
	_, err := s.remove(ctx, "access_tokens", "token", token)
	return err
}

// Refresh token methods
func (s *BaseSQLStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return s.put(ctx, "refresh_tokens", "token", []string{"token", "client_id", "data"}, token.Token, token.ClientID, string(data))
}

func (s *BaseSQLStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := s.get(ctx, "refresh_tokens", "token", token, &refreshToken); err != nil {
		return nil, err
	}
	return &refreshToken, nil
}

func (s *BaseSQLStore) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	return s.remove(ctx, "refresh_tokens", "token", token)
}

func placeholders(dialect SQLDialect, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = dialect.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}
