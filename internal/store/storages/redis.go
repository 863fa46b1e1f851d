package storages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Default timeouts for Redis operations
const (
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
)

// DefaultRedisKeyPrefix namespaces every key written by the store
const DefaultRedisKeyPrefix = "oauth2:"

// Key types
const (
	redisKeyClient   = "client"
	redisKeyUser     = "user"
	redisKeyUsername = "username"
	redisKeyCode     = "code"
	redisKeyAccess   = "access"
	redisKeyRefresh  = "refresh"
)

// RedisOptions holds the connection settings for the Redis store
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore implements Storage on Redis. Codes and access tokens carry a TTL
// matching their expiry so Redis drops them without a sweeper.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *logrus.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *logrus.Logger) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Infof("✅ Connected to Redis at %s", opts.Addr)
	return NewRedisStoreWithClient(client, opts.KeyPrefix, logger), nil
}

// NewRedisStoreWithClient wraps a pre-configured client, e.g. one pointed at miniredis
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, logger *logrus.Logger) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = DefaultRedisKeyPrefix
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (s *RedisStore) key(keyType, id string) string {
	return s.keyPrefix + keyType + ":" + id
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity (health check)
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) setJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// ttlUntil converts an absolute expiry into a Redis TTL measured from issuedAt, the
// record's own clock. Zero means no expiry.
func ttlUntil(issuedAt, expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return 0
	}
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	ttl := expiresAt.Sub(issuedAt)
	if ttl <= 0 {
		// Already expired records are still written so the caller observes the expiry itself
		ttl = time.Second
	}
	return ttl
}

// Client storage methods
func (s *RedisStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var client models.Client
	if err := s.getJSON(ctx, s.key(redisKeyClient, id), &client); err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *RedisStore) CreateClient(ctx context.Context, client *models.Client) error {
	return s.setJSON(ctx, s.key(redisKeyClient, client.ID), client, 0)
}

// User storage methods
func (s *RedisStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.getJSON(ctx, s.key(redisKeyUser, id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *RedisStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	id, err := s.client.Get(ctx, s.key(redisKeyUsername, username)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *RedisStore) CreateUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	previous, err := s.GetUser(ctx, user.ID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}

	pipe := s.client.TxPipeline()
	if previous != nil && previous.Username != user.Username {
		pipe.Del(ctx, s.key(redisKeyUsername, previous.Username))
	}
	pipe.Set(ctx, s.key(redisKeyUser, user.ID), data, 0)
	pipe.Set(ctx, s.key(redisKeyUsername, user.Username), user.ID, 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Authorization code methods
func (s *RedisStore) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	return s.setJSON(ctx, s.key(redisKeyCode, code.Code), code, ttlUntil(code.CreatedAt, code.ExpiresAt))
}

func (s *RedisStore) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var authCode models.AuthorizationCode
	if err := s.getJSON(ctx, s.key(redisKeyCode, code), &authCode); err != nil {
		return nil, err
	}
	return &authCode, nil
}

// DeleteAuthorizationCode relies on DEL returning the number of keys it removed,
// which Redis executes atomically.
func (s *RedisStore) DeleteAuthorizationCode(ctx context.Context, code string) (int64, error) {
	return s.client.Del(ctx, s.key(redisKeyCode, code)).Result()
}

// Access token methods
func (s *RedisStore) SaveAccessToken(ctx context.Context, token *models.AccessToken) error {
	var ttl time.Duration
	if token.ExpiresAt != nil {
		ttl = ttlUntil(token.CreatedAt, *token.ExpiresAt)
	}
	return s.setJSON(ctx, s.key(redisKeyAccess, token.Token), token, ttl)
}

func (s *RedisStore) GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error) {
	var accessToken models.AccessToken
	if err := s.getJSON(ctx, s.key(redisKeyAccess, token), &accessToken); err != nil {
		return nil, err
	}
	return &accessToken, nil
}

func (s *RedisStore) DeleteAccessToken(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(redisKeyAccess, token)).Err()
}

// Refresh token methods
func (s *RedisStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return s.setJSON(ctx, s.key(redisKeyRefresh, token.Token), token, 0)
}

func (s *RedisStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := s.getJSON(ctx, s.key(redisKeyRefresh, token), &refreshToken); err != nil {
		return nil, err
	}
	return &refreshToken, nil
}

func (s *RedisStore) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	return s.client.Del(ctx, s.key(redisKeyRefresh, token)).Result()
}
