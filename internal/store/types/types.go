package types

import (
	"context"
	"errors"

	"oauth2-token-server/internal/models"
)

// ErrNotFound is returned by every lookup whose key does not exist
var ErrNotFound = errors.New("not found")

// ClientStorage holds registered clients
type ClientStorage interface {
	GetClient(ctx context.Context, id string) (*models.Client, error)
	CreateClient(ctx context.Context, client *models.Client) error
}

// UserStorage holds resource owners
type UserStorage interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// AuthorizationCodeStorage holds issued authorization codes
type AuthorizationCodeStorage interface {
	SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error
	GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	// DeleteAuthorizationCode must be atomic: of many concurrent deletes of the same
	// code exactly one observes 1 and all others observe 0.
	DeleteAuthorizationCode(ctx context.Context, code string) (int64, error)
}

// AccessTokenStorage holds issued access tokens
type AccessTokenStorage interface {
	SaveAccessToken(ctx context.Context, token *models.AccessToken) error
	GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error)
	DeleteAccessToken(ctx context.Context, token string) error
}

// RefreshTokenStorage holds issued refresh tokens
type RefreshTokenStorage interface {
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) (int64, error)
}

// Storage interface that every backend (memory, sqlite, postgres, redis) implements
type Storage interface {
	ClientStorage
	UserStorage
	AuthorizationCodeStorage
	AccessTokenStorage
	RefreshTokenStorage

	// Ping checks backend connectivity (health check)
	Ping(ctx context.Context) error
	Close() error
}
