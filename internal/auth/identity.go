package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"
)

// ErrInvalidCredentials is returned when a username/password or client_id/secret pair does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityVerifier authenticates resource owners
type IdentityVerifier interface {
	Verify(ctx context.Context, username, password string) (*models.User, error)
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy spends one bcrypt comparison so unknown identities cost the same as known ones
func compareDummy(secret string) {
	dummyHashOnce.Do(func() {
		hashed, err := utils.HashSecret("dummy-password-for-timing")
		if err == nil {
			dummyHash = hashed
		}
	})
	if dummyHash != nil {
		utils.ValidateSecret(secret, dummyHash)
	}
}

// StoreIdentityVerifier checks bcrypt password hashes held in the user store
type StoreIdentityVerifier struct {
	users types.UserStorage
}

// NewStoreIdentityVerifier creates a verifier backed by the user store
func NewStoreIdentityVerifier(users types.UserStorage) *StoreIdentityVerifier {
	return &StoreIdentityVerifier{users: users}
}

// Verify returns the user when the password matches. Unknown users and wrong passwords
// both yield ErrInvalidCredentials, store failures are returned as-is.
func (v *StoreIdentityVerifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" {
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}

	user, err := v.users.GetUserByUsername(ctx, username)
	if errors.Is(err, types.ErrNotFound) {
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !utils.ValidateSecret(password, []byte(user.PasswordHash)) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
