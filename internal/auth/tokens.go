package auth

import (
	"time"

	"oauth2-token-server/internal/utils"
)

// Default identifier lengths in characters
const (
	DefaultAuthorizationCodeLength = 16
	DefaultAccessTokenLength       = 256
	DefaultRefreshTokenLength      = 256
)

// TokenFactory mints opaque identifiers and computes expiration dates
type TokenFactory struct {
	CodeLength         int
	AccessTokenLength  int
	RefreshTokenLength int

	// Clock is used for expirations. Defaults to time.Now.
	Clock func() time.Time
}

// NewTokenFactory creates a factory, replacing non-positive lengths with the defaults
func NewTokenFactory(codeLength, accessTokenLength, refreshTokenLength int) *TokenFactory {
	if codeLength <= 0 {
		codeLength = DefaultAuthorizationCodeLength
	}
	if accessTokenLength <= 0 {
		accessTokenLength = DefaultAccessTokenLength
	}
	if refreshTokenLength <= 0 {
		refreshTokenLength = DefaultRefreshTokenLength
	}
	return &TokenFactory{
		CodeLength:         codeLength,
		AccessTokenLength:  accessTokenLength,
		RefreshTokenLength: refreshTokenLength,
		Clock:              time.Now,
	}
}

// NewIdentifier returns an unguessable URL-safe string of exactly length characters.
// Collisions are not checked.
func (f *TokenFactory) NewIdentifier(length int) (string, error) {
	return utils.GenerateRandomString(length)
}

// NewAuthorizationCode mints an authorization code
func (f *TokenFactory) NewAuthorizationCode() (string, error) {
	return f.NewIdentifier(f.CodeLength)
}

// NewAccessToken mints an access token
func (f *TokenFactory) NewAccessToken() (string, error) {
	return f.NewIdentifier(f.AccessTokenLength)
}

// NewRefreshToken mints a refresh token
func (f *TokenFactory) NewRefreshToken() (string, error) {
	return f.NewIdentifier(f.RefreshTokenLength)
}

// ExpirationFor returns now plus ttlSeconds, or nil when ttlSeconds is not positive
func (f *TokenFactory) ExpirationFor(ttlSeconds int) *time.Time {
	if ttlSeconds <= 0 {
		return nil
	}
	expires := f.Now().Add(time.Duration(ttlSeconds) * time.Second)
	return &expires
}

// Now returns the current time according to the factory clock
func (f *TokenFactory) Now() time.Time {
	if f.Clock == nil {
		return time.Now()
	}
	return f.Clock()
}
