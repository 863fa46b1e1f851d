package models

import "time"

// AuthorizationCode is a single-use grant bound to the client, redirect URI, user and scope
// that were approved at the authorization endpoint
type AuthorizationCode struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	UserID      string    `json:"user_id"`
	Scope       string    `json:"scope,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the code is past its expiry. A zero ExpiresAt never expires.
func (c *AuthorizationCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// AccessToken is a bearer credential. A nil ExpiresAt means the token does not expire,
// an empty UserID means it was issued to the client itself.
type AccessToken struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	ClientID  string     `json:"client_id"`
	Scope     string     `json:"scope,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the token is past its expiration date
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime in whole seconds, or 0 for non-expiring tokens
func (t *AccessToken) ExpiresIn(now time.Time) int64 {
	if t.ExpiresAt == nil {
		return 0
	}
	remaining := int64(t.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RefreshToken never expires and is not rotated on use
type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	ClientID  string    `json:"client_id"`
	Scope     string    `json:"scope,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenResponse represents an OAuth2 token response
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenInfoResponse is returned by the token info endpoint to resource servers
type TokenInfoResponse struct {
	Audience  string `json:"audience"`
	UserID    string `json:"user_id,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// PendingAuthorization describes an authorization transaction awaiting the resource owner's decision
type PendingAuthorization struct {
	TransactionID string        `json:"transaction_id"`
	Client        ClientSummary `json:"client"`
	RedirectURI   string        `json:"redirect_uri"`
	Scope         string        `json:"scope,omitempty"`
}

// ErrorResponse is the OAuth2 error body
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}
