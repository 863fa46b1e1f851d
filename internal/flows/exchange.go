package flows

import (
	"context"
	"errors"
	"time"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store/types"

	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"
)

// GrantType is a token endpoint grant type
type GrantType int

const (
	GrantUnknown GrantType = iota
	GrantAuthorizationCode
	GrantPassword
	GrantClientCredentials
	GrantRefreshToken
)

// ParseGrantType maps the grant_type wire value to a GrantType
func ParseGrantType(value string) (GrantType, bool) {
	switch value {
	case "authorization_code":
		return GrantAuthorizationCode, true
	case "password":
		return GrantPassword, true
	case "client_credentials":
		return GrantClientCredentials, true
	case "refresh_token":
		return GrantRefreshToken, true
	default:
		return GrantUnknown, false
	}
}

func (g GrantType) String() string {
	switch g {
	case GrantAuthorizationCode:
		return "authorization_code"
	case GrantPassword:
		return "password"
	case GrantClientCredentials:
		return "client_credentials"
	case GrantRefreshToken:
		return "refresh_token"
	default:
		return "unknown"
	}
}

// TokenRequest is a token endpoint request from an authenticated client.
// Which proof fields are read depends on GrantType.
type TokenRequest struct {
	GrantType GrantType
	Client    *models.Client

	// authorization_code
	Code        string
	RedirectURI string

	// password
	Username string
	Password string

	// refresh_token
	RefreshToken string

	// password and client_credentials
	Scope string
}

// TokenGrant is the result of a successful exchange. RefreshToken is empty
// unless one was issued, ExpiresIn is 0 for non-expiring access tokens.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Scope        string
}

// EngineConfig holds the token lifetimes and offline access policy
type EngineConfig struct {
	TokenTTLSeconds int
	Offline         scope.OfflinePolicy
	Audit           bool
}

// Engine exchanges proofs of authorization for access and refresh tokens.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	store      types.Storage
	identities auth.IdentityVerifier
	tokens     *auth.TokenFactory
	config     EngineConfig
	logger     *logrus.Logger
}

// NewEngine creates an exchange engine
func NewEngine(store types.Storage, identities auth.IdentityVerifier, tokens *auth.TokenFactory, cfg EngineConfig, logger *logrus.Logger) *Engine {
	if cfg.Offline.Marker == "" {
		cfg.Offline = scope.NewOfflinePolicy("", cfg.Offline.Mode)
	}
	return &Engine{
		store:      store,
		identities: identities,
		tokens:     tokens,
		config:     cfg,
		logger:     logger,
	}
}

// Exchange dispatches the request to the handler for its grant type
func (e *Engine) Exchange(ctx context.Context, req *TokenRequest) (*TokenGrant, error) {
	if req.Client == nil {
		return nil, deny(fosite.ErrInvalidClient, "no authenticated client")
	}

	if req.GrantType != GrantUnknown && !req.Client.AllowsGrantType(req.GrantType.String()) {
		return nil, deny(fosite.ErrUnauthorizedClient, "grant type not allowed for client")
	}

	var (
		grant *TokenGrant
		err   error
	)

	switch req.GrantType {
	case GrantAuthorizationCode:
		grant, err = e.exchangeAuthorizationCode(ctx, req)
	case GrantPassword:
		grant, err = e.exchangePassword(ctx, req)
	case GrantClientCredentials:
		grant, err = e.exchangeClientCredentials(ctx, req)
	case GrantRefreshToken:
		grant, err = e.exchangeRefreshToken(ctx, req)
	default:
		return nil, deny(fosite.ErrUnsupportedGrantType, "unknown grant type")
	}

	if err != nil {
		e.logOutcome(req, err)
		return nil, err
	}

	if e.config.Audit {
		e.logger.WithFields(logrus.Fields{
			"event":         "token_issued",
			"grant_type":    req.GrantType.String(),
			"client_id":     req.Client.ID,
			"scope":         grant.Scope,
			"refresh_token": grant.RefreshToken != "",
		}).Info("📝 Audit: access token issued")
	}

	return grant, nil
}

func (e *Engine) logOutcome(req *TokenRequest, err error) {
	fields := logrus.Fields{
		"grant_type": req.GrantType.String(),
		"client_id":  req.Client.ID,
	}
	if denial, ok := AsDenial(err); ok {
		e.logger.WithFields(fields).Warnf("⚠️  Token request denied (%s): %s", denial.Err.ErrorField, denial.Reason)
		return
	}
	e.logger.WithFields(fields).Errorf("❌ Token request failed: %v", err)
}

// issueTokens mints and persists an access token, then a refresh token when
// allowRefresh is set and the scope signals offline access. The refresh token
// is only written after the access token write succeeded.
func (e *Engine) issueTokens(ctx context.Context, userID, clientID, grantedScope string, allowRefresh bool) (*TokenGrant, error) {
	accessValue, err := e.tokens.NewAccessToken()
	if err != nil {
		return nil, err
	}

	accessToken := &models.AccessToken{
		Token:     accessValue,
		ExpiresAt: e.tokens.ExpirationFor(e.config.TokenTTLSeconds),
		UserID:    userID,
		ClientID:  clientID,
		Scope:     grantedScope,
		CreatedAt: e.tokens.Now(),
	}
	if err := e.store.SaveAccessToken(ctx, accessToken); err != nil {
		return nil, storeError("save access token", err)
	}

	grant := &TokenGrant{
		AccessToken: accessValue,
		Scope:       grantedScope,
	}
	if accessToken.ExpiresAt != nil {
		grant.ExpiresIn = e.config.TokenTTLSeconds
	}

	if !allowRefresh || !e.config.Offline.OfflineAccess(grantedScope) {
		return grant, nil
	}

	refreshValue, err := e.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	if err := e.store.SaveRefreshToken(ctx, &models.RefreshToken{
		Token:     refreshValue,
		UserID:    userID,
		ClientID:  clientID,
		Scope:     grantedScope,
		CreatedAt: e.tokens.Now(),
	}); err != nil {
		return nil, storeError("save refresh token", err)
	}

	grant.RefreshToken = refreshValue
	return grant, nil
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.tokens.Now()
}

// LookupAccessToken returns a live access token. An expired token is deleted
// before types.ErrNotFound is reported.
func (e *Engine) LookupAccessToken(ctx context.Context, token string) (*models.AccessToken, error) {
	if token == "" {
		return nil, types.ErrNotFound
	}

	accessToken, err := e.store.GetAccessToken(ctx, token)
	if errors.Is(err, types.ErrNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, storeError("get access token", err)
	}

	if accessToken.Expired(e.tokens.Now()) {
		if err := e.store.DeleteAccessToken(ctx, token); err != nil {
			return nil, storeError("delete expired access token", err)
		}
		e.logger.Debugf("🔄 Deleted expired access token for client %s", accessToken.ClientID)
		return nil, types.ErrNotFound
	}

	return accessToken, nil
}

// Revoke deletes an access or refresh token owned by client. Unknown tokens and
// tokens of other clients are ignored. hint ("access_token" or "refresh_token")
// only changes the lookup order.
func (e *Engine) Revoke(ctx context.Context, client *models.Client, token, hint string) error {
	if client == nil {
		return deny(fosite.ErrInvalidClient, "no authenticated client")
	}
	if token == "" {
		return deny(fosite.ErrInvalidRequest, "token parameter missing")
	}

	lookups := []func(context.Context, *models.Client, string) (bool, error){e.revokeAccessToken, e.revokeRefreshToken}
	if hint == "refresh_token" {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	for _, revoke := range lookups {
		done, err := revoke(ctx, client, token)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	e.logger.Debugf("🔍 Revocation for client %s matched no token", client.ID)
	return nil
}

func (e *Engine) revokeAccessToken(ctx context.Context, client *models.Client, token string) (bool, error) {
	accessToken, err := e.store.GetAccessToken(ctx, token)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError("get access token", err)
	}
	if accessToken.ClientID != client.ID {
		e.logger.Warnf("⚠️  Client %s tried to revoke an access token of another client", client.ID)
		return true, nil
	}
	if err := e.store.DeleteAccessToken(ctx, token); err != nil {
		return false, storeError("delete access token", err)
	}
	e.logger.Infof("✅ Access token revoked by client %s", client.ID)
	return true, nil
}

func (e *Engine) revokeRefreshToken(ctx context.Context, client *models.Client, token string) (bool, error) {
	refreshToken, err := e.store.GetRefreshToken(ctx, token)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError("get refresh token", err)
	}
	if refreshToken.ClientID != client.ID {
		e.logger.Warnf("⚠️  Client %s tried to revoke a refresh token of another client", client.ID)
		return true, nil
	}
	if _, err := e.store.DeleteRefreshToken(ctx, token); err != nil {
		return false, storeError("delete refresh token", err)
	}
	e.logger.Infof("✅ Refresh token revoked by client %s", client.ID)
	return true, nil
}
