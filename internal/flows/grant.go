package flows

import (
	"context"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"

	"github.com/sirupsen/logrus"
)

// GrantIssuer mints authorization codes and implicit access tokens once the
// resource owner has approved a request. It never decides on approval itself.
type GrantIssuer struct {
	store           types.Storage
	tokens          *auth.TokenFactory
	codeTTLSeconds  int
	tokenTTLSeconds int
	audit           bool
	logger          *logrus.Logger
}

// NewGrantIssuer creates a grant issuer
func NewGrantIssuer(store types.Storage, tokens *auth.TokenFactory, codeTTLSeconds, tokenTTLSeconds int, audit bool, logger *logrus.Logger) *GrantIssuer {
	return &GrantIssuer{
		store:           store,
		tokens:          tokens,
		codeTTLSeconds:  codeTTLSeconds,
		tokenTTLSeconds: tokenTTLSeconds,
		audit:           audit,
		logger:          logger,
	}
}

// IssueCode persists a code bound to client, redirect URI, user and approved scope
func (g *GrantIssuer) IssueCode(ctx context.Context, client *models.Client, redirectURI string, user *models.User, approvedScope string) (string, error) {
	value, err := g.tokens.NewAuthorizationCode()
	if err != nil {
		return "", err
	}

	code := &models.AuthorizationCode{
		Code:        value,
		ClientID:    client.ID,
		RedirectURI: redirectURI,
		UserID:      user.ID,
		Scope:       approvedScope,
		CreatedAt:   g.tokens.Now(),
	}
	if expires := g.tokens.ExpirationFor(g.codeTTLSeconds); expires != nil {
		code.ExpiresAt = *expires
	}

	if err := g.store.SaveAuthorizationCode(ctx, code); err != nil {
		return "", storeError("save authorization code", err)
	}

	g.auditIssue("authorization_code_issued", client.ID, user.ID, approvedScope)
	return value, nil
}

// IssueImplicitToken persists an access token for the implicit grant and returns
// it with its lifetime in seconds. Implicit grants never carry a refresh token.
func (g *GrantIssuer) IssueImplicitToken(ctx context.Context, client *models.Client, user *models.User, approvedScope string) (string, int, error) {
	value, err := g.tokens.NewAccessToken()
	if err != nil {
		return "", 0, err
	}

	token := &models.AccessToken{
		Token:     value,
		ExpiresAt: g.tokens.ExpirationFor(g.tokenTTLSeconds),
		UserID:    user.ID,
		ClientID:  client.ID,
		Scope:     approvedScope,
		CreatedAt: g.tokens.Now(),
	}
	if err := g.store.SaveAccessToken(ctx, token); err != nil {
		return "", 0, storeError("save access token", err)
	}

	expiresIn := 0
	if token.ExpiresAt != nil {
		expiresIn = g.tokenTTLSeconds
	}

	g.auditIssue("implicit_token_issued", client.ID, user.ID, approvedScope)
	return value, expiresIn, nil
}

func (g *GrantIssuer) auditIssue(event, clientID, userID, grantedScope string) {
	if !g.audit {
		return
	}
	g.logger.WithFields(logrus.Fields{
		"event":     event,
		"client_id": clientID,
		"user_id":   userID,
		"scope":     grantedScope,
	}).Info("📝 Audit: grant issued")
}
