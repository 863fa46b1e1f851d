package flows

import (
	"context"
	"errors"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/scope"

	"github.com/ory/fosite"
)

// exchangePassword issues tokens for resource owner credentials
func (e *Engine) exchangePassword(ctx context.Context, req *TokenRequest) (*TokenGrant, error) {
	if req.Username == "" || req.Password == "" {
		return nil, deny(fosite.ErrInvalidRequest, "username or password parameter missing")
	}

	user, err := e.identities.Verify(ctx, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return nil, denyGrant("resource owner credentials rejected")
	}
	if err != nil {
		return nil, storeError("verify resource owner", err)
	}

	requested := scope.Normalize(req.Scope)
	if !scope.Allowed(req.Client.Scope, requested) {
		return nil, deny(fosite.ErrInvalidScope, "requested scope exceeds client scope")
	}

	return e.issueTokens(ctx, user.ID, req.Client.ID, requested, true)
}
