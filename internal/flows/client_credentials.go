package flows

import (
	"context"

	"oauth2-token-server/internal/scope"

	"github.com/ory/fosite"
)

// exchangeClientCredentials issues an access token to the client itself.
// No user is bound and no refresh token is ever issued.
func (e *Engine) exchangeClientCredentials(ctx context.Context, req *TokenRequest) (*TokenGrant, error) {
	requested := scope.Normalize(req.Scope)
	if !scope.Allowed(req.Client.Scope, requested) {
		return nil, deny(fosite.ErrInvalidScope, "requested scope exceeds client scope")
	}

	return e.issueTokens(ctx, "", req.Client.ID, requested, false)
}
