package flows

import (
	"context"
	"errors"

	"oauth2-token-server/internal/store/types"

	"github.com/ory/fosite"
)

// exchangeRefreshToken mints a new access token bound to the refresh token's
// stored user, client and scope. The refresh token stays valid and is not rotated;
// a requested scope parameter is ignored.
func (e *Engine) exchangeRefreshToken(ctx context.Context, req *TokenRequest) (*TokenGrant, error) {
	if req.RefreshToken == "" {
		return nil, deny(fosite.ErrInvalidRequest, "refresh_token parameter missing")
	}

	refreshToken, err := e.store.GetRefreshToken(ctx, req.RefreshToken)
	if errors.Is(err, types.ErrNotFound) {
		return nil, denyGrant("refresh token not found")
	}
	if err != nil {
		return nil, storeError("get refresh token", err)
	}

	if refreshToken.ClientID != req.Client.ID {
		return nil, denyGrant("refresh token issued to another client")
	}

	return e.issueTokens(ctx, refreshToken.UserID, refreshToken.ClientID, refreshToken.Scope, false)
}
