package flows

import (
	"context"
	"errors"

	"oauth2-token-server/internal/store/types"

	"github.com/ory/fosite"
)

// exchangeAuthorizationCode redeems a code for tokens. The code is bound to the
// client and redirect URI it was issued for; a mismatch denies without consuming it.
func (e *Engine) exchangeAuthorizationCode(ctx context.Context, req *TokenRequest) (*TokenGrant, error) {
	if req.Code == "" {
		return nil, deny(fosite.ErrInvalidRequest, "code parameter missing")
	}

	code, err := e.store.GetAuthorizationCode(ctx, req.Code)
	if errors.Is(err, types.ErrNotFound) {
		return nil, denyGrant("authorization code not found")
	}
	if err != nil {
		return nil, storeError("get authorization code", err)
	}

	if code.ClientID != req.Client.ID {
		return nil, denyGrant("authorization code issued to another client")
	}
	if code.RedirectURI != req.RedirectURI {
		return nil, denyGrant("redirect_uri does not match the authorization request")
	}

	if code.Expired(e.tokens.Now()) {
		if _, err := e.store.DeleteAuthorizationCode(ctx, req.Code); err != nil {
			return nil, storeError("delete expired authorization code", err)
		}
		return nil, denyGrant("authorization code expired")
	}

	// The delete count decides the winner among concurrent exchanges of one code
	deleted, err := e.store.DeleteAuthorizationCode(ctx, req.Code)
	if err != nil {
		return nil, storeError("delete authorization code", err)
	}
	if deleted == 0 {
		return nil, denyGrant("authorization code already consumed")
	}

	return e.issueTokens(ctx, code.UserID, code.ClientID, code.Scope, true)
}
