package handlers

import (
	"net/http"

	"github.com/ory/fosite"

	"oauth2-token-server/internal/flows"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/utils"
)

// TokenHandler manages token endpoint requests
type TokenHandler struct {
	*Handlers
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(h *Handlers) *TokenHandler {
	return &TokenHandler{Handlers: h}
}

// ServeHTTP handles token requests for every supported grant type
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, fosite.ErrInvalidRequest, "token")
		return
	}

	rawGrantType := r.PostFormValue("grant_type")
	if rawGrantType == "" {
		h.Metrics.RecordTokenRequest("none", "denied")
		h.writeError(w, fosite.ErrInvalidRequest.WithDescription("The grant_type parameter is missing."), "token")
		return
	}

	grantType, _ := flows.ParseGrantType(rawGrantType)

	client, ok := h.authenticateClient(w, r, "token")
	if !ok {
		h.Metrics.RecordTokenRequest(grantType.String(), "unauthenticated")
		return
	}

	h.Logger.Debugf("🔄 Token request from client %s with grant type %s", client.ID, rawGrantType)

	grant, err := h.Engine.Exchange(r.Context(), &flows.TokenRequest{
		GrantType:    grantType,
		Client:       client,
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		RefreshToken: r.PostFormValue("refresh_token"),
		Scope:        r.PostFormValue("scope"),
	})
	if err != nil {
		status := "error"
		if _, denied := flows.AsDenial(err); denied {
			status = "denied"
		}
		h.Metrics.RecordTokenRequest(grantType.String(), status)
		h.writeFlowError(w, err, "token")
		return
	}

	h.Metrics.RecordTokenRequest(grantType.String(), "success")
	h.Metrics.RecordTokenIssued("access_token", grantType.String())
	if grant.RefreshToken != "" {
		h.Metrics.RecordTokenIssued("refresh_token", grantType.String())
	}

	utils.WriteNoStoreJSON(w, http.StatusOK, models.TokenResponse{
		AccessToken:  grant.AccessToken,
		TokenType:    "bearer",
		ExpiresIn:    grant.ExpiresIn,
		RefreshToken: grant.RefreshToken,
		Scope:        grant.Scope,
	}, h.Logger)
}
