package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ory/fosite"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"
)

// TokenInfoHandler lets resource servers validate bearer tokens
type TokenInfoHandler struct {
	*Handlers
}

// NewTokenInfoHandler creates a new token info handler
func NewTokenInfoHandler(h *Handlers) *TokenInfoHandler {
	return &TokenInfoHandler{Handlers: h}
}

// ServeHTTP returns the audience, user and scope of a live access token.
// The token is read from the access_token query parameter or a Bearer header.
func (h *TokenInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("access_token")
	if token == "" {
		token = bearerToken(r)
	}

	accessToken, err := h.Engine.LookupAccessToken(r.Context(), token)
	if errors.Is(err, types.ErrNotFound) {
		h.Metrics.RecordError("invalid_token", "tokeninfo")
		utils.WriteNoStoreJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "invalid_token"}, h.Logger)
		return
	}
	if err != nil {
		h.Logger.Errorf("❌ Token lookup failed: %v", err)
		h.writeError(w, fosite.ErrServerError, "tokeninfo")
		return
	}

	utils.WriteNoStoreJSON(w, http.StatusOK, models.TokenInfoResponse{
		Audience:  accessToken.ClientID,
		UserID:    accessToken.UserID,
		Scope:     accessToken.Scope,
		ExpiresIn: accessToken.ExpiresIn(h.Engine.Now()),
	}, h.Logger)
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
