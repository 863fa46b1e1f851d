package handlers

import (
	"net/http"

	"github.com/ory/fosite"
)

// RevokeHandler manages OAuth2 token revocation requests
type RevokeHandler struct {
	*Handlers
}

// NewRevokeHandler creates a new revoke handler
func NewRevokeHandler(h *Handlers) *RevokeHandler {
	return &RevokeHandler{Handlers: h}
}

// ServeHTTP handles token revocation requests (RFC 7009)
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, fosite.ErrInvalidRequest, "revoke")
		return
	}

	client, ok := h.authenticateClient(w, r, "revoke")
	if !ok {
		h.Metrics.RecordRevokeRequest("unauthenticated")
		return
	}

	err := h.Engine.Revoke(r.Context(), client, r.PostFormValue("token"), r.PostFormValue("token_type_hint"))
	if err != nil {
		h.Metrics.RecordRevokeRequest("error")
		h.writeFlowError(w, err, "revoke")
		return
	}

	h.Metrics.RecordRevokeRequest("success")
	w.WriteHeader(http.StatusOK)
}
