package handlers

import (
	"net/http"

	"github.com/ory/fosite"

	"oauth2-token-server/internal/flows"
	"oauth2-token-server/internal/utils"
)

// AuthorizeHandler manages authorization endpoint requests
type AuthorizeHandler struct {
	*Handlers
}

// NewAuthorizeHandler creates a new authorize handler
func NewAuthorizeHandler(h *Handlers) *AuthorizeHandler {
	return &AuthorizeHandler{Handlers: h}
}

// ServeHTTP validates the authorization request of an authenticated resource owner.
// Trusted clients are redirected immediately, others get a pending transaction.
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticateUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	req := &flows.AuthorizationRequest{
		ResponseType: query.Get("response_type"),
		ClientID:     query.Get("client_id"),
		RedirectURI:  query.Get("redirect_uri"),
		Scope:        query.Get("scope"),
		State:        query.Get("state"),
	}

	responseType := req.ResponseType
	if responseType != flows.ResponseTypeCode && responseType != flows.ResponseTypeToken {
		responseType = "other"
	}

	outcome, err := h.Authorizer.Authorize(r.Context(), req, user)
	if err != nil {
		h.Metrics.RecordAuthRequest(responseType, "rejected")
		h.writeFlowError(w, err, "authorize")
		return
	}

	if outcome.Pending != nil {
		h.Metrics.RecordAuthRequest(responseType, "pending")
		utils.WriteJSONResponse(w, http.StatusOK, outcome.Pending, h.Logger)
		return
	}

	h.Metrics.RecordAuthRequest(responseType, "redirected")
	http.Redirect(w, r, outcome.RedirectURL, http.StatusFound)
}

// DecisionHandler manages the resource owner's decision on a pending authorization
type DecisionHandler struct {
	*Handlers
}

// NewDecisionHandler creates a new decision handler
func NewDecisionHandler(h *Handlers) *DecisionHandler {
	return &DecisionHandler{Handlers: h}
}

// ServeHTTP handles decision submissions. allow=true approves, anything else or
// a cancel field denies.
func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticateUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, fosite.ErrInvalidRequest, "decision")
		return
	}

	transactionID := r.PostFormValue("transaction_id")
	if transactionID == "" {
		h.writeError(w, fosite.ErrInvalidRequest.WithDescription("The transaction_id parameter is missing."), "decision")
		return
	}

	_, cancelled := r.PostForm["cancel"]
	allow := r.PostFormValue("allow") == "true" && !cancelled

	redirectURL, err := h.Authorizer.Decide(r.Context(), transactionID, user, allow)
	if err != nil {
		h.writeFlowError(w, err, "decision")
		return
	}

	h.Logger.Infof("✅ Decision recorded for user %s (allow=%t)", user.ID, allow)
	http.Redirect(w, r, redirectURL, http.StatusFound)
}
