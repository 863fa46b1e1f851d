package handlers

import (
	"errors"
	"net/http"

	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/flows"
	"oauth2-token-server/internal/metrics"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"
)

// Handlers holds all the dependencies needed by HTTP handlers
type Handlers struct {
	Store      types.Storage
	Engine     *flows.Engine
	Authorizer *flows.Authorizer
	Identities auth.IdentityVerifier
	Metrics    *metrics.MetricsCollector
	Logger     *logrus.Logger

	// StorageType is reported by the health check
	StorageType string
}

// authenticateClient runs client authentication for the token and revocation
// endpoints. On failure the error response has already been written.
func (h *Handlers) authenticateClient(w http.ResponseWriter, r *http.Request, endpoint string) (*models.Client, bool) {
	clientID, clientSecret, err := auth.ExtractClientCredentials(r)
	if err != nil {
		h.Logger.Warnf("⚠️  Client credentials missing or malformed: %v", err)
		h.writeError(w, fosite.ErrInvalidClient, endpoint)
		return nil, false
	}

	client, err := auth.AuthenticateClient(r.Context(), h.Store, clientID, clientSecret)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.Logger.Warnf("⚠️  Client authentication failed for %s", clientID)
		h.writeError(w, fosite.ErrInvalidClient, endpoint)
		return nil, false
	}
	if err != nil {
		h.Logger.Errorf("❌ Client lookup failed for %s: %v", clientID, err)
		h.writeError(w, fosite.ErrServerError, endpoint)
		return nil, false
	}

	return client, true
}

// authenticateUser checks the resource owner's HTTP Basic credentials
func (h *Handlers) authenticateUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	username, password, ok := r.BasicAuth()
	if ok {
		user, err := h.Identities.Verify(r.Context(), username, password)
		if err == nil {
			return user, true
		}
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.Logger.Errorf("❌ Resource owner verification failed: %v", err)
			h.writeError(w, fosite.ErrServerError, "authorize")
			return nil, false
		}
		h.Logger.Warnf("⚠️  Resource owner authentication failed for %s", username)
	}

	w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	utils.WriteJSONResponse(w, http.StatusUnauthorized, models.ErrorResponse{
		Error:            fosite.ErrAccessDenied.ErrorField,
		ErrorDescription: "Resource owner authentication required.",
	}, h.Logger)
	return nil, false
}

// writeFlowError writes the wire error for an engine or authorizer failure
func (h *Handlers) writeFlowError(w http.ResponseWriter, err error, endpoint string) {
	if denial, ok := flows.AsDenial(err); ok {
		h.Logger.Debugf("🔍 %s denied: %s", endpoint, denial.Reason)
	} else {
		h.Logger.Errorf("❌ %s failed: %v", endpoint, err)
	}
	h.writeError(w, flows.WireError(err), endpoint)
}

func (h *Handlers) writeError(w http.ResponseWriter, rfcErr *fosite.RFC6749Error, endpoint string) {
	h.Metrics.RecordError(rfcErr.ErrorField, endpoint)
	utils.WriteOAuthError(w, rfcErr, h.Logger)
}
