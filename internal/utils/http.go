package utils

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"

	"oauth2-token-server/internal/models"
)

// WriteJSONResponse writes a JSON response with the given status code and data
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("❌ Error encoding JSON response: %v", err)
	}
}

// WriteNoStoreJSON writes a JSON response that must not be cached, as required for token responses
func WriteNoStoreJSON(w http.ResponseWriter, statusCode int, data interface{}, logger *logrus.Logger) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	WriteJSONResponse(w, statusCode, data, logger)
}

// WriteOAuthError writes an RFC 6749 error body. Hints and debug details stay server side.
func WriteOAuthError(w http.ResponseWriter, rfcErr *fosite.RFC6749Error, logger *logrus.Logger) {
	status := rfcErr.CodeField
	if status == 0 {
		status = http.StatusBadRequest
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	WriteNoStoreJSON(w, status, models.ErrorResponse{
		Error:            rfcErr.ErrorField,
		ErrorDescription: rfcErr.DescriptionField,
	}, logger)
}

// BuildRedirectURL appends params to the redirect URI, in the fragment when fragment is true
func BuildRedirectURL(redirectURI string, params url.Values, fragment bool) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	if fragment {
		u.Fragment = ""
		return strings.TrimSuffix(u.String(), "#") + "#" + params.Encode(), nil
	}
	query := u.Query()
	for key, values := range params {
		for _, v := range values {
			query.Add(key, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
