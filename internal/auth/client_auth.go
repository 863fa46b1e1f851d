package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"
)

// ErrMissingClientCredentials is returned when a request carries no client_id at all
var ErrMissingClientCredentials = errors.New("client_id is required")

// ExtractClientCredentials extracts client credentials from request.
// HTTP Basic takes precedence over client_id/client_secret form fields.
func ExtractClientCredentials(r *http.Request) (string, string, error) {
	// Check for Basic Authentication in Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Basic") {
			payload, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				return "", "", errors.New("invalid basic auth encoding")
			}

			// Split username:password
			creds := strings.SplitN(string(payload), ":", 2)
			if len(creds) != 2 {
				return "", "", errors.New("invalid basic auth format")
			}

			// RFC 6749 2.3.1: both parts are form-urlencoded
			clientID, err := url.QueryUnescape(creds[0])
			if err != nil {
				return "", "", errors.New("invalid basic auth client_id")
			}
			clientSecret, err := url.QueryUnescape(creds[1])
			if err != nil {
				return "", "", errors.New("invalid basic auth client_secret")
			}

			return clientID, clientSecret, nil
		}
	}

	// Check for client credentials in request body
	if err := r.ParseForm(); err != nil {
		return "", "", errors.New("failed to parse form")
	}

	clientID := r.PostFormValue("client_id")
	clientSecret := r.PostFormValue("client_secret")

	if clientID == "" {
		return "", "", ErrMissingClientCredentials
	}

	return clientID, clientSecret, nil
}

// AuthenticateClient looks up the client and checks its secret against the stored bcrypt hash.
// Unknown clients and wrong secrets both yield ErrInvalidCredentials.
func AuthenticateClient(ctx context.Context, clients types.ClientStorage, clientID, clientSecret string) (*models.Client, error) {
	if clientID == "" {
		return nil, ErrInvalidCredentials
	}

	client, err := clients.GetClient(ctx, clientID)
	if errors.Is(err, types.ErrNotFound) {
		compareDummy(clientSecret)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	if clientSecret == "" || !utils.ValidateSecret(clientSecret, []byte(client.Secret)) {
		return nil, ErrInvalidCredentials
	}

	return client, nil
}
