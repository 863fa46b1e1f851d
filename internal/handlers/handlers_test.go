package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/flows"
	"oauth2-token-server/internal/metrics"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store/storages"
	"oauth2-token-server/internal/utils"
)

const (
	clientRedirect  = "https://app/cb"
	trustedRedirect = "https://trusted/cb"
)

func newTestHandlers(t *testing.T) (*Handlers, http.Handler) {
	t.Helper()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	store := storages.NewMemoryStore(logger)

	secret, err := utils.HashSecret("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash secret: %v", err)
	}
	password, err := utils.HashSecret("pw")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	clients := []*models.Client{
		{ID: "C1", Secret: string(secret), Name: "App", RedirectURI: clientRedirect},
		{ID: "T1", Secret: string(secret), Name: "Trusted", RedirectURI: trustedRedirect, Trusted: true},
	}
	for _, c := range clients {
		if err := store.CreateClient(ctx, c); err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
	}
	if err := store.CreateUser(ctx, &models.User{ID: "U1", Username: "bob", PasswordHash: string(password)}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	tokens := auth.NewTokenFactory(16, 64, 64)
	identities := auth.NewStoreIdentityVerifier(store)
	engine := flows.NewEngine(store, identities, tokens, flows.EngineConfig{
		TokenTTLSeconds: 3600,
		Offline:         scope.NewOfflinePolicy(scope.DefaultOfflineAccess, scope.MatchMembership),
	}, logger)
	issuer := flows.NewGrantIssuer(store, tokens, 600, 3600, false, logger)
	transactions := flows.NewTransactionManager([]byte("transaction-signing-key-0123456789"), time.Minute)

	h := &Handlers{
		Store:       store,
		Engine:      engine,
		Authorizer:  flows.NewAuthorizer(store, issuer, transactions, logger),
		Identities:  identities,
		Metrics:     metrics.NewMetricsCollector(logger),
		Logger:      logger,
		StorageType: "memory",
	}
	return h, h.Router()
}

func postForm(router http.Handler, path string, form url.Values, clientID, clientSecret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if clientID != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func authorize(t *testing.T, router http.Handler, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+query.Encode(), nil)
	req.SetBasicAuth("bob", "pw")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func codeFromLocation(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if rec.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Invalid Location header: %v", err)
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatalf("No code in redirect %s", location)
	}
	return code
}

func TestTokenEndpointPasswordGrant(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := postForm(router, "/oauth/token", url.Values{
		"grant_type": {"password"},
		"username":   {"bob"},
		"password":   {"pw"},
		"scope":      {"offline_access read"},
	}, "C1", "s3cret")

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", rec.Header().Get("Cache-Control"))
	}

	var response models.TokenResponse
	decode(t, rec, &response)
	if response.TokenType != "bearer" || response.AccessToken == "" || response.RefreshToken == "" {
		t.Errorf("Unexpected token response: %+v", response)
	}
	if response.ExpiresIn != 3600 || response.Scope != "offline_access read" {
		t.Errorf("Unexpected lifetime or scope: %+v", response)
	}
}

func TestTokenEndpointClientAuthentication(t *testing.T) {
	_, router := newTestHandlers(t)
	form := url.Values{"grant_type": {"client_credentials"}}

	rec := postForm(router, "/oauth/token", form, "C1", "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("Expected WWW-Authenticate header")
	}
	var errResp models.ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Error != "invalid_client" {
		t.Errorf("Expected invalid_client, got %q", errResp.Error)
	}

	rec = postForm(router, "/oauth/token", form, "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", rec.Code)
	}

	// Form credentials are accepted as well
	withForm := url.Values{"grant_type": {"client_credentials"}, "client_id": {"C1"}, "client_secret": {"s3cret"}}
	rec = postForm(router, "/oauth/token", withForm, "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with form credentials, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTokenEndpointErrors(t *testing.T) {
	_, router := newTestHandlers(t)

	tests := []struct {
		name   string
		form   url.Values
		status int
		error  string
	}{
		{"missing grant type", url.Values{}, http.StatusBadRequest, "invalid_request"},
		{"unsupported grant type", url.Values{"grant_type": {"urn:ietf:params:oauth:grant-type:device_code"}}, http.StatusBadRequest, "unsupported_grant_type"},
		{"wrong password", url.Values{"grant_type": {"password"}, "username": {"bob"}, "password": {"nope"}}, http.StatusBadRequest, "invalid_grant"},
		{"unknown code", url.Values{"grant_type": {"authorization_code"}, "code": {"missing"}, "redirect_uri": {clientRedirect}}, http.StatusBadRequest, "invalid_grant"},
		{"unknown refresh token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"missing"}}, http.StatusBadRequest, "invalid_grant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(router, "/oauth/token", tt.form, "C1", "s3cret")
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			var errResp models.ErrorResponse
			decode(t, rec, &errResp)
			if errResp.Error != tt.error {
				t.Errorf("Expected %s, got %s", tt.error, errResp.Error)
			}
		})
	}
}

func TestAuthorizationCodeFlow(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := authorize(t, router, url.Values{
		"response_type": {"code"},
		"client_id":     {"T1"},
		"scope":         {"offline_access"},
		"state":         {"xyz"},
	})
	code := codeFromLocation(t, rec)

	exchange := url.Values{"grant_type": {"authorization_code"}, "code": {code}, "redirect_uri": {trustedRedirect}}
	rec = postForm(router, "/oauth/token", exchange, "T1", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var first models.TokenResponse
	decode(t, rec, &first)
	if first.RefreshToken == "" {
		t.Fatal("Expected a refresh token for offline_access")
	}

	rec = postForm(router, "/oauth/token", exchange, "T1", "s3cret")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected code replay to fail, got %d", rec.Code)
	}

	rec = postForm(router, "/oauth/token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {first.RefreshToken}}, "T1", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected refresh to succeed, got %d: %s", rec.Code, rec.Body.String())
	}
	var refreshed models.TokenResponse
	decode(t, rec, &refreshed)
	if refreshed.AccessToken == first.AccessToken || refreshed.RefreshToken != "" {
		t.Errorf("Unexpected refresh response: %+v", refreshed)
	}
}

func TestAuthorizeDecision(t *testing.T) {
	_, router := newTestHandlers(t)

	begin := func() string {
		rec := authorize(t, router, url.Values{"response_type": {"code"}, "client_id": {"C1"}, "state": {"s"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected pending authorization, got %d: %s", rec.Code, rec.Body.String())
		}
		var pending models.PendingAuthorization
		decode(t, rec, &pending)
		if pending.Client.ID != "C1" || pending.RedirectURI != clientRedirect || pending.TransactionID == "" {
			t.Fatalf("Unexpected pending authorization: %+v", pending)
		}
		return pending.TransactionID
	}

	submit := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/oauth/authorize/decision", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth("bob", "pw")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allow", func(t *testing.T) {
		rec := submit(url.Values{"transaction_id": {begin()}, "allow": {"true"}})
		code := codeFromLocation(t, rec)

		exchange := url.Values{"grant_type": {"authorization_code"}, "code": {code}, "redirect_uri": {clientRedirect}}
		if rec := postForm(router, "/oauth/token", exchange, "C1", "s3cret"); rec.Code != http.StatusOK {
			t.Fatalf("Expected code exchange to succeed, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cancel", func(t *testing.T) {
		rec := submit(url.Values{"transaction_id": {begin()}, "allow": {"true"}, "cancel": {"Deny"}})
		if rec.Code != http.StatusFound {
			t.Fatalf("Expected 302, got %d", rec.Code)
		}
		location, _ := url.Parse(rec.Header().Get("Location"))
		if location.Query().Get("error") != "access_denied" || location.Query().Get("state") != "s" {
			t.Errorf("Expected access_denied redirect, got %s", location)
		}
	})

	t.Run("missing transaction", func(t *testing.T) {
		rec := submit(url.Values{"allow": {"true"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestAuthorizeRequiresResourceOwner(t *testing.T) {
	_, router := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize?response_type=code&client_id=C1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("Expected 401 challenge, got %d", rec.Code)
	}

	// Unknown client is reported directly, never redirected
	rec = authorize(t, router, url.Values{"response_type": {"code"}, "client_id": {"nope"}, "redirect_uri": {"https://evil/cb"}})
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("Location") != "" {
		t.Errorf("Expected invalid_client without redirect, got %d", rec.Code)
	}
}

func TestTokenInfoAndRevoke(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := postForm(router, "/oauth/token", url.Values{"grant_type": {"password"}, "username": {"bob"}, "password": {"pw"}, "scope": {"read"}}, "C1", "s3cret")
	var grant models.TokenResponse
	decode(t, rec, &grant)

	info := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/tokeninfo", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec = info(grant.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tokenInfo models.TokenInfoResponse
	decode(t, rec, &tokenInfo)
	if tokenInfo.Audience != "C1" || tokenInfo.UserID != "U1" || tokenInfo.Scope != "read" || tokenInfo.ExpiresIn <= 0 {
		t.Errorf("Unexpected token info: %+v", tokenInfo)
	}

	rec = postForm(router, "/api/revoke", url.Values{"token": {grant.AccessToken}}, "C1", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected revoke to succeed, got %d", rec.Code)
	}

	rec = info(grant.AccessToken)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for revoked token, got %d", rec.Code)
	}
	var errResp models.ErrorResponse
	decode(t, rec, &errResp)
	if errResp.Error != "invalid_token" {
		t.Errorf("Expected invalid_token, got %q", errResp.Error)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, router := newTestHandlers(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected healthy, got %d", rec.Code)
	}
	var health map[string]interface{}
	decode(t, rec, &health)
	if health["status"] != "healthy" || health["storage"] != "memory" {
		t.Errorf("Unexpected health response: %v", health)
	}

	postForm(router, "/oauth/token", url.Values{"grant_type": {"client_credentials"}}, "C1", "s3cret")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"oauth2_token_requests_total", "oauth2_tokens_issued_total", "oauth2_http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Metric %s not exposed", name)
		}
	}
}
