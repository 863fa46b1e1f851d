package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/storages"
	"oauth2-token-server/internal/utils"

	"github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *storages.MemoryStore {
	t.Helper()
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

	ctx := context.Background()
	if err := store.CreateClient(ctx, &models.Client{ID: "web", Secret: string(secret)}); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := store.CreateUser(ctx, &models.User{ID: "1", Username: "bob", PasswordHash: string(password)}); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return store
}

func TestTokenFactoryIdentifiers(t *testing.T) {
	f := NewTokenFactory(0, 0, 0)

	code, err := f.NewAuthorizationCode()
	if err != nil {
		t.Fatalf("NewAuthorizationCode failed: %v", err)
	}
	if len(code) != DefaultAuthorizationCodeLength {
		t.Errorf("Expected code length %d, got %d", DefaultAuthorizationCodeLength, len(code))
	}

	access, err := f.NewAccessToken()
	if err != nil {
		t.Fatalf("NewAccessToken failed: %v", err)
	}
	if len(access) != DefaultAccessTokenLength {
		t.Errorf("Expected access token length %d, got %d", DefaultAccessTokenLength, len(access))
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := f.NewIdentifier(16)
		if err != nil {
			t.Fatalf("NewIdentifier failed: %v", err)
		}
		if strings.ContainsAny(id, "+/=") {
			t.Errorf("Identifier is not URL safe: %s", id)
		}
		if seen[id] {
			t.Errorf("Duplicate identifier generated: %s", id)
		}
		seen[id] = true
	}

	if _, err := f.NewIdentifier(0); err == nil {
		t.Error("Expected error for zero length")
	}
}

func TestTokenFactoryExpiration(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f := NewTokenFactory(16, 32, 32)
	f.Clock = func() time.Time { return fixed }

	expires := f.ExpirationFor(3600)
	if expires == nil {
		t.Fatal("Expected expiration")
	}
	if !expires.Equal(fixed.Add(time.Hour)) {
		t.Errorf("Expected %v, got %v", fixed.Add(time.Hour), *expires)
	}

	if f.ExpirationFor(0) != nil {
		t.Error("Expected nil expiration for zero TTL")
	}
	if f.ExpirationFor(-5) != nil {
		t.Error("Expected nil expiration for negative TTL")
	}
}

func TestStoreIdentityVerifier(t *testing.T) {
	verifier := NewStoreIdentityVerifier(newTestStore(t))
	ctx := context.Background()

	user, err := verifier.Verify(ctx, "bob", "pw")
	if err != nil {
		t.Fatalf("Expected successful verification, got %v", err)
	}
	if user.ID != "1" {
		t.Errorf("Expected user 1, got %s", user.ID)
	}

	for _, tc := range []struct{ username, password string }{
		{"bob", "wrong"},
		{"nobody", "pw"},
		{"", "pw"},
	} {
		if _, err := verifier.Verify(ctx, tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Verify(%q, %q): expected ErrInvalidCredentials, got %v", tc.username, tc.password, err)
		}
	}
}

func TestAuthenticateClient(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	client, err := AuthenticateClient(ctx, store, "web", "s3cret")
	if err != nil {
		t.Fatalf("Expected client authentication to succeed, got %v", err)
	}
	if client.ID != "web" {
		t.Errorf("Expected client web, got %s", client.ID)
	}

	for _, tc := range []struct{ id, secret string }{
		{"web", "wrong"},
		{"web", ""},
		{"ghost", "s3cret"},
		{"", "s3cret"},
	} {
		if _, err := AuthenticateClient(ctx, store, tc.id, tc.secret); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("AuthenticateClient(%q): expected ErrInvalidCredentials, got %v", tc.id, err)
		}
	}
}

func TestExtractClientCredentials(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
		r.SetBasicAuth("web", "s3cret")
		id, secret, err := ExtractClientCredentials(r)
		if err != nil || id != "web" || secret != "s3cret" {
			t.Errorf("Unexpected result: %q %q %v", id, secret, err)
		}
	})

	t.Run("basic urlencoded", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
		r.SetBasicAuth(url.QueryEscape("my client"), url.QueryEscape("p@ss:word"))
		id, secret, err := ExtractClientCredentials(r)
		if err != nil || id != "my client" || secret != "p@ss:word" {
			t.Errorf("Unexpected result: %q %q %v", id, secret, err)
		}
	})

	t.Run("form", func(t *testing.T) {
		form := url.Values{"client_id": {"web"}, "client_secret": {"s3cret"}}
		r := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		id, secret, err := ExtractClientCredentials(r)
		if err != nil || id != "web" || secret != "s3cret" {
			t.Errorf("Unexpected result: %q %q %v", id, secret, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(""))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if _, _, err := ExtractClientCredentials(r); !errors.Is(err, ErrMissingClientCredentials) {
			t.Errorf("Expected ErrMissingClientCredentials, got %v", err)
		}
	})

	t.Run("malformed basic", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
		r.Header.Set("Authorization", "Basic not-base64!")
		if _, _, err := ExtractClientCredentials(r); err == nil {
			t.Error("Expected error for malformed basic auth")
		}
	})
}
