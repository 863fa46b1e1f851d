package storages

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
)

// PropertyTestSuite runs property-based tests with random data
type PropertyTestSuite struct {
	store types.Storage
	name  string
	rand  *rand.Rand
}

// NewPropertyTestSuite creates a property test suite
func NewPropertyTestSuite(store types.Storage, name string) *PropertyTestSuite {
	return &PropertyTestSuite{
		store: store,
		name:  name,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// TestRandomCodeRoundTrip stores random codes and checks every binding survives
func (p *PropertyTestSuite) TestRandomCodeRoundTrip(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		code := &models.AuthorizationCode{
			Code:        fmt.Sprintf("prop-code-%d-%d", i, p.rand.Int63()),
			ClientID:    fmt.Sprintf("client-%d", p.rand.Intn(5)),
			RedirectURI: fmt.Sprintf("http://localhost:%d/callback", 8080+p.rand.Intn(1000)),
			UserID:      fmt.Sprintf("user-%d", p.rand.Intn(5)),
			Scope:       p.randomScope(),
			ExpiresAt:   time.Now().UTC().Add(time.Duration(1+p.rand.Intn(600)) * time.Second).Truncate(time.Second),
		}

		if err := p.store.SaveAuthorizationCode(ctx, code); err != nil {
			t.Fatalf("Failed to save random code %s: %v", code.Code, err)
		}

		retrieved, err := p.store.GetAuthorizationCode(ctx, code.Code)
		if err != nil {
			t.Fatalf("Failed to get random code %s: %v", code.Code, err)
		}

		if retrieved.ClientID != code.ClientID || retrieved.RedirectURI != code.RedirectURI ||
			retrieved.UserID != code.UserID || retrieved.Scope != code.Scope {
			t.Errorf("Code binding mismatch: got %+v, want %+v", retrieved, code)
		}

		if n, err := p.store.DeleteAuthorizationCode(ctx, code.Code); err != nil || n != 1 {
			t.Errorf("Expected single delete of %s, got n=%d err=%v", code.Code, n, err)
		}
	}
}

// TestRandomTokenRoundTrip stores random access and refresh tokens
func (p *PropertyTestSuite) TestRandomTokenRoundTrip(t *testing.T) {
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		scope := p.randomScope()
		access := &models.AccessToken{
			Token:    fmt.Sprintf("prop-access-%d-%d", i, p.rand.Int63()),
			ClientID: "prop-client",
			Scope:    scope,
		}
		if p.rand.Float32() < 0.5 {
			access.UserID = "prop-user"
		}
		if p.rand.Float32() < 0.7 {
			expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
			access.ExpiresAt = &expires
		}

		if err := p.store.SaveAccessToken(ctx, access); err != nil {
			t.Fatalf("Failed to save random access token: %v", err)
		}

		retrieved, err := p.store.GetAccessToken(ctx, access.Token)
		if err != nil {
			t.Fatalf("Failed to get random access token: %v", err)
		}
		if retrieved.UserID != access.UserID || retrieved.Scope != access.Scope {
			t.Errorf("Access token mismatch: got %+v, want %+v", retrieved, access)
		}
		if (retrieved.ExpiresAt == nil) != (access.ExpiresAt == nil) {
			t.Errorf("ExpiresAt presence mismatch for %s", access.Token)
		}

		refresh := &models.RefreshToken{
			Token:    fmt.Sprintf("prop-refresh-%d-%d", i, p.rand.Int63()),
			UserID:   access.UserID,
			ClientID: access.ClientID,
			Scope:    scope,
		}
		if err := p.store.SaveRefreshToken(ctx, refresh); err != nil {
			t.Fatalf("Failed to save random refresh token: %v", err)
		}
		gotRefresh, err := p.store.GetRefreshToken(ctx, refresh.Token)
		if err != nil {
			t.Fatalf("Failed to get random refresh token: %v", err)
		}
		if gotRefresh.Scope != scope {
			t.Errorf("Refresh scope mismatch: got %q, want %q", gotRefresh.Scope, scope)
		}
	}
}

func (p *PropertyTestSuite) randomScope() string {
	scopes := []string{"read", "write", "profile", "email", "offline_access"}
	selected := ""
	for _, s := range scopes {
		if p.rand.Float32() < 0.5 {
			if selected != "" {
				selected += " "
			}
			selected += s
		}
	}
	return selected
}

// TestAllPropertyTests runs property tests against all storage backends
func TestAllPropertyTests(t *testing.T) {
	for _, backend := range storageBackends() {
		t.Run(fmt.Sprintf("PropertyTests/%s", backend.name), func(t *testing.T) {
			store, cleanup := backend.store(t)
			if store == nil {
				t.Skipf("%s not available for testing", backend.name)
				return
			}
			defer cleanup()

			suite := NewPropertyTestSuite(store, backend.name)
			suite.TestRandomCodeRoundTrip(t)
			suite.TestRandomTokenRoundTrip(t)
		})
	}
}
