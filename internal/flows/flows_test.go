package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"oauth2-token-server/internal/auth"
	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store/storages"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"

	"github.com/ory/fosite"
	"github.com/sirupsen/logrus"
)

const (
	testRedirect = "https://app/cb"
	testTTL      = 3600
	testCodeTTL  = 600
)

type fixture struct {
	store  types.Storage
	engine *Engine
	issuer *GrantIssuer
	tokens *auth.TokenFactory
	now    time.Time
	client *models.Client
	other  *models.Client
	user   *models.User
	logger *logrus.Logger
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newFixture(t *testing.T, mode scope.MatchMode) *fixture {
	t.Helper()
	logger := testLogger()
	return newFixtureWithStore(t, storages.NewMemoryStore(logger), mode)
}

func newFixtureWithStore(t *testing.T, store types.Storage, mode scope.MatchMode) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := testLogger()

	f := &fixture{
		store:  store,
		now:    time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		logger: logger,
	}

	f.tokens = auth.NewTokenFactory(16, 64, 64)
	f.tokens.Clock = func() time.Time { return f.now }

	secret, err := utils.HashSecret("s3cret")
	if err != nil {
		t.Fatalf("Failed to hash secret: %v", err)
	}
	password, err := utils.HashSecret("pw")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	f.client = &models.Client{ID: "C1", Secret: string(secret), Name: "App", RedirectURI: testRedirect}
	f.other = &models.Client{ID: "C2", Secret: string(secret), RedirectURI: "https://other/cb"}
	f.user = &models.User{ID: "U1", Username: "bob", PasswordHash: string(password)}

	for _, c := range []*models.Client{f.client, f.other} {
		if err := store.CreateClient(ctx, c); err != nil {
			t.Fatalf("Failed to create client: %v", err)
		}
	}
	if err := store.CreateUser(ctx, f.user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	f.engine = NewEngine(store, auth.NewStoreIdentityVerifier(store), f.tokens, EngineConfig{
		TokenTTLSeconds: testTTL,
		Offline:         scope.NewOfflinePolicy(scope.DefaultOfflineAccess, mode),
	}, logger)
	f.issuer = NewGrantIssuer(store, f.tokens, testCodeTTL, testTTL, false, logger)

	return f
}

func (f *fixture) issueCode(t *testing.T, grantedScope string) string {
	t.Helper()
	code, err := f.issuer.IssueCode(context.Background(), f.client, testRedirect, f.user, grantedScope)
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}
	return code
}

func (f *fixture) exchangeCode(code, redirectURI string) (*TokenGrant, error) {
	return f.engine.Exchange(context.Background(), &TokenRequest{
		GrantType:   GrantAuthorizationCode,
		Client:      f.client,
		Code:        code,
		RedirectURI: redirectURI,
	})
}

func assertDenied(t *testing.T, err error, want *fosite.RFC6749Error) {
	t.Helper()
	denial, ok := AsDenial(err)
	if !ok {
		t.Fatalf("Expected denial %s, got %v", want.ErrorField, err)
	}
	if denial.Err.ErrorField != want.ErrorField {
		t.Fatalf("Expected %s, got %s (%s)", want.ErrorField, denial.Err.ErrorField, denial.Reason)
	}
}

// failingStore fails access token and code writes and records refresh token writes
type failingStore struct {
	*storages.MemoryStore
	failAccess    bool
	failGet       bool
	failCode      bool
	refreshWrites int
}

var errBackend = errors.New("backend unavailable")

func (s *failingStore) SaveAccessToken(ctx context.Context, token *models.AccessToken) error {
	if s.failAccess {
		return errBackend
	}
	return s.MemoryStore.SaveAccessToken(ctx, token)
}

func (s *failingStore) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	if s.failCode {
		return errBackend
	}
	return s.MemoryStore.SaveAuthorizationCode(ctx, code)
}

func (s *failingStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	s.refreshWrites++
	return s.MemoryStore.SaveRefreshToken(ctx, token)
}

func (s *failingStore) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	if s.failGet {
		return nil, errBackend
	}
	return s.MemoryStore.GetAuthorizationCode(ctx, code)
}
