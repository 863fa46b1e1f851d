package storages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"
)

// StorageTestSuite runs comprehensive tests against any Storage implementation
type StorageTestSuite struct {
	store types.Storage
	name  string
}

// NewStorageTestSuite creates a test suite for a storage implementation
func NewStorageTestSuite(store types.Storage, name string) *StorageTestSuite {
	return &StorageTestSuite{
		store: store,
		name:  name,
	}
}

// RunAllTests executes all storage tests
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run(s.name+"/ClientOperations", s.TestClientOperations)
	t.Run(s.name+"/UserOperations", s.TestUserOperations)
	t.Run(s.name+"/AuthorizationCodes", s.TestAuthorizationCodes)
	t.Run(s.name+"/AccessTokens", s.TestAccessTokens)
	t.Run(s.name+"/RefreshTokens", s.TestRefreshTokens)
	t.Run(s.name+"/ConcurrentCodeDelete", s.TestConcurrentCodeDelete)
	t.Run(s.name+"/ConcurrentRefreshDelete", s.TestConcurrentRefreshDelete)
	t.Run(s.name+"/Ping", s.TestPing)
}

// TestClientOperations tests client create and lookup
func (s *StorageTestSuite) TestClientOperations(t *testing.T) {
	ctx := context.Background()

	client := &models.Client{
		ID:          "test-client",
		Secret:      "$2a$10$abcdefghijklmnopqrstuuJxvX0lI9Ez8ZcF9ZkvB0GQ1vMvN6qlu",
		Name:        "Test Client",
		RedirectURI: "http://localhost:8080/callback",
		Scope:       "read write",
		Trusted:     true,
		GrantTypes:  []string{"authorization_code", "refresh_token"},
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	retrieved, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("Failed to get client: %v", err)
	}

	if retrieved.ID != client.ID {
		t.Errorf("Client ID mismatch: got %s, want %s", retrieved.ID, client.ID)
	}
	if retrieved.RedirectURI != client.RedirectURI {
		t.Errorf("Redirect URI mismatch: got %s, want %s", retrieved.RedirectURI, client.RedirectURI)
	}
	if retrieved.Scope != client.Scope || !retrieved.Trusted {
		t.Errorf("Client fields mismatch: got %+v", retrieved)
	}
	if len(retrieved.GrantTypes) != 2 {
		t.Errorf("Expected 2 grant types, got %v", retrieved.GrantTypes)
	}

	// Mutating the returned value must not change the stored client
	retrieved.Name = "mutated"
	again, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("Failed to get client again: %v", err)
	}
	if again.Name != client.Name {
		t.Errorf("Stored client changed through returned value: got %s", again.Name)
	}

	// Overwrite
	client.Name = "Renamed Client"
	if err := s.store.CreateClient(ctx, client); err != nil {
		t.Fatalf("Failed to overwrite client: %v", err)
	}
	updated, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		t.Fatalf("Failed to get updated client: %v", err)
	}
	if updated.Name != "Renamed Client" {
		t.Errorf("Client name not updated: got %s", updated.Name)
	}

	if _, err := s.store.GetClient(ctx, "missing-client"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing client, got %v", err)
	}
}

// TestUserOperations tests user create, lookup by id and by username
func (s *StorageTestSuite) TestUserOperations(t *testing.T) {
	ctx := context.Background()

	user := &models.User{
		ID:           "user-1",
		Username:     "alice",
		PasswordHash: "hash",
		Name:         "Alice",
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}

	byID, err := s.store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if byID.Username != "alice" || byID.PasswordHash != "hash" {
		t.Errorf("User mismatch: got %+v", byID)
	}

	byName, err := s.store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to get user by username: %v", err)
	}
	if byName.ID != user.ID {
		t.Errorf("User ID mismatch: got %s, want %s", byName.ID, user.ID)
	}

	if _, err := s.store.GetUser(ctx, "missing-user"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing user, got %v", err)
	}
	if _, err := s.store.GetUserByUsername(ctx, "nobody"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing username, got %v", err)
	}
}

// TestAuthorizationCodes tests code save, lookup and counted delete
func (s *StorageTestSuite) TestAuthorizationCodes(t *testing.T) {
	ctx := context.Background()

	code := &models.AuthorizationCode{
		Code:        "code-abc",
		ClientID:    "test-client",
		RedirectURI: "http://localhost:8080/callback",
		UserID:      "user-1",
		Scope:       "read offline_access",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		ExpiresAt:   time.Now().UTC().Add(10 * time.Minute).Truncate(time.Second),
	}

	if err := s.store.SaveAuthorizationCode(ctx, code); err != nil {
		t.Fatalf("Failed to save authorization code: %v", err)
	}

	retrieved, err := s.store.GetAuthorizationCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("Failed to get authorization code: %v", err)
	}
	if retrieved.ClientID != code.ClientID || retrieved.RedirectURI != code.RedirectURI ||
		retrieved.UserID != code.UserID || retrieved.Scope != code.Scope {
		t.Errorf("Authorization code mismatch: got %+v, want %+v", retrieved, code)
	}
	if !retrieved.ExpiresAt.Equal(code.ExpiresAt) {
		t.Errorf("ExpiresAt mismatch: got %v, want %v", retrieved.ExpiresAt, code.ExpiresAt)
	}

	n, err := s.store.DeleteAuthorizationCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("Failed to delete authorization code: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted code, got %d", n)
	}

	n, err = s.store.DeleteAuthorizationCode(ctx, code.Code)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 on second delete, got %d", n)
	}

	if _, err := s.store.GetAuthorizationCode(ctx, code.Code); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

// TestAccessTokens tests access token save, lookup and delete
func (s *StorageTestSuite) TestAccessTokens(t *testing.T) {
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	token := &models.AccessToken{
		Token:     "access-abc",
		ExpiresAt: &expires,
		UserID:    "user-1",
		ClientID:  "test-client",
		Scope:     "read",
	}
	noExpiry := &models.AccessToken{
		Token:    "access-forever",
		UserID:   "user-1",
		ClientID: "test-client",
	}

	for _, tok := range []*models.AccessToken{token, noExpiry} {
		if err := s.store.SaveAccessToken(ctx, tok); err != nil {
			t.Fatalf("Failed to save access token %s: %v", tok.Token, err)
		}
	}

	retrieved, err := s.store.GetAccessToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("Failed to get access token: %v", err)
	}
	if retrieved.ExpiresAt == nil || !retrieved.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt mismatch: got %v, want %v", retrieved.ExpiresAt, expires)
	}
	if retrieved.UserID != token.UserID || retrieved.ClientID != token.ClientID || retrieved.Scope != token.Scope {
		t.Errorf("Access token mismatch: got %+v", retrieved)
	}

	forever, err := s.store.GetAccessToken(ctx, noExpiry.Token)
	if err != nil {
		t.Fatalf("Failed to get non-expiring access token: %v", err)
	}
	if forever.ExpiresAt != nil {
		t.Errorf("Expected nil ExpiresAt, got %v", forever.ExpiresAt)
	}

	if err := s.store.DeleteAccessToken(ctx, token.Token); err != nil {
		t.Fatalf("Failed to delete access token: %v", err)
	}
	if _, err := s.store.GetAccessToken(ctx, token.Token); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent token is not an error
	if err := s.store.DeleteAccessToken(ctx, "never-issued"); err != nil {
		t.Errorf("Deleting absent token failed: %v", err)
	}
}

// TestRefreshTokens tests refresh token save, lookup and counted delete
func (s *StorageTestSuite) TestRefreshTokens(t *testing.T) {
	ctx := context.Background()

	token := &models.RefreshToken{
		Token:    "refresh-abc",
		UserID:   "user-1",
		ClientID: "test-client",
		Scope:    "read offline_access",
	}

	if err := s.store.SaveRefreshToken(ctx, token); err != nil {
		t.Fatalf("Failed to save refresh token: %v", err)
	}

	retrieved, err := s.store.GetRefreshToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("Failed to get refresh token: %v", err)
	}
	if retrieved.Scope != token.Scope || retrieved.ClientID != token.ClientID {
		t.Errorf("Refresh token mismatch: got %+v", retrieved)
	}

	n, err := s.store.DeleteRefreshToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("Failed to delete refresh token: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted refresh token, got %d", n)
	}

	n, err = s.store.DeleteRefreshToken(ctx, token.Token)
	if err != nil {
		t.Fatalf("Second delete failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 on second delete, got %d", n)
	}
}

// TestConcurrentCodeDelete verifies that of many concurrent deletes exactly one wins
func (s *StorageTestSuite) TestConcurrentCodeDelete(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		code := fmt.Sprintf("race-code-%d", round)
		if err := s.store.SaveAuthorizationCode(ctx, &models.AuthorizationCode{
			Code:      code,
			ClientID:  "test-client",
			ExpiresAt: time.Now().Add(time.Minute),
		}); err != nil {
			t.Fatalf("Failed to save code: %v", err)
		}

		winners := raceDeletes(t, 16, func() (int64, error) {
			return s.store.DeleteAuthorizationCode(ctx, code)
		})
		if winners != 1 {
			t.Errorf("Round %d: expected exactly 1 winning delete, got %d", round, winners)
		}
	}
}

// TestConcurrentRefreshDelete verifies the same property for refresh tokens
func (s *StorageTestSuite) TestConcurrentRefreshDelete(t *testing.T) {
	ctx := context.Background()

	if err := s.store.SaveRefreshToken(ctx, &models.RefreshToken{
		Token:    "race-refresh",
		ClientID: "test-client",
	}); err != nil {
		t.Fatalf("Failed to save refresh token: %v", err)
	}

	winners := raceDeletes(t, 16, func() (int64, error) {
		return s.store.DeleteRefreshToken(ctx, "race-refresh")
	})
	if winners != 1 {
		t.Errorf("Expected exactly 1 winning delete, got %d", winners)
	}
}

// TestPing tests the health check
func (s *StorageTestSuite) TestPing(t *testing.T) {
	if err := s.store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func raceDeletes(t *testing.T, workers int, del func() (int64, error)) int64 {
	t.Helper()

	var (
		wg      sync.WaitGroup
		winners int64
		start   = make(chan struct{})
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			n, err := del()
			if err != nil {
				t.Errorf("Concurrent delete failed: %v", err)
				return
			}
			atomic.AddInt64(&winners, n)
		}()
	}

	close(start)
	wg.Wait()
	return winners
}
