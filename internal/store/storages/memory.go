package storages

import (
	"context"
	"sync"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/store/types"

	"github.com/sirupsen/logrus"
)

// MemoryStore keeps every entity in process memory. Data is lost on restart.
type MemoryStore struct {
	mu                 sync.RWMutex
	clients            map[string]models.Client
	users              map[string]models.User
	usernames          map[string]string
	authorizationCodes map[string]models.AuthorizationCode
	accessTokens       map[string]models.AccessToken
	refreshTokens      map[string]models.RefreshToken
	logger             *logrus.Logger
}

// NewMemoryStore creates a new MemoryStore with initialized maps
func NewMemoryStore(logger *logrus.Logger) *MemoryStore {
	logger.Warn("⚠️  [MEMORY STORE] Using in-memory storage - all codes and tokens will be lost on restart")
	return &MemoryStore{
		clients:            make(map[string]models.Client),
		users:              make(map[string]models.User),
		usernames:          make(map[string]string),
		authorizationCodes: make(map[string]models.AuthorizationCode),
		accessTokens:       make(map[string]models.AccessToken),
		refreshTokens:      make(map[string]models.RefreshToken),
		logger:             logger,
	}
}

// Values are stored and returned by copy so callers never share state with the store.

// Client storage methods
func (m *MemoryStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, exists := m.clients[id]
	if !exists {
		return nil, types.ErrNotFound
	}
	return &client, nil
}

func (m *MemoryStore) CreateClient(ctx context.Context, client *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = *client
	return nil
}

// User storage methods
func (m *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, exists := m.users[id]
	if !exists {
		return nil, types.ErrNotFound
	}
	return &user, nil
}

func (m *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, exists := m.usernames[username]
	if !exists {
		return nil, types.ErrNotFound
	}
	user := m.users[id]
	return &user, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if previous, exists := m.users[user.ID]; exists {
		delete(m.usernames, previous.Username)
	}
	m.users[user.ID] = *user
	m.usernames[user.Username] = user.ID
	return nil
}

// Authorization code methods
func (m *MemoryStore) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorizationCodes[code.Code] = *code
	return nil
}

func (m *MemoryStore) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	authCode, exists := m.authorizationCodes[code]
	if !exists {
		return nil, types.ErrNotFound
	}
	return &authCode, nil
}

func (m *MemoryStore) DeleteAuthorizationCode(ctx context.Context, code string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.authorizationCodes[code]; !exists {
		return 0, nil
	}
	delete(m.authorizationCodes, code)
	return 1, nil
}

// Access token methods
func (m *MemoryStore) SaveAccessToken(ctx context.Context, token *models.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessTokens[token.Token] = *token
	return nil
}

func (m *MemoryStore) GetAccessToken(ctx context.Context, token string) (*models.AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accessToken, exists := m.accessTokens[token]
	if !exists {
		return nil, types.ErrNotFound
	}
	return &accessToken, nil
}

func (m *MemoryStore) DeleteAccessToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accessTokens, token)
	return nil
}

// Refresh token methods
func (m *MemoryStore) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *MemoryStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refreshToken, exists := m.refreshTokens[token]
	if !exists {
		return nil, types.ErrNotFound
	}
	return &refreshToken, nil
}

func (m *MemoryStore) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.refreshTokens[token]; !exists {
		return 0, nil
	}
	delete(m.refreshTokens, token)
	return 1, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
