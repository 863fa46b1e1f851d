package store

import (
	"context"
	"fmt"

	"oauth2-token-server/internal/models"
	"oauth2-token-server/internal/scope"
	"oauth2-token-server/internal/store/storages"
	"oauth2-token-server/internal/store/types"
	"oauth2-token-server/internal/utils"
	"oauth2-token-server/pkg/config"

	"github.com/sirupsen/logrus"
)

// Storage is the backend interface shared by every store
type Storage = types.Storage

// NewStorage opens the backend selected by database.type
func NewStorage(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (Storage, error) {
	switch cfg.Type {
	case "memory", "":
		return storages.NewMemoryStore(logger), nil
	case "sqlite":
		logger.Infof("🔄 Opening SQLite database at %s", cfg.Path)
		return storages.NewSQLiteStore(cfg.Path, logger)
	case "postgres":
		logger.Info("🔄 Connecting to PostgreSQL")
		return storages.NewPostgresStore(cfg.DSN, logger)
	case "redis":
		return storages.NewRedisStore(ctx, storages.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// Seed registers the configured clients and users. Plaintext secrets and
// passwords are hashed with bcrypt, values that are already hashes are kept.
func Seed(ctx context.Context, s Storage, cfg *config.Config, logger *logrus.Logger) error {
	clients := 0
	for _, clientConfig := range cfg.Clients {
		if !clientConfig.IsEnabled() {
			logger.Infof("⚠️  Skipping disabled client: %s", clientConfig.ID)
			continue
		}

		hashedSecret, err := utils.EnsureHashed(clientConfig.Secret)
		if err != nil {
			return fmt.Errorf("failed to hash secret for client %s: %w", clientConfig.ID, err)
		}

		client := &models.Client{
			ID:            clientConfig.ID,
			Secret:        hashedSecret,
			Name:          clientConfig.Name,
			RedirectURI:   clientConfig.RedirectURI,
			Scope:         scope.Format(clientConfig.Scopes),
			Trusted:       clientConfig.Trusted,
			GrantTypes:    clientConfig.GrantTypes,
			ResponseTypes: clientConfig.ResponseTypes,
		}
		if err := s.CreateClient(ctx, client); err != nil {
			return fmt.Errorf("failed to register client %s: %w", clientConfig.ID, err)
		}
		logger.Debugf("✅ Registered client: %s", clientConfig.ID)
		clients++
	}

	for _, userConfig := range cfg.Users {
		hashedPassword, err := utils.EnsureHashed(userConfig.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password for user %s: %w", userConfig.Username, err)
		}

		user := &models.User{
			ID:           userConfig.ID,
			Username:     userConfig.Username,
			PasswordHash: hashedPassword,
			Name:         userConfig.Name,
		}
		if err := s.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to register user %s: %w", userConfig.Username, err)
		}
		logger.Debugf("✅ Registered user: %s (%s)", userConfig.Username, userConfig.ID)
	}

	logger.Infof("✅ Stores initialized with %d clients and %d users", clients, len(cfg.Users))
	return nil
}
