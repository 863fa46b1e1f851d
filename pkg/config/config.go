package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`

	// Clients loaded from YAML and CLIENT_<ID>_* variables
	Clients []ClientConfig `yaml:"clients"`

	// Users loaded from YAML and USER_<ID>_* variables
	Users []UserConfig `yaml:"users"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            int `yaml:"port"`
	ReadTimeout     int `yaml:"read_timeout"`
	WriteTimeout    int `yaml:"write_timeout"`
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	JWTSecret                      string `yaml:"jwt_signing_key"`
	TokenExpirySeconds             int    `yaml:"token_expiry_seconds"`
	AuthorizationCodeExpirySeconds int    `yaml:"authorization_code_expiry_seconds"`
	TransactionExpirySeconds       int    `yaml:"transaction_expiry_seconds"`

	// Identifier lengths in characters
	AuthorizationCodeLength int `yaml:"authorization_code_length"`
	AccessTokenLength       int `yaml:"access_token_length"`
	RefreshTokenLength      int `yaml:"refresh_token_length"`

	// Offline access: scope marker that triggers refresh token issuance and how it is matched
	OfflineAccessScope string `yaml:"offline_access_scope"`
	OfflineAccessMatch string `yaml:"offline_access_match"` // "membership" or "prefix"
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	EnableAudit bool   `yaml:"enable_audit"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type  string      `yaml:"type"` // "memory", "sqlite", "postgres" or "redis"
	Path  string      `yaml:"path"` // SQLite database file path
	DSN   string      `yaml:"dsn"`  // PostgreSQL connection string
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	DB        int    `yaml:"db"`
	Password  string `yaml:"password"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ClientConfig represents a client configuration from YAML
type ClientConfig struct {
	ID            string   `yaml:"id"`
	Secret        string   `yaml:"secret"` // plaintext or bcrypt hash
	Name          string   `yaml:"name"`
	RedirectURI   string   `yaml:"redirect_uri"`
	Scopes        []string `yaml:"scopes"`
	Trusted       bool     `yaml:"trusted"`
	GrantTypes    []string `yaml:"grant_types"`
	ResponseTypes []string `yaml:"response_types"`
	Enabled       *bool    `yaml:"enabled,omitempty"` // Pointer to distinguish between false and unset
}

// UserConfig represents a user configuration from YAML
type UserConfig struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // plaintext or bcrypt hash
	Name     string `yaml:"name"`
}

// IsEnabled returns whether this client is enabled (defaults to true if not specified)
func (c ClientConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// TransactionTTL returns how long a pending authorization transaction stays valid
func (s SecurityConfig) TransactionTTL() time.Duration {
	return time.Duration(s.TransactionExpirySeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters for security (current length: %d)", len(c.Security.JWTSecret))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Security.AuthorizationCodeLength <= 0 || c.Security.AccessTokenLength <= 0 || c.Security.RefreshTokenLength <= 0 {
		return fmt.Errorf("identifier lengths must be positive")
	}

	if c.Security.OfflineAccessScope == "" {
		return fmt.Errorf("offline access scope cannot be empty")
	}

	if !contains([]string{"membership", "prefix"}, c.Security.OfflineAccessMatch) {
		return fmt.Errorf("invalid offline access match '%s', must be one of: membership, prefix", c.Security.OfflineAccessMatch)
	}

	if !contains([]string{"text", "json"}, c.Logging.Format) {
		return fmt.Errorf("invalid log format '%s', must be one of: text, json", c.Logging.Format)
	}

	// Validate clients
	seen := make(map[string]bool)
	for i, client := range c.Clients {
		if client.ID == "" {
			return fmt.Errorf("client %d: client ID is required", i)
		}
		if seen[client.ID] {
			return fmt.Errorf("client %s: duplicate client ID", client.ID)
		}
		seen[client.ID] = true

		// Skip disabled clients
		if !client.IsEnabled() {
			continue
		}

		if client.Secret == "" {
			return fmt.Errorf("client %s: client secret is required", client.ID)
		}

		for _, grantType := range client.GrantTypes {
			if !isValidGrantType(grantType) {
				return fmt.Errorf("client %s: invalid grant type: %s", client.ID, grantType)
			}
		}

		for _, responseType := range client.ResponseTypes {
			if !contains([]string{"code", "token"}, responseType) {
				return fmt.Errorf("client %s: invalid response type: %s", client.ID, responseType)
			}
		}

		if client.RedirectURI != "" {
			parsed, err := url.Parse(client.RedirectURI)
			if err != nil || !parsed.IsAbs() {
				return fmt.Errorf("client %s: redirect URI must be absolute: %s", client.ID, client.RedirectURI)
			}
			if parsed.Fragment != "" {
				return fmt.Errorf("client %s: redirect URI must not contain a fragment: %s", client.ID, client.RedirectURI)
			}
		} else if len(client.GrantTypes) == 0 || contains(client.GrantTypes, "authorization_code") {
			// Authorization code flow requires a redirect URI
			return fmt.Errorf("client %s: redirect URI required for authorization_code grant", client.ID)
		}
	}

	// Validate users
	usernames := make(map[string]bool)
	for i, user := range c.Users {
		if user.ID == "" || user.Username == "" {
			return fmt.Errorf("user %d: id and username are required", i)
		}
		if usernames[user.Username] {
			return fmt.Errorf("user %s: duplicate username", user.Username)
		}
		usernames[user.Username] = true
		if user.Password == "" {
			return fmt.Errorf("user %s: password is required", user.Username)
		}
	}

	if err := c.validateDatabaseConfig(); err != nil {
		return fmt.Errorf("database configuration: %w", err)
	}

	return nil
}

// validateDatabaseConfig validates the database configuration
func (c *Config) validateDatabaseConfig() error {
	if c.Database.Type == "" {
		return fmt.Errorf("database type is required")
	}

	validTypes := []string{"memory", "sqlite", "postgres", "redis"}
	if !contains(validTypes, c.Database.Type) {
		return fmt.Errorf("invalid database type '%s', must be one of: %s", c.Database.Type, strings.Join(validTypes, ", "))
	}

	switch c.Database.Type {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("database path is required when using sqlite database type")
		}
		if strings.Contains(c.Database.Path, "..") {
			return fmt.Errorf("database path cannot contain '..' for security reasons")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required when using postgres database type")
		}
	case "redis":
		if c.Database.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when using redis database type")
		}
	}

	return nil
}

// SetDefaults sets default values for configuration options that are not specified
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}

	if c.Security.TokenExpirySeconds == 0 {
		c.Security.TokenExpirySeconds = 3600 // 1 hour
	}
	if c.Security.AuthorizationCodeExpirySeconds == 0 {
		c.Security.AuthorizationCodeExpirySeconds = 600 // 10 minutes
	}
	if c.Security.TransactionExpirySeconds == 0 {
		c.Security.TransactionExpirySeconds = 300 // 5 minutes
	}
	if c.Security.AuthorizationCodeLength == 0 {
		c.Security.AuthorizationCodeLength = 16
	}
	if c.Security.AccessTokenLength == 0 {
		c.Security.AccessTokenLength = 256
	}
	if c.Security.RefreshTokenLength == 0 {
		c.Security.RefreshTokenLength = 256
	}
	if c.Security.OfflineAccessScope == "" {
		c.Security.OfflineAccessScope = "offline_access"
	}
	if c.Security.OfflineAccessMatch == "" {
		c.Security.OfflineAccessMatch = "membership"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Database.Type == "" {
		c.Database.Type = "memory"
	}
	if c.Database.Path == "" && c.Database.Type == "sqlite" {
		c.Database.Path = "oauth2.db"
	}
	if c.Database.Redis.KeyPrefix == "" {
		c.Database.Redis.KeyPrefix = "oauth2:"
	}
}

func isValidGrantType(grantType string) bool {
	validGrantTypes := []string{
		"authorization_code",
		"client_credentials",
		"password",
		"refresh_token",
	}
	return contains(validGrantTypes, grantType)
}

// Helper function to check if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
