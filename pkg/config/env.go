package config

import (
	"os"
	"strconv"
	"strings"
)

// LoadFromEnv overrides YAML values with environment variables that are set
func (c *Config) LoadFromEnv() {
	// Server configuration overrides
	if port := os.Getenv("PORT"); port != "" {
		if portInt, err := strconv.Atoi(port); err == nil {
			c.Server.Port = portInt
		}
	}

	// Logging configuration overrides
	if loglevel := os.Getenv("LOG_LEVEL"); loglevel != "" {
		c.Logging.Level = loglevel
	}

	if logformat := os.Getenv("LOG_FORMAT"); logformat != "" {
		c.Logging.Format = logformat
	}

	if enableAudit := os.Getenv("ENABLE_AUDIT_LOGGING"); enableAudit != "" {
		c.Logging.EnableAudit = GetEnvBool("ENABLE_AUDIT_LOGGING", false)
	}

	// Database configuration overrides
	if storageType := os.Getenv("DATABASE_TYPE"); storageType != "" {
		c.Database.Type = storageType
	}

	if storagePath := os.ExpandEnv("${DATABASE_PATH}"); storagePath != "" {
		c.Database.Path = storagePath
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		c.Database.Redis.Addr = redisAddr
	}

	if os.Getenv("REDIS_DB") != "" {
		c.Database.Redis.DB = GetEnvInt("REDIS_DB", c.Database.Redis.DB)
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Database.Redis.Password = redisPassword
	}

	// Security configuration overrides
	if jwtKey := os.Getenv("JWT_SIGNING_KEY"); jwtKey != "" {
		c.Security.JWTSecret = jwtKey
	}

	// Expiry overrides must be positive
	if expiry := GetEnvInt("TOKEN_EXPIRY_SECONDS", 0); expiry > 0 {
		c.Security.TokenExpirySeconds = expiry
	}

	if authzExpiry := GetEnvInt("AUTHORIZATION_CODE_EXPIRY_SECONDS", 0); authzExpiry > 0 {
		c.Security.AuthorizationCodeExpirySeconds = authzExpiry
	}

	if match := os.Getenv("OFFLINE_ACCESS_MATCH"); match != "" {
		c.Security.OfflineAccessMatch = match
	}

	// Add support for dynamic client configuration via environment variables
	c.loadClientsFromEnv()

	// Add support for dynamic user configuration via environment variables
	c.loadUsersFromEnv()
}

// collectPrefixed groups variables like PREFIX<ID>_<PROPERTY>=value by id
func collectPrefixed(prefix string) map[string]map[string]string {
	grouped := make(map[string]map[string]string)

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		keyParts := strings.Split(parts[0], "_")
		if len(keyParts) < 3 {
			continue
		}

		id := keyParts[1]
		property := strings.Join(keyParts[2:], "_")

		if grouped[id] == nil {
			grouped[id] = make(map[string]string)
		}
		grouped[id][property] = parts[1]
	}

	return grouped
}

// loadClientsFromEnv loads additional clients from environment variables
// Format: CLIENT_<ID>_SECRET, CLIENT_<ID>_REDIRECT_URI, CLIENT_<ID>_SCOPE, ...
func (c *Config) loadClientsFromEnv() {
	for clientID, props := range collectPrefixed("CLIENT_") {
		secret, hasSecret := props["SECRET"]
		if !hasSecret {
			continue
		}

		trusted, _ := strconv.ParseBool(getOrDefault(props, "TRUSTED", "false"))

		c.Clients = append(c.Clients, ClientConfig{
			ID:            clientID,
			Secret:        secret,
			Name:          getOrDefault(props, "NAME", "Environment Client "+clientID),
			RedirectURI:   getOrDefault(props, "REDIRECT_URI", ""),
			Scopes:        filterEmpty(strings.Fields(getOrDefault(props, "SCOPE", ""))),
			Trusted:       trusted,
			GrantTypes:    filterEmpty(strings.Split(getOrDefault(props, "GRANT_TYPES", ""), ",")),
			ResponseTypes: filterEmpty(strings.Split(getOrDefault(props, "RESPONSE_TYPES", ""), ",")),
		})
	}
}

// loadUsersFromEnv loads additional users from environment variables
// Format: USER_<ID>_USERNAME, USER_<ID>_PASSWORD, USER_<ID>_NAME
func (c *Config) loadUsersFromEnv() {
	for userID, props := range collectPrefixed("USER_") {
		username, hasUsername := props["USERNAME"]
		if !hasUsername {
			continue
		}

		c.Users = append(c.Users, UserConfig{
			ID:       userID,
			Username: username,
			Password: getOrDefault(props, "PASSWORD", ""),
			Name:     getOrDefault(props, "NAME", username),
		})
	}
}

// Helper function to get environment value or default
func getOrDefault(props map[string]string, key, defaultValue string) string {
	if value, exists := props[key]; exists {
		return value
	}
	return defaultValue
}

// Helper function to filter out empty strings from slice
func filterEmpty(slice []string) []string {
	var result []string
	for _, item := range slice {
		if strings.TrimSpace(item) != "" {
			result = append(result, strings.TrimSpace(item))
		}
	}
	return result
}

// GetEnvInt gets an environment variable as integer with default
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool gets an environment variable as boolean with default
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvString gets an environment variable as string with default
func GetEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
