package models

import "time"

// User represents a resource owner
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash,omitempty"` // Don't include in JSON responses
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
