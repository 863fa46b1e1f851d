package models

import (
	"time"
)

// Client represents a registered OAuth2 client
type Client struct {
	ID          string `json:"client_id"`
	Secret      string `json:"client_secret,omitempty"` // bcrypt hash, never plaintext
	Name        string `json:"name,omitempty"`
	RedirectURI string `json:"redirect_uri"`
	// Scope is the space delimited scope the client may be granted. Empty means unrestricted.
	Scope         string    `json:"scope,omitempty"`
	Trusted       bool      `json:"trusted"`
	GrantTypes    []string  `json:"grant_types,omitempty"`
	ResponseTypes []string  `json:"response_types,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// AllowsGrantType reports whether the client may use the given token endpoint grant type.
// A client without an explicit list may use all of them.
func (c *Client) AllowsGrantType(grantType string) bool {
	if len(c.GrantTypes) == 0 {
		return true
	}
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// AllowsResponseType reports whether the client may request the given response type
func (c *Client) AllowsResponseType(responseType string) bool {
	if len(c.ResponseTypes) == 0 {
		return true
	}
	for _, rt := range c.ResponseTypes {
		if rt == responseType {
			return true
		}
	}
	return false
}

// ClientSummary is the public view of a client shown on a pending authorization
type ClientSummary struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Summary returns the public view of the client
func (c *Client) Summary() ClientSummary {
	return ClientSummary{ID: c.ID, Name: c.Name}
}
