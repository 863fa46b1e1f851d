// Package scope parses space delimited OAuth2 scope strings and answers the policy
// questions the grant and exchange flows ask about them.
package scope

import (
	"fmt"
	"strings"

	"github.com/ory/fosite"
)

// DefaultOfflineAccess is the scope value that asks for a refresh token
const DefaultOfflineAccess = "offline_access"

// MatchMode selects how offline access is detected in a scope string
type MatchMode string

const (
	// MatchMembership treats the scope as a set and looks for the marker anywhere in it
	MatchMembership MatchMode = "membership"
	// MatchPrefix requires the raw scope string to begin with the marker
	MatchPrefix MatchMode = "prefix"
)

// ParseMatchMode validates a configured match mode. Empty selects membership.
func ParseMatchMode(value string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", MatchMembership:
		return MatchMembership, nil
	case MatchPrefix:
		return MatchPrefix, nil
	default:
		return "", fmt.Errorf("invalid offline access match mode: %s", value)
	}
}

// Parse splits a wire scope string into its tokens
func Parse(raw string) fosite.Arguments {
	return fosite.Arguments(fosite.RemoveEmpty(strings.Split(raw, " ")))
}

// Format joins scope tokens back into the wire format
func Format(scopes fosite.Arguments) string {
	return strings.Join(scopes, " ")
}

// Normalize collapses repeated separators so stored scopes compare predictably
func Normalize(raw string) string {
	return Format(Parse(raw))
}

// OfflinePolicy decides whether a granted scope entitles the client to a refresh token
type OfflinePolicy struct {
	Marker string
	Mode   MatchMode
}

// NewOfflinePolicy builds a policy, defaulting the marker to offline_access
func NewOfflinePolicy(marker string, mode MatchMode) OfflinePolicy {
	if marker == "" {
		marker = DefaultOfflineAccess
	}
	if mode == "" {
		mode = MatchMembership
	}
	return OfflinePolicy{Marker: marker, Mode: mode}
}

// OfflineAccess reports whether raw signals offline access.
// In prefix mode "offline_access read" matches but "read offline_access" does not.
func (p OfflinePolicy) OfflineAccess(raw string) bool {
	if raw == "" {
		return false
	}
	if p.Mode == MatchPrefix {
		return strings.HasPrefix(raw, p.Marker)
	}
	return Parse(raw).Has(p.Marker)
}

// Allowed reports whether every requested scope is covered by the client's registered scope.
// A client without a registered scope may request anything.
func Allowed(clientScope, requested string) bool {
	registered := Parse(clientScope)
	if len(registered) == 0 {
		return true
	}
	for _, needle := range Parse(requested) {
		if !fosite.HierarchicScopeStrategy(registered, needle) {
			return false
		}
	}
	return true
}
