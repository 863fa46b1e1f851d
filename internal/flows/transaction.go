package flows

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrInvalidTransaction is returned for transactions that are malformed, forged or expired
	ErrInvalidTransaction = errors.New("invalid authorization transaction")
	// ErrTransactionUsed is returned when a transaction is claimed a second time
	ErrTransactionUsed = errors.New("authorization transaction already used")
)

const transactionAudience = "oauth2-authorization-decision"

// AuthorizationTransaction is a validated authorization request waiting for the
// resource owner's decision
type AuthorizationTransaction struct {
	ID           string
	ClientID     string
	RedirectURI  string
	UserID       string
	Scope        string
	ResponseType string
	State        string
	ExpiresAt    time.Time
}

type transactionClaims struct {
	jwt.RegisteredClaims
	ClientID     string `json:"cid"`
	RedirectURI  string `json:"redirect_uri"`
	Scope        string `json:"scope,omitempty"`
	ResponseType string `json:"response_type"`
	State        string `json:"state,omitempty"`
}

// TransactionManager carries pending authorizations between the authorization
// request and the decision as HS256 signed tokens, so no server side session is
// needed. Each transaction can be claimed once per process.
type TransactionManager struct {
	key  []byte
	ttl  time.Duration
	used *cache.Cache
	now  func() time.Time
}

// NewTransactionManager creates a manager signing with key
func NewTransactionManager(key []byte, ttl time.Duration) *TransactionManager {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TransactionManager{
		key:  key,
		ttl:  ttl,
		used: cache.New(ttl, 2*ttl),
		now:  time.Now,
	}
}

// Begin signs the transaction and returns its opaque id
func (m *TransactionManager) Begin(tx *AuthorizationTransaction) (string, error) {
	now := m.now()
	tx.ID = uuid.NewString()
	tx.ExpiresAt = now.Add(m.ttl)

	claims := transactionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tx.ID,
			Subject:   tx.UserID,
			Audience:  jwt.ClaimStrings{transactionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(tx.ExpiresAt),
		},
		ClientID:     tx.ClientID,
		RedirectURI:  tx.RedirectURI,
		Scope:        tx.Scope,
		ResponseType: tx.ResponseType,
		State:        tx.State,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign authorization transaction: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, audience and expiry of a transaction id without
// consuming it
func (m *TransactionManager) Verify(transactionID string) (*AuthorizationTransaction, error) {
	if transactionID == "" {
		return nil, ErrInvalidTransaction
	}

	var claims transactionClaims
	_, err := jwt.ParseWithClaims(transactionID, &claims, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(transactionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if claims.ID == "" {
		return nil, ErrInvalidTransaction
	}

	return &AuthorizationTransaction{
		ID:           claims.ID,
		ClientID:     claims.ClientID,
		RedirectURI:  claims.RedirectURI,
		UserID:       claims.Subject,
		Scope:        claims.Scope,
		ResponseType: claims.ResponseType,
		State:        claims.State,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// Claim marks a verified transaction used. Only the first claim of an id succeeds.
func (m *TransactionManager) Claim(tx *AuthorizationTransaction) error {
	ttl := tx.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		ttl = m.ttl
	}
	if err := m.used.Add(tx.ID, struct{}{}, ttl); err != nil {
		return ErrTransactionUsed
	}
	return nil
}

// Release undoes a claim whose grant could not be issued, so the decision can be retried
func (m *TransactionManager) Release(tx *AuthorizationTransaction) {
	m.used.Delete(tx.ID)
}
