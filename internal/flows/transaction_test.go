package flows

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionRoundTrip(t *testing.T) {
	m := NewTransactionManager([]byte("transaction-signing-key-0123456789"), time.Minute)

	id, err := m.Begin(&AuthorizationTransaction{
		ClientID:     "C1",
		RedirectURI:  testRedirect,
		UserID:       "U1",
		Scope:        "read",
		ResponseType: ResponseTypeCode,
		State:        "xyz",
	})
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	tx, err := m.Verify(id)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if tx.ClientID != "C1" || tx.UserID != "U1" || tx.Scope != "read" || tx.State != "xyz" || tx.RedirectURI != testRedirect {
		t.Errorf("Transaction fields not preserved: %+v", tx)
	}

	// Verifying does not consume
	if _, err := m.Verify(id); err != nil {
		t.Fatalf("Second Verify failed: %v", err)
	}

	if err := m.Claim(tx); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := m.Claim(tx); !errors.Is(err, ErrTransactionUsed) {
		t.Errorf("Expected ErrTransactionUsed on replay, got %v", err)
	}

	m.Release(tx)
	if err := m.Claim(tx); err != nil {
		t.Errorf("Claim after Release failed: %v", err)
	}
}

func TestTransactionRejected(t *testing.T) {
	key := []byte("transaction-signing-key-0123456789")

	t.Run("empty", func(t *testing.T) {
		m := NewTransactionManager(key, time.Minute)
		if _, err := m.Verify(""); !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("Expected ErrInvalidTransaction, got %v", err)
		}
	})

	t.Run("tampered", func(t *testing.T) {
		m := NewTransactionManager(key, time.Minute)
		id, err := m.Begin(&AuthorizationTransaction{ClientID: "C1", UserID: "U1", ResponseType: ResponseTypeCode})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		tampered := id[:len(id)-2] + "xx"
		if _, err := m.Verify(tampered); !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("Expected ErrInvalidTransaction, got %v", err)
		}
	})

	t.Run("foreign key", func(t *testing.T) {
		other := NewTransactionManager([]byte("another-signing-key-abcdefghijklmn"), time.Minute)
		id, err := other.Begin(&AuthorizationTransaction{ClientID: "C1", UserID: "U1", ResponseType: ResponseTypeCode})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		m := NewTransactionManager(key, time.Minute)
		if _, err := m.Verify(id); !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("Expected ErrInvalidTransaction, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		m := NewTransactionManager(key, time.Minute)
		now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }

		id, err := m.Begin(&AuthorizationTransaction{ClientID: "C1", UserID: "U1", ResponseType: ResponseTypeCode})
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}

		now = now.Add(2 * time.Minute)
		if _, err := m.Verify(id); !errors.Is(err, ErrInvalidTransaction) {
			t.Errorf("Expected ErrInvalidTransaction for expired transaction, got %v", err)
		}
	})
}
