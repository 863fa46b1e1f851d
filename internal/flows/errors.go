package flows

import (
	"errors"
	"fmt"

	"github.com/ory/fosite"
)

// Denial is an expected negative outcome of a grant or exchange. Err is the
// wire error sent to the client, Reason is logged and never sent.
type Denial struct {
	Err    *fosite.RFC6749Error
	Reason string
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%s: %s", d.Err.ErrorField, d.Reason)
}

func (d *Denial) Unwrap() error {
	return d.Err
}

func deny(err *fosite.RFC6749Error, reason string) *Denial {
	return &Denial{Err: err, Reason: reason}
}

// denyGrant collapses every grant failure into the same invalid_grant response
func denyGrant(reason string) *Denial {
	return deny(fosite.ErrInvalidGrant, reason)
}

// StoreError wraps a failure of the token store. It is surfaced as server_error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// AsDenial returns the Denial in err's chain, if any
func AsDenial(err error) (*Denial, bool) {
	var denial *Denial
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}

// WireError maps any engine error to the RFC 6749 error that should be sent.
// Anything that is not a Denial becomes server_error.
func WireError(err error) *fosite.RFC6749Error {
	if denial, ok := AsDenial(err); ok {
		return denial.Err
	}
	return fosite.ErrServerError
}
