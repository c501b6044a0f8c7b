package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAccessDenied  = errors.New("access denied")
	ErrInvalidState  = errors.New("invalid campaign state")
	ErrMissingTarget = errors.New("token has no target url")
)

// InvalidTokenError reports a tracking token that could not be decoded.
// It describes structure only; it says nothing about whether the ids exist.
type InvalidTokenError struct {
	Reason string
	Err    error
}

func (e *InvalidTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %v", e.Reason, e.Err)
	}
	return "invalid token: " + e.Reason
}

func (e *InvalidTokenError) Unwrap() error { return e.Err }

// TransportError reports a failed delivery attempt for one recipient.
type TransportError struct {
	CampaignID  int64
	RecipientID int64
	Err         error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: campaign %d recipient %d: %v", e.CampaignID, e.RecipientID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsInvalidToken reports whether err is, or wraps, an InvalidTokenError.
func IsInvalidToken(err error) bool {
	var ite *InvalidTokenError
	return errors.As(err, &ite)
}
