package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)

// Dispatch
var (
	ErrInvalidPhone      = errors.New("invalid phone number")
	ErrNoValidRecipients = errors.New("no valid phone numbers found in selection")
	ErrEmptyMessage      = errors.New("message body is empty")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplatesReadOnly = errors.New("templates are read-only without a database")
)

// Pairing
var (
	ErrChannelClosed     = errors.New("connection channel closed")
	ErrPairingNotAllowed = errors.New("pairing code can only be requested while awaiting a credential")
	ErrPhoneRequired     = errors.New("phone number required")
)

// SendError is a failure of one recipient inside a batch. It is recorded in
// the ledger and never aborts the batch.
type SendError struct {
	Phone string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Phone, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
