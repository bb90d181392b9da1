package domain

import "errors"

var (
	ErrEmptyRecipient     = errors.New("notification recipient must not be empty")
	ErrUnknownKind        = errors.New("unknown notification kind")
	ErrMalformedRecord    = errors.New("malformed notification record")
	ErrStoreNotConfigured = errors.New("offline store is not configured")
	ErrUnknownRoom        = errors.New("unknown room")
)
