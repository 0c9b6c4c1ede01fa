package records

import "errors"

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrHomeRequired   = errors.New("home id required")
)
