package store

import "errors"

var (
	ErrInvalidKey      = errors.New("invalid document key")
	ErrCorruptDocument = errors.New("corrupt document")
	ErrStoreWrite      = errors.New("document store write failed")
	ErrUnknownDriver   = errors.New("unknown store driver")
)
