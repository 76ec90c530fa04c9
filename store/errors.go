package store

import "errors"

var (
	ErrNotFound       = errors.New("document not found")
	ErrAlreadyExists  = errors.New("document already exists")
	ErrClosed         = errors.New("store is closed")
	ErrReadAfterWrite = errors.New("transaction reads must precede writes")
)
