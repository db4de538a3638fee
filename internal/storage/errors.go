package storage

import "errors"

// Sentinel errors returned by the run store.
var (
	ErrNotFound      = errors.New("run not found")
	ErrAlreadyExists = errors.New("run already exists")
)
