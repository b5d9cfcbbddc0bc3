package dberrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the storage and api packages.
var (
	// ErrNotConnected is returned when an operation runs before Connect
	// or after Disconnect.
	ErrNotConnected = errors.New("database not connected")

	// ErrUserExists is returned by CreateUser when the username or email
	// is already taken.
	ErrUserExists = errors.New("username or email already exists")

	// ErrUnknownGame is returned when a game name is not one of the
	// supported arcade games (per-user high score columns are fixed).
	ErrUnknownGame = errors.New("unknown game")
)

// ConnectionError wraps failures to establish or use the connection pool.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SchemaError wraps DDL failures during InitSchema.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError wraps failures during inserts or queries. Op names the
// failing operation (e.g. "save_score").
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Connection wraps err as a ConnectionError. Returns nil for nil err.
func Connection(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Err: err}
}

// Schema wraps err as a SchemaError. Returns nil for nil err.
func Schema(err error) error {
	if err == nil {
		return nil
	}
	return &SchemaError{Err: err}
}

// Persistence wraps err as a PersistenceError for the given operation.
// Returns nil for nil err.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// IsConnection reports whether err is (or wraps) a ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
