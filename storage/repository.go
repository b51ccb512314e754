// Package storage provides the persistence primitive for identity records.
package storage

import "errors"

var (
	// ErrNotFound is returned when no record exists under the requested scope and key.
	ErrNotFound = errors.New("record not found")
	// ErrCorrupt is returned when stored bytes do not deserialize to the expected shape.
	ErrCorrupt = errors.New("record corrupt")
)

// Repository defines scoped read/write of named JSON records. A scope is a
// record namespace ("users", "sessions"); a key is the canonical account
// name within it. Implementations create any needed container for a scope
// or key on first write.
type Repository interface {
	Put(scope, key string, v any) error
	Get(scope, key string, v any) error
	Delete(scope, key string) error
}
