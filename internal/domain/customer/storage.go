package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrEmptyName = errors.New("customer name cannot be empty")
)

// Storage persists the whole Database as one document.
//
// Load returns an empty Database when nothing has been stored yet, creating
// the backing document as a side effect. Replace must be atomic: a concurrent
// Load observes either the previous document or the new one in full.
type Storage interface {
	Load(ctx context.Context) (*Database, error)

	Replace(ctx context.Context, db *Database) error
}
