// Package repo defines the persistence contract the pipeline writes to: a
// key addressed store where records are created or updated under their own
// canonical URI.
package repo

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound means no record is stored under the requested URI.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a storage or transport failure during a save.
// Mapping and harvesting loops catch it per record, log, and continue.
type PersistenceError struct {
	URI string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save failed: %s: %v", e.URI, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Record is anything the repository can persist: addressable by a canonical
// URI, carrying an optional provenance statement and a provider identifier
// for locators.
type Record interface {
	Subject() string
	Generator() string
	Provider() string
}

// Repository is a create-or-update store keyed by record URI. Saving a
// record that carries a provenance statement also indexes it under its
// generating activity.
type Repository interface {
	Save(ctx context.Context, rec Record) error
	// Load unmarshals the record stored under uri into v.
	Load(ctx context.Context, uri string, v interface{}) error
}
