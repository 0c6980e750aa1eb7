// Package harvest pulls records from remote sources. A harvester lazily
// enumerates a source, builds canonical records with deterministically
// minted identifiers, and supports point lookups by provider identifier.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/miku/heron/record"
)

var (
	// ErrNotFound means a requested record does not exist at the source.
	ErrNotFound = errors.New("record not found")
	// ErrTooManyPages means the configured page cap was hit before the
	// source reported exhaustion; likely a misbehaving or misconfigured
	// source that never returns an empty page.
	ErrTooManyPages = errors.New("page limit exceeded")
)

// SourceError wraps a transport or protocol failure while talking to a
// remote source. It aborts the current harvest pass; a retried harvest
// restarts from the beginning.
type SourceError struct {
	URL string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.URL, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ProtocolError is an application level error response from a source, e.g.
// an OAI-PMH error element.
type ProtocolError struct {
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("source error: %s: %s", e.Code, e.Message)
}

// Doer abstracts https://pkg.go.dev/net/http#Client.Do.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Harvester enumerates records from a remote source. Records and RecordIDs
// are lazy and restartable: each call begins pagination from the configured
// start, never from where a prior call left off.
type Harvester interface {
	Count(ctx context.Context) (int64, error)
	Records(ctx context.Context) *Iter
	RecordIDs(ctx context.Context) *IDIter
	GetRecord(ctx context.Context, id string) (record.Canonical, error)
	ContentType() string
}

// Cursor fetches raw documents one page at a time. Exhaustion is signalled
// with io.EOF. A cursor advances its own copy of the page options; the
// options it was constructed from stay untouched.
type Cursor interface {
	Next(ctx context.Context) ([]record.RawDoc, error)
}

// Iter iterates canonical records built from a cursor, one document at a
// time, fetching the next page only when the current one is drained.
type Iter struct {
	ctx    context.Context
	cursor Cursor
	build  func(record.RawDoc) record.Canonical
	buf    []record.RawDoc
	cur    record.Canonical
	err    error
	done   bool
}

// NewIter wraps a cursor and a build step into a record iterator.
func NewIter(ctx context.Context, cursor Cursor, build func(record.RawDoc) record.Canonical) *Iter {
	return &Iter{ctx: ctx, cursor: cursor, build: build}
}

// Next advances to the next record, fetching a page when needed. It returns
// false when the source is exhausted or an error occurred; check Err.
func (it *Iter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for len(it.buf) == 0 {
		docs, err := it.cursor.Next(it.ctx)
		if err == io.EOF {
			it.done = true
			return false
		}
		if err != nil {
			it.err = err
			return false
		}
		it.buf = docs
	}
	doc := it.buf[0]
	it.buf = it.buf[1:]
	it.cur = it.build(doc)
	return true
}

// Record returns the current record. Only valid after Next returned true.
func (it *Iter) Record() record.Canonical { return it.cur }

// Err returns the first error encountered during iteration.
func (it *Iter) Err() error { return it.err }

// IDIter iterates provider native identifiers with the same pagination
// mechanics as Iter, without building full records.
type IDIter struct {
	ctx    context.Context
	cursor Cursor
	buf    []record.RawDoc
	cur    string
	err    error
	done   bool
}

// NewIDIter wraps a cursor into an identifier iterator.
func NewIDIter(ctx context.Context, cursor Cursor) *IDIter {
	return &IDIter{ctx: ctx, cursor: cursor}
}

func (it *IDIter) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	for len(it.buf) == 0 {
		docs, err := it.cursor.Next(it.ctx)
		if err == io.EOF {
			it.done = true
			return false
		}
		if err != nil {
			it.err = err
			return false
		}
		it.buf = docs
	}
	it.cur = it.buf[0].ID
	it.buf = it.buf[1:]
	return true
}

// ID returns the current identifier. Only valid after Next returned true.
func (it *IDIter) ID() string { return it.cur }

func (it *IDIter) Err() error { return it.err }
