// Package prov defines the provenance query contract linking pipeline
// stages: resolving "records generated by activity X" into a lazy sequence
// of record locators.
package prov

import (
	"context"
	"fmt"

	"github.com/miku/heron/record"
)

// QueryError wraps a provenance store failure. It is fatal for the run
// whose record resolution raised it.
type QueryError struct {
	Activity string
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("provenance query failed for %s: %v", e.Activity, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// QueryClient resolves the outputs of an activity. Results stream lazily
// and in no guaranteed order; an empty result is a valid outcome.
type QueryClient interface {
	FindByActivity(ctx context.Context, activityURI string) *LocatorIter
}

// Item is one streamed result: a locator or a terminal error.
type Item struct {
	Loc record.Locator
	Err error
}

// LocatorIter streams record locators. A producer writes items onto the
// channel and closes it when done; consumers drive it scanner style.
// Consumers that abandon the stream before exhaustion must call Close so
// the producer can release its resources.
type LocatorIter struct {
	ch   <-chan Item
	stop func()
	cur  record.Locator
	err  error
}

// NewLocatorIter wraps a result channel. stop, if non-nil, tells the
// producer to shut down; it is invoked on Close and when the stream ends.
func NewLocatorIter(ch <-chan Item, stop func()) *LocatorIter {
	if stop == nil {
		stop = func() {}
	}
	return &LocatorIter{ch: ch, stop: stop}
}

// ErrIter returns an iterator that immediately fails with err.
func ErrIter(err error) *LocatorIter {
	ch := make(chan Item, 1)
	ch <- Item{Err: err}
	close(ch)
	return NewLocatorIter(ch, nil)
}

// Next advances to the next locator, returning false at the end of the
// stream or on error; check Err.
func (it *LocatorIter) Next() bool {
	if it.err != nil {
		return false
	}
	item, ok := <-it.ch
	if !ok {
		it.stop()
		return false
	}
	if item.Err != nil {
		it.err = item.Err
		it.stop()
		return false
	}
	it.cur = item.Loc
	return true
}

// Close releases the producer of a partially consumed stream. Idempotent,
// safe to call at any point.
func (it *LocatorIter) Close() error {
	it.stop()
	return nil
}

// Locator returns the current locator. Only valid after Next returned true.
func (it *LocatorIter) Locator() record.Locator { return it.cur }

// Err returns the terminal error of the stream, if any.
func (it *LocatorIter) Err() error { return it.err }
