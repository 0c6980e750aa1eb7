// Package crosswalk holds the named transforms from provider native record
// shapes into the target aggregation schema. A crosswalk is a pure batch
// function: canonical records in, mapped records out.
package crosswalk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/miku/heron/record"
)

// Skip marks a record level condition under which a crosswalk silently
// drops a record from its output, e.g. deleted or titleless records.
type Skip struct {
	err error
}

func (s Skip) Error() string {
	return s.err.Error()
}

var (
	ErrSkipNoTitle   = Skip{err: errors.New("no title")}
	ErrSkipUnparsed  = Skip{err: errors.New("unparseable content")}
	ErrSkipNoContent = Skip{err: errors.New("no content")}
)

// IsSkip reports whether err marks a skippable record rather than a batch
// level failure.
func IsSkip(err error) bool {
	var s Skip
	return errors.As(err, &s)
}

// Func transforms a batch of canonical records. A failure here is batch
// level and fails the whole mapping run; individual records are dropped via
// Skip semantics, never by raising.
type Func func(recs []record.Canonical) ([]record.Mapped, error)

var registry = make(map[string]Func)

// Register makes a crosswalk available under a name.
func Register(name string, f Func) {
	registry[name] = f
}

// Map applies the named crosswalk to a batch of records. An unknown name is
// a batch level failure.
func Map(name string, recs []record.Canonical) ([]record.Mapped, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown crosswalk: %s", name)
	}
	return f(recs)
}

// Names returns the registered crosswalk names, sorted.
func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
