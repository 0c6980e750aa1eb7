package agent

import (
	"context"
	"errors"
	"sync"

	"github.com/miku/heron/prov"
	"github.com/miku/heron/record"
	"github.com/miku/heron/repo"
)

// memRepo is an in-memory repository capturing what agents persist.
// FailOn makes saves for a given subject fail, for isolation tests.
type memRepo struct {
	mu     sync.Mutex
	docs   map[string]repo.Record
	gens   map[string]string // subject to generator at save time
	FailOn map[string]bool
	loads  int
}

func newMemRepo() *memRepo {
	return &memRepo{
		docs:   make(map[string]repo.Record),
		gens:   make(map[string]string),
		FailOn: make(map[string]bool),
	}
}

func (r *memRepo) Save(ctx context.Context, rec repo.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	uri := rec.Subject()
	if r.FailOn[uri] {
		return &repo.PersistenceError{URI: uri, Err: errors.New("disk full")}
	}
	r.docs[uri] = rec
	r.gens[uri] = rec.Generator()
	return nil
}

func (r *memRepo) Load(ctx context.Context, uri string, v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	rec, ok := r.docs[uri]
	if !ok {
		return repo.ErrNotFound
	}
	c, ok := rec.(*record.Canonical)
	if !ok {
		return errors.New("not a canonical record")
	}
	if out, ok := v.(*record.Canonical); ok {
		*out = *c
		return nil
	}
	return errors.New("unsupported target")
}

func (r *memRepo) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

func (r *memRepo) saved(uri string) (repo.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.docs[uri]
	return rec, ok
}

func (r *memRepo) generator(uri string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[uri]
}

// memQuery streams a fixed locator list, like a provenance index would.
type memQuery struct {
	locs []record.Locator
}

func (q *memQuery) FindByActivity(ctx context.Context, activityURI string) *prov.LocatorIter {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan prov.Item)
	go func() {
		defer close(ch)
		for _, loc := range q.locs {
			select {
			case ch <- prov.Item{Loc: loc}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return prov.NewLocatorIter(ch, cancel)
}
