package agent

import (
	"context"
	"errors"

	"github.com/miku/heron/crosswalk"
	"github.com/miku/heron/prov"
	"github.com/miku/heron/record"
	"github.com/miku/heron/repo"
	"github.com/sirupsen/logrus"
)

// MapperAgent transforms the outputs of an upstream activity through a
// named crosswalk: it resolves its input records via the provenance query
// client, maps the batch, mints an identifier for each result, stamps
// generation provenance and persists, isolating per record failures.
type MapperAgent struct {
	// Name of the crosswalk to apply.
	Name string
	// Generator is the activity URI whose outputs are pulled as input.
	Generator string
	Query     prov.QueryClient
	Repo      repo.Repository
	// MappedBase is the container URI mapped record addresses are minted
	// under.
	MappedBase string
	// Input overrides record resolution for callers that already hold the
	// records, e.g. tests.
	Input []record.Canonical
	Log   logrus.FieldLogger // nil means the standard logger
}

var errNoQueryClient = errors.New("no provenance query client configured")

// QueueName returns the work queue identity for mapping jobs.
func (a *MapperAgent) QueueName() string { return "mapping" }

// Records lazily resolves the agent's input: locators of records generated
// by the configured activity, dereferenced one by one as the caller
// advances. Consuming the first element does not load the rest.
func (a *MapperAgent) Records(ctx context.Context) *RecordIter {
	if a.Query == nil {
		return &RecordIter{err: &prov.QueryError{Activity: a.Generator, Err: errNoQueryClient}}
	}
	return &RecordIter{
		ctx:  ctx,
		locs: a.Query.FindByActivity(ctx, a.Generator),
		repo: a.Repo,
	}
}

// Run resolves the input records, applies the crosswalk to the whole batch,
// then mints, stamps and saves each mapped record in sequence. A crosswalk
// or resolution failure fails the run; a single record's minting or save
// failure is logged with the record's identity and the run continues.
func (a *MapperAgent) Run(ctx context.Context, generatingActivityURI string) error {
	log := logger(a.Log)
	recs := a.Input
	if recs == nil {
		it := a.Records(ctx)
		defer it.Close()
		for it.Next() {
			recs = append(recs, it.Record())
		}
		if err := it.Err(); err != nil {
			return err
		}
	}
	mapped, err := crosswalk.Map(a.Name, recs)
	if err != nil {
		return err
	}
	var saved int
	for i := range mapped {
		m := &mapped[i]
		if err := a.save(ctx, m, generatingActivityURI); err != nil {
			log.Errorf(errSaving, logID(m))
			continue
		}
		saved++
	}
	log.WithFields(logrus.Fields{
		"agent":   a.QueueName(),
		"mapping": a.Name,
		"saved":   saved,
		"failed":  len(mapped) - saved,
	}).Info("mapping run done")
	return nil
}

// save mints the record identity and persists it, attaching the provenance
// statement before the save, never after. An unminted record is never
// persisted.
func (a *MapperAgent) save(ctx context.Context, m *record.Mapped, generatingActivityURI string) error {
	if err := m.MintID(a.MappedBase); err != nil {
		return err
	}
	if generatingActivityURI != "" {
		m.GeneratedBy = generatingActivityURI
	}
	return a.Repo.Save(ctx, m)
}

// logID names a record in error logs: its subject when minted, otherwise
// the address of its originating record.
func logID(m *record.Mapped) string {
	if m.URI != "" {
		return m.URI
	}
	if len(m.Sources) > 0 {
		return m.Sources[0].URI
	}
	return "(no subject)"
}

// RecordIter streams canonical records by following locators from a
// provenance query and loading each from the repository on demand.
type RecordIter struct {
	ctx  context.Context
	locs *prov.LocatorIter
	repo repo.Repository
	cur  record.Canonical
	err  error
}

// Next advances to the next input record, returning false at the end of the
// locator stream or on the first resolution error; check Err. A locator
// whose record cannot be loaded is a resolution failure, not a skippable
// record.
func (it *RecordIter) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.locs.Next() {
		it.err = it.locs.Err()
		return false
	}
	loc := it.locs.Locator()
	var rec record.Canonical
	if err := it.repo.Load(it.ctx, loc.URI, &rec); err != nil {
		it.err = err
		it.locs.Close()
		return false
	}
	it.cur = rec
	return true
}

// Record returns the current record. Only valid after Next returned true.
func (it *RecordIter) Record() record.Canonical { return it.cur }

// Err returns the first error encountered during resolution.
func (it *RecordIter) Err() error { return it.err }

// Close releases the underlying locator stream. Required when the iterator
// is abandoned before exhaustion; a no-op otherwise.
func (it *RecordIter) Close() error {
	if it.locs != nil {
		return it.locs.Close()
	}
	return nil
}
