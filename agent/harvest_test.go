package agent

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/miku/heron/harvest"
	"github.com/miku/heron/record"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// sliceHarvester serves fixed pages of raw documents, with an optional
// failure injected after the served pages.
type sliceHarvester struct {
	pages     [][]record.RawDoc
	container string
	failWith  error
}

type sliceCursor struct {
	h     *sliceHarvester
	index int
}

func (c *sliceCursor) Next(ctx context.Context) ([]record.RawDoc, error) {
	if c.index >= len(c.h.pages) {
		if c.h.failWith != nil {
			return nil, c.h.failWith
		}
		return nil, io.EOF
	}
	page := c.h.pages[c.index]
	c.index++
	return page, nil
}

func (h *sliceHarvester) build(doc record.RawDoc) record.Canonical {
	return record.Build(doc, h.container, h.ContentType())
}

func (h *sliceHarvester) Count(ctx context.Context) (int64, error) {
	var n int64
	for _, page := range h.pages {
		n += int64(len(page))
	}
	return n, nil
}

func (h *sliceHarvester) Records(ctx context.Context) *harvest.Iter {
	return harvest.NewIter(ctx, &sliceCursor{h: h}, h.build)
}

func (h *sliceHarvester) RecordIDs(ctx context.Context) *harvest.IDIter {
	return harvest.NewIDIter(ctx, &sliceCursor{h: h})
}

func (h *sliceHarvester) GetRecord(ctx context.Context, id string) (record.Canonical, error) {
	for _, page := range h.pages {
		for _, doc := range page {
			if doc.ID == id {
				return h.build(doc), nil
			}
		}
	}
	return record.Canonical{}, harvest.ErrNotFound
}

func (h *sliceHarvester) ContentType() string { return "application/json" }

func TestHarvestAgentRun(t *testing.T) {
	h := &sliceHarvester{
		container: "http://localhost/heron/records",
		pages: [][]record.RawDoc{
			{{ID: "doc-1", Data: []byte(`{"id": "doc-1"}`)}, {ID: "doc-2", Data: []byte(`{"id": "doc-2"}`)}},
			{{ID: "doc-3", Data: []byte(`{"id": "doc-3"}`)}},
		},
	}
	repo := newMemRepo()
	a := &HarvestAgent{Harvester: h, Repo: repo, Log: logrus.New()}
	activity := "http://localhost/heron/activities/harvest1"
	if err := a.Run(context.Background(), activity); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if n := len(repo.docs); n != 3 {
		t.Fatalf("got %d persisted records, want 3", n)
	}
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		uri := "http://localhost/heron/records/" + record.MintID(id)
		if _, ok := repo.saved(uri); !ok {
			t.Fatalf("missing %v", uri)
		}
		if gen := repo.generator(uri); gen != activity {
			t.Fatalf("got generator %v, want %v stamped before save", gen, activity)
		}
	}
}

func TestHarvestAgentSaveIsolation(t *testing.T) {
	h := &sliceHarvester{
		container: "http://localhost/heron/records",
		pages: [][]record.RawDoc{
			{{ID: "doc-1"}, {ID: "doc-2"}, {ID: "doc-3"}},
		},
	}
	bad := "http://localhost/heron/records/" + record.MintID("doc-2")
	repo := newMemRepo()
	repo.FailOn[bad] = true
	log, hook := test.NewNullLogger()
	a := &HarvestAgent{Harvester: h, Repo: repo, Log: log}
	if err := a.Run(context.Background(), ""); err != nil {
		t.Fatalf("got %v, want nil: one bad record must not fail the pass", err)
	}
	if n := len(repo.docs); n != 2 {
		t.Fatalf("got %d persisted records, want 2", n)
	}
	entries := errorEntries(hook)
	if len(entries) != 1 {
		t.Fatalf("got %d error entries, want 1", len(entries))
	}
	if want := "Error saving record: " + bad; entries[0].Message != want {
		t.Fatalf("got %q, want %q", entries[0].Message, want)
	}
}

func TestHarvestAgentEnumerationFailure(t *testing.T) {
	srcErr := &harvest.SourceError{URL: "http://example.org", Err: errors.New("connection reset")}
	h := &sliceHarvester{
		container: "http://localhost/heron/records",
		pages: [][]record.RawDoc{
			{{ID: "doc-1"}},
		},
		failWith: srcErr,
	}
	repo := newMemRepo()
	a := &HarvestAgent{Harvester: h, Repo: repo, Log: logrus.New()}
	err := a.Run(context.Background(), "")
	var se *harvest.SourceError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want the source error surfaced", err)
	}
	// Progress up to the failure stays persisted; a re-run converges on the
	// same identifiers.
	if n := len(repo.docs); n != 1 {
		t.Fatalf("got %d persisted records, want 1", n)
	}
}
