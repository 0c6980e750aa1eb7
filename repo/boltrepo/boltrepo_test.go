package boltrepo

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/miku/heron/record"
	"github.com/miku/heron/repo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "heron.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	s.ActivityBase = "http://localhost/heron/activities"
	return s
}

func TestSaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	rec := record.Canonical{
		ID:          "abc",
		URI:         "http://localhost/heron/records/abc",
		ProviderID:  "doc-1",
		Content:     []byte(`{"id": "doc-1"}`),
		ContentType: "application/json",
	}
	if err := s.Save(ctx, &rec); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	var got record.Canonical
	if err := s.Load(ctx, rec.URI, &got); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if !cmp.Equal(got, rec) {
		t.Fatalf("got %v, want %v", got, rec)
	}
	// Re-saving under the same address is an update, not a duplicate.
	rec.Content = []byte(`{"id": "doc-1", "v": 2}`)
	if err := s.Save(ctx, &rec); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if err := s.Load(ctx, rec.URI, &got); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if !cmp.Equal(got.Content, rec.Content) {
		t.Fatalf("got %s, want updated content", got.Content)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := openTestStore(t)
	var got record.Canonical
	err := s.Load(context.Background(), "http://localhost/heron/records/missing", &got)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveWithoutSubject(t *testing.T) {
	s := openTestStore(t)
	var pe *repo.PersistenceError
	err := s.Save(context.Background(), &record.Canonical{})
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want a PersistenceError", err)
	}
}

func TestFindByActivity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	activity := "http://localhost/heron/activities/run1"
	other := "http://localhost/heron/activities/run2"
	recs := []record.Canonical{
		{URI: "http://localhost/heron/records/a", ProviderID: "p-a", GeneratedBy: activity},
		{URI: "http://localhost/heron/records/b", ProviderID: "p-b", GeneratedBy: activity},
		{URI: "http://localhost/heron/records/c", ProviderID: "p-c", GeneratedBy: other},
		{URI: "http://localhost/heron/records/d", ProviderID: "p-d"},
	}
	for i := range recs {
		if err := s.Save(ctx, &recs[i]); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	it := s.FindByActivity(ctx, activity)
	var got []record.Locator
	for it.Next() {
		got = append(got, it.Locator())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].URI < got[j].URI })
	want := []record.Locator{
		{ProviderID: "p-a", URI: "http://localhost/heron/records/a"},
		{ProviderID: "p-b", URI: "http://localhost/heron/records/b"},
	}
	if !cmp.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFindByActivityEmpty(t *testing.T) {
	s := openTestStore(t)
	it := s.FindByActivity(context.Background(), "http://localhost/heron/activities/nothing")
	if it.Next() {
		t.Fatalf("expected an empty stream")
	}
	if err := it.Err(); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestFindByActivityCancel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	activity := "http://localhost/heron/activities/run1"
	for _, uri := range []string{"a", "b", "c"} {
		rec := record.Canonical{URI: "http://localhost/heron/records/" + uri, GeneratedBy: activity}
		if err := s.Save(ctx, &rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	cctx, cancel := context.WithCancel(ctx)
	it := s.FindByActivity(cctx, activity)
	if !it.Next() {
		t.Fatalf("expected at least one locator, err: %v", it.Err())
	}
	cancel()
	for it.Next() {
	}
	// A cancelled consumer just sees the stream end; cancellation is not a
	// store failure.
	if err := it.Err(); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestFindByActivityAbandoned(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	activity := "http://localhost/heron/activities/run1"
	for _, uri := range []string{"a", "b", "c"} {
		rec := record.Canonical{URI: "http://localhost/heron/records/" + uri, GeneratedBy: activity}
		if err := s.Save(ctx, &rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	before := runtime.NumGoroutine()
	it := s.FindByActivity(ctx, activity)
	if !it.Next() {
		t.Fatalf("expected at least one locator, err: %v", it.Err())
	}
	// Consuming one element and walking away must not pin the producer and
	// its read transaction; Close releases both.
	if err := it.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("producer still running after Close, %d goroutines, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(10 * time.Millisecond)
	}
	// The store stays usable, nothing holds the database.
	rec := record.Canonical{URI: "http://localhost/heron/records/d", GeneratedBy: activity}
	if err := s.Save(ctx, &rec); err != nil {
		t.Fatalf("save after close: %v", err)
	}
}

func TestActivityLifecycle(t *testing.T) {
	s := openTestStore(t)
	act, err := s.Start("agent.HarvestAgent", `{"source": "oai"}`)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if act.URI == "" || act.StartedAt.IsZero() {
		t.Fatalf("incomplete activity: %+v", act)
	}
	if act.Ended() {
		t.Fatalf("new activity must not be ended")
	}
	other, err := s.Start("agent.HarvestAgent", `{"source": "oai"}`)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if act.URI == other.URI {
		t.Fatalf("two runs share an activity address: %v", act.URI)
	}
	if err := s.Complete(act.URI); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	got, err := s.Activity(act.URI)
	if err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if !got.Ended() {
		t.Fatalf("completed activity must be ended: %+v", got)
	}
	if got.Agent != "agent.HarvestAgent" || got.Opts != `{"source": "oai"}` {
		t.Fatalf("activity lost its account: %+v", got)
	}
}

func TestCompleteUnknown(t *testing.T) {
	s := openTestStore(t)
	err := s.Complete("http://localhost/heron/activities/missing")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
