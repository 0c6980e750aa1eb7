// Package boltrepo is a bolt backed implementation of the repository and
// provenance query contracts: records in a key addressed bucket, a
// provenance index from activity URI to generated record URIs, and an
// activity log.
package boltrepo

import (
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/miku/heron/prov"
	"github.com/miku/heron/record"
	"github.com/miku/heron/repo"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

var (
	bucketRecords    = []byte("records")
	bucketProv       = []byte("prov")
	bucketActivities = []byte("activities")
)

// Store holds records, the provenance index and activities in one bolt
// file. Safe for concurrent use by multiple goroutines.
type Store struct {
	db *bolt.DB
	// ActivityBase is the container URI under which new activities are
	// addressed.
	ActivityBase string
}

// Open opens or creates a store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketRecords, bucketProv, bucketActivities} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "create buckets")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save creates or updates a record under its own URI. A record carrying a
// provenance statement is also indexed under its generating activity, so
// later stages can resolve the activity's outputs. Re-saving a record with
// the same deterministic identifier is an update, not a duplicate.
func (s *Store) Save(ctx context.Context, rec repo.Record) error {
	uri := rec.Subject()
	if uri == "" {
		return &repo.PersistenceError{URI: uri, Err: errors.New("record without subject")}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return &repo.PersistenceError{URI: uri, Err: err}
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecords).Put([]byte(uri), b); err != nil {
			return err
		}
		if gen := rec.Generator(); gen != "" {
			idx, err := tx.Bucket(bucketProv).CreateBucketIfNotExists([]byte(gen))
			if err != nil {
				return err
			}
			return idx.Put([]byte(uri), []byte(rec.Provider()))
		}
		return nil
	})
	if err != nil {
		return &repo.PersistenceError{URI: uri, Err: err}
	}
	return nil
}

// Load unmarshals the record stored under uri into v. Returns
// repo.ErrNotFound when nothing is stored there.
func (s *Store) Load(ctx context.Context, uri string, v interface{}) error {
	var b []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketRecords).Get([]byte(uri)); raw != nil {
			b = append(b, raw...)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "load")
	}
	if b == nil {
		return repo.ErrNotFound
	}
	return json.Unmarshal(b, v)
}

// FindByActivity streams locators of every record generated by an activity,
// in bucket key order, which callers must not depend on. An activity with
// no indexed outputs yields an empty, non-error stream. The producer holds
// a read transaction until the stream is drained or closed.
func (s *Store) FindByActivity(ctx context.Context, activityURI string) *prov.LocatorIter {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan prov.Item)
	go func() {
		defer close(ch)
		err := s.db.View(func(tx *bolt.Tx) error {
			idx := tx.Bucket(bucketProv).Bucket([]byte(activityURI))
			if idx == nil {
				return nil
			}
			return idx.ForEach(func(k, v []byte) error {
				item := prov.Item{Loc: record.Locator{URI: string(k), ProviderID: string(v)}}
				select {
				case ch <- item:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
		})
		if err != nil && err != context.Canceled {
			select {
			case ch <- prov.Item{Err: &prov.QueryError{Activity: activityURI, Err: err}}:
			case <-ctx.Done():
			}
		}
	}()
	return prov.NewLocatorIter(ch, cancel)
}

// Start opens a new activity for an agent and persists it.
func (s *Store) Start(agent, opts string) (record.Activity, error) {
	act := record.NewActivity(s.ActivityBase, agent, opts)
	if err := s.putActivity(act); err != nil {
		return record.Activity{}, err
	}
	return act, nil
}

// Complete closes an activity. The activity record itself is otherwise
// immutable.
func (s *Store) Complete(uri string) error {
	act, err := s.Activity(uri)
	if err != nil {
		return err
	}
	act.EndedAt = time.Now().UTC()
	return s.putActivity(act)
}

// Activity loads one activity by URI.
func (s *Store) Activity(uri string) (record.Activity, error) {
	var act record.Activity
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActivities).Get([]byte(uri))
		if b == nil {
			return repo.ErrNotFound
		}
		return json.Unmarshal(b, &act)
	})
	return act, err
}

func (s *Store) putActivity(act record.Activity) error {
	b, err := json.Marshal(act)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActivities).Put([]byte(act.URI), b)
	})
}
