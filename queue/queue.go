// Package queue is the job transport for pipeline agents: enqueue a unit
// of work by queue name, dequeue and run it under a worker pool. Each run
// gets its own activity; outputs are stamped with that activity's URI.
package queue

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

var bucketJobs = []byte("jobs")

// Job is one queued unit of work: the target queue plus the agent options
// recorded on the activity.
type Job struct {
	ID    uint64 `json:"id"`
	Queue string `json:"queue"`
	Opts  string `json:"opts,omitempty"`
}

// Queue is a bolt backed job queue. Jobs are dequeued in enqueue order.
type Queue struct {
	db *bolt.DB
}

// Open opens or creates a queue at path.
func Open(path string) (*Queue, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open queue")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "create bucket")
	}
	return &Queue{db: db}, nil
}

// Close closes the underlying database.
func (q *Queue) Close() error { return q.db.Close() }

// Enqueue appends a job for a queue and returns its id.
func (q *Queue) Enqueue(queueName, opts string) (uint64, error) {
	var id uint64
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		job := Job{ID: seq, Queue: queueName, Opts: opts}
		v, err := json.Marshal(job)
		if err != nil {
			return err
		}
		return b.Put(itob(seq), v)
	})
	if err != nil {
		return 0, errors.Wrap(err, "enqueue")
	}
	return id, nil
}

// Dequeue removes and returns the oldest job, or nil when the queue is
// empty.
func (q *Queue) Dequeue() (*Job, error) {
	var job *Job
	err := q.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketJobs).Cursor()
		k, v := c.First()
		if k == nil {
			return nil
		}
		var j Job
		if err := json.Unmarshal(v, &j); err != nil {
			return err
		}
		job = &j
		return c.Delete()
	})
	if err != nil {
		return nil, errors.Wrap(err, "dequeue")
	}
	return job, nil
}

// Len returns the number of queued jobs.
func (q *Queue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketJobs).Stats().KeyN
		return nil
	})
	return n, err
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
