package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/miku/heron/agent"
	"github.com/miku/heron/record"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Builder constructs an agent for a queue from a job's options JSON.
type Builder func(opts string) (agent.Agent, error)

// ActivityLog starts and closes activities around agent runs.
type ActivityLog interface {
	Start(agent, opts string) (record.Activity, error)
	Complete(uri string) error
}

// Worker drains a queue with a pool of goroutines. For every job it starts
// an activity, runs the agent with that activity's URI, and closes the
// activity. A failed run is reported at error level and eligible for the
// scheduler's own retry policy; per record errors inside the run are
// already handled by the agent and count as success here.
type Worker struct {
	Queue    *Queue
	Log      ActivityLog
	Builders map[string]Builder
	Poll     time.Duration      // dequeue poll interval, default 250ms
	Logger   logrus.FieldLogger // nil means the standard logger
}

func (w *Worker) poll() time.Duration {
	if w.Poll > 0 {
		return w.Poll
	}
	return 250 * time.Millisecond
}

func (w *Worker) logger() logrus.FieldLogger {
	if w.Logger != nil {
		return w.Logger
	}
	return logrus.StandardLogger()
}

// Run processes jobs until the context is cancelled. With cancellation,
// in-flight runs stop issuing new fetches promptly; partial progress stays
// persisted and a re-run converges on the same identifiers.
func (w *Worker) Run(ctx context.Context, workers int) error {
	if workers < 1 {
		workers = 1
	}
	jobs := make(chan Job)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			job, err := w.Queue.Dequeue()
			if err != nil {
				return err
			}
			if job == nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(w.poll()):
				}
				continue
			}
			select {
			case jobs <- *job:
			case <-ctx.Done():
				return nil
			}
		}
	})
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for job := range jobs {
				w.runJob(ctx, job)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunOnce drains the currently queued jobs sequentially and returns. Used
// by tools that enqueue and process in one go.
func (w *Worker) RunOnce(ctx context.Context) error {
	for {
		job, err := w.Queue.Dequeue()
		if err != nil {
			return err
		}
		if job == nil {
			return nil
		}
		w.runJob(ctx, *job)
	}
}

func (w *Worker) runJob(ctx context.Context, job Job) {
	log := w.logger().WithFields(logrus.Fields{
		"job":   job.ID,
		"queue": job.Queue,
	})
	builder, ok := w.Builders[job.Queue]
	if !ok {
		log.Errorf("no agent registered for queue: %s", job.Queue)
		return
	}
	ag, err := builder(job.Opts)
	if err != nil {
		log.Errorf("agent setup failed: %v", err)
		return
	}
	act, err := w.Log.Start(fmt.Sprintf("%T", ag), job.Opts)
	if err != nil {
		log.Errorf("activity start failed: %v", err)
		return
	}
	log = log.WithFields(logrus.Fields{"activity": act.URI})
	if err := ag.Run(ctx, act.URI); err != nil {
		log.Errorf("run failed: %v", err)
	} else {
		log.Info("run done")
	}
	if err := w.Log.Complete(act.URI); err != nil {
		log.Errorf("activity complete failed: %v", err)
	}
}
