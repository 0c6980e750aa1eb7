package agent

import (
	"context"

	"github.com/miku/heron/harvest"
	"github.com/miku/heron/repo"
	"github.com/sirupsen/logrus"
)

// HarvestAgent runs one harvest pass: it pulls records from its harvester
// and persists them as outputs of the generating activity. A failed save of
// a single record is logged and the pass continues; a failed enumeration
// aborts the run.
type HarvestAgent struct {
	Harvester harvest.Harvester
	Repo      repo.Repository
	Log       logrus.FieldLogger // nil means the standard logger
}

// QueueName returns the work queue identity for harvest jobs.
func (a *HarvestAgent) QueueName() string { return "harvest" }

// Run harvests the source from the beginning of its pagination. Records are
// stamped with the generating activity before each save.
func (a *HarvestAgent) Run(ctx context.Context, generatingActivityURI string) error {
	var (
		log   = logger(a.Log)
		it    = a.Harvester.Records(ctx)
		saved int
	)
	for it.Next() {
		rec := it.Record()
		if generatingActivityURI != "" {
			rec.GeneratedBy = generatingActivityURI
		}
		if err := a.Repo.Save(ctx, &rec); err != nil {
			log.Errorf(errSaving, rec.Subject())
			continue
		}
		saved++
	}
	if err := it.Err(); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"agent": a.QueueName(),
		"saved": saved,
	}).Info("harvest pass done")
	return nil
}
