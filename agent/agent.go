// Package agent contains the pipeline stages executed under the work
// queue: harvesting remote sources into canonical records and mapping
// those through named crosswalks, with per record failure isolation and
// provenance stamping.
package agent

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Agent is the contract shared by all pipeline stages. QueueName is the
// fixed logical work queue the external scheduler routes this agent's jobs
// to. Run executes one unit of work; when generatingActivityURI is
// non-empty, every output record is stamped with a "was generated by"
// provenance statement before being persisted.
//
// Runs must be safe to execute more than once for the same logical input:
// identifier minting is deterministic, so a repeated run converges on the
// same record addresses and saves become updates.
type Agent interface {
	QueueName() string
	Run(ctx context.Context, generatingActivityURI string) error
}

// errSaving is the literal log prefix for a failed per record save.
// Operational tooling matches on it; do not change.
const errSaving = "Error saving record: %s"

func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	return logrus.StandardLogger()
}
