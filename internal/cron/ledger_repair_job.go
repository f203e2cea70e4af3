package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/locks"
	"github.com/starlightdeck/careon/pkg/logger"
)

// DocumentRepairer rewrites one ledger document from its fallback chain.
type DocumentRepairer interface {
	Repair(ctx context.Context, at time.Time) (filestore.Repair, error)
}

type LedgerRepairJobParams struct {
	Logger *logger.Logger
	// Documents maps the lock name of each document to its repairer.
	Documents map[string]DocumentRepairer
	Guard     locks.Guard
	Clock     func() time.Time
}

// NewLedgerRepairJob builds the job that rewrites documents served from a
// backup or unreadable on disk.
func NewLedgerRepairJob(params LedgerRepairJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Documents) == 0 {
		return nil, fmt.Errorf("at least one document required")
	}
	guard := params.Guard
	if guard == nil {
		guard = locks.Nop{}
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ledgerRepairJob{
		logg:      params.Logger,
		documents: params.Documents,
		guard:     guard,
		now:       clock,
	}, nil
}

type ledgerRepairJob struct {
	logg      *logger.Logger
	documents map[string]DocumentRepairer
	guard     locks.Guard
	now       func() time.Time
}

func (j *ledgerRepairJob) Name() string { return "ledger-repair" }

func (j *ledgerRepairJob) Run(ctx context.Context) error {
	var errs error
	repaired := 0
	for _, name := range sortedKeys(j.documents) {
		repairer := j.documents[name]
		err := j.guard.WithLock(ctx, name, func(ctx context.Context) error {
			result, err := repairer.Repair(ctx, j.now().UTC())
			if err != nil {
				return err
			}
			if result.Repaired {
				repaired++
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("repair %s: %w", name, err))
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "repaired", repaired), "ledger repair finished")
	return errs
}
