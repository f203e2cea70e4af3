package cron

import (
	"context"
	"fmt"

	"github.com/starlightdeck/careon/internal/deposits"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

type outstandingReader interface {
	Outstanding(ctx context.Context) (deposits.Outstanding, error)
}

type CodeAuditJobParams struct {
	Logger  *logger.Logger
	Codes   outstandingReader
	Metrics *metrics.JobMetrics
}

// NewCodeAuditJob builds the job that publishes unredeemed code totals.
func NewCodeAuditJob(params CodeAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("codes service required")
	}
	return &codeAuditJob{
		logg:    params.Logger,
		codes:   params.Codes,
		metrics: params.Metrics,
	}, nil
}

type codeAuditJob struct {
	logg    *logger.Logger
	codes   outstandingReader
	metrics *metrics.JobMetrics
}

func (j *codeAuditJob) Name() string { return "code-audit" }

func (j *codeAuditJob) Run(ctx context.Context) error {
	outstanding, err := j.codes.Outstanding(ctx)
	if err != nil {
		return fmt.Errorf("code audit: %w", err)
	}
	j.metrics.SetOutstanding(outstanding.Count, outstanding.Value)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outstanding_codes": outstanding.Count,
		"outstanding_value": outstanding.Value,
	}), "code audit finished")
	return nil
}
