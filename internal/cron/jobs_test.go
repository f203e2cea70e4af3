package cron

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starlightdeck/careon/internal/bank"
	"github.com/starlightdeck/careon/internal/deposits"
	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

type stubRepairer struct {
	result filestore.Repair
	err    error
	calls  int
}

func (s *stubRepairer) Repair(context.Context, time.Time) (filestore.Repair, error) {
	s.calls++
	return s.result, s.err
}

type recordingGuard struct {
	keys []string
}

func (g *recordingGuard) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	g.keys = append(g.keys, key)
	return fn(ctx)
}

func TestLedgerRepairJobRepairsBankFromBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	require.NoError(t, os.WriteFile(filestore.BackupPath(path), []byte(`{"balance": 70, "history": []}`), 0o644))

	repo, err := bank.NewRepository(filestore.New(nil), path, 25, logger.Nop(), nil)
	require.NoError(t, err)

	guard := &recordingGuard{}
	job, err := NewLedgerRepairJob(LedgerRepairJobParams{
		Logger:    logger.Nop(),
		Documents: map[string]DocumentRepairer{"bank": repo},
		Guard:     guard,
	})
	require.NoError(t, err)
	require.Equal(t, "ledger-repair", job.Name())
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"bank"}, guard.keys)
	b, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(70), b.Balance)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLedgerRepairJobContinuesPastFailures(t *testing.T) {
	broken := &stubRepairer{err: errors.New("disk full")}
	healthy := &stubRepairer{result: filestore.Repair{Document: "codes", Source: filestore.SourcePrimary}}

	job, err := NewLedgerRepairJob(LedgerRepairJobParams{
		Logger:    logger.Nop(),
		Documents: map[string]DocumentRepairer{"bank": broken, "codes": healthy},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repair bank: disk full")
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, healthy.calls)
}

func TestNewLedgerRepairJobValidates(t *testing.T) {
	_, err := NewLedgerRepairJob(LedgerRepairJobParams{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewLedgerRepairJob(LedgerRepairJobParams{Documents: map[string]DocumentRepairer{"bank": &stubRepairer{}}})
	require.Error(t, err)
}

func TestCodeAuditJobPublishesOutstanding(t *testing.T) {
	ctx := context.Background()
	repo, err := deposits.NewRepository(filestore.New(nil), filepath.Join(t.TempDir(), "codes.json"), logger.Nop(), nil)
	require.NoError(t, err)
	codes, err := deposits.NewService(deposits.ServiceParams{Repo: repo, Logger: logger.Nop()})
	require.NoError(t, err)

	first, err := codes.Mint(ctx, 50, "admin", "")
	require.NoError(t, err)
	_, err = codes.Mint(ctx, 30, "admin", "")
	require.NoError(t, err)
	_, err = codes.Redeem(ctx, first, "bob")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	job, err := NewCodeAuditJob(CodeAuditJobParams{Logger: logger.Nop(), Codes: codes, Metrics: metrics.NewJobMetrics(reg)})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetGauge() != nil {
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(t, float64(1), values["careon_outstanding_codes"])
	assert.Equal(t, float64(30), values["careon_outstanding_code_value"])
}
