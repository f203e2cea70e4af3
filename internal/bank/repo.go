package bank

import (
	"context"
	"errors"
	"time"

	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

// DocumentName names the bank document in locks, logs and metrics.
const DocumentName = "bank"

// Repository loads and saves the Bank document at a fixed path.
type Repository struct {
	store           *filestore.Store
	path            string
	startingBalance int64
	logg            *logger.Logger
	metrics         *metrics.LedgerMetrics
}

// NewRepository binds the bank document to path.
func NewRepository(store *filestore.Store, path string, startingBalance int64, logg *logger.Logger, m *metrics.LedgerMetrics) (*Repository, error) {
	if store == nil {
		return nil, errors.New("file store required")
	}
	if path == "" {
		return nil, errors.New("bank path required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{
		store:           store,
		path:            path,
		startingBalance: startingBalance,
		logg:            logg,
		metrics:         m,
	}, nil
}

// Path returns the primary document path.
func (r *Repository) Path() string { return r.path }

// Ping reports whether the document directory is usable.
func (r *Repository) Ping(context.Context) error { return r.store.Ready(r.path) }

// Load never fails for a missing or corrupt document: it falls back to the
// backup and then to a fresh bank. Only context errors are returned.
func (r *Repository) Load(ctx context.Context) (ledger.Bank, error) {
	doc, _, err := r.load(ctx)
	return doc, err
}

func (r *Repository) load(ctx context.Context) (ledger.Bank, filestore.Source, error) {
	doc, source, err := filestore.LoadWithRecovery(ctx, r.store, r.path, ledger.NormalizeBank)
	if err != nil {
		return ledger.Bank{}, "", err
	}
	if source == filestore.SourceDefault {
		doc = ledger.NewBank(r.startingBalance)
	}
	if filestore.NeedsRepair(source, r.path) {
		r.metrics.IncRecovery(DocumentName, string(source))
		r.logg.Warn(r.logg.WithFields(r.logg.WithDocument(ctx, DocumentName, r.path), map[string]any{
			"source": string(source),
		}), "bank recovered from fallback")
	}
	return doc, source, nil
}

// Repair rewrites the primary document when the last load had to fall back
// to the backup or a fresh bank because the files on disk were unusable.
func (r *Repository) Repair(ctx context.Context, at time.Time) (filestore.Repair, error) {
	doc, source, err := r.load(ctx)
	if err != nil {
		return filestore.Repair{}, err
	}
	out := filestore.Repair{Document: DocumentName, Source: source}
	if !filestore.NeedsRepair(source, r.path) {
		return out, nil
	}
	if err := r.Save(ctx, &doc, at); err != nil {
		return out, err
	}
	out.Repaired = true
	r.logg.Info(r.logg.WithFields(r.logg.WithDocument(ctx, DocumentName, r.path), map[string]any{
		"source": string(source),
	}), "bank document repaired")
	return out, nil
}

// Save normalizes b, stamps the save time and writes it atomically. On
// success b reflects exactly what was persisted.
func (r *Repository) Save(ctx context.Context, b *ledger.Bank, at time.Time) error {
	normalized, _ := ledger.NormalizeBank(*b)
	stamp := ledger.Stamp(at)
	normalized.Meta.LastSavedUTC = &stamp

	err := r.store.Write(ctx, r.path, normalized)
	r.metrics.ObserveWrite(DocumentName, err)
	if err != nil {
		r.logg.Error(r.logg.WithDocument(ctx, DocumentName, r.path), "bank save failed", err)
		return err
	}
	*b = normalized
	return nil
}
