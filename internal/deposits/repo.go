package deposits

import (
	"context"
	"errors"
	"time"

	"github.com/starlightdeck/careon/internal/filestore"
	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

// DocumentName names the code ledger in locks, logs and metrics.
const DocumentName = "codes"

// Repository loads and saves the deposit code ledger document.
type Repository struct {
	store   *filestore.Store
	path    string
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

func NewRepository(store *filestore.Store, path string, logg *logger.Logger, m *metrics.LedgerMetrics) (*Repository, error) {
	if store == nil {
		return nil, errors.New("file store required")
	}
	if path == "" {
		return nil, errors.New("codes path required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Repository{store: store, path: path, logg: logg, metrics: m}, nil
}

func (r *Repository) Path() string { return r.path }

// Ping reports whether the document directory is usable.
func (r *Repository) Ping(context.Context) error { return r.store.Ready(r.path) }

// Load follows primary, backup, then an empty ledger.
func (r *Repository) Load(ctx context.Context) (ledger.CodeLedger, error) {
	doc, _, err := r.load(ctx)
	return doc, err
}

func (r *Repository) load(ctx context.Context) (ledger.CodeLedger, filestore.Source, error) {
	doc, source, err := filestore.LoadWithRecovery(ctx, r.store, r.path, ledger.NormalizeCodeLedger)
	if err != nil {
		return ledger.CodeLedger{}, "", err
	}
	if source == filestore.SourceDefault {
		doc = ledger.NewCodeLedger()
	}
	if !filestore.NeedsRepair(source, r.path) {
		return doc, source, nil
	}
	r.metrics.IncRecovery(DocumentName, string(source))
	r.logg.Warn(r.logg.WithFields(r.logg.WithDocument(ctx, DocumentName, r.path), map[string]any{
		"source": string(source),
	}), "code ledger recovered from fallback")
	return doc, source, nil
}

// Repair rewrites the primary document from whatever the fallback chain yielded.
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
	}), "code ledger repaired")
	return out, nil
}

func (r *Repository) Save(ctx context.Context, l *ledger.CodeLedger, at time.Time) error {
	normalized, _ := ledger.NormalizeCodeLedger(*l)
	stamp := ledger.Stamp(at)
	normalized.Meta.LastSavedUTC = &stamp

	err := r.store.Write(ctx, r.path, normalized)
	r.metrics.ObserveWrite(DocumentName, err)
	if err != nil {
		r.logg.Error(r.logg.WithDocument(ctx, DocumentName, r.path), "code ledger save failed", err)
		return err
	}
	*l = normalized
	return nil
}
