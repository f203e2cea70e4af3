// Package deposits mints and redeems one-time deposit codes against the code
// ledger document.
package deposits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/internal/locks"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

// Service defines the deposit code operations.
type Service interface {
	Mint(ctx context.Context, value int64, createdBy, note string) (string, error)
	Redeem(ctx context.Context, code, redeemedBy string) (int64, error)
	// RedeemWith consumes code and calls apply with its value before the
	// ledger is saved. An apply error leaves the code unredeemed.
	RedeemWith(ctx context.Context, code, redeemedBy string, apply func(ctx context.Context, code string, value int64) error) (int64, error)
	RecentEvents(ctx context.Context, keep int) ([]ledger.CodeEvent, error)
	Outstanding(ctx context.Context) (Outstanding, error)
	Snapshot(ctx context.Context) (ledger.CodeLedger, error)
}

// Outstanding totals codes minted but not yet redeemed.
type Outstanding struct {
	Count int   `json:"count"`
	Value int64 `json:"value"`
}

type repository interface {
	Load(ctx context.Context) (ledger.CodeLedger, error)
	Save(ctx context.Context, l *ledger.CodeLedger, at time.Time) error
}

type ServiceParams struct {
	Repo    repository
	Guard   locks.Guard
	Format  ledger.CodeFormat
	Source  ledger.CodeSource
	Metrics *metrics.LedgerMetrics
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	mu      sync.Mutex
	repo    repository
	guard   locks.Guard
	format  ledger.CodeFormat
	source  ledger.CodeSource
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("codes repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	format := params.Format
	if strings.TrimSpace(format.Prefix) == "" {
		format = ledger.DefaultCodeFormat()
	}
	source := params.Source
	if source == nil {
		source = format
	}
	guard := params.Guard
	if guard == nil {
		guard = locks.Nop{}
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		guard:   guard,
		format:  format,
		source:  source,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     clock,
	}, nil
}

// withLedger runs fn on a freshly loaded ledger. When save is set and fn
// succeeds the ledger is written back before the lock is released.
func (s *service) withLedger(ctx context.Context, save bool, fn func(ctx context.Context, l *ledger.CodeLedger, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.guard.WithLock(ctx, DocumentName, func(ctx context.Context) error {
		l, err := s.repo.Load(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		if err := fn(ctx, &l, now); err != nil {
			return err
		}
		if !save {
			return nil
		}
		return s.repo.Save(ctx, &l, now)
	})
}

func (s *service) Mint(ctx context.Context, value int64, createdBy, note string) (string, error) {
	var code string
	err := s.withLedger(ctx, true, func(_ context.Context, l *ledger.CodeLedger, now time.Time) error {
		minted, err := l.Mint(s.source, value, createdBy, note, now)
		if err != nil {
			return err
		}
		code = minted
		return nil
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncCodeEvent("mint")
	s.logg.Info(s.logg.WithFields(s.logg.WithActor(ctx, createdBy), map[string]any{
		"code":  Mask(code),
		"value": value,
	}), "deposit code minted")
	return code, nil
}

func (s *service) Redeem(ctx context.Context, code, redeemedBy string) (int64, error) {
	return s.RedeemWith(ctx, code, redeemedBy, nil)
}

func (s *service) RedeemWith(ctx context.Context, code, redeemedBy string, apply func(ctx context.Context, code string, value int64) error) (int64, error) {
	code = ledger.NormalizeCode(code)
	if code == "" || !s.format.Plausible(code) {
		s.metrics.IncRedeemFailure("invalid_code")
		return 0, ledger.ErrInvalidCode
	}

	var value int64
	err := s.withLedger(ctx, true, func(ctx context.Context, l *ledger.CodeLedger, now time.Time) error {
		v, err := l.Redeem(code, redeemedBy, now)
		if err != nil {
			return err
		}
		if apply != nil {
			if err := apply(ctx, code, v); err != nil {
				return err
			}
		}
		value = v
		return nil
	})
	if err != nil {
		if reason := failureReason(err); reason != "" {
			s.metrics.IncRedeemFailure(reason)
			s.logg.Info(s.logg.WithFields(s.logg.WithActor(ctx, redeemedBy), map[string]any{
				"code":   Mask(code),
				"reason": reason,
			}), "deposit code rejected")
		}
		return 0, err
	}

	s.metrics.IncCodeEvent("redeem")
	s.logg.Info(s.logg.WithFields(s.logg.WithActor(ctx, redeemedBy), map[string]any{
		"code":  Mask(code),
		"value": value,
	}), "deposit code redeemed")
	return value, nil
}

func (s *service) RecentEvents(ctx context.Context, keep int) ([]ledger.CodeEvent, error) {
	var events []ledger.CodeEvent
	err := s.withLedger(ctx, false, func(_ context.Context, l *ledger.CodeLedger, _ time.Time) error {
		events = l.RecentEvents(keep)
		return nil
	})
	return events, err
}

func (s *service) Outstanding(ctx context.Context) (Outstanding, error) {
	var out Outstanding
	err := s.withLedger(ctx, false, func(_ context.Context, l *ledger.CodeLedger, _ time.Time) error {
		out.Count, out.Value = l.Outstanding()
		return nil
	})
	return out, err
}

func (s *service) Snapshot(ctx context.Context) (ledger.CodeLedger, error) {
	var snapshot ledger.CodeLedger
	err := s.withLedger(ctx, false, func(_ context.Context, l *ledger.CodeLedger, _ time.Time) error {
		snapshot = *l
		return nil
	})
	return snapshot, err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrCodeNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, ledger.ErrInvalidCode):
		return "invalid_code"
	default:
		return ""
	}
}

// Mask hides all but the prefix and the last two characters of a code.
func Mask(code string) string {
	prefix, suffix, ok := strings.Cut(code, "-")
	if !ok || len(suffix) <= 2 {
		return strings.Repeat("*", len(code))
	}
	return prefix + "-" + strings.Repeat("*", len(suffix)-2) + suffix[len(suffix)-2:]
}
