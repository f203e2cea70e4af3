// Package bank runs every user action against the Bank document as a single
// load, mutate and save cycle.
package bank

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/starlightdeck/careon/internal/ledger"
	"github.com/starlightdeck/careon/internal/locks"
	"github.com/starlightdeck/careon/pkg/config"
	"github.com/starlightdeck/careon/pkg/enums"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

const (
	maxPhraseRunes = 20
	maxUserRunes   = 16

	PhraseDonationNote = "phrase donation (SLDNF)"
	DevtoolTGIF        = "TGIF"
	DevtoolTGIFNote    = "devtool-tgif"
	DevtoolTGIFAmount  = 5
)

// Service defines the bank operations used by controllers and other services.
type Service interface {
	Snapshot(ctx context.Context) (ledger.Bank, error)
	Summary(ctx context.Context) (ledger.Summary, error)
	Recent(ctx context.Context, keep int) ([]ledger.Transaction, error)
	Phrases(ctx context.Context, limit int) ([]string, error)
	Spend(ctx context.Context, cost int64, note string) (bool, error)
	Earn(ctx context.Context, amount int64, note string) error
	Award(ctx context.Context, note string, amount int64) (bool, error)
	DonatePhrase(ctx context.Context, phrase, user string) (Donation, error)
	ApplyDevtool(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, fn func(b *ledger.Bank, now time.Time) error) (ledger.Bank, error)
}

type repository interface {
	Load(ctx context.Context) (ledger.Bank, error)
	Save(ctx context.Context, b *ledger.Bank, at time.Time) error
}

// Donation reports the outcome of DonatePhrase. Accepted is false when the
// balance could not cover the cost; the bank is unchanged in that case.
type Donation struct {
	Accepted bool   `json:"accepted"`
	Phrase   string `json:"phrase"`
	User     string `json:"user,omitempty"`
	Cost     int64  `json:"cost"`
	Balance  int64  `json:"balance"`
}

// ServiceParams bundles the dependencies required to build a bank service.
type ServiceParams struct {
	Repo    repository
	Guard   locks.Guard
	Metrics *metrics.LedgerMetrics
	Logger  *logger.Logger
	Config  config.BankConfig
	Clock   func() time.Time
}

type service struct {
	mu      sync.Mutex
	repo    repository
	guard   locks.Guard
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	cfg     config.BankConfig
	now     func() time.Time
}

// NewService constructs a bank service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bank repository is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
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
		metrics: params.Metrics,
		logg:    params.Logger,
		cfg:     params.Config,
		now:     clock,
	}, nil
}

// Update loads the bank, applies fn and saves the result. The document is
// saved only when fn returns nil and appended at least one transaction.
func (s *service) Update(ctx context.Context, fn func(b *ledger.Bank, now time.Time) error) (ledger.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out ledger.Bank
	err := s.guard.WithLock(ctx, DocumentName, func(ctx context.Context) error {
		b, err := s.repo.Load(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		if err := fn(&b, now); err != nil {
			return err
		}
		kinds := b.TakeAppended()
		if len(kinds) > 0 {
			if err := s.repo.Save(ctx, &b, now); err != nil {
				return err
			}
			for _, kind := range kinds {
				s.metrics.IncTransaction(transactionLabel(kind))
			}
		}
		out = b
		return nil
	})
	if err != nil {
		return ledger.Bank{}, err
	}
	return out, nil
}

func (s *service) read(ctx context.Context) (ledger.Bank, error) {
	return s.Update(ctx, func(*ledger.Bank, time.Time) error { return nil })
}

func (s *service) Snapshot(ctx context.Context) (ledger.Bank, error) {
	return s.read(ctx)
}

func (s *service) Summary(ctx context.Context) (ledger.Summary, error) {
	b, err := s.read(ctx)
	if err != nil {
		return ledger.Summary{}, err
	}
	return b.Summary(s.cfg.CommunityGoal), nil
}

func (s *service) Recent(ctx context.Context, keep int) ([]ledger.Transaction, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return b.Recent(keep), nil
}

func (s *service) Phrases(ctx context.Context, limit int) ([]string, error) {
	b, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return b.Phrases(limit), nil
}

// Spend returns false without saving when the balance cannot cover cost.
func (s *service) Spend(ctx context.Context, cost int64, note string) (bool, error) {
	var ok bool
	_, err := s.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		ok = b.Spend(cost, note, now)
		if !ok {
			s.rejected(ctx, b, cost, note)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *service) Earn(ctx context.Context, amount int64, note string) error {
	_, err := s.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		if !b.Earn(amount, note, now) {
			return ledger.ErrBalanceOverflow
		}
		return nil
	})
	return err
}

func (s *service) Award(ctx context.Context, note string, amount int64) (bool, error) {
	var granted bool
	_, err := s.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		granted = b.AwardOncePerRound(note, amount, now)
		return nil
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (s *service) DonatePhrase(ctx context.Context, phrase, user string) (Donation, error) {
	phrase = clip(phrase, maxPhraseRunes)
	user = clip(user, maxUserRunes)
	if phrase == "" {
		return Donation{}, pkgerrors.New(pkgerrors.CodeValidation, "phrase is required")
	}

	result := Donation{Phrase: phrase, User: user, Cost: s.cfg.PhraseCost}
	b, err := s.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		if !b.Spend(s.cfg.PhraseCost, PhraseDonationNote, now) {
			s.rejected(ctx, b, s.cfg.PhraseCost, PhraseDonationNote)
			return nil
		}
		meta := map[string]any{"msg": phrase}
		if user != "" {
			meta["user"] = user
		}
		result.Accepted = true
		return b.Record(enums.TransactionKindPhrase, 0, "user phrase", meta, now)
	})
	if err != nil {
		return Donation{}, err
	}
	result.Balance = b.Balance
	return result, nil
}

// ApplyDevtool handles admin devtool codes. Only TGIF is known.
func (s *service) ApplyDevtool(ctx context.Context, code string) (bool, error) {
	if !strings.EqualFold(strings.TrimSpace(code), DevtoolTGIF) {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown devtool code")
	}
	var granted bool
	_, err := s.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		granted = b.AwardOncePerRound(DevtoolTGIFNote, DevtoolTGIFAmount, now)
		if !granted {
			return nil
		}
		return b.Record(enums.TransactionKindAdmin, DevtoolTGIFAmount, "TGIF applied", nil, now)
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

func (s *service) rejected(ctx context.Context, b *ledger.Bank, cost int64, note string) {
	s.metrics.IncSpendRejected()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cost":    cost,
		"balance": b.Balance,
		"note":    note,
	}), "spend rejected: insufficient balance")
}

// clip collapses whitespace runs and keeps at most limit runes.
func clip(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return strings.TrimSpace(string([]rune(value)[:limit]))
}

// transactionLabel folds kinds this build never writes into one metric label.
func transactionLabel(kind enums.TransactionKind) string {
	if !kind.IsKnown() {
		return "other"
	}
	return string(kind)
}
