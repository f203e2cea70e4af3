// Package game drives the classic and rapid card modes. It charges and pays
// the bank and asks the narrator for readings at checkpoints.
package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/starlightdeck/careon/internal/ledger"
	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/logger"
	"github.com/starlightdeck/careon/pkg/metrics"
)

const (
	ClassicCharge    = 1
	ClassicDraws     = 20
	CheckpointFirst  = 10
	CheckpointSecond = 20
	CheckpointAward  = 1

	RapidCharge        = 5
	RapidPulses        = 20
	RapidChancePercent = 5
	RapidSuccessAward  = 20
	RapidBonusAward    = 3
	RapidFailAward     = 1

	NoteClassicCharge = "classic charge"
	NoteClassic10     = "classic-10-estrella"
	NoteClassic20     = "classic-20-estrella"
	NoteClassicFinal  = "classic-final-q"
	NoteRapidCharge   = "rapid charge"
	NoteRapidSuccess  = "rapid-success-20"
	NoteRapidBonus    = "rapid-completion-bonus"
	NoteRapidFail     = "rapid-fail-completion"

	RapidSuccessLine = "★ Estrella ★ Bold move, you will be rewarded kindly."
	RapidFailureLine = "★ Estrella ★ Recklessness can be costly."

	defaultSessionTTL = 24 * time.Hour
)

// Narration is the narrator's answer. Fallback marks offline or failed calls
// whose Text is a plain placeholder.
type Narration struct {
	Text     string
	Fallback bool
}

// Narrator turns a prompt into flavor text. It must not return errors; failures
// come back as a fallback narration.
type Narrator interface {
	Narrate(ctx context.Context, prompt string) Narration
}

type bankUpdater interface {
	Update(ctx context.Context, fn func(b *ledger.Bank, now time.Time) error) (ledger.Bank, error)
}

// Service defines the game session operations.
type Service interface {
	Rapid(ctx context.Context) (RapidResult, error)
	StartClassic(ctx context.Context) (ClassicView, error)
	DrawClassic(ctx context.Context, id uuid.UUID, question string) (DrawResult, error)
	AskFinal(ctx context.Context, id uuid.UUID, question string) (ClassicView, error)
	Classic(ctx context.Context, id uuid.UUID) (ClassicView, error)
}

// RapidResult reports one rapid run.
type RapidResult struct {
	Status  string `json:"status"`
	Success bool   `json:"success"`
	Line    string `json:"line"`
	Charged int64  `json:"charged"`
	Awarded int64  `json:"awarded"`
	Balance int64  `json:"balance"`
}

// DrawResult is one classic draw with the checkpoint it reached, if any.
type DrawResult struct {
	Card       Card        `json:"card"`
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
	Session    ClassicView `json:"session"`
}

type ServiceParams struct {
	Bank       bankUpdater
	Randomizer Randomizer
	Narrator   Narrator
	Metrics    *metrics.LedgerMetrics
	Logger     *logger.Logger
	SessionTTL time.Duration
	Clock      func() time.Time
}

type service struct {
	bank     bankUpdater
	rng      Randomizer
	narrator Narrator
	metrics  *metrics.LedgerMetrics
	logg     *logger.Logger
	sessions *sessionStore
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Bank == nil {
		return nil, fmt.Errorf("bank service is required")
	}
	if params.Narrator == nil {
		return nil, fmt.Errorf("narrator is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	rng := params.Randomizer
	if rng == nil {
		rng = NewRandomizer()
	}
	ttl := params.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		bank:     params.Bank,
		rng:      rng,
		narrator: params.Narrator,
		metrics:  params.Metrics,
		logg:     params.Logger,
		sessions: newSessionStore(ttl),
		now:      clock,
	}, nil
}

// Rapid charges the rapid fee, rolls the pulses and pays out in one save.
func (s *service) Rapid(ctx context.Context) (RapidResult, error) {
	var result RapidResult
	b, err := s.bank.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		if !b.Spend(RapidCharge, NoteRapidCharge, now) {
			return s.insufficient(ctx, b, RapidCharge, NoteRapidCharge)
		}
		result = RapidResult{Charged: RapidCharge}
		if AnyPulse(s.rng, RapidPulses, RapidChancePercent) {
			result.Success, result.Status, result.Line = true, "SUCCESS", RapidSuccessLine
			result.Awarded += grant(b, NoteRapidSuccess, RapidSuccessAward, now)
			result.Awarded += grant(b, NoteRapidBonus, RapidBonusAward, now)
			return nil
		}
		result.Status, result.Line = "FAILURE", RapidFailureLine
		result.Awarded += grant(b, NoteRapidFail, RapidFailAward, now)
		return nil
	})
	if err != nil {
		return RapidResult{}, err
	}
	result.Balance = b.Balance
	return result, nil
}

// StartClassic charges the classic fee and opens a session.
func (s *service) StartClassic(ctx context.Context) (ClassicView, error) {
	_, err := s.bank.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		if !b.Spend(ClassicCharge, NoteClassicCharge, now) {
			return s.insufficient(ctx, b, ClassicCharge, NoteClassicCharge)
		}
		return nil
	})
	if err != nil {
		return ClassicView{}, err
	}

	now := s.now().UTC()
	session := &ClassicSession{
		ID:          uuid.New(),
		State:       SessionActive,
		StartedAt:   now,
		Stats:       NewStats(),
		Checkpoints: []Checkpoint{},
	}
	s.sessions.put(session, now)
	s.logg.Info(s.logg.WithField(ctx, "session_id", session.ID.String()), "classic journey started")
	return session.view(), nil
}

func (s *service) Classic(_ context.Context, id uuid.UUID) (ClassicView, error) {
	session, err := s.lookup(id)
	if err != nil {
		return ClassicView{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.view(), nil
}

// DrawClassic draws the next card. Reaching draw 10 or 20 asks the narrator
// and awards the checkpoint once per round; the draw is kept only if that
// award was saved.
func (s *service) DrawClassic(ctx context.Context, id uuid.UUID, question string) (DrawResult, error) {
	session, err := s.lookup(id)
	if err != nil {
		return DrawResult{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != SessionActive {
		return DrawResult{}, pkgerrors.New(pkgerrors.CodeConflict, "journey is complete")
	}
	if session.Stats.Draws >= ClassicDraws {
		return DrawResult{}, pkgerrors.New(pkgerrors.CodeConflict, "all cards drawn; ask your final question")
	}

	card := Draw(s.rng, question)
	stats := session.Stats.clone()
	stats.record(card)

	var reached *Checkpoint
	if note, ok := checkpointNote(stats.Draws); ok {
		if _, done := session.checkpoint(stats.Draws); !done {
			narration := s.narrate(ctx, CheckpointPrompt(stats.Draws, stats))
			awarded, err := s.award(ctx, note, CheckpointAward)
			if err != nil {
				return DrawResult{}, err
			}
			reached = &Checkpoint{Step: stats.Draws, Text: narration.Text, Fallback: narration.Fallback, Awarded: awarded}
			session.Checkpoints = append(session.Checkpoints, *reached)
		}
	}

	session.Stats = stats
	session.LastCard = &card
	return DrawResult{Card: card, Checkpoint: reached, Session: session.view()}, nil
}

// AskFinal asks the closing question once all cards are drawn. A fallback
// narration leaves the journey open so the question can be asked again.
func (s *service) AskFinal(ctx context.Context, id uuid.UUID, question string) (ClassicView, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return ClassicView{}, pkgerrors.New(pkgerrors.CodeValidation, "type a question first")
	}
	session, err := s.lookup(id)
	if err != nil {
		return ClassicView{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.State != SessionActive {
		return ClassicView{}, pkgerrors.New(pkgerrors.CodeConflict, "journey is complete")
	}
	if session.Stats.Draws < ClassicDraws {
		return ClassicView{}, pkgerrors.New(pkgerrors.CodeConflict, "draw all cards before the final question").
			WithDetails(map[string]any{"remaining": ClassicDraws - session.Stats.Draws})
	}

	narration := s.narrate(ctx, FinalPrompt(session.Stats, question))
	final := &Checkpoint{Text: narration.Text, Fallback: narration.Fallback}
	if !narration.Fallback {
		awarded, err := s.award(ctx, NoteClassicFinal, CheckpointAward)
		if err != nil {
			return ClassicView{}, err
		}
		final.Awarded = awarded
		session.State = SessionCompleted
	}
	session.Final = final
	return session.view(), nil
}

func (s *service) lookup(id uuid.UUID) (*ClassicSession, error) {
	session, ok := s.sessions.get(id)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "classic session not found")
	}
	return session, nil
}

func (s *service) award(ctx context.Context, note string, amount int64) (bool, error) {
	var granted bool
	_, err := s.bank.Update(ctx, func(b *ledger.Bank, now time.Time) error {
		granted = b.AwardOncePerRound(note, amount, now)
		return nil
	})
	return granted, err
}

func (s *service) narrate(ctx context.Context, prompt string) Narration {
	n := s.narrator.Narrate(ctx, prompt)
	if n.Fallback {
		s.logg.Warn(ctx, "narrator fell back to placeholder text")
	}
	return n
}

func (s *service) insufficient(ctx context.Context, b *ledger.Bank, cost int64, note string) error {
	s.metrics.IncSpendRejected()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"cost":    cost,
		"balance": b.Balance,
		"note":    note,
	}), "spend rejected: insufficient balance")
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "not enough Careons").
		WithDetails(map[string]any{"required": cost, "balance": b.Balance})
}

func checkpointNote(draws int) (string, bool) {
	switch draws {
	case CheckpointFirst:
		return NoteClassic10, true
	case CheckpointSecond:
		return NoteClassic20, true
	default:
		return "", false
	}
}

func grant(b *ledger.Bank, note string, amount int64, now time.Time) int64 {
	if b.AwardOncePerRound(note, amount, now) {
		return amount
	}
	return 0
}
