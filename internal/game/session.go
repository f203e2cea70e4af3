package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState tracks a classic journey.
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"
)

// Checkpoint is a narrator reading reached during a classic journey.
type Checkpoint struct {
	Step     int    `json:"step,omitempty"`
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Awarded  bool   `json:"awarded"`
}

// ClassicSession is the in-memory state of one classic journey. Sessions are
// not persisted; only their charges and awards reach the bank.
type ClassicSession struct {
	ID          uuid.UUID
	State       SessionState
	StartedAt   time.Time
	Stats       Stats
	LastCard    *Card
	Checkpoints []Checkpoint
	Final       *Checkpoint

	mu sync.Mutex
}

func (s *ClassicSession) checkpoint(step int) (Checkpoint, bool) {
	for _, c := range s.Checkpoints {
		if c.Step == step {
			return c, true
		}
	}
	return Checkpoint{}, false
}

// view copies the session for callers outside the lock.
func (s *ClassicSession) view() ClassicView {
	v := ClassicView{
		ID:          s.ID,
		State:       s.State,
		StartedAt:   s.StartedAt,
		Stats:       s.Stats.clone(),
		Remaining:   ClassicDraws - s.Stats.Draws,
		Checkpoints: append([]Checkpoint{}, s.Checkpoints...),
	}
	if s.LastCard != nil {
		card := *s.LastCard
		v.LastCard = &card
	}
	if s.Final != nil {
		final := *s.Final
		v.Final = &final
	}
	return v
}

// ClassicView is the snapshot returned to callers.
type ClassicView struct {
	ID          uuid.UUID    `json:"id"`
	State       SessionState `json:"state"`
	StartedAt   time.Time    `json:"started_at"`
	Stats       Stats        `json:"stats"`
	Remaining   int          `json:"remaining"`
	LastCard    *Card        `json:"last_card,omitempty"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	Final       *Checkpoint  `json:"final,omitempty"`
}

// sessionStore keeps sessions in memory and drops them after ttl.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*ClassicSession
	ttl      time.Duration
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{sessions: map[uuid.UUID]*ClassicSession{}, ttl: ttl}
}

func (st *sessionStore) put(s *ClassicSession, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, existing := range st.sessions {
		if now.Sub(existing.StartedAt) > st.ttl {
			delete(st.sessions, id)
		}
	}
	st.sessions[s.ID] = s
}

func (st *sessionStore) get(id uuid.UUID) (*ClassicSession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}
