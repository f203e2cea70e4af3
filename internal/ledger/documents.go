// Package ledger holds the typed Bank and deposit code documents, the
// normalizer that turns decoded JSON into them, and the in-memory operations
// that mutate them. Nothing here touches the filesystem.
package ledger

import (
	"time"

	"github.com/starlightdeck/careon/pkg/enums"
)

const (
	// SchemaVersion is stamped into the meta block of every saved document.
	SchemaVersion = 1
	// MaxHistory bounds both the bank history and the code event history.
	MaxHistory = 5000
	// DefaultStartingBalance seeds a freshly synthesized Bank.
	DefaultStartingBalance int64 = 25
)

// Meta is the bookkeeping block shared by both documents.
type Meta struct {
	Schema       int        `json:"schema"`
	LastSavedUTC *time.Time `json:"last_saved_utc"`
}

// Transaction is one immutable bank history entry. Amount is never negative;
// the direction is implied by Kind.
type Transaction struct {
	Timestamp time.Time             `json:"ts"`
	Kind      enums.TransactionKind `json:"type"`
	Amount    int64                 `json:"amount"`
	Note      string                `json:"note"`
	Meta      map[string]any        `json:"meta,omitempty"`
}

// Bank is the balance, community fund and trailing history for one install.
type Bank struct {
	Balance     int64         `json:"balance"`
	NetworkFund int64         `json:"sld_network_fund"`
	History     []Transaction `json:"history"`
	Meta        Meta          `json:"meta"`

	appended []enums.TransactionKind
}

// TakeAppended returns the kinds appended since the last call and resets the list.
func (b *Bank) TakeAppended() []enums.TransactionKind {
	out := b.appended
	b.appended = nil
	return out
}

// NewBank returns the document used when no readable file exists.
func NewBank(startingBalance int64) Bank {
	if startingBalance < 0 {
		startingBalance = 0
	}
	return Bank{
		Balance: startingBalance,
		History: []Transaction{},
		Meta:    Meta{Schema: SchemaVersion},
	}
}

// DepositCode is a bearer code worth Value tokens. It moves from unredeemed to
// redeemed exactly once.
type DepositCode struct {
	Value      int64      `json:"value"`
	CreatedAt  time.Time  `json:"created_utc"`
	CreatedBy  string     `json:"created_by"`
	RedeemedAt *time.Time `json:"redeemed_utc"`
	RedeemedBy *string    `json:"redeemed_by"`
	Note       string     `json:"note"`
}

// Redeemed reports whether the code has been consumed.
func (c DepositCode) Redeemed() bool {
	return c.RedeemedAt != nil
}

// CodeEvent is one entry of the code ledger's own history.
type CodeEvent struct {
	Timestamp time.Time           `json:"ts"`
	Type      enums.CodeEventType `json:"type"`
	Code      string              `json:"code"`
	Value     int64               `json:"value"`
	Actor     string              `json:"actor,omitempty"`
	Note      string              `json:"note,omitempty"`
}

// CodeLedger maps normalized code strings to their state.
type CodeLedger struct {
	Codes   map[string]DepositCode `json:"codes"`
	History []CodeEvent            `json:"history"`
	Meta    Meta                   `json:"meta"`
}

// NewCodeLedger returns an empty ledger.
func NewCodeLedger() CodeLedger {
	return CodeLedger{
		Codes:   map[string]DepositCode{},
		History: []CodeEvent{},
		Meta:    Meta{Schema: SchemaVersion},
	}
}

// Stamp truncates t to whole seconds in UTC, the resolution written to disk.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
