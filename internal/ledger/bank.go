package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/starlightdeck/careon/pkg/enums"
)

// Spend charges cost against the balance and moves it into the network fund.
// A non-positive cost succeeds without touching the bank. Insufficient balance
// returns false and leaves the bank exactly as it was.
func (b *Bank) Spend(cost int64, note string, at time.Time) bool {
	if cost <= 0 {
		return true
	}
	if b.Balance < cost || !fits(b.NetworkFund, cost) {
		return false
	}
	b.Balance -= cost
	b.NetworkFund += cost
	b.append(Transaction{
		Timestamp: Stamp(at),
		Kind:      enums.TransactionKindSpend,
		Amount:    cost,
		Note:      noteOr(note, "spend"),
	})
	return true
}

// Earn credits amount to the balance. Non-positive amounts are ignored and
// report true. A credit that would overflow the balance is skipped and
// reports false.
func (b *Bank) Earn(amount int64, note string, at time.Time) bool {
	if amount <= 0 {
		return true
	}
	if !fits(b.Balance, amount) {
		return false
	}
	b.Balance += amount
	b.append(Transaction{
		Timestamp: Stamp(at),
		Kind:      enums.TransactionKindEarn,
		Amount:    amount,
		Note:      noteOr(note, "earn"),
	})
	return true
}

// AwardOncePerRound earns amount under note unless an earn with the same note
// already exists since the most recent spend. It returns whether the award was
// granted. An award the balance cannot hold is not granted.
func (b *Bank) AwardOncePerRound(note string, amount int64, at time.Time) bool {
	note = noteOr(note, "earn")
	for i := len(b.History) - 1; i >= 0; i-- {
		tx := b.History[i]
		if tx.Kind == enums.TransactionKindSpend {
			break
		}
		if tx.Kind == enums.TransactionKindEarn && tx.Note == note {
			return false
		}
	}
	return b.Earn(amount, note, at)
}

// Recent returns a copy of the last keep transactions in chronological order.
func (b *Bank) Recent(keep int) []Transaction {
	if keep <= 0 || len(b.History) == 0 {
		return []Transaction{}
	}
	if keep > len(b.History) {
		keep = len(b.History)
	}
	out := make([]Transaction, keep)
	copy(out, b.History[len(b.History)-keep:])
	return out
}

// Deposit credits a redeemed code. cut goes to the network fund and the rest to
// the balance; a fund entry is written only when cut is positive.
func (b *Bank) Deposit(code string, gross, cut int64, at time.Time) (int64, error) {
	if gross <= 0 {
		return 0, fmt.Errorf("deposit amount must be positive, got %d", gross)
	}
	if cut < 0 || cut > gross {
		return 0, fmt.Errorf("network cut %d out of range for deposit %d", cut, gross)
	}
	net := gross - cut
	if !fits(b.Balance, net) || !fits(b.NetworkFund, cut) {
		return 0, ErrBalanceOverflow
	}
	ts := Stamp(at)
	if cut > 0 {
		b.NetworkFund += cut
		b.append(Transaction{
			Timestamp: ts,
			Kind:      enums.TransactionKindFund,
			Amount:    cut,
			Note:      fmt.Sprintf("redeemed %s (network)", code),
		})
	}
	b.Balance += net
	b.append(Transaction{
		Timestamp: ts,
		Kind:      enums.TransactionKindRedeem,
		Amount:    net,
		Note:      fmt.Sprintf("redeemed %s", code),
		Meta: map[string]any{
			"code":  code,
			"gross": gross,
			"cut":   cut,
		},
	})
	return net, nil
}

// CreditPurchase records a simulated market purchase worth tokens.
func (b *Bank) CreditPurchase(tokens int64, note string, meta map[string]any, at time.Time) error {
	if tokens <= 0 {
		return fmt.Errorf("purchase tokens must be positive, got %d", tokens)
	}
	if !fits(b.Balance, tokens) {
		return ErrBalanceOverflow
	}
	b.Balance += tokens
	b.append(Transaction{
		Timestamp: Stamp(at),
		Kind:      enums.TransactionKindPurchaseMock,
		Amount:    tokens,
		Note:      noteOr(note, "mock market purchase"),
		Meta:      meta,
	})
	return nil
}

// Record appends an informational entry whose kind does not move the balance,
// such as a community phrase or an admin audit line.
func (b *Bank) Record(kind enums.TransactionKind, amount int64, note string, meta map[string]any, at time.Time) error {
	if kind.BalanceSign() != 0 {
		return fmt.Errorf("kind %q moves the balance and cannot be recorded directly", kind)
	}
	if amount < 0 {
		return fmt.Errorf("amount must not be negative, got %d", amount)
	}
	if len(meta) == 0 {
		meta = nil
	}
	b.append(Transaction{
		Timestamp: Stamp(at),
		Kind:      kind,
		Amount:    amount,
		Note:      noteOr(note, string(kind)),
		Meta:      meta,
	})
	return nil
}

// Phrases returns up to limit community ticker labels, newest first.
func (b *Bank) Phrases(limit int) []string {
	out := []string{}
	if limit <= 0 {
		return out
	}
	for i := len(b.History) - 1; i >= 0 && len(out) < limit; i-- {
		tx := b.History[i]
		if tx.Kind != enums.TransactionKindPhrase {
			continue
		}
		msg, _ := tx.Meta["msg"].(string)
		msg = strings.TrimSpace(msg)
		if msg == "" {
			continue
		}
		user, _ := tx.Meta["user"].(string)
		user = strings.TrimSpace(user)
		if user != "" {
			out = append(out, strings.ToUpper(user)+": "+msg)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Replay derives a balance from start by applying every signed amount in txs.
func Replay(start int64, txs []Transaction) int64 {
	balance := start
	for _, tx := range txs {
		balance += tx.Kind.BalanceSign() * tx.Amount
	}
	return balance
}

func (b *Bank) append(tx Transaction) {
	b.appended = append(b.appended, tx.Kind)
	b.History = append(b.History, tx)
	if len(b.History) > MaxHistory {
		b.History = append([]Transaction(nil), b.History[len(b.History)-MaxHistory:]...)
	}
}

// fits reports whether adding a non-negative amount to a non-negative counter
// stays within int64.
func fits(counter, amount int64) bool {
	return amount <= math.MaxInt64-counter
}

func noteOr(note, fallback string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return fallback
	}
	return note
}
