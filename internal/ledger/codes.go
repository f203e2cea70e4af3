package ledger

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	pkgerrors "github.com/starlightdeck/careon/pkg/errors"
	"github.com/starlightdeck/careon/pkg/enums"
)

const (
	DefaultCodePrefix       = "DEP"
	DefaultCodeSuffixLength = 8

	// MaxCodeValue is the largest value a single minted code may carry.
	MaxCodeValue int64 = 1_000_000_000

	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxMintAttempts = 64
)

var (
	ErrInvalidValue    = pkgerrors.New(pkgerrors.CodeInvalidValue, "code value must be positive")
	ErrValueTooLarge   = pkgerrors.New(pkgerrors.CodeInvalidValue, "code value exceeds the maximum")
	ErrBalanceOverflow = pkgerrors.New(pkgerrors.CodeConflict, "credit would overflow the balance")
	ErrInvalidCode     = pkgerrors.New(pkgerrors.CodeInvalidCode, "invalid code format")
	ErrCodeNotFound    = pkgerrors.New(pkgerrors.CodeNotFound, "code not found")
	ErrAlreadyRedeemed = pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "code already redeemed")
)

// CodeSource produces candidate deposit codes.
type CodeSource interface {
	NewCode() (string, error)
}

// CodeFormat generates PREFIX-SUFFIX codes from crypto/rand.
type CodeFormat struct {
	Prefix       string
	SuffixLength int
}

// DefaultCodeFormat returns the DEP-XXXXXXXX format.
func DefaultCodeFormat() CodeFormat {
	return CodeFormat{Prefix: DefaultCodePrefix, SuffixLength: DefaultCodeSuffixLength}
}

// NewCode draws a fresh code. Each suffix character is picked uniformly.
func (f CodeFormat) NewCode() (string, error) {
	prefix := strings.ToUpper(strings.TrimSpace(f.Prefix))
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	length := f.SuffixLength
	if length <= 0 {
		length = DefaultCodeSuffixLength
	}
	limit := big.NewInt(int64(len(codeAlphabet)))
	var sb strings.Builder
	sb.Grow(len(prefix) + 1 + length)
	sb.WriteString(prefix)
	sb.WriteByte('-')
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		sb.WriteByte(codeAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Plausible reports whether a user-typed code could belong to this format.
// Only the prefix is checked so legacy codes with a different body still pass.
func (f CodeFormat) Plausible(code string) bool {
	prefix := strings.ToUpper(strings.TrimSpace(f.Prefix))
	if prefix == "" {
		prefix = DefaultCodePrefix
	}
	code = NormalizeCode(code)
	return strings.HasPrefix(code, prefix+"-") && len(code) > len(prefix)+1
}

// NormalizeCode trims and uppercases a code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Mint stores a new unredeemed code worth value and records a mint event.
func (l *CodeLedger) Mint(source CodeSource, value int64, createdBy, note string, at time.Time) (string, error) {
	if value <= 0 {
		return "", ErrInvalidValue
	}
	if value > MaxCodeValue {
		return "", ErrValueTooLarge
	}
	if source == nil {
		source = DefaultCodeFormat()
	}
	if l.Codes == nil {
		l.Codes = map[string]DepositCode{}
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxMintAttempts {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "could not generate a unique code")
		}
		candidate, err := source.NewCode()
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
		}
		candidate = NormalizeCode(candidate)
		if candidate == "" {
			continue
		}
		if _, exists := l.Codes[candidate]; !exists {
			code = candidate
			break
		}
	}

	ts := Stamp(at)
	createdBy = noteOr(createdBy, "admin")
	note = strings.TrimSpace(note)
	l.Codes[code] = DepositCode{
		Value:     value,
		CreatedAt: ts,
		CreatedBy: createdBy,
		Note:      note,
	}
	l.appendEvent(CodeEvent{
		Timestamp: ts,
		Type:      enums.CodeEventTypeMint,
		Code:      code,
		Value:     value,
		Actor:     createdBy,
		Note:      note,
	})
	return code, nil
}

// Redeem consumes code for redeemedBy and returns its value. The existence and
// redemption checks happen in the same call as the state change.
func (l *CodeLedger) Redeem(code, redeemedBy string, at time.Time) (int64, error) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, ErrInvalidCode
	}
	entry, ok := l.Codes[code]
	if !ok {
		return 0, ErrCodeNotFound
	}
	if entry.Redeemed() {
		return 0, ErrAlreadyRedeemed
	}

	ts := Stamp(at)
	by := noteOr(redeemedBy, "web")
	entry.RedeemedAt = &ts
	entry.RedeemedBy = &by
	l.Codes[code] = entry
	l.appendEvent(CodeEvent{
		Timestamp: ts,
		Type:      enums.CodeEventTypeRedeem,
		Code:      code,
		Value:     entry.Value,
		Actor:     by,
	})
	return entry.Value, nil
}

// RecentEvents returns the last keep events in chronological order.
func (l *CodeLedger) RecentEvents(keep int) []CodeEvent {
	if keep <= 0 || len(l.History) == 0 {
		return []CodeEvent{}
	}
	if keep > len(l.History) {
		keep = len(l.History)
	}
	out := make([]CodeEvent, keep)
	copy(out, l.History[len(l.History)-keep:])
	return out
}

// Outstanding sums the value of codes that have not been redeemed yet.
func (l *CodeLedger) Outstanding() (count int, value int64) {
	for _, entry := range l.Codes {
		if entry.Redeemed() {
			continue
		}
		count++
		value += entry.Value
	}
	return count, value
}

func (l *CodeLedger) appendEvent(ev CodeEvent) {
	l.History = append(l.History, ev)
	if len(l.History) > MaxHistory {
		l.History = append([]CodeEvent(nil), l.History[len(l.History)-MaxHistory:]...)
	}
}
