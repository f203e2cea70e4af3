package enums

import (
	"fmt"
	"strings"
)

// TransactionKind labels a bank history entry. The set is open: kinds written by
// older or newer builds pass through normalization untouched.
type TransactionKind string

const (
	TransactionKindSpend        TransactionKind = "spend"
	TransactionKindEarn         TransactionKind = "earn"
	TransactionKindAdmin        TransactionKind = "admin"
	TransactionKindFund         TransactionKind = "fund"
	TransactionKindPurchaseMock TransactionKind = "purchase_mock"
	TransactionKindPhrase       TransactionKind = "phrase"
	TransactionKindRedeem       TransactionKind = "redeem"
)

var knownTransactionKinds = []TransactionKind{
	TransactionKindSpend,
	TransactionKindEarn,
	TransactionKindAdmin,
	TransactionKindFund,
	TransactionKindPurchaseMock,
	TransactionKindPhrase,
	TransactionKindRedeem,
}

// IsKnown reports whether the kind is one this build writes itself.
func (k TransactionKind) IsKnown() bool {
	for _, candidate := range knownTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// BalanceSign is the direction the kind moves the user balance: -1, 0 or +1.
// Fund, phrase and admin entries are records that leave the balance alone.
func (k TransactionKind) BalanceSign() int64 {
	switch k {
	case TransactionKindSpend:
		return -1
	case TransactionKindEarn, TransactionKindPurchaseMock, TransactionKindRedeem:
		return 1
	default:
		return 0
	}
}

// ParseTransactionKind converts raw input into TransactionKind. Unknown but
// well-formed kinds are accepted; only blank input is rejected.
func ParseTransactionKind(value string) (TransactionKind, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("invalid transaction kind %q", value)
	}
	return TransactionKind(value), nil
}
