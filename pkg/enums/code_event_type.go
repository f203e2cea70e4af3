package enums

import "fmt"

// CodeEventType labels an entry in the deposit code ledger history.
type CodeEventType string

const (
	CodeEventTypeMint   CodeEventType = "mint"
	CodeEventTypeRedeem CodeEventType = "redeem"
)

var validCodeEventTypes = []CodeEventType{
	CodeEventTypeMint,
	CodeEventTypeRedeem,
}

// IsValid reports whether the value matches a known code event.
func (t CodeEventType) IsValid() bool {
	for _, candidate := range validCodeEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseCodeEventType converts raw input into CodeEventType.
func ParseCodeEventType(value string) (CodeEventType, error) {
	for _, candidate := range validCodeEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid code event type %q", value)
}
