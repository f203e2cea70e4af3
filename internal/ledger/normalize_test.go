package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode mimics the file store: JSON with numbers kept as json.Number.
func decode(t *testing.T, text string) any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var out any
	require.NoError(t, dec.Decode(&out))
	return out
}

func roundTrip(t *testing.T, doc any) any {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return decode(t, string(raw))
}

func mustJSON(t *testing.T, doc any) string {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(raw)
}

func TestNormalizeBankEmptyObjectIsSchemaComplete(t *testing.T) {
	bank, ok := NormalizeBank(map[string]any{})
	require.True(t, ok)
	assert.Equal(t, int64(0), bank.Balance)
	assert.Equal(t, int64(0), bank.NetworkFund)
	assert.NotNil(t, bank.History)
	assert.Empty(t, bank.History)
	assert.Equal(t, SchemaVersion, bank.Meta.Schema)
	assert.Nil(t, bank.Meta.LastSavedUTC)
	assert.JSONEq(t,
		`{"balance":0,"sld_network_fund":0,"history":[],"meta":{"schema":1,"last_saved_utc":null}}`,
		mustJSON(t, bank))
}

func TestNormalizeBankRejectsNonObjects(t *testing.T) {
	for _, raw := range []any{nil, "bank", json.Number("3"), []any{}, true} {
		bank, ok := NormalizeBank(raw)
		assert.False(t, ok, "input %#v", raw)
		assert.NotNil(t, bank.History)
	}
}

func TestNormalizeBankCoercesFieldsAndDropsBadEntries(t *testing.T) {
	raw := decode(t, `{
		"balance": "42",
		"sld_network_fund": -7,
		"history": [
			{"ts": "2025-01-02T03:04:05Z", "type": "spend", "amount": 5, "note": "rapid charge"},
			{"ts": "2025-01-02T03:04:06", "type": "earn", "amount": "20", "note": " rapid win "},
			{"ts": "2025-01-02T03:04:07+02:00", "type": "bonus", "amount": 3.0, "meta": {"k": 1}},
			{"type": "earn", "amount": 1, "note": "no ts"},
			{"ts": "2025-01-02T03:04:05Z", "amount": 1},
			{"ts": "2025-01-02T03:04:05Z", "type": "earn"},
			{"ts": "2025-01-02T03:04:05Z", "type": "earn", "amount": -1},
			{"ts": "2025-01-02T03:04:05Z", "type": "earn", "amount": 1.5},
			{"ts": "yesterday", "type": "earn", "amount": 1},
			{"ts": "2025-01-02T03:04:05Z", "type": "earn", "amount": 1, "meta": {}},
			"garbage",
			17
		],
		"meta": {"schema": "2", "last_saved_utc": "2025-01-02T03:04:05Z"}
	}`)

	bank, ok := NormalizeBank(raw)
	require.True(t, ok)
	assert.Equal(t, int64(42), bank.Balance)
	assert.Equal(t, int64(0), bank.NetworkFund)
	require.Len(t, bank.History, 4)
	assert.Equal(t, "rapid win", bank.History[1].Note)
	assert.Equal(t, int64(20), bank.History[1].Amount)
	assert.Equal(t, "bonus", string(bank.History[2].Kind), "unknown kinds pass through")
	assert.Equal(t, time.Date(2025, 1, 2, 1, 4, 7, 0, time.UTC), bank.History[2].Timestamp)
	assert.Nil(t, bank.History[3].Meta, "empty meta collapses")
	assert.Equal(t, 2, bank.Meta.Schema)
	require.NotNil(t, bank.Meta.LastSavedUTC)
}

func TestNormalizeBankWrongTypedContainers(t *testing.T) {
	raw := decode(t, `{"balance": true, "sld_network_fund": {"x": 1}, "history": {"0": {}}, "meta": []}`)
	bank, ok := NormalizeBank(raw)
	require.True(t, ok)
	assert.Equal(t, int64(0), bank.Balance)
	assert.Equal(t, int64(0), bank.NetworkFund)
	assert.Empty(t, bank.History)
	assert.Equal(t, SchemaVersion, bank.Meta.Schema)
}

func TestNormalizeBankTruncatesHistory(t *testing.T) {
	entries := make([]any, 0, MaxHistory+3)
	for i := 0; i < MaxHistory+3; i++ {
		entries = append(entries, map[string]any{
			"ts": "2025-01-02T03:04:05Z", "type": "earn", "amount": json.Number("1"), "note": fmt.Sprintf("n%d", i),
		})
	}
	bank, _ := NormalizeBank(map[string]any{"history": entries})
	require.Len(t, bank.History, MaxHistory)
	assert.Equal(t, "n3", bank.History[0].Note)
}

func TestNormalizeBankIsIdempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`[]`,
		`"nope"`,
		`null`,
		`{"balance": "9", "history": [{"ts": "2025-01-02T03:04:05.123Z", "type": "spend", "amount": "4", "meta": {"a": [1, "b"]}}, 3]}`,
		`{"balance": -3, "sld_network_fund": 12.0, "history": "bad", "meta": {"schema": 0, "last_saved_utc": "0001-01-01T00:00:00Z"}}`,
		`{"history": [{"ts": "2025-01-02T03:04:05+05:30", "kind": " earn ", "amount": 2, "note": 5}]}`,
	}
	for _, in := range inputs {
		once, _ := NormalizeBank(decode(t, in))

		twiceTyped, ok := NormalizeBank(once)
		require.True(t, ok)
		assert.Equal(t, mustJSON(t, once), mustJSON(t, twiceTyped), "typed re-normalize of %s", in)

		twiceRaw, ok := NormalizeBank(roundTrip(t, once))
		require.True(t, ok)
		assert.Equal(t, mustJSON(t, once), mustJSON(t, twiceRaw), "raw re-normalize of %s", in)
	}
}

func TestNormalizeBankTypedInputDoesNotAlias(t *testing.T) {
	bank := NewBank(5)
	bank.Earn(1, "x", testNow)
	normalized, _ := NormalizeBank(&bank)
	normalized.History[0].Note = "changed"
	assert.Equal(t, "x", bank.History[0].Note)
}

func TestNormalizeCodeLedgerLegacyAndFailClosed(t *testing.T) {
	raw := decode(t, `{
		"codes": {
			"dep-50-abc123": {"amount": 50, "created_ts": "2024-12-01T10:00:00Z", "redeemed_ts": null, "redeemer": null},
			"DEP-USED0001": {"value": 25, "created_utc": "2025-01-01T00:00:00Z", "redeemed_utc": "2025-01-02T00:00:00Z", "redeemed_by": "bob"},
			"DEP-ODD00002": {"value": 10, "redeemed_utc": "garbled"},
			"DEP-WHO00003": {"value": 10, "redeemed_by": "eve"},
			"DEP-EMPTY007": {"value": 10, "redeemed_by": "", "redeemed_utc": null},
			"DEP-ZERO0004": {"value": 0},
			"DEP-NEG00005": {"value": -5},
			"DEP-STR00006": "not an object",
			"  ": {"value": 5}
		},
		"history": [
			{"ts": "2025-01-01T00:00:00Z", "type": "mint", "code": "dep-used0001", "value": 25, "actor": "admin"},
			{"ts": "2025-01-01T00:00:00Z", "type": "burn", "code": "DEP-USED0001", "value": 25},
			{"type": "redeem", "code": "DEP-USED0001", "value": 25}
		]
	}`)

	ledger, ok := NormalizeCodeLedger(raw)
	require.True(t, ok)
	require.Len(t, ledger.Codes, 5)

	legacy := ledger.Codes["DEP-50-ABC123"]
	assert.Equal(t, int64(50), legacy.Value)
	assert.False(t, legacy.Redeemed())
	assert.Equal(t, time.Date(2024, 12, 1, 10, 0, 0, 0, time.UTC), legacy.CreatedAt)

	used := ledger.Codes["DEP-USED0001"]
	require.True(t, used.Redeemed())
	assert.Equal(t, "bob", *used.RedeemedBy)

	assert.True(t, ledger.Codes["DEP-ODD00002"].Redeemed(), "unparseable redemption stamp fails closed")
	assert.True(t, ledger.Codes["DEP-WHO00003"].Redeemed(), "redeemer without stamp fails closed")
	assert.True(t, ledger.Codes["DEP-EMPTY007"].Redeemed(), "empty redeemer key without stamp fails closed")

	require.Len(t, ledger.History, 1)
	assert.Equal(t, "DEP-USED0001", ledger.History[0].Code)
}

func TestNormalizeCodeLedgerDuplicateKeysPreferRedeemed(t *testing.T) {
	raw := decode(t, `{"codes": {
		"DEP-DUP00001": {"value": 10},
		"dep-dup00001": {"value": 10, "redeemed_utc": "2025-01-02T00:00:00Z", "redeemed_by": "bob"}
	}}`)
	ledger, _ := NormalizeCodeLedger(raw)
	require.Len(t, ledger.Codes, 1)
	assert.True(t, ledger.Codes["DEP-DUP00001"].Redeemed())
}

func TestNormalizeCodeLedgerIsIdempotent(t *testing.T) {
	inputs := []string{
		`{}`,
		`42`,
		`{"codes": []}`,
		`{"codes": {"dep-x": {"amount": "7", "redeemer": "amy"}, "DEP-Y": {"value": 3, "created_utc": "bad"}}, "history": [{"ts": "2025-01-01T00:00:00Z", "type": "redeem", "code": "dep-x", "value": "7"}]}`,
	}
	for _, in := range inputs {
		once, _ := NormalizeCodeLedger(decode(t, in))
		twiceTyped, _ := NormalizeCodeLedger(once)
		assert.Equal(t, mustJSON(t, once), mustJSON(t, twiceTyped), "typed re-normalize of %s", in)
		twiceRaw, ok := NormalizeCodeLedger(roundTrip(t, once))
		require.True(t, ok)
		assert.Equal(t, mustJSON(t, once), mustJSON(t, twiceRaw), "raw re-normalize of %s", in)
	}
}
