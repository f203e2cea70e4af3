package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/starlightdeck/careon/pkg/enums"
)

// NormalizeBank repairs an arbitrary decoded document into a schema-complete
// Bank. It accepts the output of a JSON decode, a Bank or a *Bank. The second
// result is false only when raw is not an object at all; callers use it to
// decide whether to fall back to the backup file.
func NormalizeBank(raw any) (Bank, bool) {
	switch doc := raw.(type) {
	case Bank:
		return normalizeTypedBank(doc), true
	case *Bank:
		if doc == nil {
			return NewBank(0), false
		}
		return normalizeTypedBank(*doc), true
	case map[string]any:
		return normalizeRawBank(doc), true
	default:
		return NewBank(0), false
	}
}

func normalizeRawBank(doc map[string]any) Bank {
	bank := Bank{
		Balance:     counter(doc["balance"]),
		NetworkFund: counter(doc["sld_network_fund"]),
		History:     []Transaction{},
		Meta:        normalizeRawMeta(doc["meta"]),
	}
	if entries, ok := doc["history"].([]any); ok {
		for _, entry := range entries {
			if tx, ok := normalizeRawTransaction(entry); ok {
				bank.History = append(bank.History, tx)
			}
		}
	}
	bank.History = trimTransactions(bank.History)
	return bank
}

func normalizeRawTransaction(entry any) (Transaction, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return Transaction{}, false
	}
	kindValue, ok := firstOf(m, "type", "kind")
	if !ok {
		return Transaction{}, false
	}
	kindText, ok := asString(kindValue)
	if !ok {
		return Transaction{}, false
	}
	kind, err := enums.ParseTransactionKind(kindText)
	if err != nil {
		return Transaction{}, false
	}
	amountValue, ok := m["amount"]
	if !ok {
		return Transaction{}, false
	}
	amount, ok := asInt(amountValue)
	if !ok || amount < 0 {
		return Transaction{}, false
	}
	tsValue, ok := firstOf(m, "ts", "timestamp")
	if !ok {
		return Transaction{}, false
	}
	ts, ok := parseTimestamp(tsValue)
	if !ok || ts.IsZero() {
		return Transaction{}, false
	}
	note, _ := asString(m["note"])
	tx := Transaction{
		Timestamp: ts,
		Kind:      kind,
		Amount:    amount,
		Note:      note,
	}
	if meta, ok := m["meta"].(map[string]any); ok && len(meta) > 0 {
		tx.Meta = meta
	}
	return tx, true
}

func normalizeTypedBank(doc Bank) Bank {
	bank := Bank{
		Balance:     clampCounter(doc.Balance),
		NetworkFund: clampCounter(doc.NetworkFund),
		History:     make([]Transaction, 0, len(doc.History)),
		Meta:        normalizeTypedMeta(doc.Meta),
	}
	for _, tx := range doc.History {
		tx.Kind = enums.TransactionKind(strings.TrimSpace(string(tx.Kind)))
		if tx.Kind == "" || tx.Amount < 0 || tx.Timestamp.IsZero() {
			continue
		}
		tx.Timestamp = tx.Timestamp.UTC()
		tx.Note = strings.TrimSpace(tx.Note)
		if len(tx.Meta) == 0 {
			tx.Meta = nil
		}
		bank.History = append(bank.History, tx)
	}
	bank.History = trimTransactions(bank.History)
	return bank
}

// NormalizeCodeLedger is the code-ledger counterpart of NormalizeBank. It also
// accepts the legacy field names amount, created_ts, redeemed_ts and redeemer.
// Redemption fails closed: a code whose redeemed_by or redeemer key holds any
// non-null value, even "", counts as redeemed when its stamp is null or
// missing, and so does a code with an unparseable stamp.
func NormalizeCodeLedger(raw any) (CodeLedger, bool) {
	switch doc := raw.(type) {
	case CodeLedger:
		return normalizeTypedCodeLedger(doc), true
	case *CodeLedger:
		if doc == nil {
			return NewCodeLedger(), false
		}
		return normalizeTypedCodeLedger(*doc), true
	case map[string]any:
		return normalizeRawCodeLedger(doc), true
	default:
		return NewCodeLedger(), false
	}
}

func normalizeRawCodeLedger(doc map[string]any) CodeLedger {
	ledger := NewCodeLedger()
	ledger.Meta = normalizeRawMeta(doc["meta"])

	if codes, ok := doc["codes"].(map[string]any); ok {
		keys := make([]string, 0, len(codes))
		for k := range codes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			code := NormalizeCode(key)
			if code == "" {
				continue
			}
			entry, ok := normalizeRawDepositCode(codes[key])
			if !ok {
				continue
			}
			mergeCode(ledger.Codes, code, entry)
		}
	}

	if entries, ok := doc["history"].([]any); ok {
		for _, entry := range entries {
			if ev, ok := normalizeRawCodeEvent(entry); ok {
				ledger.History = append(ledger.History, ev)
			}
		}
	}
	ledger.History = trimEvents(ledger.History)
	return ledger
}

func normalizeRawDepositCode(entry any) (DepositCode, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return DepositCode{}, false
	}
	valueField, ok := firstOf(m, "value", "amount")
	if !ok {
		return DepositCode{}, false
	}
	value, ok := asInt(valueField)
	if !ok || value <= 0 {
		return DepositCode{}, false
	}

	code := DepositCode{Value: value}
	if created, ok := firstOf(m, "created_utc", "created_ts"); ok {
		code.CreatedAt, _ = parseTimestamp(created)
	}
	code.CreatedBy, _ = asString(m["created_by"])
	code.Note, _ = asString(m["note"])

	redeemedBy, hasRedeemer := firstOf(m, "redeemed_by", "redeemer")
	if hasRedeemer {
		by, ok := asString(redeemedBy)
		if !ok {
			by = "unknown"
		}
		code.RedeemedBy = &by
	}
	if redeemed, ok := firstOf(m, "redeemed_utc", "redeemed_ts"); ok {
		at, parsed := parseTimestamp(redeemed)
		text, isText := redeemed.(string)
		switch {
		case parsed:
			code.RedeemedAt = &at
		case isText && strings.TrimSpace(text) == "":
			// empty string means unredeemed
		default:
			// Unreadable redemption stamp: treat as spent.
			at = time.Time{}
			code.RedeemedAt = &at
		}
	}
	if code.RedeemedAt == nil && code.RedeemedBy != nil {
		zero := time.Time{}
		code.RedeemedAt = &zero
	}
	if code.RedeemedAt != nil && code.RedeemedBy == nil {
		unknown := "unknown"
		code.RedeemedBy = &unknown
	}
	return code, true
}

func normalizeRawCodeEvent(entry any) (CodeEvent, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return CodeEvent{}, false
	}
	typeText, ok := asString(m["type"])
	if !ok {
		return CodeEvent{}, false
	}
	eventType, err := enums.ParseCodeEventType(typeText)
	if err != nil {
		return CodeEvent{}, false
	}
	codeText, ok := asString(m["code"])
	if !ok || NormalizeCode(codeText) == "" {
		return CodeEvent{}, false
	}
	ts, ok := parseTimestamp(m["ts"])
	if !ok || ts.IsZero() {
		return CodeEvent{}, false
	}
	value, ok := asInt(m["value"])
	if !ok || value < 0 {
		return CodeEvent{}, false
	}
	actor, _ := asString(m["actor"])
	note, _ := asString(m["note"])
	return CodeEvent{
		Timestamp: ts,
		Type:      eventType,
		Code:      NormalizeCode(codeText),
		Value:     value,
		Actor:     actor,
		Note:      note,
	}, true
}

func normalizeTypedCodeLedger(doc CodeLedger) CodeLedger {
	ledger := NewCodeLedger()
	ledger.Meta = normalizeTypedMeta(doc.Meta)

	keys := make([]string, 0, len(doc.Codes))
	for k := range doc.Codes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		code := NormalizeCode(key)
		entry := doc.Codes[key]
		if code == "" || entry.Value <= 0 {
			continue
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		entry.CreatedBy = strings.TrimSpace(entry.CreatedBy)
		entry.Note = strings.TrimSpace(entry.Note)
		if entry.RedeemedAt != nil {
			at := entry.RedeemedAt.UTC()
			entry.RedeemedAt = &at
		}
		if entry.RedeemedAt == nil && entry.RedeemedBy != nil {
			zero := time.Time{}
			entry.RedeemedAt = &zero
		}
		if entry.RedeemedAt != nil && entry.RedeemedBy == nil {
			unknown := "unknown"
			entry.RedeemedBy = &unknown
		}
		mergeCode(ledger.Codes, code, entry)
	}

	for _, ev := range doc.History {
		if !ev.Type.IsValid() || NormalizeCode(ev.Code) == "" || ev.Timestamp.IsZero() || ev.Value < 0 {
			continue
		}
		ev.Code = NormalizeCode(ev.Code)
		ev.Timestamp = ev.Timestamp.UTC()
		ledger.History = append(ledger.History, ev)
	}
	ledger.History = trimEvents(ledger.History)
	return ledger
}

// mergeCode keeps the redeemed copy when two raw keys normalize to the same code.
func mergeCode(codes map[string]DepositCode, code string, entry DepositCode) {
	existing, ok := codes[code]
	if ok && (existing.Redeemed() || !entry.Redeemed()) {
		return
	}
	codes[code] = entry
}

func normalizeRawMeta(v any) Meta {
	meta := Meta{Schema: SchemaVersion}
	m, ok := v.(map[string]any)
	if !ok {
		return meta
	}
	if schema, ok := asInt(m["schema"]); ok && schema > 0 {
		meta.Schema = int(schema)
	}
	if saved, ok := parseTimestamp(m["last_saved_utc"]); ok && !saved.IsZero() {
		meta.LastSavedUTC = &saved
	}
	return meta
}

func normalizeTypedMeta(m Meta) Meta {
	if m.Schema <= 0 {
		m.Schema = SchemaVersion
	}
	if m.LastSavedUTC != nil {
		if m.LastSavedUTC.IsZero() {
			m.LastSavedUTC = nil
		} else {
			saved := m.LastSavedUTC.UTC()
			m.LastSavedUTC = &saved
		}
	}
	return m
}

func clampCounter(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}

func trimTransactions(history []Transaction) []Transaction {
	if len(history) <= MaxHistory {
		return history
	}
	return append([]Transaction(nil), history[len(history)-MaxHistory:]...)
}

func trimEvents(history []CodeEvent) []CodeEvent {
	if len(history) <= MaxHistory {
		return history
	}
	return append([]CodeEvent(nil), history[len(history)-MaxHistory:]...)
}
