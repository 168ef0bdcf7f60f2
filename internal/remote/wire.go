package remote

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/zombor/billed/internal/bill"
)

// wireBill reads a listed record without failing on the fields older
// clients stored loosely.
type wireBill struct {
	bill.Bill
	Amount json.RawMessage `json:"amount"`
	Date   json.RawMessage `json:"date"`
	VAT    json.RawMessage `json:"vat"`
	Pct    json.RawMessage `json:"pct"`
}

// decodeBill fills a bill from one listed record. An amount that is not a
// number lands in RawAmount, and a date of any JSON type is kept as its
// text. It fails only when the record is not a bill object.
func decodeBill(data []byte) (bill.Bill, error) {
	var w wireBill
	if err := json.Unmarshal(data, &w); err != nil {
		return bill.Bill{}, err
	}

	b := w.Bill
	b.Date = rawText(w.Date)

	if len(w.Amount) > 0 {
		if err := b.Amount.UnmarshalJSON(w.Amount); err != nil {
			b.RawAmount = rawText(w.Amount)
		}
	}
	if len(w.VAT) > 0 {
		if err := b.VAT.UnmarshalJSON(w.VAT); err != nil {
			slog.Debug("Ignoring unreadable vat", "id", b.ID, "vat", rawText(w.VAT))
		}
	}
	if pct := rawText(w.Pct); pct != "" {
		b.Pct = bill.ParsePct(pct)
	}
	return b, nil
}

// rawText returns a JSON value as display text: strings unquoted, null as
// empty, anything else verbatim.
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
