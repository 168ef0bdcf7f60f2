package scanning

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zombor/billed/internal/bill"
)

// fallbackDateLayouts are tried when the model ignores the ISO format.
var fallbackDateLayouts = []string{
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
}

// parseFields parses the JSON answer of a model
func parseFields(text string) (*Fields, error) {
	text = trimModelOutput(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var fields Fields
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	fields.Name = strings.TrimSpace(fields.Name)
	fields.Date = normalizeDate(fields.Date)
	if !slices.Contains(bill.Categories, fields.Type) {
		fields.Type = ""
	}
	if fields.Amount < 0 {
		fields.Amount = 0
	}
	if fields.VAT < 0 || fields.VAT > fields.Amount {
		fields.VAT = 0
	}

	return &fields, nil
}

// normalizeDate returns raw as YYYY-MM-DD, or "" when it cannot be read.
// Receipts are French, so ambiguous numeric dates are read day first.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d.Format("2006-01-02")
	}
	for _, layout := range fallbackDateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format("2006-01-02")
		}
	}
	return ""
}
