package expense

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/zombor/billed/internal/bill"
)

// strictPolicy removes every HTML tag from free text
var strictPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from user text. bluemonday escapes what it
// keeps, so the result is unescaped again; templates escape on output.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func sanitizeBill(b bill.Bill) bill.Bill {
	b.Type = sanitizeText(b.Type)
	b.Name = sanitizeText(b.Name)
	b.Commentary = sanitizeText(b.Commentary)
	b.Date = strings.TrimSpace(b.Date)
	return b
}
