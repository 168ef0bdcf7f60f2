package scanning

import "context"

// Fields contains the bill fields read from a receipt image
type Fields struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Date   string  `json:"date"` // YYYY-MM-DD, empty when unreadable
	Amount float64 `json:"amount"`
	VAT    float64 `json:"vat"`
}

// Scanner reads bill fields from receipt images
type Scanner interface {
	// ScanReceipt analyzes a jpeg or png receipt
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*Fields, error)
	// Close closes the scanner and releases resources
	Close() error
}
