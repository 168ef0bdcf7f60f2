package bill

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"
)

// Row is a bill prepared for the bills table.
type Row struct {
	Bill

	DisplayDate   string
	DisplayAmount string
	DisplayStatus string

	// Err holds a *FormatError per field that could not be formatted.
	// The matching Display field then holds the raw stored value.
	Err error

	when time.Time
}

// OK reports whether every field was formatted.
func (r Row) OK() bool {
	return r.Err == nil
}

// FormatBill prepares one bill for display. It never fails: a bad date or
// amount is kept as-is and tagged on the row.
func FormatBill(b Bill) Row {
	row := Row{
		Bill:          b,
		DisplayAmount: b.Amount.String(),
		DisplayStatus: FormatStatus(b.Status),
	}

	var errs []error
	if b.RawAmount != "" {
		row.DisplayAmount = b.RawAmount
		errs = append(errs, &FormatError{Field: "amount", Value: b.RawAmount, Err: errNotANumber})
	}

	when, err := ParseDate(b.Date)
	if err != nil {
		row.DisplayDate = b.Date
		errs = append(errs, &FormatError{Field: "date", Value: b.Date, Err: err})
	} else {
		row.DisplayDate = formatTime(when)
		row.when = when
	}

	switch len(errs) {
	case 0:
	case 1:
		row.Err = errs[0]
	default:
		row.Err = errors.Join(errs...)
	}
	return row
}

// SortRows orders rows by date, most recent first. Rows sharing a date keep
// their relative order; rows with unparseable dates go last.
func SortRows(rows []Row) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		return b.when.Compare(a.when)
	})
}

// BillsList fetches and formats the session's bills
type BillsList struct {
	store Store
}

// NewBillsList creates a BillsList bound to store
func NewBillsList(store Store) *BillsList {
	return &BillsList{store: store}
}

// FetchAndFormat lists the bills from the store and returns them formatted
// and sorted for display. A store failure is returned as a *FetchError.
func (l *BillsList) FetchAndFormat(ctx context.Context) ([]Row, error) {
	bills, err := l.store.List(ctx)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	rows := make([]Row, 0, len(bills))
	for _, b := range bills {
		row := FormatBill(b)
		if !row.OK() {
			slog.Warn("Keeping bill with unformatted fields", "id", b.ID, "error", row.Err)
		}
		rows = append(rows, row)
	}
	SortRows(rows)

	return rows, nil
}
