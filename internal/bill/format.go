package bill

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when reading a stored date.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Short French month names, as printed in the bills table.
var monthNames = [12]string{
	"Jan", "Fév", "Mar", "Avr", "Mai", "Jui",
	"Jui", "Aoû", "Sep", "Oct", "Nov", "Déc",
}

var statusLabels = map[Status]string{
	StatusPending:  "En attente",
	StatusAccepted: "Accepté",
	StatusRefused:  "Refusé",
}

var errNotANumber = errors.New("not a number")

// FormatError tags a field that could not be formatted for display
type FormatError struct {
	Field string
	Value string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("formatting %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParseDate reads a stored bill date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// FormatDate renders a stored date the way the bills table shows it,
// e.g. "2004-04-04" becomes "4 Avr. 04".
func FormatDate(raw string) (string, error) {
	t, err := ParseDate(raw)
	if err != nil {
		return "", err
	}
	return formatTime(t), nil
}

func formatTime(t time.Time) string {
	year := strconv.Itoa(t.Year())
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return fmt.Sprintf("%d %s. %s", t.Day(), monthNames[t.Month()-1], year)
}

// FormatStatus maps a status to its label. Unknown values read as pending.
func FormatStatus(status Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return statusLabels[StatusPending]
}
