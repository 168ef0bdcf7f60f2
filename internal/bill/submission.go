package bill

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// State is a step of the new bill submission
type State int

const (
	// StateIdle accepts a file selection, or a submit without receipt.
	StateIdle State = iota
	// StateUploading waits for the receipt upload to resolve.
	StateUploading
	// StateReady holds an uploaded receipt and accepts a submit.
	StateReady
	// StateSubmitting waits for the bill update to resolve.
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the states a user action may start from.
var transitions = map[State][]State{
	StateIdle:  {StateUploading, StateSubmitting},
	StateReady: {StateUploading, StateSubmitting},
}

// allowedExtensions is matched case-insensitively against receipt names.
var allowedExtensions = []string{"jpg", "jpeg", "png"}

// SubmissionOption configures a Submission
type SubmissionOption func(*Submission)

// WithValidityReporter sets the callback used to flag the file input.
// It receives the rejection message, or "" once a valid file is chosen.
func WithValidityReporter(report func(message string)) SubmissionOption {
	return func(s *Submission) {
		s.report = report
	}
}

// Submission drives the two-step creation of a bill: receipt upload, then
// form submit. It is safe for concurrent use.
type Submission struct {
	store    Store
	session  Session
	navigate Navigator
	report   func(message string)

	mu         sync.Mutex
	state      State
	fileURL    string
	fileName   string
	billID     string
	suggestion *Suggestion
}

// NewSubmission creates a Submission for the given session
func NewSubmission(store Store, session Session, navigate Navigator, opts ...SubmissionOption) *Submission {
	s := &Submission{
		store:    store,
		session:  session,
		navigate: navigate,
		report:   func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current step.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Receipt returns the uploaded file reference and name, empty when unset.
func (s *Submission) Receipt() (fileURL, fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileURL, s.fileName
}

// BillID returns the id of the bill created by the last upload.
func (s *Submission) BillID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billID
}

// Suggestion returns the fields scanned from the uploaded receipt, if any.
func (s *Submission) Suggestion() *Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion
}

// ValidateFileName checks a receipt name against the allowed extensions.
func ValidateFileName(name string) error {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(baseName(name)), "."))
	if !slices.Contains(allowedExtensions, ext) {
		return &ValidationError{Field: "file", Message: InvalidFileMessage}
	}
	return nil
}

// baseName strips any client path, including the browser's C:\fakepath\.
func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// enter moves to next if a user action may start from the current state.
func (s *Submission) enter(next State) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if !slices.Contains(transitions[prev], next) {
		if prev == StateUploading && next == StateSubmitting {
			return prev, ErrUploadInProgress
		}
		return prev, fmt.Errorf("%w: cannot go from %s to %s", ErrBusy, prev, next)
	}
	s.state = next
	return prev, nil
}

func (s *Submission) restore(prev State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = prev
}

// HandleFileSelection validates and uploads the chosen receipt. Invalid files
// are reported to the input and never reach the store. On success the
// returned reference replaces any previous one.
func (s *Submission) HandleFileSelection(ctx context.Context, file File) error {
	if err := ValidateFileName(file.Name); err != nil {
		s.report(InvalidFileMessage)
		return err
	}
	s.report("")

	prev, err := s.enter(StateUploading)
	if err != nil {
		return err
	}

	name := baseName(file.Name)
	file.Name = name
	result, err := s.store.Create(ctx, Upload{File: file, Email: s.session.Email})
	if err == nil && result == nil {
		err = errEmptyUpload
	}
	if err != nil {
		s.restore(prev)
		return &UploadError{FileName: name, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fileURL = result.FileURL
	s.fileName = name
	s.billID = result.Key
	s.suggestion = result.Suggestion
	s.state = StateReady
	return nil
}

// HandleSubmit builds the bill from the form and writes it to the store.
// Navigation to the bills list happens only once the update succeeded, so a
// submit refused with ErrUploadInProgress, a validation error or a failed
// update does not navigate.
func (s *Submission) HandleSubmit(ctx context.Context, form Form) error {
	prev, err := s.enter(StateSubmitting)
	if err != nil {
		return err
	}

	s.mu.Lock()
	bill, err := s.buildBill(form)
	id := s.billID
	s.mu.Unlock()
	if err != nil {
		s.restore(prev)
		return err
	}

	if _, err := s.store.Update(ctx, bill, id); err != nil {
		s.restore(prev)
		return &UpdateError{ID: id, Err: err}
	}

	s.mu.Lock()
	s.state = StateIdle
	s.fileURL = ""
	s.fileName = ""
	s.billID = ""
	s.suggestion = nil
	s.mu.Unlock()

	s.navigate(RouteBills)
	return nil
}

// buildBill must be called with s.mu held.
func (s *Submission) buildBill(form Form) (Bill, error) {
	amount, err := parseDecimal(form.Amount)
	if err != nil {
		return Bill{}, &ValidationError{Field: "amount", Message: "Le montant doit être un nombre"}
	}

	vat := decimal.Zero
	if strings.TrimSpace(form.VAT) != "" {
		vat, err = parseDecimal(form.VAT)
		if err != nil {
			return Bill{}, &ValidationError{Field: "vat", Message: "La TVA doit être un nombre"}
		}
	}

	return Bill{
		Email:      s.session.Email,
		Type:       strings.TrimSpace(form.Type),
		Name:       strings.TrimSpace(form.Name),
		Amount:     amount,
		Date:       strings.TrimSpace(form.Date),
		VAT:        vat,
		Pct:        ParsePct(form.Pct),
		Commentary: form.Commentary,
		FileURL:    s.fileURL,
		FileName:   s.fileName,
		Status:     StatusPending,
	}, nil
}

// ParsePct reads the leading integer of the VAT percentage field, so "15.5"
// gives 15. Empty, non-numeric and zero values give DefaultPct.
func ParsePct(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) {
		c := raw[end]
		if c >= '0' && c <= '9' || end == 0 && (c == '-' || c == '+') {
			end++
			continue
		}
		break
	}
	pct, err := strconv.Atoi(raw[:end])
	if err != nil || pct == 0 {
		return DefaultPct
	}
	return pct
}

// parseDecimal accepts both "12.50" and "12,50".
func parseDecimal(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	return decimal.NewFromString(raw)
}
