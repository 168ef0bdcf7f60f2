package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/scanning"
)

// IDGenerator generates unique IDs for bills
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates time-ordered UUIDv7 ids so bolt keys follow
// creation order.
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles bill and receipt operations
type Service struct {
	db          DB
	storage     Storage
	scanner     scanning.Scanner
	idGenerator IDGenerator
	timeSource  TimeSource
	previews    *cache.Cache
}

// NewService creates a new Service. scanner may be nil.
func NewService(db DB, storage Storage, scanner scanning.Scanner) *Service {
	return NewServiceWithDeps(db, storage, scanner, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, scanner scanning.Scanner, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		scanner:     scanner,
		idGenerator: idGen,
		timeSource:  timeSrc,
		previews:    cache.New(previewTTL, 2*previewTTL),
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// detectReceiptType checks the receipt content, not only its name.
func detectReceiptType(data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	if !mtype.Is("image/jpeg") && !mtype.Is("image/png") {
		return "", &bill.ValidationError{Field: "file", Message: bill.InvalidFileMessage}
	}
	return mtype.String(), nil
}

// FileURL returns the URL a receipt is served from.
func FileURL(id string) string {
	return "/api/bills/" + id + "/file"
}

// UploadReceipt stores a receipt and creates the pending bill it belongs to.
// The returned key is the id of that bill.
func (s *Service) UploadReceipt(ctx context.Context, email, filename string, data []byte) (*bill.UploadResult, error) {
	if strings.TrimSpace(email) == "" {
		return nil, &bill.ValidationError{Field: "email", Message: "email is required"}
	}
	if err := bill.ValidateFileName(filename); err != nil {
		return nil, err
	}
	contentType, err := detectReceiptType(data)
	if err != nil {
		return nil, err
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(name)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	record := &Record{
		Bill: bill.Bill{
			ID:       id,
			Email:    email,
			Pct:      bill.DefaultPct,
			FileURL:  FileURL(id),
			FileName: name,
			Status:   bill.StatusPending,
		},
		FilePath:    savedPath,
		ContentType: contentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveBill(record); err != nil {
		if delErr := s.storage.Delete(savedPath); delErr != nil {
			slog.Warn("Failed to clean up receipt", "path", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return &bill.UploadResult{
		FileURL:    record.FileURL,
		Key:        id,
		FilePath:   savedPath,
		Suggestion: s.suggest(ctx, name, data, contentType),
	}, nil
}

// suggest scans the receipt when a scanner is configured. Scan failures
// only cost the suggestion.
func (s *Service) suggest(ctx context.Context, filename string, data []byte, contentType string) *bill.Suggestion {
	if s.scanner == nil {
		return nil
	}
	fields, err := s.scanner.ScanReceipt(ctx, data, contentType)
	if err != nil {
		slog.Warn("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil
	}
	return &bill.Suggestion{
		Type:   fields.Type,
		Name:   fields.Name,
		Date:   fields.Date,
		Amount: decimal.NewFromFloat(fields.Amount).Round(2),
		VAT:    decimal.NewFromFloat(fields.VAT).Round(2),
	}
}

// CreateBill creates a pending bill without a receipt
func (s *Service) CreateBill(b bill.Bill) (*Record, error) {
	if strings.TrimSpace(b.Email) == "" {
		return nil, &bill.ValidationError{Field: "email", Message: "email is required"}
	}
	if b.FileURL != "" || b.FileName != "" {
		return nil, &bill.ValidationError{Field: "file", Message: "receipts are attached by upload"}
	}
	if err := validateFields(b); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	record := &Record{
		Bill:      sanitizeBill(b),
		CreatedAt: now,
		UpdatedAt: now,
	}
	record.ID = s.idGenerator.Generate()
	record.Status = bill.StatusPending

	if err := s.db.SaveBill(record); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}
	return record, nil
}

// UpdateBill writes the form fields of b onto an existing bill. The owner,
// status and receipt of the stored bill are kept.
func (s *Service) UpdateBill(id string, b bill.Bill) (*Record, error) {
	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	if b.Email != "" && b.Email != record.Email {
		return nil, &bill.ValidationError{Field: "email", Message: "bill belongs to another user"}
	}
	if (b.FileURL != "" || b.FileName != "") && (b.FileURL != record.FileURL || b.FileName != record.FileName) {
		return nil, &bill.ValidationError{Field: "file", Message: "receipt does not match the uploaded file"}
	}
	if err := validateFields(b); err != nil {
		return nil, err
	}

	clean := sanitizeBill(b)
	record.Type = clean.Type
	record.Name = clean.Name
	record.Amount = clean.Amount
	record.Date = clean.Date
	record.VAT = clean.VAT
	record.Pct = clean.Pct
	record.Commentary = clean.Commentary
	record.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(record); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}
	return record, nil
}

// SetStatus records the decision taken on a bill
func (s *Service) SetStatus(id string, status bill.Status) (*Record, error) {
	switch status {
	case bill.StatusPending, bill.StatusAccepted, bill.StatusRefused:
	default:
		return nil, &bill.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	record.Status = status
	record.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(record); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}
	return record, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Record, error) {
	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return record, nil
}

// ListBills returns the bills owned by email in creation order, or every
// bill when email is empty.
func (s *Service) ListBills(email string) ([]bill.Bill, error) {
	records, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}

	bills := make([]bill.Bill, 0, len(records))
	for _, r := range records {
		if email != "" && r.Email != email {
			continue
		}
		bills = append(bills, r.Bill)
	}
	return bills, nil
}

// GetBillFile retrieves the receipt of a bill
func (s *Service) GetBillFile(id string) ([]byte, string, error) {
	record, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if record.FilePath == "" {
		return nil, "", fmt.Errorf("bill %s has no receipt: %w", id, bill.ErrNotFound)
	}

	data, err := s.storage.Get(record.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, record.ContentType, nil
}

// validateFields checks the values a client may write.
func validateFields(b bill.Bill) error {
	if b.Amount.IsNegative() {
		return &bill.ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	if b.VAT.IsNegative() {
		return &bill.ValidationError{Field: "vat", Message: "vat must not be negative"}
	}
	if b.Date != "" {
		if _, err := bill.ParseDate(b.Date); err != nil {
			return &bill.ValidationError{Field: "date", Message: fmt.Sprintf("invalid date %q", b.Date)}
		}
	}
	return nil
}

// IsValidation reports whether err was caused by bad client input.
func IsValidation(err error) bool {
	var validationErr *bill.ValidationError
	return errors.As(err, &validationErr)
}
