package bill

import "github.com/shopspring/decimal"

// Status is the lifecycle state of a bill. It is set by the backend.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// DefaultPct is the VAT percentage used when none is given.
const DefaultPct = 20

// Bill represents one expense claim
type Bill struct {
	ID         string          `json:"id,omitempty"`
	Email      string          `json:"email"`
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Date       string          `json:"date"`
	VAT        decimal.Decimal `json:"vat"`
	Pct        int             `json:"pct"`
	Commentary string          `json:"commentary"`
	FileURL    string          `json:"fileUrl,omitempty"`
	FileName   string          `json:"fileName,omitempty"`
	Status     Status          `json:"status"`

	// RawAmount holds the stored amount text when it is not a number.
	// Amount is then zero.
	RawAmount string `json:"-"`
}

// HasReceipt reports whether the bill carries an uploaded receipt.
func (b Bill) HasReceipt() bool {
	return b.FileURL != "" && b.FileName != ""
}

// UserType distinguishes employees from administrators
type UserType string

const (
	UserEmployee UserType = "Employee"
	UserAdmin    UserType = "Admin"
)

// Session identifies the connected user. It is never mutated by this package.
type Session struct {
	Email string   `json:"email"`
	Type  UserType `json:"type"`
}

// File is a receipt chosen by the user
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Upload is the payload sent to Store.Create
type Upload struct {
	File  File
	Email string
}

// UploadResult is returned by Store.Create. Key identifies the bill record
// created alongside the file.
type UploadResult struct {
	FileURL    string      `json:"fileUrl"`
	Key        string      `json:"key"`
	FilePath   string      `json:"filePath,omitempty"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Suggestion holds bill fields read from a receipt image
type Suggestion struct {
	Type   string          `json:"type,omitempty"`
	Name   string          `json:"name,omitempty"`
	Date   string          `json:"date,omitempty"`
	Amount decimal.Decimal `json:"amount"`
	VAT    decimal.Decimal `json:"vat"`
}

// Form holds the raw values of the new bill form, as typed by the user.
type Form struct {
	Type       string
	Name       string
	Date       string
	Amount     string
	VAT        string
	Pct        string
	Commentary string
}

// Categories lists the known expense types.
var Categories = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}
