package expense

import (
	"time"

	"github.com/zombor/billed/internal/bill"
)

// Record is a bill as persisted by the backend
type Record struct {
	bill.Bill

	FilePath    string    `json:"filePath,omitempty"`    // path inside Storage
	ContentType string    `json:"contentType,omitempty"` // sniffed receipt type
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
