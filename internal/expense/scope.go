package expense

import (
	"context"
	"errors"
	"fmt"

	"github.com/zombor/billed/internal/bill"
)

// sessionStore exposes the service as a bill.Store scoped to one session
type sessionStore struct {
	service *Service
	session bill.Session
}

// For returns a bill.Store over the service for session. Employees see
// their own bills, administrators see every bill.
func (s *Service) For(session bill.Session) bill.Store {
	return &sessionStore{service: s, session: session}
}

func (st *sessionStore) scope() string {
	if st.session.Type == bill.UserAdmin {
		return ""
	}
	return st.session.Email
}

// storeError classifies service errors the way remote stores do.
func storeError(err error) error {
	if errors.Is(err, bill.ErrNotFound) || errors.Is(err, bill.ErrServer) || IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", bill.ErrServer, err)
}

func (st *sessionStore) List(ctx context.Context) ([]bill.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bills, err := st.service.ListBills(st.scope())
	if err != nil {
		return nil, storeError(err)
	}
	return bills, nil
}

func (st *sessionStore) Create(ctx context.Context, upload bill.Upload) (*bill.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result, err := st.service.UploadReceipt(ctx, upload.Email, upload.File.Name, upload.File.Data)
	if err != nil {
		return nil, storeError(err)
	}
	return result, nil
}

func (st *sessionStore) Update(ctx context.Context, b bill.Bill, id string) (*bill.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		record *Record
		err    error
	)
	if id == "" {
		record, err = st.service.CreateBill(b)
	} else {
		record, err = st.service.UpdateBill(id, b)
	}
	if err != nil {
		return nil, storeError(err)
	}
	return &record.Bill, nil
}
