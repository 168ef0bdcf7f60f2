package bill

import "context"

// Store is the remote persistence API for bills and receipt files.
//
// Implementations wrap ErrNotFound when a resource does not exist and
// ErrServer for any other transport or server failure.
type Store interface {
	// List returns the bills in the store's session scope, in store order.
	List(ctx context.Context) ([]Bill, error)

	// Create uploads a receipt file and creates the bill record it belongs to.
	Create(ctx context.Context, upload Upload) (*UploadResult, error)

	// Update writes bill under id. An empty id creates a new record.
	Update(ctx context.Context, bill Bill, id string) (*Bill, error)
}

// Navigator moves the surrounding shell to a named route.
type Navigator func(route string)

// Routes understood by the shell.
const (
	RouteLogin   = "/"
	RouteBills   = "#employee/bills"
	RouteNewBill = "#employee/bill/new"
)
