package core

import "context"

// Store is the transactional record store the services run against.
// Implementations live in internal/store/postgres and internal/store/memory.
type Store interface {
	// WithTx runs fn in one atomic unit. If fn returns an error every write
	// made through tx is discarded.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, id int) (*Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]Order, error)
	GetMedicine(ctx context.Context, id int) (*Medicine, error)
	ListLowStockMedicines(ctx context.Context, pharmacyID int) ([]Medicine, error)
	GetUser(ctx context.Context, id int) (*User, error)
	ListSalesForOrder(ctx context.Context, orderID int) ([]Sale, error)
	ListCustomerSummaries(ctx context.Context, pharmacyID int) ([]CustomerSummary, error)

	InsertNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, recipientID int, unreadOnly bool) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, id int) error
}

// Tx is the set of writes and locking reads available inside WithTx.
// Missing rows are reported as *NotFoundError; the Find* lookups
// return (nil, nil) instead.
type Tx interface {
	// LockOrder loads an order with its items and locks the order row.
	LockOrder(ctx context.Context, id int) (*Order, error)
	// InsertOrder stores o and its items, assigning IDs and timestamps.
	InsertOrder(ctx context.Context, o *Order) error
	// UpdateOrder persists status, stock_reserved, customer_name and committed_at.
	UpdateOrder(ctx context.Context, o *Order) error

	// LockMedicine loads and locks a medicine row.
	LockMedicine(ctx context.Context, id int) (*Medicine, error)
	GetMedicine(ctx context.Context, id int) (*Medicine, error)
	SetStockQuantity(ctx context.Context, medicineID, qty int) error

	GetUser(ctx context.Context, id int) (*User, error)

	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// FindCustomerByPhoneDigits matches stored phones after stripping non-digits.
	FindCustomerByPhoneDigits(ctx context.Context, digits string) (*Customer, error)
	FindCustomerByName(ctx context.Context, name string) (*Customer, error)
	InsertCustomer(ctx context.Context, c *Customer) error

	// EnsurePharmacyProfile returns the user's profile, creating it with
	// the given name only if none exists.
	EnsurePharmacyProfile(ctx context.Context, userID int, name string) (*PharmacyProfile, error)
	// InsertSale stores s unless a sale already exists for its order item.
	// created is false in that case and s is left unchanged.
	InsertSale(ctx context.Context, s *Sale) (created bool, err error)
}
