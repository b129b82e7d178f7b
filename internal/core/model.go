package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Medicine is a stocked product owned by one pharmacy user.
// StockQuantity is never negative and is only changed through StockLedger.
type Medicine struct {
	ID            int             `json:"id"`
	PharmacyID    int             `json:"pharmacy_id"`
	Name          string          `json:"name"`
	GenericName   string          `json:"generic_name"`
	StockQuantity int             `json:"stock_quantity"`
	MinimumStock  int             `json:"minimum_stock"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DefaultMinimumStock is the low-stock threshold for medicines created without one.
const DefaultMinimumStock = 50

// IsLowStock reports whether stock is at or below the minimum threshold.
func (m Medicine) IsLowStock() bool {
	return m.StockQuantity <= m.MinimumStock
}

// IsExpired reports whether the medicine's expiry date is before the given day.
func (m Medicine) IsExpired(now time.Time) bool {
	if m.ExpiryDate == nil {
		return false
	}
	y, mo, d := now.Date()
	today := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	ey, em, ed := m.ExpiryDate.Date()
	return time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Before(today)
}

// Customer is a reporting identity attached to sales. All fields are optional.
type Customer struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerSummary aggregates a customer's sales at one pharmacy.
type CustomerSummary struct {
	Customer
	SaleCount     int             `json:"sale_count"`
	TotalQuantity int             `json:"total_quantity"`
	TotalSpent    decimal.Decimal `json:"total_spent"`
	LastSaleAt    time.Time       `json:"last_sale_at"`
}

// PharmacyProfile is the reporting profile that sales are booked against.
// There is exactly one per pharmacy user.
type PharmacyProfile struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Sale is the immutable record of one committed order line.
type Sale struct {
	ID                int             `json:"id"`
	PharmacyProfileID int             `json:"pharmacy_profile_id"`
	MedicineID        int             `json:"medicine_id"`
	OrderID           int             `json:"order_id"`
	OrderItemID       int             `json:"order_item_id"`
	Quantity          int             `json:"quantity"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	CustomerID        *int            `json:"customer_id,omitempty"`
	SaleDate          time.Time       `json:"sale_date"`
}

// Notification is an in-app message to a user.
type Notification struct {
	ID          int             `json:"id"`
	RecipientID int             `json:"recipient_id"`
	Verb        string          `json:"verb"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data,omitempty"`
	Read        bool            `json:"read"`
	CreatedAt   time.Time       `json:"created_at"`
}
