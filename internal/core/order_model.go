package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a patient order (or a synthesized walk-in sale) against one pharmacy.
// Status and StockReserved are only changed by OrderService.
//
//	pending → approved → (accepted) → shipped → (delivered) → completed
//	pending/approved → rejected | cancelled
type Order struct {
	ID            int             `json:"id"`
	PharmacyID    int             `json:"pharmacy_id"`
	PatientID     *int            `json:"patient_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        OrderStatus     `json:"status"`
	StockReserved bool            `json:"stock_reserved"`
	// CommittedAt is set once sales have been recorded for the order's items.
	CommittedAt *time.Time  `json:"committed_at,omitempty"`
	Items       []OrderItem `json:"items"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// OrderItem is one immutable order line. UnitPrice is the medicine price at order time.
type OrderItem struct {
	ID           int             `json:"id"`
	OrderID      int             `json:"order_id"`
	MedicineID   int             `json:"medicine_id"`
	MedicineName string          `json:"medicine_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Lines returns the stock lines of the order's items.
func (o *Order) Lines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, StockLine{MedicineID: it.MedicineID, Quantity: it.Quantity})
	}
	return lines
}

// OrderLineInput is a requested line when placing an order.
type OrderLineInput struct {
	MedicineID int `json:"medicine_id"`
	Quantity   int `json:"quantity"`
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	PharmacyID int
	PatientID  int
	Status     OrderStatus
}
