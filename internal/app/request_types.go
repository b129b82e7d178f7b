package app

// PlaceOrderRequest is the input for placing a patient order.
type PlaceOrderRequest struct {
	PharmacyID    int                `json:"pharmacy_id"`
	Items         []OrderLineRequest `json:"items"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
}

// OrderLineRequest is a single line within a PlaceOrderRequest.
type OrderLineRequest struct {
	MedicineID int `json:"medicine_id"`
	Quantity   int `json:"quantity"`
}

// TransitionRequest names a lifecycle action on an order.
type TransitionRequest struct {
	OrderID int    `json:"-"`
	Action  string `json:"-"`
	// CustomerName overrides the order's customer name on confirm.
	CustomerName string `json:"customer_name"`
}

// DirectSaleRequest is the input for a walk-in sale.
type DirectSaleRequest struct {
	MedicineID    int    `json:"medicine_id"`
	Quantity      int    `json:"quantity"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}
