package app

import "pharmatrack/internal/core"

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order `json:"order"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
	Status string       `json:"status,omitempty"`
}

// SalesResult is returned by OrderSales.
type SalesResult struct {
	OrderID int         `json:"order_id"`
	Sales   []core.Sale `json:"sales"`
}

// DirectSaleResult is returned by SellDirect.
type DirectSaleResult struct {
	core.DirectSaleResult
}

// LowStockResult is returned by LowStock.
type LowStockResult struct {
	Medicines []core.Medicine `json:"medicines"`
}

// CustomerSummaryResult is returned by CustomerSummaries.
type CustomerSummaryResult struct {
	Customers []core.CustomerSummary `json:"customers"`
}

// NotificationListResult is returned by Notifications.
type NotificationListResult struct {
	Notifications []core.Notification `json:"notifications"`
	Unread        int                 `json:"unread"`
}

// UserResult is returned by GetUser.
type UserResult struct {
	User        *core.User `json:"user"`
	DisplayName string     `json:"display_name"`
}
