package app

import (
	"context"

	"pharmatrack/internal/core"
)

// ApplicationService is the single interface the transport adapters call.
// It decouples presentation from business logic. Implementations must
// contain no display logic of any kind.
type ApplicationService interface {
	// PlaceOrder creates a pending order for the acting patient.
	PlaceOrder(ctx context.Context, actor core.Actor, req PlaceOrderRequest) (*OrderResult, error)

	// TransitionOrder applies a named lifecycle action to an order.
	// Accepted actions: approve, reject, accept, ship, deliver, complete,
	// cancel and confirm (or confirm_delivery).
	TransitionOrder(ctx context.Context, actor core.Actor, req TransitionRequest) (*OrderResult, error)

	// GetOrder returns one order the actor may view.
	GetOrder(ctx context.Context, actor core.Actor, orderID int) (*OrderResult, error)

	// ListOrders returns the actor's orders, newest first, optionally filtered by status.
	ListOrders(ctx context.Context, actor core.Actor, status string) (*OrderListResult, error)

	// OrderSales returns the sales recorded when an order was committed.
	OrderSales(ctx context.Context, actor core.Actor, orderID int) (*SalesResult, error)

	// SellDirect records a walk-in sale at the acting pharmacy.
	SellDirect(ctx context.Context, actor core.Actor, req DirectSaleRequest) (*DirectSaleResult, error)

	// LowStock lists the acting pharmacy's medicines at or below minimum stock.
	LowStock(ctx context.Context, actor core.Actor) (*LowStockResult, error)

	// CustomerSummaries lists customers who bought from the acting pharmacy.
	CustomerSummaries(ctx context.Context, actor core.Actor) (*CustomerSummaryResult, error)

	// Notifications returns the actor's inbox, newest first.
	Notifications(ctx context.Context, actor core.Actor, unreadOnly bool) (*NotificationListResult, error)

	// MarkNotificationRead marks one of the actor's notifications as read.
	MarkNotificationRead(ctx context.Context, actor core.Actor, notificationID int) error

	// GetUser returns a user profile with its display name.
	GetUser(ctx context.Context, userID int) (*UserResult, error)
}
