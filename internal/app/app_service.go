package app

import (
	"context"
	"fmt"
	"strings"

	"pharmatrack/internal/core"
)

type appService struct {
	orders    core.OrderService
	reporting core.ReportingService
	users     core.UserService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	orders core.OrderService,
	reporting core.ReportingService,
	users core.UserService,
) ApplicationService {
	return &appService{
		orders:    orders,
		reporting: reporting,
		users:     users,
	}
}

// actions maps transport action names to lifecycle events.
var actions = map[string]core.Event{
	"approve":          core.EventApprove,
	"reject":           core.EventReject,
	"accept":           core.EventAccept,
	"ship":             core.EventShip,
	"deliver":          core.EventDeliver,
	"complete":         core.EventComplete,
	"cancel":           core.EventCancel,
	"confirm":          core.EventConfirmDelivery,
	"confirm_delivery": core.EventConfirmDelivery,
}

// ParseAction resolves an action name to its lifecycle event.
func ParseAction(action string) (core.Event, error) {
	event, ok := actions[strings.ToLower(strings.TrimSpace(action))]
	if !ok {
		return "", &core.ValidationError{Message: fmt.Sprintf("unknown order action %q", action)}
	}
	return event, nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

func (s *appService) PlaceOrder(ctx context.Context, actor core.Actor, req PlaceOrderRequest) (*OrderResult, error) {
	items := make([]core.OrderLineInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, core.OrderLineInput{MedicineID: it.MedicineID, Quantity: it.Quantity})
	}
	order, err := s.orders.PlaceOrder(ctx, actor, core.PlaceOrderInput{
		PharmacyID:    req.PharmacyID,
		Items:         items,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) TransitionOrder(ctx context.Context, actor core.Actor, req TransitionRequest) (*OrderResult, error) {
	event, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Transition(ctx, req.OrderID, event, actor, core.TransitionOptions{
		CustomerName: req.CustomerName,
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) GetOrder(ctx context.Context, actor core.Actor, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

func (s *appService) ListOrders(ctx context.Context, actor core.Actor, status string) (*OrderListResult, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	orders, err := s.orders.ListOrders(ctx, actor, core.OrderStatus(status))
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders, Status: status}, nil
}

func (s *appService) OrderSales(ctx context.Context, actor core.Actor, orderID int) (*SalesResult, error) {
	sales, err := s.reporting.OrderSales(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}
	return &SalesResult{OrderID: orderID, Sales: sales}, nil
}

// ── Sales and reporting ──────────────────────────────────────────────────────

func (s *appService) SellDirect(ctx context.Context, actor core.Actor, req DirectSaleRequest) (*DirectSaleResult, error) {
	res, err := s.orders.SellDirect(ctx, actor, core.DirectSaleInput{
		MedicineID: req.MedicineID,
		Quantity:   req.Quantity,
		Customer: core.CustomerIdentity{
			Name:  req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
	})
	if err != nil {
		return nil, err
	}
	return &DirectSaleResult{DirectSaleResult: *res}, nil
}

func (s *appService) LowStock(ctx context.Context, actor core.Actor) (*LowStockResult, error) {
	meds, err := s.reporting.LowStockMedicines(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &LowStockResult{Medicines: meds}, nil
}

func (s *appService) CustomerSummaries(ctx context.Context, actor core.Actor) (*CustomerSummaryResult, error) {
	customers, err := s.reporting.CustomerSummaries(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &CustomerSummaryResult{Customers: customers}, nil
}

// ── Users and notifications ──────────────────────────────────────────────────

func (s *appService) Notifications(ctx context.Context, actor core.Actor, unreadOnly bool) (*NotificationListResult, error) {
	list, err := s.users.Notifications(ctx, actor, unreadOnly)
	if err != nil {
		return nil, err
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	return &NotificationListResult{Notifications: list, Unread: unread}, nil
}

func (s *appService) MarkNotificationRead(ctx context.Context, actor core.Actor, notificationID int) error {
	return s.users.MarkNotificationRead(ctx, actor, notificationID)
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	name, err := s.users.DisplayName(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{User: u, DisplayName: name}, nil
}
