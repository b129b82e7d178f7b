package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("pharmatrack/internal/core")

// OrderService owns the order lifecycle. It is the only writer of
// Order.Status and Order.StockReserved.
type OrderService interface {
	// PlaceOrder creates a pending order for the acting patient. Stock is not touched.
	PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (*Order, error)

	// Transition applies event to the order on behalf of actor.
	// The order row is locked first, then any medicine rows in ascending id order;
	// guards are evaluated only after all locks are held.
	Transition(ctx context.Context, orderID int, event Event, actor Actor, opts TransitionOptions) (*Order, error)

	Approve(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Reject(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Accept(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Ship(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Deliver(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Complete(ctx context.Context, orderID int, actor Actor) (*Order, error)
	Cancel(ctx context.Context, orderID int, actor Actor) (*Order, error)
	// ConfirmDelivery commits the order's sales. customerName, if non-empty,
	// replaces the order's customer name before the customer is resolved.
	ConfirmDelivery(ctx context.Context, orderID int, actor Actor, customerName string) (*Order, error)

	// SellDirect records a walk-in sale by the acting pharmacy.
	SellDirect(ctx context.Context, actor Actor, in DirectSaleInput) (*DirectSaleResult, error)

	// Queries
	GetOrder(ctx context.Context, orderID int, actor Actor) (*Order, error)
	ListOrders(ctx context.Context, actor Actor, status OrderStatus) ([]Order, error)
}

// PlaceOrderInput is the patient's order request.
type PlaceOrderInput struct {
	PharmacyID    int
	Items         []OrderLineInput
	CustomerName  string
	CustomerPhone string
}

// TransitionOptions carries event-specific arguments.
type TransitionOptions struct {
	// CustomerName overrides the order's customer name on confirm_delivery.
	CustomerName string
}

// DirectSaleInput is a walk-in sale of one medicine.
type DirectSaleInput struct {
	MedicineID int
	Quantity   int
	Customer   CustomerIdentity
}

// DirectSaleResult is returned by SellDirect.
type DirectSaleResult struct {
	SaleID          int              `json:"sale_id"`
	OrderID         int              `json:"order_id"`
	RemainingStock  int              `json:"remaining_stock"`
	TotalPrice      decimal.Decimal  `json:"total_price"`
	CustomerID      *int             `json:"customer_id,omitempty"`
	CustomerOutcome ReconcileOutcome `json:"customer_outcome"`
}

type orderService struct {
	store      Store
	ledger     *StockLedger
	reconciler *CustomerReconciler
	recorder   *SaleRecorder
	names      DisplayNameProvider
	notifier   Notifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrderService wires the lifecycle around store. notifier may be nil.
func NewOrderService(store Store, notifier Notifier, logger *zap.Logger) OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	names := UserDisplayName{}
	return &orderService{
		store:      store,
		ledger:     NewStockLedger(logger),
		reconciler: NewCustomerReconciler(logger),
		recorder:   NewSaleRecorder(names, logger),
		names:      names,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// ── Placing orders ───────────────────────────────────────────────────────────

func (s *orderService) PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.place", trace.WithAttributes(
		attribute.Int("actor.id", actor.UserID),
		attribute.Int("pharmacy.id", in.PharmacyID),
	))
	defer span.End()

	if actor.Role != RolePatient {
		return nil, spanErr(span, &UnauthorizedError{ActorID: actor.UserID, Required: "patient"})
	}
	if len(in.Items) == 0 {
		return nil, spanErr(span, validationf("order must have at least one item"))
	}
	for i, item := range in.Items {
		if err := checkQuantity(item.Quantity); err != nil {
			return nil, spanErr(span, validationf("item %d: %v", i+1, err))
		}
	}
	lines := make([]StockLine, 0, len(in.Items))
	for _, item := range in.Items {
		lines = append(lines, StockLine{MedicineID: item.MedicineID, Quantity: item.Quantity})
	}
	if _, err := mergeLines(lines); err != nil {
		return nil, spanErr(span, err)
	}

	var order *Order
	err := s.store.WithTx(ctx, func(tx Tx) error {
		patient, err := tx.GetUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		pharmacy, err := tx.GetUser(ctx, in.PharmacyID)
		if err != nil {
			return err
		}
		if pharmacy.Role != RolePharmacy {
			return validationf("user %d is not a pharmacy", in.PharmacyID)
		}

		today := s.now()
		o := &Order{
			PharmacyID:    pharmacy.ID,
			PatientID:     &patient.ID,
			CustomerName:  strings.TrimSpace(in.CustomerName),
			CustomerPhone: strings.TrimSpace(in.CustomerPhone),
			Status:        StatusPending,
		}
		if o.CustomerName == "" {
			o.CustomerName = s.names.DisplayName(patient)
		}

		for i, item := range in.Items {
			m, err := tx.GetMedicine(ctx, item.MedicineID)
			if err != nil {
				return err
			}
			if m.PharmacyID != pharmacy.ID {
				return validationf("item %d: medicine %d is not sold by pharmacy %d", i+1, m.ID, pharmacy.ID)
			}
			if m.IsExpired(today) {
				return validationf("item %d: %s has expired", i+1, m.Name)
			}
			subtotal := m.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
			o.TotalAmount = o.TotalAmount.Add(subtotal)
			o.Items = append(o.Items, OrderItem{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Quantity:     item.Quantity,
				UnitPrice:    m.UnitPrice,
				Subtotal:     subtotal,
			})
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, spanErr(span, err)
	}

	span.SetAttributes(attribute.Int("order.id", order.ID))
	s.logger.Info("order placed",
		zap.Int("order_id", order.ID),
		zap.Int("pharmacy_id", order.PharmacyID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	s.emit(ctx, Notification{
		RecipientID: order.PharmacyID,
		Verb:        VerbOrderPlaced,
		Message:     fmt.Sprintf("New order #%d from %s", order.ID, order.CustomerName),
		Data:        orderPayload(order),
	})
	return order, nil
}

// ── Lifecycle transitions ────────────────────────────────────────────────────

func (s *orderService) Approve(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventApprove, actor, TransitionOptions{})
}

func (s *orderService) Reject(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventReject, actor, TransitionOptions{})
}

func (s *orderService) Accept(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventAccept, actor, TransitionOptions{})
}

func (s *orderService) Ship(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventShip, actor, TransitionOptions{})
}

func (s *orderService) Deliver(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventDeliver, actor, TransitionOptions{})
}

func (s *orderService) Complete(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventComplete, actor, TransitionOptions{})
}

func (s *orderService) Cancel(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	return s.Transition(ctx, orderID, EventCancel, actor, TransitionOptions{})
}

func (s *orderService) ConfirmDelivery(ctx context.Context, orderID int, actor Actor, customerName string) (*Order, error) {
	return s.Transition(ctx, orderID, EventConfirmDelivery, actor, TransitionOptions{CustomerName: customerName})
}

func (s *orderService) Transition(ctx context.Context, orderID int, event Event, actor Actor, opts TransitionOptions) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order."+string(event), trace.WithAttributes(
		attribute.Int("order.id", orderID),
		attribute.String("order.event", string(event)),
		attribute.Int("actor.id", actor.UserID),
	))
	defer span.End()

	rule, ok := transitions[event]
	if !ok {
		return nil, spanErr(span, validationf("unknown order event %q", event))
	}

	var (
		result  *Order
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, rule.actor, actor); err != nil {
			return err
		}

		// Re-entrant approve/complete: the state was checked under the row lock.
		if containsStatus(rule.noop, order.Status) {
			result = order
			return nil
		}
		if !containsStatus(rule.from, order.Status) {
			return &InvalidTransitionError{OrderID: order.ID, Current: order.Status, Event: event}
		}

		switch event {
		case EventApprove:
			if !order.StockReserved {
				if _, err := s.ledger.Reserve(ctx, tx, order.Lines()); err != nil {
					return err
				}
				order.StockReserved = true
			}
		case EventReject, EventCancel:
			if order.StockReserved {
				if _, err := s.ledger.Release(ctx, tx, order.Lines()); err != nil {
					return err
				}
				order.StockReserved = false
			}
		case EventConfirmDelivery:
			if order.CommittedAt != nil {
				result = order
				return nil
			}
			if err := s.commitSales(ctx, tx, order, opts.CustomerName); err != nil {
				return err
			}
		}

		order.Status = rule.to
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to update order %d: %w", order.ID, err)
		}
		result = order
		changed = true
		return nil
	})
	if err != nil {
		s.logger.Info("order transition refused",
			zap.Int("order_id", orderID),
			zap.String("event", string(event)),
			zap.String("kind", KindOf(err).Code()),
			zap.Error(err),
		)
		return nil, spanErr(span, err)
	}

	span.SetAttributes(
		attribute.String("order.status", string(result.Status)),
		attribute.Bool("order.stock_reserved", result.StockReserved),
		attribute.Bool("order.changed", changed),
	)
	if !changed {
		s.logger.Debug("order transition was a no-op", zap.Int("order_id", orderID), zap.String("event", string(event)))
		return result, nil
	}

	s.logger.Info("order transitioned",
		zap.Int("order_id", result.ID),
		zap.String("event", string(event)),
		zap.String("status", string(result.Status)),
		zap.Bool("stock_reserved", result.StockReserved),
	)
	if n, ok := notificationFor(event, result, s.displayName(ctx, actor.UserID)); ok {
		s.emit(ctx, n)
	}
	return result, nil
}

// commitSales materialises the order's sales. An unreserved order has its
// stock deducted here; a reserved order was already deducted at approval.
func (s *orderService) commitSales(ctx context.Context, tx Tx, order *Order, customerName string) error {
	if !order.StockReserved {
		if _, err := s.ledger.DeductImmediate(ctx, tx, order.Lines()); err != nil {
			return err
		}
		order.StockReserved = true
	}
	if name := strings.TrimSpace(customerName); name != "" {
		order.CustomerName = name
	}

	rec := s.reconciler.Reconcile(ctx, tx, CustomerIdentity{Name: order.CustomerName, Phone: order.CustomerPhone})
	if rec.Outcome == OutcomeFailed {
		return rec.Err
	}

	now := s.now()
	if _, err := s.recorder.Record(ctx, tx, order, rec.CustomerID(), now); err != nil {
		return err
	}
	order.CommittedAt = &now
	return nil
}

// authorize checks that actor is the pharmacy or patient the rule requires.
func authorize(order *Order, required party, actor Actor) error {
	switch required {
	case owningPharmacy:
		if actor.Role == RolePharmacy && actor.UserID == order.PharmacyID {
			return nil
		}
	case owningPatient:
		if actor.Role == RolePatient && order.PatientID != nil && *order.PatientID == actor.UserID {
			return nil
		}
	}
	return &UnauthorizedError{ActorID: actor.UserID, Required: required.String()}
}

// ── Walk-in sales ────────────────────────────────────────────────────────────

func (s *orderService) SellDirect(ctx context.Context, actor Actor, in DirectSaleInput) (*DirectSaleResult, error) {
	ctx, span := tracer.Start(ctx, "order.sell_direct", trace.WithAttributes(
		attribute.Int("actor.id", actor.UserID),
		attribute.Int("medicine.id", in.MedicineID),
		attribute.Int("sale.quantity", in.Quantity),
	))
	defer span.End()

	if actor.Role != RolePharmacy {
		return nil, spanErr(span, &UnauthorizedError{ActorID: actor.UserID, Required: "pharmacy"})
	}
	if err := checkQuantity(in.Quantity); err != nil {
		return nil, spanErr(span, err)
	}

	var result *DirectSaleResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.GetMedicine(ctx, in.MedicineID)
		if err != nil {
			return err
		}
		if m.PharmacyID != actor.UserID {
			return &UnauthorizedError{ActorID: actor.UserID, Required: "owning pharmacy"}
		}

		changes, err := s.ledger.DeductImmediate(ctx, tx, []StockLine{{MedicineID: m.ID, Quantity: in.Quantity}})
		if err != nil {
			return err
		}

		rec := s.reconciler.Reconcile(ctx, tx, in.Customer)
		if rec.Outcome == OutcomeFailed {
			return rec.Err
		}

		now := s.now()
		subtotal := m.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
		order := &Order{
			PharmacyID:    actor.UserID,
			CustomerName:  walkInCustomerName(in.Customer),
			CustomerPhone: strings.TrimSpace(in.Customer.Phone),
			TotalAmount:   subtotal,
			Status:        StatusCompleted,
			StockReserved: true,
			CommittedAt:   &now,
			Items: []OrderItem{{
				MedicineID:   m.ID,
				MedicineName: m.Name,
				Quantity:     in.Quantity,
				UnitPrice:    m.UnitPrice,
				Subtotal:     subtotal,
			}},
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to insert walk-in order: %w", err)
		}

		sales, err := s.recorder.Record(ctx, tx, order, rec.CustomerID(), now)
		if err != nil {
			return err
		}
		if len(sales) != 1 {
			return fmt.Errorf("walk-in order %d produced %d sales", order.ID, len(sales))
		}

		result = &DirectSaleResult{
			SaleID:          sales[0].ID,
			OrderID:         order.ID,
			RemainingStock:  changes[0].After,
			TotalPrice:      subtotal,
			CustomerID:      rec.CustomerID(),
			CustomerOutcome: rec.Outcome,
		}
		return nil
	})
	if err != nil {
		return nil, spanErr(span, err)
	}

	s.logger.Info("walk-in sale recorded",
		zap.Int("sale_id", result.SaleID),
		zap.Int("order_id", result.OrderID),
		zap.Int("medicine_id", in.MedicineID),
		zap.Int("remaining_stock", result.RemainingStock),
		zap.String("customer_outcome", string(result.CustomerOutcome)),
	)
	return result, nil
}

// walkInCustomerName picks the label of a synthesized walk-in order.
func walkInCustomerName(c CustomerIdentity) string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	if email := NormalizeEmail(c.Email); email != "" {
		return email
	}
	return "Guest"
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID int, actor Actor) (*Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(order, actor) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, status OrderStatus) ([]Order, error) {
	if status != "" && !status.Valid() {
		return nil, validationf("unknown order status %q", status)
	}
	f := OrderFilter{Status: status}
	switch actor.Role {
	case RolePharmacy:
		f.PharmacyID = actor.UserID
	case RolePatient:
		f.PatientID = actor.UserID
	default:
		return nil, &UnauthorizedError{ActorID: actor.UserID, Required: "pharmacy or patient"}
	}
	return s.store.ListOrders(ctx, f)
}

// canView reports whether actor is a party to order. Callers answer
// NotFound otherwise so order ids are not disclosed.
func canView(order *Order, actor Actor) bool {
	if actor.Role == RolePharmacy {
		return order.PharmacyID == actor.UserID
	}
	return actor.Role == RolePatient && order.PatientID != nil && *order.PatientID == actor.UserID
}

// ── Notifications ────────────────────────────────────────────────────────────

// emit delivers n after the transaction has committed. Failures are logged only.
func (s *orderService) emit(ctx context.Context, n Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notification failed",
			zap.Int("recipient_id", n.RecipientID),
			zap.String("verb", n.Verb),
			zap.Error(err),
		)
	}
}

func (s *orderService) displayName(ctx context.Context, userID int) string {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("display name lookup failed", zap.Int("user_id", userID), zap.Error(err))
		return s.names.DisplayName(nil)
	}
	return s.names.DisplayName(u)
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, KindOf(err).Code())
	return err
}
