package core

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// CustomerIdentity holds the best-effort identity fragments supplied with a sale.
type CustomerIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ReconcileOutcome tags how a Reconciliation was reached.
type ReconcileOutcome string

const (
	OutcomeMatched ReconcileOutcome = "matched"
	OutcomeCreated ReconcileOutcome = "created"
	// OutcomeNone means no usable fragment was supplied; the sale has no customer.
	OutcomeNone   ReconcileOutcome = "none"
	OutcomeFailed ReconcileOutcome = "failed"
)

// Reconciliation is the result of resolving a CustomerIdentity.
// Customer is set for Matched and Created; Err is set for Failed.
type Reconciliation struct {
	Customer *Customer
	Outcome  ReconcileOutcome
	Err      error
}

// CustomerID returns the resolved customer's id, or nil.
func (r Reconciliation) CustomerID() *int {
	if r.Customer == nil {
		return nil
	}
	id := r.Customer.ID
	return &id
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CustomerReconciler maps identity fragments to a stable Customer,
// matching by email, then phone digits, then exact name.
// It is a heuristic: concurrent first sales for the same person may
// still create two customers.
type CustomerReconciler struct {
	logger *zap.Logger
}

func NewCustomerReconciler(logger *zap.Logger) *CustomerReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerReconciler{logger: logger}
}

// Reconcile resolves id inside tx. It never returns a Go error; failures
// are reported as OutcomeFailed so callers can tell them apart from a
// deliberate new customer.
func (r *CustomerReconciler) Reconcile(ctx context.Context, tx Tx, id CustomerIdentity) Reconciliation {
	name := strings.TrimSpace(id.Name)
	phone := strings.TrimSpace(id.Phone)

	if email := NormalizeEmail(id.Email); email != "" {
		existing, err := tx.FindCustomerByEmail(ctx, email)
		if err != nil {
			return r.failed(fmt.Errorf("failed to look up customer by email: %w", err))
		}
		if existing != nil {
			return Reconciliation{Customer: existing, Outcome: OutcomeMatched}
		}
		return r.create(ctx, tx, &Customer{Name: name, Email: email, Phone: phone})
	}

	if digits := NormalizePhone(phone); digits != "" {
		existing, err := tx.FindCustomerByPhoneDigits(ctx, digits)
		if err != nil {
			return r.failed(fmt.Errorf("failed to look up customer by phone: %w", err))
		}
		if existing != nil {
			return Reconciliation{Customer: existing, Outcome: OutcomeMatched}
		}
		return r.create(ctx, tx, &Customer{Name: name, Phone: phone})
	}

	if name != "" {
		existing, err := tx.FindCustomerByName(ctx, name)
		if err != nil {
			return r.failed(fmt.Errorf("failed to look up customer by name: %w", err))
		}
		if existing != nil {
			return Reconciliation{Customer: existing, Outcome: OutcomeMatched}
		}
		return r.create(ctx, tx, &Customer{Name: name})
	}

	return Reconciliation{Outcome: OutcomeNone}
}

func (r *CustomerReconciler) create(ctx context.Context, tx Tx, c *Customer) Reconciliation {
	if err := tx.InsertCustomer(ctx, c); err != nil {
		return r.failed(fmt.Errorf("failed to create customer: %w", err))
	}
	r.logger.Debug("customer created", zap.Int("customer_id", c.ID))
	return Reconciliation{Customer: c, Outcome: OutcomeCreated}
}

func (r *CustomerReconciler) failed(err error) Reconciliation {
	r.logger.Warn("customer reconciliation failed", zap.Error(err))
	return Reconciliation{Outcome: OutcomeFailed, Err: err}
}
