package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SaleRecorder turns committed order items into Sale records booked
// against the pharmacy's reporting profile.
type SaleRecorder struct {
	names  DisplayNameProvider
	logger *zap.Logger
}

func NewSaleRecorder(names DisplayNameProvider, logger *zap.Logger) *SaleRecorder {
	if names == nil {
		names = UserDisplayName{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleRecorder{names: names, logger: logger}
}

// Record creates one Sale per order item inside tx. Items that already
// have a sale are skipped, so recording the same order twice is harmless.
// It returns the sales created by this call.
func (r *SaleRecorder) Record(ctx context.Context, tx Tx, order *Order, customerID *int, at time.Time) ([]Sale, error) {
	profile, err := r.ensureProfile(ctx, tx, order.PharmacyID)
	if err != nil {
		return nil, err
	}

	var created []Sale
	for _, item := range order.Items {
		sale := Sale{
			PharmacyProfileID: profile.ID,
			MedicineID:        item.MedicineID,
			OrderID:           order.ID,
			OrderItemID:       item.ID,
			Quantity:          item.Quantity,
			TotalPrice:        item.Subtotal,
			CustomerID:        customerID,
			SaleDate:          at,
		}
		ok, err := tx.InsertSale(ctx, &sale)
		if err != nil {
			return nil, fmt.Errorf("failed to record sale for order item %d: %w", item.ID, err)
		}
		if !ok {
			r.logger.Info("sale already recorded, skipping",
				zap.Int("order_id", order.ID), zap.Int("order_item_id", item.ID))
			continue
		}
		created = append(created, sale)
	}
	return created, nil
}

// ensureProfile resolves the pharmacy's reporting profile, creating it
// labelled with the user's display name on first use.
func (r *SaleRecorder) ensureProfile(ctx context.Context, tx Tx, pharmacyUserID int) (*PharmacyProfile, error) {
	user, err := tx.GetUser(ctx, pharmacyUserID)
	if err != nil {
		return nil, err
	}
	profile, err := tx.EnsurePharmacyProfile(ctx, pharmacyUserID, r.names.DisplayName(user))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pharmacy profile for user %d: %w", pharmacyUserID, err)
	}
	return profile, nil
}
