package core

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// StockLedger is the only writer of Medicine.StockQuantity.
// Every operation runs inside the caller's Tx so stock changes commit
// atomically with the order state change that caused them.
//
// Multi-line operations lock medicine rows in ascending id order and
// validate every line before mutating any of them.
type StockLedger struct {
	logger *zap.Logger
}

func NewStockLedger(logger *zap.Logger) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{logger: logger}
}

// Reserve decrements stock for an approved order.
func (l *StockLedger) Reserve(ctx context.Context, tx Tx, lines []StockLine) ([]StockChange, error) {
	return l.decrement(ctx, tx, lines, "reserve")
}

// DeductImmediate decrements stock for a sale that bypasses reservation.
func (l *StockLedger) DeductImmediate(ctx context.Context, tx Tx, lines []StockLine) ([]StockChange, error) {
	return l.decrement(ctx, tx, lines, "deduct")
}

// Release returns previously reserved stock.
func (l *StockLedger) Release(ctx context.Context, tx Tx, lines []StockLine) ([]StockChange, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	locked, err := lockMedicines(ctx, tx, merged)
	if err != nil {
		return nil, err
	}

	for i, line := range merged {
		if locked[i].StockQuantity > MaxLineQuantity-line.Quantity {
			return nil, validationf("releasing %d of medicine %d would exceed %d in stock", line.Quantity, line.MedicineID, MaxLineQuantity)
		}
	}

	changes := make([]StockChange, 0, len(merged))
	for i, line := range merged {
		before := locked[i].StockQuantity
		after := before + line.Quantity
		if err := tx.SetStockQuantity(ctx, line.MedicineID, after); err != nil {
			return nil, fmt.Errorf("failed to release stock for medicine %d: %w", line.MedicineID, err)
		}
		changes = append(changes, StockChange{MedicineID: line.MedicineID, Before: before, After: after})
	}

	l.logger.Debug("stock released", zap.Int("lines", len(changes)))
	return changes, nil
}

func (l *StockLedger) decrement(ctx context.Context, tx Tx, lines []StockLine, op string) ([]StockChange, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}

	locked, err := lockMedicines(ctx, tx, merged)
	if err != nil {
		return nil, err
	}

	// Validate all lines under lock before touching any row.
	for i, line := range merged {
		if locked[i].StockQuantity < line.Quantity {
			return nil, &InsufficientStockError{
				MedicineID:   line.MedicineID,
				MedicineName: locked[i].Name,
				Available:    locked[i].StockQuantity,
				Requested:    line.Quantity,
			}
		}
	}

	changes := make([]StockChange, 0, len(merged))
	for i, line := range merged {
		before := locked[i].StockQuantity
		after := before - line.Quantity
		if err := tx.SetStockQuantity(ctx, line.MedicineID, after); err != nil {
			return nil, fmt.Errorf("failed to %s stock for medicine %d: %w", op, line.MedicineID, err)
		}
		changes = append(changes, StockChange{MedicineID: line.MedicineID, Before: before, After: after})
	}

	l.logger.Debug("stock decremented", zap.String("op", op), zap.Int("lines", len(changes)))
	return changes, nil
}

// MaxLineQuantity bounds a single line and the merged total per medicine.
// Stock and quantities are stored as 32-bit integers.
const MaxLineQuantity = math.MaxInt32

func checkQuantity(qty int) error {
	if qty <= 0 {
		return validationf("quantity must be positive, got %d", qty)
	}
	if qty > MaxLineQuantity {
		return validationf("quantity %d exceeds %d", qty, MaxLineQuantity)
	}
	return nil
}

// mergeLines sums quantities per medicine and sorts by medicine id.
func mergeLines(lines []StockLine) ([]StockLine, error) {
	if len(lines) == 0 {
		return nil, validationf("no stock lines given")
	}
	totals := make(map[int]int, len(lines))
	for _, line := range lines {
		if err := checkQuantity(line.Quantity); err != nil {
			return nil, validationf("medicine %d: %v", line.MedicineID, err)
		}
		if totals[line.MedicineID] > MaxLineQuantity-line.Quantity {
			return nil, validationf("medicine %d: total quantity exceeds %d", line.MedicineID, MaxLineQuantity)
		}
		totals[line.MedicineID] += line.Quantity
	}

	merged := make([]StockLine, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, StockLine{MedicineID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].MedicineID < merged[j].MedicineID })
	return merged, nil
}

func lockMedicines(ctx context.Context, tx Tx, sorted []StockLine) ([]*Medicine, error) {
	locked := make([]*Medicine, 0, len(sorted))
	for _, line := range sorted {
		m, err := tx.LockMedicine(ctx, line.MedicineID)
		if err != nil {
			return nil, err
		}
		locked = append(locked, m)
	}
	return locked, nil
}
