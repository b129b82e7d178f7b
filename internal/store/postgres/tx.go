package postgres

import (
	"context"
	"errors"
	"fmt"

	"pharmatrack/internal/core"

	"github.com/jackc/pgx/v5"
)

type pgTx struct {
	tx pgx.Tx
}

var _ core.Tx = (*pgTx)(nil)

func (t *pgTx) LockOrder(ctx context.Context, id int) (*core.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *core.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (pharmacy_id, patient_id, customer_name, customer_phone,
		                    total_amount, status, stock_reserved, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, o.PharmacyID, o.PatientID, o.CustomerName, o.CustomerPhone,
		o.TotalAmount, string(o.Status), o.StockReserved, o.CommittedAt,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, medicine_id, quantity, unit_price, subtotal)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, o.ID, it.MedicineID, it.Quantity, it.UnitPrice, it.Subtotal).Scan(&it.ID); err != nil {
			return fmt.Errorf("failed to insert order item %d: %w", i+1, err)
		}
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *core.Order) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, stock_reserved = $3, customer_name = $4, committed_at = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, o.ID, string(o.Status), o.StockReserved, o.CustomerName, o.CommittedAt).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &core.NotFoundError{Entity: "order", ID: o.ID}
		}
		return err
	}
	return nil
}

func (t *pgTx) LockMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	return getMedicine(ctx, t.tx, id, true)
}

func (t *pgTx) GetMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	return getMedicine(ctx, t.tx, id, false)
}

func (t *pgTx) SetStockQuantity(ctx context.Context, medicineID, qty int) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE medicines SET stock_quantity = $2, updated_at = now() WHERE id = $1",
		medicineID, qty,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "medicine", ID: medicineID}
	}
	return nil
}

func (t *pgTx) GetUser(ctx context.Context, id int) (*core.User, error) {
	return getUser(ctx, t.tx, id)
}

// ── Customers ────────────────────────────────────────────────────────────────

func (t *pgTx) findCustomer(ctx context.Context, where string, arg any) (*core.Customer, error) {
	var c core.Customer
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at
		FROM customers
		WHERE `+where+`
		ORDER BY id
		LIMIT 1
	`, arg).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) FindCustomerByEmail(ctx context.Context, email string) (*core.Customer, error) {
	return t.findCustomer(ctx, "email <> '' AND lower(email) = lower($1)", email)
}

func (t *pgTx) FindCustomerByPhoneDigits(ctx context.Context, digits string) (*core.Customer, error) {
	return t.findCustomer(ctx, `phone <> '' AND regexp_replace(phone, '\D', '', 'g') = $1`, digits)
}

func (t *pgTx) FindCustomerByName(ctx context.Context, name string) (*core.Customer, error) {
	return t.findCustomer(ctx, "name = $1", name)
}

func (t *pgTx) InsertCustomer(ctx context.Context, c *core.Customer) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO customers (name, email, phone)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.Name, c.Email, c.Phone).Scan(&c.ID, &c.CreatedAt)
}

// ── Sales ────────────────────────────────────────────────────────────────────

func (t *pgTx) EnsurePharmacyProfile(ctx context.Context, userID int, name string) (*core.PharmacyProfile, error) {
	var p core.PharmacyProfile
	// The no-op update makes RETURNING yield the existing row on conflict.
	err := t.tx.QueryRow(ctx, `
		INSERT INTO pharmacy_profiles (user_id, name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, name, created_at
	`, userID, name).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) InsertSale(ctx context.Context, s *core.Sale) (bool, error) {
	var id int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO sales (pharmacy_profile_id, medicine_id, order_id, order_item_id,
		                   quantity, total_price, customer_id, sale_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (order_item_id) DO NOTHING
		RETURNING id
	`, s.PharmacyProfileID, s.MedicineID, s.OrderID, s.OrderItemID,
		s.Quantity, s.TotalPrice, s.CustomerID, s.SaleDate,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	s.ID = id
	return true, nil
}
