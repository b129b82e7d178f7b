// Package postgres implements core.Store on PostgreSQL through pgx.
//
// Row locks are taken with SELECT ... FOR UPDATE inside the transaction
// opened by WithTx, so concurrent transitions on the same order or
// medicine serialize on the database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pharmatrack/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

const orderColumns = `
	id, pharmacy_id, patient_id, customer_name, customer_phone,
	total_amount, status, stock_reserved, committed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*core.Order, error) {
	var o core.Order
	err := row.Scan(
		&o.ID, &o.PharmacyID, &o.PatientID, &o.CustomerName, &o.CustomerPhone,
		&o.TotalAmount, &o.Status, &o.StockReserved, &o.CommittedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func getOrder(ctx context.Context, q querier, id int, forUpdate bool) (*core.Order, error) {
	sql := "SELECT " + orderColumns + " FROM orders WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.NotFoundError{Entity: "order", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", id, err)
	}

	items, err := loadItems(ctx, q, []int{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// loadItems returns the items of the given orders keyed by order id.
func loadItems(ctx context.Context, q querier, orderIDs []int) (map[int][]core.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.medicine_id, m.name, oi.quantity, oi.unit_price, oi.subtotal
		FROM order_items oi
		JOIN medicines m ON m.id = oi.medicine_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int][]core.OrderItem, len(orderIDs))
	for rows.Next() {
		var it core.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MedicineID, &it.MedicineName, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items[it.OrderID] = append(items[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order items: %w", err)
	}
	return items, nil
}

func (s *Store) GetOrder(ctx context.Context, id int) (*core.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

func (s *Store) ListOrders(ctx context.Context, f core.OrderFilter) ([]core.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.PharmacyID != 0 {
		args = append(args, f.PharmacyID)
		where = append(where, fmt.Sprintf("pharmacy_id = $%d", len(args)))
	}
	if f.PatientID != 0 {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	sql := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY id DESC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]core.Order, 0)
	var ids []int
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// ── Medicines and users ──────────────────────────────────────────────────────

const medicineColumns = `
	id, pharmacy_id, name, generic_name, stock_quantity, minimum_stock,
	unit_price, expiry_date, created_at, updated_at`

func scanMedicine(row pgx.Row) (*core.Medicine, error) {
	var m core.Medicine
	err := row.Scan(
		&m.ID, &m.PharmacyID, &m.Name, &m.GenericName, &m.StockQuantity, &m.MinimumStock,
		&m.UnitPrice, &m.ExpiryDate, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func getMedicine(ctx context.Context, q querier, id int, forUpdate bool) (*core.Medicine, error) {
	sql := "SELECT " + medicineColumns + " FROM medicines WHERE id = $1"
	if forUpdate {
		sql += " FOR UPDATE"
	}
	m, err := scanMedicine(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.NotFoundError{Entity: "medicine", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch medicine %d: %w", id, err)
	}
	return m, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	return getMedicine(ctx, s.pool, id, false)
}

func (s *Store) ListLowStockMedicines(ctx context.Context, pharmacyID int) ([]core.Medicine, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+medicineColumns+`
		FROM medicines
		WHERE pharmacy_id = $1 AND stock_quantity <= minimum_stock
		ORDER BY id
	`, pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock medicines: %w", err)
	}
	defer rows.Close()

	meds := make([]core.Medicine, 0)
	for rows.Next() {
		m, err := scanMedicine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medicine: %w", err)
		}
		meds = append(meds, *m)
	}
	return meds, rows.Err()
}

func getUser(ctx context.Context, q querier, id int) (*core.User, error) {
	var u core.User
	err := q.QueryRow(ctx, `
		SELECT id, username, email, first_name, last_name, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &core.NotFoundError{Entity: "user", ID: id}
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", id, err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*core.User, error) {
	return getUser(ctx, s.pool, id)
}

// ── Sales and customers ──────────────────────────────────────────────────────

func (s *Store) ListSalesForOrder(ctx context.Context, orderID int) ([]core.Sale, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pharmacy_profile_id, medicine_id, order_id, order_item_id,
		       quantity, total_price, customer_id, sale_date
		FROM sales
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	sales := make([]core.Sale, 0)
	for rows.Next() {
		var sale core.Sale
		if err := rows.Scan(
			&sale.ID, &sale.PharmacyProfileID, &sale.MedicineID, &sale.OrderID, &sale.OrderItemID,
			&sale.Quantity, &sale.TotalPrice, &sale.CustomerID, &sale.SaleDate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func (s *Store) ListCustomerSummaries(ctx context.Context, pharmacyID int) ([]core.CustomerSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.email, c.phone, c.created_at,
		       COUNT(s.id), COALESCE(SUM(s.quantity), 0), COALESCE(SUM(s.total_price), 0), MAX(s.sale_date)
		FROM sales s
		JOIN pharmacy_profiles p ON p.id = s.pharmacy_profile_id
		JOIN customers c         ON c.id = s.customer_id
		WHERE p.user_id = $1
		GROUP BY c.id
		ORDER BY c.id
	`, pharmacyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer summaries: %w", err)
	}
	defer rows.Close()

	out := make([]core.CustomerSummary, 0)
	for rows.Next() {
		var cs core.CustomerSummary
		if err := rows.Scan(
			&cs.ID, &cs.Name, &cs.Email, &cs.Phone, &cs.CreatedAt,
			&cs.SaleCount, &cs.TotalQuantity, &cs.TotalSpent, &cs.LastSaleAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer summary: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// ── Notifications ────────────────────────────────────────────────────────────

func (s *Store) InsertNotification(ctx context.Context, n *core.Notification) error {
	data := string(n.Data)
	if data == "" {
		data = "{}"
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, verb, message, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, created_at
	`, n.RecipientID, n.Verb, n.Message, data).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	n.Data = []byte(data)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID int, unreadOnly bool) ([]core.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient_id, verb, message, data::text, read, created_at
		FROM notifications
		WHERE recipient_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY id DESC
	`, recipientID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]core.Notification, 0)
	for rows.Next() {
		var (
			n    core.Notification
			data string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Verb, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = []byte(data)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipientID, id int) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE notifications SET read = true WHERE id = $1 AND recipient_id = $2",
		id, recipientID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &core.NotFoundError{Entity: "notification", ID: id}
	}
	return nil
}
