package memory

import (
	"context"
	"errors"
	"strings"
	"time"

	"pharmatrack/internal/core"
)

// tx operates directly on the live state; WithTx holds the write lock for
// its lifetime, so row locks are implied.
type tx struct {
	st  *state
	now func() time.Time
}

var _ core.Tx = (*tx)(nil)

var errNegativeStock = errors.New("stock_quantity cannot be negative")

func (t *tx) LockOrder(ctx context.Context, id int) (*core.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "order", ID: id}
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (t *tx) InsertOrder(ctx context.Context, o *core.Order) error {
	o.ID = t.st.next("orders")
	o.CreatedAt = t.now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = t.st.next("order_items")
		o.Items[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (t *tx) UpdateOrder(ctx context.Context, o *core.Order) error {
	stored, ok := t.st.orders[o.ID]
	if !ok {
		return &core.NotFoundError{Entity: "order", ID: o.ID}
	}
	stored.Status = o.Status
	stored.StockReserved = o.StockReserved
	stored.CustomerName = o.CustomerName
	stored.CommittedAt = o.CommittedAt
	stored.UpdatedAt = t.now()
	o.UpdatedAt = stored.UpdatedAt
	t.st.orders[o.ID] = copyOrder(stored)
	return nil
}

func (t *tx) LockMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	return t.GetMedicine(ctx, id)
}

func (t *tx) GetMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	m, ok := t.st.medicines[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "medicine", ID: id}
	}
	return &m, nil
}

func (t *tx) SetStockQuantity(ctx context.Context, medicineID, qty int) error {
	m, ok := t.st.medicines[medicineID]
	if !ok {
		return &core.NotFoundError{Entity: "medicine", ID: medicineID}
	}
	if qty < 0 {
		return errNegativeStock
	}
	m.StockQuantity = qty
	m.UpdatedAt = t.now()
	t.st.medicines[medicineID] = m
	return nil
}

func (t *tx) GetUser(ctx context.Context, id int) (*core.User, error) {
	return t.st.user(id)
}

func (t *tx) FindCustomerByEmail(ctx context.Context, email string) (*core.Customer, error) {
	return t.findCustomer(func(c core.Customer) bool { return strings.EqualFold(c.Email, email) })
}

func (t *tx) FindCustomerByPhoneDigits(ctx context.Context, digits string) (*core.Customer, error) {
	return t.findCustomer(func(c core.Customer) bool { return core.NormalizePhone(c.Phone) == digits })
}

func (t *tx) FindCustomerByName(ctx context.Context, name string) (*core.Customer, error) {
	return t.findCustomer(func(c core.Customer) bool { return c.Name == name })
}

func (t *tx) findCustomer(match func(core.Customer) bool) (*core.Customer, error) {
	for _, id := range sortedKeys(t.st.customers) {
		if c := t.st.customers[id]; match(c) {
			return &c, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertCustomer(ctx context.Context, c *core.Customer) error {
	c.ID = t.st.next("customers")
	c.CreatedAt = t.now()
	t.st.customers[c.ID] = *c
	return nil
}

func (t *tx) EnsurePharmacyProfile(ctx context.Context, userID int, name string) (*core.PharmacyProfile, error) {
	for _, id := range sortedKeys(t.st.profiles) {
		if p := t.st.profiles[id]; p.UserID == userID {
			return &p, nil
		}
	}
	p := core.PharmacyProfile{ID: t.st.next("pharmacy_profiles"), UserID: userID, Name: name, CreatedAt: t.now()}
	t.st.profiles[p.ID] = p
	return &p, nil
}

func (t *tx) InsertSale(ctx context.Context, s *core.Sale) (bool, error) {
	for _, existing := range t.st.sales {
		if existing.OrderItemID == s.OrderItemID {
			return false, nil
		}
	}
	s.ID = t.st.next("sales")
	t.st.sales[s.ID] = *s
	return true, nil
}
