// Package memory is an in-process core.Store. Transactions take a single
// store-wide write lock and roll back by restoring a snapshot, so they are
// serializable. It backs the unit tests and STORE=memory development runs.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"pharmatrack/internal/core"

	"github.com/shopspring/decimal"
)

type state struct {
	seq           map[string]int
	users         map[int]core.User
	medicines     map[int]core.Medicine
	orders        map[int]core.Order
	customers     map[int]core.Customer
	profiles      map[int]core.PharmacyProfile
	sales         map[int]core.Sale
	notifications map[int]core.Notification
}

func newState() *state {
	return &state{
		seq:           make(map[string]int),
		users:         make(map[int]core.User),
		medicines:     make(map[int]core.Medicine),
		orders:        make(map[int]core.Order),
		customers:     make(map[int]core.Customer),
		profiles:      make(map[int]core.PharmacyProfile),
		sales:         make(map[int]core.Sale),
		notifications: make(map[int]core.Notification),
	}
}

func (st *state) next(table string) int {
	st.seq[table]++
	return st.seq[table]
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.seq {
		c.seq[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.medicines {
		c.medicines[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	for k, v := range st.sales {
		c.sales[k] = v
	}
	for k, v := range st.notifications {
		c.notifications[k] = v
	}
	return c
}

func copyOrder(o core.Order) core.Order {
	o.Items = append([]core.OrderItem(nil), o.Items...)
	if o.PatientID != nil {
		id := *o.PatientID
		o.PatientID = &id
	}
	if o.CommittedAt != nil {
		t := *o.CommittedAt
		o.CommittedAt = &t
	}
	return o
}

// Store implements core.Store in memory.
type Store struct {
	mu   sync.RWMutex
	data *state
	now  func() time.Time
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newState(), now: time.Now}
}

// WithTx runs fn holding the store-wide write lock. When fn fails the
// state is restored to what it was before fn ran.
func (s *Store) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&tx{st: s.data, now: s.now}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// ── Seeding ──────────────────────────────────────────────────────────────────

// AddUser stores u, assigning an id when u.ID is zero.
func (s *Store) AddUser(u core.User) core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.data.next("users")
	} else if u.ID > s.data.seq["users"] {
		s.data.seq["users"] = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.data.users[u.ID] = u
	return u
}

// AddMedicine stores m, assigning an id when m.ID is zero. A zero
// MinimumStock takes core.DefaultMinimumStock, as the schema default does.
func (s *Store) AddMedicine(m core.Medicine) core.Medicine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.MinimumStock == 0 {
		m.MinimumStock = core.DefaultMinimumStock
	}
	if m.ID == 0 {
		m.ID = s.data.next("medicines")
	} else if m.ID > s.data.seq["medicines"] {
		s.data.seq["medicines"] = m.ID
	}
	m.CreatedAt = s.now()
	m.UpdatedAt = m.CreatedAt
	s.data.medicines[m.ID] = m
	return m
}

// Customers returns every stored customer ordered by id.
func (s *Store) Customers() []core.Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Customer, 0, len(s.data.customers))
	for _, id := range sortedKeys(s.data.customers) {
		out = append(out, s.data.customers[id])
	}
	return out
}

// Sales returns every stored sale ordered by id.
func (s *Store) Sales() []core.Sale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Sale, 0, len(s.data.sales))
	for _, id := range sortedKeys(s.data.sales) {
		out = append(out, s.data.sales[id])
	}
	return out
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *Store) GetOrder(ctx context.Context, id int) (*core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data.orders[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "order", ID: id}
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (s *Store) ListOrders(ctx context.Context, f core.OrderFilter) ([]core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := sortedKeys(s.data.orders)
	out := make([]core.Order, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		o := s.data.orders[ids[i]]
		if f.PharmacyID != 0 && o.PharmacyID != f.PharmacyID {
			continue
		}
		if f.PatientID != 0 && (o.PatientID == nil || *o.PatientID != f.PatientID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	return out, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data.medicines[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "medicine", ID: id}
	}
	return &m, nil
}

func (s *Store) ListLowStockMedicines(ctx context.Context, pharmacyID int) ([]core.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Medicine, 0)
	for _, id := range sortedKeys(s.data.medicines) {
		m := s.data.medicines[id]
		if m.PharmacyID == pharmacyID && m.IsLowStock() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.user(id)
}

func (s *Store) ListSalesForOrder(ctx context.Context, orderID int) ([]core.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Sale, 0)
	for _, id := range sortedKeys(s.data.sales) {
		if sale := s.data.sales[id]; sale.OrderID == orderID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Store) ListCustomerSummaries(ctx context.Context, pharmacyID int) ([]core.CustomerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCustomer := make(map[int]*core.CustomerSummary)
	for _, id := range sortedKeys(s.data.sales) {
		sale := s.data.sales[id]
		if sale.CustomerID == nil || s.data.profiles[sale.PharmacyProfileID].UserID != pharmacyID {
			continue
		}
		sum, ok := byCustomer[*sale.CustomerID]
		if !ok {
			sum = &core.CustomerSummary{Customer: s.data.customers[*sale.CustomerID], TotalSpent: decimal.Zero}
			byCustomer[*sale.CustomerID] = sum
		}
		sum.SaleCount++
		sum.TotalQuantity += sale.Quantity
		sum.TotalSpent = sum.TotalSpent.Add(sale.TotalPrice)
		if sale.SaleDate.After(sum.LastSaleAt) {
			sum.LastSaleAt = sale.SaleDate
		}
	}

	out := make([]core.CustomerSummary, 0, len(byCustomer))
	for _, id := range sortedKeys(byCustomer) {
		out = append(out, *byCustomer[id])
	}
	return out, nil
}

// ── Notifications ────────────────────────────────────────────────────────────

func (s *Store) InsertNotification(ctx context.Context, n *core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.data.next("notifications")
	n.CreatedAt = s.now()
	if len(n.Data) == 0 {
		n.Data = json.RawMessage(`{}`)
	}
	s.data.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID int, unreadOnly bool) ([]core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := sortedKeys(s.data.notifications)
	out := make([]core.Notification, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		n := s.data.notifications[ids[i]]
		if n.RecipientID != recipientID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, recipientID, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.data.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return &core.NotFoundError{Entity: "notification", ID: id}
	}
	n.Read = true
	s.data.notifications[id] = n
	return nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (st *state) user(id int) (*core.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, &core.NotFoundError{Entity: "user", ID: id}
	}
	return &u, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
