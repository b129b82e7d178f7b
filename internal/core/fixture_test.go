package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pharmatrack/internal/core"
	"pharmatrack/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recordingNotifier captures notifications; err, when set, is returned from Notify.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []core.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, msg core.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) verbs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, msg := range n.sent {
		out = append(out, msg.Verb)
	}
	return out
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	svc      core.OrderService
	notifier *recordingNotifier
	pharmacy core.User
	patient  core.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		notifier: notifier,
		svc:      core.NewOrderService(store, notifier, nil),
	}
	f.pharmacy = store.AddUser(core.User{Username: "citycare", FirstName: "City", LastName: "Care", Role: core.RolePharmacy})
	f.patient = store.AddUser(core.User{Username: "alice", Email: "alice@example.com", Role: core.RolePatient})
	return f
}

func (f *fixture) pharmacyActor() core.Actor {
	return core.Actor{UserID: f.pharmacy.ID, Role: core.RolePharmacy}
}

func (f *fixture) patientActor() core.Actor {
	return core.Actor{UserID: f.patient.ID, Role: core.RolePatient}
}

func (f *fixture) addMedicine(t *testing.T, name string, stock int, price string) core.Medicine {
	t.Helper()
	return f.store.AddMedicine(core.Medicine{
		PharmacyID:    f.pharmacy.ID,
		Name:          name,
		StockQuantity: stock,
		MinimumStock:  2,
		UnitPrice:     decimal.RequireFromString(price),
	})
}

func (f *fixture) stockOf(t *testing.T, id int) int {
	t.Helper()
	m, err := f.store.GetMedicine(f.ctx, id)
	require.NoError(t, err)
	return m.StockQuantity
}

func (f *fixture) placeOrder(t *testing.T, phone string, lines ...core.OrderLineInput) *core.Order {
	t.Helper()
	order, err := f.svc.PlaceOrder(f.ctx, f.patientActor(), core.PlaceOrderInput{
		PharmacyID:    f.pharmacy.ID,
		Items:         lines,
		CustomerPhone: phone,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) reload(t *testing.T, id int) *core.Order {
	t.Helper()
	o, err := f.store.GetOrder(f.ctx, id)
	require.NoError(t, err)
	return o
}

// shippedOrder walks a new order through approve and ship.
func (f *fixture) shippedOrder(t *testing.T, phone string, lines ...core.OrderLineInput) *core.Order {
	t.Helper()
	order := f.placeOrder(t, phone, lines...)
	_, err := f.svc.Approve(f.ctx, order.ID, f.pharmacyActor())
	require.NoError(t, err)
	order, err = f.svc.Ship(f.ctx, order.ID, f.pharmacyActor())
	require.NoError(t, err)
	return order
}

// insertOrder stores an order directly, bypassing the lifecycle.
func (f *fixture) insertOrder(t *testing.T, o *core.Order) *core.Order {
	t.Helper()
	err := f.store.WithTx(f.ctx, func(tx core.Tx) error { return tx.InsertOrder(f.ctx, o) })
	require.NoError(t, err)
	return o
}

func line(m core.Medicine, qty int) core.OrderLineInput {
	return core.OrderLineInput{MedicineID: m.ID, Quantity: qty}
}

var errInjected = errors.New("injected persistence failure")

// failingStore wraps a store so that the chosen Tx write fails.
type failingStore struct {
	*memory.Store
	failUpdateOrder bool
	failInsertSale  bool
}

func (s *failingStore) WithTx(ctx context.Context, fn func(tx core.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx core.Tx) error {
		return fn(&failingTx{Tx: tx, s: s})
	})
}

type failingTx struct {
	core.Tx
	s *failingStore
}

func (t *failingTx) UpdateOrder(ctx context.Context, o *core.Order) error {
	if t.s.failUpdateOrder {
		return errInjected
	}
	return t.Tx.UpdateOrder(ctx, o)
}

func (t *failingTx) InsertSale(ctx context.Context, s *core.Sale) (bool, error) {
	if t.s.failInsertSale {
		return false, errInjected
	}
	return t.Tx.InsertSale(ctx, s)
}

// lockRecordingTx records the order of LockMedicine calls.
type lockRecordingTx struct {
	core.Tx
	locked []int
}

func (t *lockRecordingTx) LockMedicine(ctx context.Context, id int) (*core.Medicine, error) {
	t.locked = append(t.locked, id)
	return t.Tx.LockMedicine(ctx, id)
}

func pastDate() *time.Time {
	d := time.Now().AddDate(0, 0, -3)
	return &d
}
