package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"pharmatrack/internal/core"
	"pharmatrack/internal/db"
	"pharmatrack/internal/store/postgres"
	"pharmatrack/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestDB migrates and truncates TEST_DATABASE_URL, then seeds one
// pharmacy (id 1), one patient (id 2) and two medicines (ids 1 and 2).
func setupTestDB(t *testing.T) (*pgxpool.Pool, *postgres.Store) {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool, migrations.FS, zap.NewNop()))

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE notifications, sales, pharmacy_profiles, customers,
		               order_items, orders, medicines, users RESTART IDENTITY CASCADE;

		INSERT INTO users (username, email, first_name, last_name, role) VALUES
		('citycare', 'ops@citycare.test', 'City', 'Care', 'pharmacy'),
		('alice',    'alice@example.com', '',     '',     'patient');

		INSERT INTO medicines (pharmacy_id, name, stock_quantity, minimum_stock, unit_price) VALUES
		(1, 'Amoxicillin', 10, 2, 4.50),
		(1, 'Ibuprofen',    5, 2, 2.00);
	`)
	require.NoError(t, err)

	return pool, postgres.New(pool)
}

var (
	pharmacy = core.Actor{UserID: 1, Role: core.RolePharmacy}
	patient  = core.Actor{UserID: 2, Role: core.RolePatient}
)

func stock(t *testing.T, s *postgres.Store, id int) int {
	t.Helper()
	m, err := s.GetMedicine(context.Background(), id)
	require.NoError(t, err)
	return m.StockQuantity
}

func TestPostgres_ReserveRejectRoundTrip(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()
	svc := core.NewOrderService(store, nil, nil)

	order, err := svc.PlaceOrder(ctx, patient, core.PlaceOrderInput{
		PharmacyID: 1,
		Items:      []core.OrderLineInput{{MedicineID: 1, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, "4.5", order.Items[0].UnitPrice.String())

	_, err = svc.Approve(ctx, order.ID, pharmacy)
	require.NoError(t, err)
	assert.Equal(t, 7, stock(t, store, 1))

	_, err = svc.Reject(ctx, order.ID, pharmacy)
	require.NoError(t, err)
	assert.Equal(t, 10, stock(t, store, 1))
}

func TestPostgres_ConcurrentApprovalsReserveOnce(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()
	svc := core.NewOrderService(store, nil, nil)

	order, err := svc.PlaceOrder(ctx, patient, core.PlaceOrderInput{
		PharmacyID: 1,
		Items:      []core.OrderLineInput{{MedicineID: 2, Quantity: 5}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(ctx, order.ID, pharmacy)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, stock(t, store, 2))
}

func TestPostgres_InsufficientStockRollsBack(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()
	svc := core.NewOrderService(store, nil, nil)

	order, err := svc.PlaceOrder(ctx, patient, core.PlaceOrderInput{
		PharmacyID: 1,
		Items: []core.OrderLineInput{
			{MedicineID: 1, Quantity: 2},
			{MedicineID: 2, Quantity: 6},
		},
	})
	require.NoError(t, err)

	_, err = svc.Approve(ctx, order.ID, pharmacy)
	assert.Equal(t, core.KindInsufficientStock, core.KindOf(err))
	assert.Equal(t, 10, stock(t, store, 1))
	assert.Equal(t, 5, stock(t, store, 2))

	reloaded, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, reloaded.Status)
	assert.False(t, reloaded.StockReserved)
}

func TestPostgres_ConfirmDeliveryRecordsSalesOnce(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()
	svc := core.NewOrderService(store, nil, nil)

	order, err := svc.PlaceOrder(ctx, patient, core.PlaceOrderInput{
		PharmacyID:    1,
		Items:         []core.OrderLineInput{{MedicineID: 1, Quantity: 2}},
		CustomerPhone: "077-7000",
	})
	require.NoError(t, err)
	for _, step := range []func(context.Context, int, core.Actor) (*core.Order, error){svc.Approve, svc.Ship} {
		_, err = step(ctx, order.ID, pharmacy)
		require.NoError(t, err)
	}

	_, err = svc.ConfirmDelivery(ctx, order.ID, patient, "")
	require.NoError(t, err)
	_, err = svc.ConfirmDelivery(ctx, order.ID, patient, "")
	require.NoError(t, err)

	sales, err := store.ListSalesForOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, 2, sales[0].Quantity)
	require.NotNil(t, sales[0].CustomerID)
	assert.Equal(t, 8, stock(t, store, 1))

	// A walk-in sale with the same digits resolves to the same customer.
	res, err := svc.SellDirect(ctx, pharmacy, core.DirectSaleInput{
		MedicineID: 2, Quantity: 1, Customer: core.CustomerIdentity{Phone: "0777000"},
	})
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeMatched, res.CustomerOutcome)
	assert.Equal(t, *sales[0].CustomerID, *res.CustomerID)

	summaries, err := store.ListCustomerSummaries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].SaleCount)
	assert.Equal(t, "11", summaries[0].TotalSpent.String())
}

func TestPostgres_Notifications(t *testing.T) {
	_, store := setupTestDB(t)
	ctx := context.Background()

	n := &core.Notification{RecipientID: 2, Verb: core.VerbOrderShipped, Message: "shipped", Data: []byte(`{"order_id":9}`)}
	require.NoError(t, store.InsertNotification(ctx, n))
	assert.NotZero(t, n.ID)

	unread, err := store.ListNotifications(ctx, 2, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.JSONEq(t, `{"order_id":9}`, string(unread[0].Data))

	err = store.MarkNotificationRead(ctx, 1, n.ID)
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
	require.NoError(t, store.MarkNotificationRead(ctx, 2, n.ID))

	unread, err = store.ListNotifications(ctx, 2, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestPostgres_DeletingPatientKeepsOrders(t *testing.T) {
	pool, store := setupTestDB(t)
	ctx := context.Background()
	svc := core.NewOrderService(store, nil, nil)

	order, err := svc.PlaceOrder(ctx, patient, core.PlaceOrderInput{
		PharmacyID: 1,
		Items:      []core.OrderLineInput{{MedicineID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, store.InsertNotification(ctx, &core.Notification{RecipientID: 2, Verb: core.VerbOrderShipped, Message: "shipped"}))

	_, err = pool.Exec(ctx, "DELETE FROM users WHERE id = $1", patient.UserID)
	require.NoError(t, err)

	reloaded, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.PatientID)
	assert.Equal(t, core.StatusPending, reloaded.Status)

	inbox, err := store.ListNotifications(ctx, 2, false)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}
