package memory

import (
	"context"
	"errors"
	"testing"

	"pharmatrack/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := s.AddMedicine(core.Medicine{Name: "Rollback", StockQuantity: 5, UnitPrice: decimal.NewFromInt(1)})
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx core.Tx) error {
		require.NoError(t, tx.SetStockQuantity(ctx, m.ID, 1))
		require.NoError(t, tx.InsertCustomer(ctx, &core.Customer{Name: "Ghost"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetMedicine(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
	assert.Empty(t, s.Customers())

	// Sequences roll back too.
	require.NoError(t, s.WithTx(ctx, func(tx core.Tx) error {
		c := &core.Customer{Name: "Real"}
		require.NoError(t, tx.InsertCustomer(ctx, c))
		assert.Equal(t, 1, c.ID)
		return nil
	}))
}

func TestWithTx_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := New().WithTx(ctx, func(tx core.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTx_NegativeStockRefused(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := s.AddMedicine(core.Medicine{Name: "Guard", StockQuantity: 1})

	err := s.WithTx(ctx, func(tx core.Tx) error { return tx.SetStockQuantity(ctx, m.ID, -1) })
	assert.ErrorIs(t, err, errNegativeStock)
}

func TestTx_OrderCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := &core.Order{PharmacyID: 1, Status: core.StatusPending, Items: []core.OrderItem{{MedicineID: 1, Quantity: 1}}}
	require.NoError(t, s.WithTx(ctx, func(tx core.Tx) error { return tx.InsertOrder(ctx, o) }))
	assert.Equal(t, 1, o.ID)
	assert.Equal(t, 1, o.Items[0].ID)

	o.Items[0].Quantity = 99
	stored, err := s.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[0].Quantity)
}

func TestTx_InsertSaleIsUniquePerOrderItem(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx core.Tx) error {
		created, err := tx.InsertSale(ctx, &core.Sale{OrderID: 1, OrderItemID: 3, Quantity: 1})
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.InsertSale(ctx, &core.Sale{OrderID: 1, OrderItemID: 3, Quantity: 1})
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	}))
	assert.Len(t, s.Sales(), 1)
}

func TestTx_EnsurePharmacyProfileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	var first, second *core.PharmacyProfile
	require.NoError(t, s.WithTx(ctx, func(tx core.Tx) error {
		var err error
		if first, err = tx.EnsurePharmacyProfile(ctx, 4, "City Care"); err != nil {
			return err
		}
		second, err = tx.EnsurePharmacyProfile(ctx, 4, "Renamed")
		return err
	}))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "City Care", second.Name)
}

func TestTx_FindCustomerPrefersLowestID(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.WithTx(ctx, func(tx core.Tx) error {
		require.NoError(t, tx.InsertCustomer(ctx, &core.Customer{Name: "One", Phone: "07 00"}))
		require.NoError(t, tx.InsertCustomer(ctx, &core.Customer{Name: "Two", Phone: "0700"}))

		c, err := tx.FindCustomerByPhoneDigits(ctx, "0700")
		require.NoError(t, err)
		assert.Equal(t, "One", c.Name)

		c, err = tx.FindCustomerByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, c)
		return nil
	}))
}

func TestAddMedicine_DefaultsMinimumStock(t *testing.T) {
	s := New()
	m := s.AddMedicine(core.Medicine{Name: "Default", StockQuantity: 40})
	assert.Equal(t, core.DefaultMinimumStock, m.MinimumStock)
	assert.True(t, m.IsLowStock())

	low, err := s.ListLowStockMedicines(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, m.ID, low[0].ID)

	explicit := s.AddMedicine(core.Medicine{Name: "Explicit", StockQuantity: 40, MinimumStock: 5})
	assert.Equal(t, 5, explicit.MinimumStock)
}
