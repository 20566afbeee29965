package dao

import (
	"Storefront/config"
	"Storefront/models"
	"Storefront/pkg/database"
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.MySQL{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "storefront.db"),
	}, false)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seed(t *testing.T, inv *Inventory, rows ...*models.Inventory) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, inv.Upsert(context.Background(), row))
	}
}

func key(pid string) models.InventoryKey {
	return models.InventoryKey{ProductID: pid}
}

func stockOf(t *testing.T, inv *Inventory, k models.InventoryKey) int64 {
	t.Helper()
	row, err := inv.Find(context.Background(), k)
	require.NoError(t, err)
	return row.Stock
}

func TestInventory_ReserveDecrementsAndPersists(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv,
		&models.Inventory{ProductID: "A", Title: "Lipstick", Price: 100, Stock: 5},
		&models.Inventory{ProductID: "A", VariantKey: "rose", VariantIndex: 1, Title: "Lipstick Rose", Price: 120, Stock: 2},
	)

	var seen map[models.InventoryKey]*models.Inventory
	err := inv.Reserve(context.Background(), []ReserveLine{
		{Key: key("A"), Quantity: 1},
		{Key: models.InventoryKey{ProductID: "A", VariantKey: "rose"}, Quantity: 2},
		{Key: key("A"), Quantity: 1},
	}, func(tx *gorm.DB, rows map[models.InventoryKey]*models.Inventory) error {
		seen = rows
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stockOf(t, inv, key("A")))
	assert.Equal(t, int64(0), stockOf(t, inv, models.InventoryKey{ProductID: "A", VariantKey: "rose"}))
	require.Len(t, seen, 2)
	assert.Equal(t, int64(3), seen[key("A")].Stock)
	assert.Equal(t, int64(120), seen[models.InventoryKey{ProductID: "A", VariantKey: "rose"}].Price)
}

// 所有缺货和不存在的商品一次性返回，且没有任何扣减
func TestInventory_ReserveReportsEveryShortfall(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv,
		&models.Inventory{ProductID: "A", Price: 100, Stock: 5},
		&models.Inventory{ProductID: "B", Price: 100, Stock: 1},
		&models.Inventory{ProductID: "C", Price: 100, Stock: 0},
	)

	called := false
	err := inv.Reserve(context.Background(), []ReserveLine{
		{Key: key("A"), Quantity: 2},
		{Key: key("B"), Quantity: 3},
		{Key: key("C"), Quantity: 1},
		{Key: key("GONE"), Quantity: 1},
	}, func(*gorm.DB, map[models.InventoryKey]*models.Inventory) error {
		called = true
		return nil
	})

	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Items, 3)
	assert.Equal(t, Shortfall{ProductID: "B", RequestedQty: 3, AvailableQty: 1, Reason: ShortfallInsufficient}, conflict.Items[0])
	assert.Equal(t, Shortfall{ProductID: "C", RequestedQty: 1, AvailableQty: 0, Reason: ShortfallInsufficient}, conflict.Items[1])
	assert.Equal(t, Shortfall{ProductID: "GONE", RequestedQty: 1, Reason: ShortfallNotFound}, conflict.Items[2])

	assert.False(t, called)
	assert.Equal(t, int64(5), stockOf(t, inv, key("A")))
	assert.Equal(t, int64(1), stockOf(t, inv, key("B")))
}

func TestInventory_ReservePersistFailureRollsBack(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv, &models.Inventory{ProductID: "A", Price: 100, Stock: 5})

	boom := errors.New("write order failed")
	err := inv.Reserve(context.Background(), []ReserveLine{{Key: key("A"), Quantity: 2}},
		func(*gorm.DB, map[models.InventoryKey]*models.Inventory) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(5), stockOf(t, inv, key("A")))
}

// 库存为 1 时并发下单，只有一个成功，库存不会为负
func TestInventory_ReserveConcurrentNeverOversells(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv, &models.Inventory{ProductID: "A", Price: 100, Stock: 1})

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := inv.Reserve(context.Background(), []ReserveLine{{Key: key("A"), Quantity: 1}}, nil)
			var conflict *StockConflictError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.As(err, &conflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, int64(0), stockOf(t, inv, key("A")))
}

func TestInventory_Restock(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv, &models.Inventory{ProductID: "A", Price: 100, Stock: 1})

	stock, err := inv.Restock(context.Background(), key("A"), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stock)

	_, err = inv.Restock(context.Background(), key("NOPE"), 1)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = inv.Restock(context.Background(), key("A"), 0)
	assert.Error(t, err)
}

func TestInventory_Levels(t *testing.T) {
	inv := NewInventory(newTestDB(t))
	seed(t, inv,
		&models.Inventory{ProductID: "A", Price: 100, Stock: 1},
		&models.Inventory{ProductID: "A", VariantKey: "red", Price: 100, Stock: 2},
		&models.Inventory{ProductID: "B", Price: 100, Stock: 3},
	)

	levels, err := inv.Levels(context.Background(), []models.InventoryKey{key("A"), key("B"), key("Z")})
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, int64(1), levels[key("A")].Stock)
	assert.Equal(t, int64(3), levels[key("B")].Stock)
}

func TestOrder_ConfirmIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrder(db)
	ctx := context.Background()

	order := &models.Order{
		ID:              42,
		OrderSn:         "20250101abc",
		UserID:          "u1",
		Items:           datatypes.NewJSONType([]models.OrderLine{{ProductID: "A", Quantity: 1, UnitPrice: 100, LineTotal: 100}}),
		ShippingAddress: datatypes.NewJSONType(models.ShippingAddress{Name: "n"}),
		PaymentMethod:   "card",
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
	}
	require.NoError(t, orders.CreateTx(db, order))

	changed, err := orders.Confirm(ctx, 42, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = orders.Confirm(ctx, 42, models.PaymentStatusPaid)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := orders.FindByUser(ctx, "u1", 42)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, got.OrderStatus)
	assert.Equal(t, "A", got.Items.Data()[0].ProductID)

	_, err = orders.FindByUser(ctx, "someone-else", 42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrder_ListByUserCursor(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrder(db)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, orders.CreateTx(db, &models.Order{
			ID: id, OrderSn: "sn" + strconv.FormatInt(id, 10), UserID: "u1",
			Items:           datatypes.NewJSONType([]models.OrderLine{}),
			ShippingAddress: datatypes.NewJSONType(models.ShippingAddress{}),
			PaymentMethod:   "card", PaymentStatus: models.PaymentStatusPending, OrderStatus: models.OrderStatusPending,
		}))
	}

	page, err := orders.ListByUser(ctx, "u1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].ID)

	page, err = orders.ListByUser(ctx, "u1", page[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(3), page[0].ID)
}

func TestOutbox_PendingAndMark(t *testing.T) {
	db := newTestDB(t)
	outbox := NewOutbox(db)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, outbox.CreateTx(db, &models.OrderOutbox{OrderID: i, Topic: "T", Payload: datatypes.JSON(`{"order_id":"1"}`)}))
	}

	pending, err := outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	require.NoError(t, outbox.MarkSent(ctx, pending[0].ID))
	require.NoError(t, outbox.MarkFailed(ctx, pending[1].ID, "broker down"))

	pending, err = outbox.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "broker down", pending[0].LastError)
}
