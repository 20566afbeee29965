package service

import (
	"Storefront/models"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder_ReservesAndTotals(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 5})

	order, err := f.orders.CreateOrder(context.Background(), orderInput("u1", item("A", 2)))
	require.NoError(t, err)

	assert.Equal(t, int64(3), f.stock(t, "A"))
	assert.Equal(t, models.OrderStatusPending, order.OrderStatus)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.NotEmpty(t, order.OrderSn)
	assert.Equal(t, int64(200), order.Subtotal)
	assert.Equal(t, int64(16), order.Tax)
	assert.Equal(t, int64(500), order.Shipping)
	assert.Equal(t, order.Subtotal+order.Tax+order.Shipping, order.Total)

	lines := order.Items.Data()
	require.Len(t, lines, 1)
	assert.Equal(t, models.OrderLine{ProductID: "A", Title: "Mug", UnitPrice: 100, Quantity: 2, LineTotal: 200}, lines[0])

	// outbox 与订单同事务写入
	pending, err := f.outboxDAO.Pending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID, pending[0].OrderID)
	assert.Equal(t, f.conf.Order.Topic, pending[0].Topic)

	got, err := f.orders.GetOrder(context.Background(), "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Total, got.Total)
}

func TestCreateOrder_UsesLedgerPrice(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 150, Stock: 5})

	stale := item("A", 1)
	stale.UnitPrice = 99
	order, err := f.orders.CreateOrder(context.Background(), orderInput("u1", stale))
	require.NoError(t, err)
	assert.Equal(t, int64(150), order.Items.Data()[0].UnitPrice)
	assert.Equal(t, int64(150), order.Subtotal)
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 5})

	order, err := f.orders.CreateOrder(context.Background(), orderInput("u1", item("A", 2), item("A", 1)))
	require.NoError(t, err)
	require.Len(t, order.Items.Data(), 1)
	assert.Equal(t, 3, order.Items.Data()[0].Quantity)
	assert.Equal(t, int64(2), f.stock(t, "A"))
}

func TestCreateOrder_FreeShippingOverThreshold(t *testing.T) {
	f := newFixture(t)
	f.conf.Order.FreeShippingOver = 1000
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Lamp", Price: 600, Stock: 5})

	order, err := f.orders.CreateOrder(context.Background(), orderInput("u1", item("A", 2)))
	require.NoError(t, err)
	assert.Equal(t, int64(0), order.Shipping)
	assert.Equal(t, int64(1200+96), order.Total)
}

// 部分商品缺货时整单失败，列出缺货商品，不扣任何库存
func TestCreateOrder_PartialShortfallFailsWhole(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		&models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 5},
		&models.Inventory{ProductID: "B", Title: "Plate", Price: 80, Stock: 1},
	)

	_, err := f.orders.CreateOrder(context.Background(), orderInput("u1", item("A", 2), item("B", 3), item("GONE", 1)))
	var conflict *StockConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Items, 2)

	byID := map[string]Shortfall{}
	for _, s := range conflict.Items {
		byID[s.ProductID] = s
	}
	assert.Equal(t, int64(3), byID["B"].RequestedQty)
	assert.Equal(t, int64(1), byID["B"].AvailableQty)
	assert.Equal(t, "not_found", byID["GONE"].Reason)

	assert.Equal(t, int64(5), f.stock(t, "A"))
	assert.Equal(t, int64(1), f.stock(t, "B"))
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 1})

	const n = 2
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		success   int
		conflicts int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := f.orders.CreateOrder(context.Background(), orderInput("u1", item("A", 1)))
			mu.Lock()
			defer mu.Unlock()
			var conflict *StockConflictError
			switch {
			case err == nil:
				success++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, int64(0), f.stock(t, "A"))
	assert.Equal(t, int64(1), f.countOrders(t))
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 5})

	noAddr := orderInput("u1", item("A", 1))
	noAddr.ShippingAddress.City = ""
	badPay := orderInput("u1", item("A", 1))
	badPay.PaymentMethod = "bitcoin"

	tests := []struct {
		name  string
		in    *CreateOrderInput
		field string
	}{
		{"empty items", orderInput("u1"), "items"},
		{"zero qty", orderInput("u1", item("A", 0)), "quantity"},
		{"no product", orderInput("u1", item("", 1)), "product_id"},
		{"no city", noAddr, "shipping_address.city"},
		{"bad payment", badPay, "payment_method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.CreateOrder(context.Background(), tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	_, err := f.orders.CreateOrder(context.Background(), orderInput("", item("A", 1)))
	assert.ErrorIs(t, err, ErrLoginRequired)

	assert.Equal(t, int64(5), f.stock(t, "A"))
	assert.Equal(t, int64(0), f.countOrders(t))
}

func TestCancelOrder_Restocks(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 5})
	ctx := context.Background()

	order, err := f.orders.CreateOrder(ctx, orderInput("u1", item("A", 2)))
	require.NoError(t, err)
	require.Equal(t, int64(3), f.stock(t, "A"))

	_, err = f.orders.CancelOrder(ctx, "u2", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	cancelled, err := f.orders.CancelOrder(ctx, "u1", order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, int64(5), f.stock(t, "A"))

	_, err = f.orders.CancelOrder(ctx, "u1", order.ID)
	assert.ErrorIs(t, err, ErrOrderNotCancellable)
	assert.Equal(t, int64(5), f.stock(t, "A"))
}

func TestListOrders_Cursor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &models.Inventory{ProductID: "A", Title: "Mug", Price: 100, Stock: 10})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.orders.CreateOrder(ctx, orderInput("u1", item("A", 1)))
		require.NoError(t, err)
	}
	_, err := f.orders.CreateOrder(ctx, orderInput("u2", item("A", 1)))
	require.NoError(t, err)

	page, err := f.orders.ListOrders(ctx, "u1", 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	assert.True(t, page.HasMore)
	assert.Greater(t, page.Orders[0].ID, page.Orders[1].ID)

	next, err := f.orders.ListOrders(ctx, "u1", page.NextCursor, 2)
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.False(t, next.HasMore)

	empty, err := f.orders.ListOrders(ctx, "nobody", 0, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty.Orders)
	assert.Empty(t, empty.Orders)
}
