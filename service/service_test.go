package service

import (
	"Storefront/config"
	"Storefront/dao"
	"Storefront/dao/cache"
	"Storefront/internal/cart"
	"Storefront/models"
	"Storefront/pkg/database"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	conf      *config.Config
	db        *gorm.DB
	rds       *redis.Client
	inventory *dao.Inventory
	orderDAO  *dao.Order
	outboxDAO *dao.Outbox
	orders    *OrderService
}

func newFixture(t *testing.T) *fixture {
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

	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rds.Close() })

	conf := &config.Config{
		App: &config.App{},
		Cart: (&config.Cart{}).WithDefaults(),
		Order: (&config.Order{
			TaxRateBP:   800,
			ShippingFee: 500,
		}).WithDefaults(),
	}

	f := &fixture{
		conf:      conf,
		db:        db,
		rds:       rds,
		inventory: dao.NewInventory(db),
		orderDAO:  dao.NewOrder(db),
		outboxDAO: dao.NewOutbox(db),
	}
	f.orders = &OrderService{
		Config:         conf,
		InventoryStore: f.inventory,
		OrderDAO:       f.orderDAO,
		OutboxDAO:      f.outboxDAO,
	}
	return f
}

func (f *fixture) seed(t *testing.T, rows ...*models.Inventory) {
	t.Helper()
	for _, row := range rows {
		require.NoError(t, f.inventory.Upsert(context.Background(), row))
	}
}

func (f *fixture) stock(t *testing.T, pid string) int64 {
	t.Helper()
	row, err := f.inventory.Find(context.Background(), models.InventoryKey{ProductID: pid})
	require.NoError(t, err)
	return row.Stock
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func (f *fixture) confirmer(n Notifier) *OrderConfirmer {
	return &OrderConfirmer{
		OrderDAO:    f.orderDAO,
		Idempotency: cache.NewIdempotencyStorage(f.rds),
		Notifier:    n,
		Payment:     SimulatedPayment{},
	}
}

func (f *fixture) cartService(t *testing.T) *CartService {
	t.Helper()
	hub := cart.NewHub(
		cache.NewCartStorage(f.rds),
		cart.NewLocalPersistence(cart.NewMemoryStore(), time.Hour),
		cart.Options{
			Debounce:     20 * time.Millisecond,
			WriteTimeout: time.Second,
			FetchTimeout: time.Second,
			RetryBase:    10 * time.Millisecond,
			RetryMax:     40 * time.Millisecond,
		},
		time.Minute, nil,
	)
	t.Cleanup(hub.Close)
	return &CartService{Hub: hub, InventoryStore: f.inventory, OrderService: f.orders}
}

func address() models.ShippingAddress {
	return models.ShippingAddress{
		Name:       "Lin",
		Phone:      "13800000000",
		Line1:      "1 Market St",
		City:       "Hangzhou",
		PostalCode: "310000",
		Country:    "CN",
	}
}

func orderInput(user string, items ...cart.Item) *CreateOrderInput {
	return &CreateOrderInput{
		UserID:          user,
		Items:           items,
		ShippingAddress: address(),
		PaymentMethod:   "card",
	}
}

func item(pid string, qty int) cart.Item {
	return cart.Item{ProductID: pid, Quantity: qty}
}
