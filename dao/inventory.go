package dao

import (
	"Storefront/models"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ShortfallInsufficient = "insufficient_stock"
	ShortfallNotFound     = "not_found"
)

// Shortfall 单个商品的库存冲突
type Shortfall struct {
	ProductID    string `json:"product_id"`
	VariantKey   string `json:"variant_key,omitempty"`
	RequestedQty int64  `json:"requested_qty"`
	AvailableQty int64  `json:"available_qty"`
	Reason       string `json:"reason"`
}

// StockConflictError 一次预占中所有不满足的商品，不会只报第一个
type StockConflictError struct {
	Items []Shortfall
}

func (e *StockConflictError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		parts = append(parts, fmt.Sprintf("%s/%s(%s: want %d, have %d)", s.ProductID, s.VariantKey, s.Reason, s.RequestedQty, s.AvailableQty))
	}
	return "stock conflict: " + strings.Join(parts, ", ")
}

// ReserveLine 预占请求，同一个键可以出现多次，会先合并
type ReserveLine struct {
	Key      models.InventoryKey
	Quantity int64
}

// ReserveFunc 在扣减库存的同一事务中执行，rows 为已加锁且已扣减后的台账行
type ReserveFunc func(tx *gorm.DB, rows map[models.InventoryKey]*models.Inventory) error

// InventoryStore 库存台账：读取与条件扣减
type InventoryStore interface {
	Find(ctx context.Context, key models.InventoryKey) (*models.Inventory, error)
	Levels(ctx context.Context, keys []models.InventoryKey) (map[models.InventoryKey]*models.Inventory, error)
	Reserve(ctx context.Context, lines []ReserveLine, persist ReserveFunc) error
	Restock(ctx context.Context, key models.InventoryKey, qty int64) (int64, error)
	RestockTx(tx *gorm.DB, lines []ReserveLine) error
}

var _ InventoryStore = (*Inventory)(nil)

type Inventory struct {
	Repo[models.Inventory]
}

func NewInventory(db *gorm.DB) *Inventory {
	return &Inventory{
		Repo: NewRepo[models.Inventory](db),
	}
}

func (i *Inventory) Find(ctx context.Context, key models.InventoryKey) (*models.Inventory, error) {
	return i.FindByWhere(ctx, "product_id = ? AND variant_key = ?", key.ProductID, key.VariantKey)
}

func (i *Inventory) Levels(ctx context.Context, keys []models.InventoryKey) (map[models.InventoryKey]*models.Inventory, error) {
	out := make(map[models.InventoryKey]*models.Inventory, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	want := make(map[models.InventoryKey]struct{}, len(keys))
	pids := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := want[k]; !ok {
			pids = append(pids, k.ProductID)
		}
		want[k] = struct{}{}
	}

	var rows []*models.Inventory
	if err := i.Model(ctx).Where("product_id IN ?", pids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if _, ok := want[row.Key()]; ok {
			out[row.Key()] = row
		}
	}
	return out, nil
}

// ListByProduct 商品下所有规格
func (i *Inventory) ListByProduct(ctx context.Context, productID string) ([]*models.Inventory, error) {
	return i.FindAll(ctx, func(db *gorm.DB) {
		db.Where("product_id = ?", productID).Order("variant_index ASC")
	})
}

// Upsert 按 (product_id, variant_key) 新增或覆盖
func (i *Inventory) Upsert(ctx context.Context, row *models.Inventory) error {
	return i.Db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "variant_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"variant_index", "title", "price", "stock", "updated_at"}),
	}).Create(row).Error
}

func aggregate(lines []ReserveLine) (map[models.InventoryKey]int64, []models.InventoryKey) {
	want := make(map[models.InventoryKey]int64, len(lines))
	for _, l := range lines {
		want[l.Key] += l.Quantity
	}
	keys := make([]models.InventoryKey, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	// 固定加锁顺序，避免两个订单交叉加锁死锁
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].ProductID != keys[b].ProductID {
			return keys[a].ProductID < keys[b].ProductID
		}
		return keys[a].VariantKey < keys[b].VariantKey
	})
	return want, keys
}

// lockRows sqlite 不支持 FOR UPDATE，靠数据库级写锁串行化
func lockRows(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Reserve 在一个事务内完成：加锁读取所有台账行 -> 收集全部缺货 -> 条件扣减 -> persist。
// 任一步失败整个事务回滚，不会出现部分扣减
func (i *Inventory) Reserve(ctx context.Context, lines []ReserveLine, persist ReserveFunc) error {
	want, keys := aggregate(lines)
	if len(keys) == 0 {
		return errors.New("dao.Inventory.Reserve: empty lines")
	}

	return i.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := make(map[models.InventoryKey]*models.Inventory, len(keys))

		// 1. 按固定顺序逐行加锁读取
		for _, k := range keys {
			var row models.Inventory
			err := lockRows(tx).Where("product_id = ? AND variant_key = ?", k.ProductID, k.VariantKey).Take(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("dao.Inventory.Reserve: %w", err)
			}
			rows[k] = &row
		}

		// 2. 收集所有缺货和不存在的商品
		var shortfalls []Shortfall
		for _, k := range keys {
			row, ok := rows[k]
			switch {
			case !ok:
				shortfalls = append(shortfalls, Shortfall{
					ProductID: k.ProductID, VariantKey: k.VariantKey,
					RequestedQty: want[k], Reason: ShortfallNotFound,
				})
			case row.Stock < want[k]:
				shortfalls = append(shortfalls, Shortfall{
					ProductID: k.ProductID, VariantKey: k.VariantKey,
					RequestedQty: want[k], AvailableQty: row.Stock, Reason: ShortfallInsufficient,
				})
			}
		}
		if len(shortfalls) > 0 {
			return &StockConflictError{Items: shortfalls}
		}

		// 3. 条件扣减，stock >= q 兜底保证不会减成负数
		now := time.Now()
		for _, k := range keys {
			row, q := rows[k], want[k]
			res := tx.Model(&models.Inventory{}).
				Where("id = ? AND stock >= ?", row.ID, q).
				Updates(map[string]any{
					"stock":      gorm.Expr("stock - ?", q),
					"updated_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("dao.Inventory.Reserve: %w", res.Error)
			}
			if res.RowsAffected != 1 {
				return &StockConflictError{Items: []Shortfall{{
					ProductID: k.ProductID, VariantKey: k.VariantKey,
					RequestedQty: q, AvailableQty: row.Stock, Reason: ShortfallInsufficient,
				}}}
			}
			row.Stock -= q
		}

		// 4. 同一事务写订单
		if persist == nil {
			return nil
		}
		return persist(tx, rows)
	})
}

// Restock 补货，返回补货后的库存
func (i *Inventory) Restock(ctx context.Context, key models.InventoryKey, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("dao.Inventory.Restock: invalid quantity %d", qty)
	}

	var stock int64
	err := i.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Inventory{}).
			Where("product_id = ? AND variant_key = ?", key.ProductID, key.VariantKey).
			Updates(map[string]any{
				"stock":      gorm.Expr("stock + ?", qty),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var stocks []int64
		if err := tx.Model(&models.Inventory{}).
			Where("product_id = ? AND variant_key = ?", key.ProductID, key.VariantKey).
			Pluck("stock", &stocks).Error; err != nil {
			return err
		}
		if len(stocks) > 0 {
			stock = stocks[0]
		}
		return nil
	})
	return stock, err
}

// RestockTx 在调用方事务中批量回补，取消订单时使用
func (i *Inventory) RestockTx(tx *gorm.DB, lines []ReserveLine) error {
	want, keys := aggregate(lines)
	for _, k := range keys {
		res := tx.Model(&models.Inventory{}).
			Where("product_id = ? AND variant_key = ?", k.ProductID, k.VariantKey).
			Update("stock", gorm.Expr("stock + ?", want[k]))
		if res.Error != nil {
			return fmt.Errorf("dao.Inventory.RestockTx: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("dao.Inventory.RestockTx: %s/%s %w", k.ProductID, k.VariantKey, gorm.ErrRecordNotFound)
		}
	}
	return nil
}
