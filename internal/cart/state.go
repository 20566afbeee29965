package cart

import "time"

// MaxQuantity 单行数量的硬上限，配置的上限不能超过它
const MaxQuantity = 9999

// MaxUnitPrice 单价上限（分），保证合计在 int64 内
const MaxUnitPrice int64 = 1 << 40

// Item 购物车中的一行商品，同一个 (ProductID, VariantKey) 只会出现一次
type Item struct {
	ProductID  string    `json:"product_id"`
	VariantKey string    `json:"variant_key,omitempty"` // 颜色/规格等区分维度，空串表示默认规格
	UnitPrice  int64     `json:"unit_price"`            // 单价（分），加购时的价格，下单时会重新校验
	Quantity   int       `json:"quantity"`
	AddedAt    time.Time `json:"added_at"`
}

// Key 行商品唯一键
func (i Item) Key() ItemKey {
	return ItemKey{ProductID: i.ProductID, VariantKey: i.VariantKey}
}

type ItemKey struct {
	ProductID  string
	VariantKey string
}

// Cart 购物车快照。Subtotal/ItemCount 是派生值，每次变更都会重新计算
type Cart struct {
	Items       []Item `json:"items"`
	Subtotal    int64  `json:"subtotal"`
	ItemCount   int    `json:"item_count"`
	LastUpdated int64  `json:"last_updated"` // 毫秒时间戳，用于 last-writer-wins 比较
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find 按键查找行商品
func (c Cart) Find(key ItemKey) (Item, bool) {
	for _, it := range c.Items {
		if it.Key() == key {
			return it, true
		}
	}
	return Item{}, false
}

// Clone 深拷贝 Items，避免快照之间共享底层数组
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]Item, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}

func totals(items []Item) (subtotal int64, count int) {
	for _, it := range items {
		subtotal += it.UnitPrice * int64(it.Quantity)
		count += it.Quantity
	}
	return subtotal, count
}

// addQuantity 两个正数相加，结果不超过 MaxQuantity
func addQuantity(a, b int) int {
	if a >= MaxQuantity || b >= MaxQuantity-a {
		return MaxQuantity
	}
	return a + b
}

func withTotals(items []Item, at int64) Cart {
	subtotal, count := totals(items)
	return Cart{
		Items:       items,
		Subtotal:    subtotal,
		ItemCount:   count,
		LastUpdated: at,
	}
}

// Normalize 从存储或远端加载的数据一律不信任其中的合计字段：
// 丢弃数量非正或单价非法的行，合并重复键并截断到 MaxQuantity，重新计算合计
func Normalize(c Cart) Cart {
	items := make([]Item, 0, len(c.Items))
	index := make(map[ItemKey]int, len(c.Items))
	for _, it := range c.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice < 0 || it.UnitPrice > MaxUnitPrice {
			continue
		}
		if i, ok := index[it.Key()]; ok {
			items[i].Quantity = addQuantity(items[i].Quantity, it.Quantity)
			continue
		}
		it.Quantity = min(it.Quantity, MaxQuantity)
		index[it.Key()] = len(items)
		items = append(items, it)
	}
	return withTotals(items, c.LastUpdated)
}
