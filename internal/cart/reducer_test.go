package cart

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(pid string, qty int, price int64) Item {
	return Item{ProductID: pid, Quantity: qty, UnitPrice: price}
}

func TestReduce_AddItemMergesSameKey(t *testing.T) {
	c := Reduce(Cart{}, AddItem{Item: item("A", 1, 100), At: 1})
	c = Reduce(c, AddItem{Item: item("A", 2, 100), At: 2})
	c = Reduce(c, AddItem{Item: Item{ProductID: "A", VariantKey: "red", Quantity: 1, UnitPrice: 120}, At: 3})

	require.Len(t, c.Items, 2)
	a, ok := c.Find(ItemKey{ProductID: "A"})
	require.True(t, ok)
	assert.Equal(t, 3, a.Quantity)
	assert.Equal(t, int64(420), c.Subtotal)
	assert.Equal(t, 4, c.ItemCount)
	assert.Equal(t, int64(3), c.LastUpdated)
}

func TestReduce_UpdateQuantityZeroRemoves(t *testing.T) {
	base := Reduce(Cart{}, AddItem{Item: item("A", 2, 100), At: 1})
	base = Reduce(base, AddItem{Item: item("B", 1, 50), At: 2})

	updated := Reduce(base, UpdateQuantity{Key: ItemKey{ProductID: "A"}, Quantity: 0, At: 3})
	removed := Reduce(base, RemoveItem{Key: ItemKey{ProductID: "A"}, At: 3})

	assert.Equal(t, removed, updated)
	_, ok := updated.Find(ItemKey{ProductID: "A"})
	assert.False(t, ok)
	assert.Equal(t, int64(50), updated.Subtotal)
}

func TestReduce_UpdateQuantityIsAbsolute(t *testing.T) {
	c := Reduce(Cart{}, AddItem{Item: item("A", 2, 100), At: 1})
	c = Reduce(c, UpdateQuantity{Key: ItemKey{ProductID: "A"}, Quantity: 7, At: 2})

	a, _ := c.Find(ItemKey{ProductID: "A"})
	assert.Equal(t, 7, a.Quantity)
	assert.Equal(t, int64(700), c.Subtotal)
}

func TestReduce_ClearCart(t *testing.T) {
	c := Reduce(Cart{}, AddItem{Item: item("A", 2, 100), At: 1})
	c = Reduce(c, ClearCart{At: 5})

	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.Subtotal)
	assert.Zero(t, c.ItemCount)
	assert.Equal(t, int64(5), c.LastUpdated)
}

func TestReduce_LoadCartIdempotent(t *testing.T) {
	snap := Normalize(Cart{Items: []Item{item("A", 2, 100), item("B", 1, 30)}, LastUpdated: 9})
	start := Reduce(Cart{}, AddItem{Item: item("C", 1, 1), At: 1})

	once := Reduce(start, LoadCart{Snapshot: snap})
	twice := Reduce(once, LoadCart{Snapshot: snap})

	assert.Equal(t, once, twice)
	assert.Equal(t, snap, once)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	base := Reduce(Cart{}, AddItem{Item: item("A", 1, 100), At: 1})
	before := base.Clone()

	_ = Reduce(base, AddItem{Item: item("A", 3, 100), At: 2})
	_ = Reduce(base, UpdateQuantity{Key: ItemKey{ProductID: "A"}, Quantity: 9, At: 3})

	assert.Equal(t, before, base)
}

// 任意动作序列之后，合计字段都等于按明细重新计算的结果
func TestReduce_TotalsAlwaysMatchItems(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	products := []string{"A", "B", "C", "D"}
	variants := []string{"", "red", "blue"}

	var c Cart
	for i := 0; i < 5000; i++ {
		key := ItemKey{ProductID: products[r.Intn(len(products))], VariantKey: variants[r.Intn(len(variants))]}
		at := int64(i + 1)
		switch r.Intn(3) {
		case 0:
			c = Reduce(c, AddItem{Item: Item{ProductID: key.ProductID, VariantKey: key.VariantKey, UnitPrice: int64(r.Intn(1000)), Quantity: r.Intn(5) + 1}, At: at})
		case 1:
			c = Reduce(c, RemoveItem{Key: key, At: at})
		case 2:
			c = Reduce(c, UpdateQuantity{Key: key, Quantity: r.Intn(6) - 1, At: at})
		}

		subtotal, count := totals(c.Items)
		require.Equal(t, subtotal, c.Subtotal, "step %d", i)
		require.Equal(t, count, c.ItemCount, "step %d", i)

		seen := map[ItemKey]bool{}
		for _, it := range c.Items {
			require.False(t, seen[it.Key()], "duplicate key at step %d", i)
			require.Positive(t, it.Quantity)
			seen[it.Key()] = true
		}
	}
}

func TestNormalize_RecomputesUntrustedTotals(t *testing.T) {
	c := Normalize(Cart{
		Items: []Item{
			item("A", 1, 100),
			item("A", 2, 100),
			item("B", 0, 999),
			item("", 1, 5),
		},
		Subtotal:    1,
		ItemCount:   1000,
		LastUpdated: 7,
	})

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, int64(300), c.Subtotal)
	assert.Equal(t, 3, c.ItemCount)
	assert.Equal(t, int64(7), c.LastUpdated)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		action Action
		field  string
	}{
		{"empty product", AddItem{Item: Item{Quantity: 1}}, "product_id"},
		{"zero quantity", AddItem{Item: Item{ProductID: "A"}}, "quantity"},
		{"negative price", AddItem{Item: Item{ProductID: "A", Quantity: 1, UnitPrice: -1}}, "unit_price"},
		{"remove without product", RemoveItem{}, "product_id"},
		{"update without product", UpdateQuantity{Quantity: 1}, "product_id"},
		{"nil", nil, "action"},
		{"over limit", AddItem{Item: Item{ProductID: "A", Quantity: 11}}, "quantity"},
		{"huge quantity", AddItem{Item: Item{ProductID: "A", Quantity: math.MaxInt}}, "quantity"},
		{"huge price", AddItem{Item: Item{ProductID: "A", Quantity: 1, UnitPrice: math.MaxInt64}}, "unit_price"},
		{"update over limit", UpdateQuantity{Key: ItemKey{ProductID: "A"}, Quantity: 11}, "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.action, 10)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}

	assert.NoError(t, Validate(AddItem{Item: item("A", 10, 0)}, 10))
	assert.NoError(t, Validate(UpdateQuantity{Key: ItemKey{ProductID: "A"}, Quantity: 0}, 10))
	assert.NoError(t, Validate(ClearCart{}, 10))
	// 未配置上限时按 MaxQuantity
	assert.NoError(t, Validate(AddItem{Item: item("A", MaxQuantity, 0)}, 0))
	assert.Error(t, Validate(AddItem{Item: item("A", MaxQuantity+1, 0)}, 0))
}

func TestValidateAgainst_MergedQuantityLimit(t *testing.T) {
	state := Reduce(Cart{}, AddItem{Item: item("A", 8, 100), At: 1})

	assert.NoError(t, ValidateAgainst(state, AddItem{Item: item("A", 2, 100)}, 10))
	assert.NoError(t, ValidateAgainst(state, AddItem{Item: item("B", 10, 100)}, 10))

	err := ValidateAgainst(state, AddItem{Item: item("A", 3, 100)}, 10)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
}

// 累加和加载都不会让数量越界或变成负数
func TestReduce_QuantityNeverOverflows(t *testing.T) {
	state := Reduce(Cart{}, AddItem{Item: item("A", math.MaxInt, 100), At: 1})
	state = Reduce(state, AddItem{Item: item("A", math.MaxInt, 100), At: 2})
	require.Len(t, state.Items, 1)
	assert.Equal(t, MaxQuantity, state.Items[0].Quantity)
	assert.Equal(t, MaxQuantity, state.ItemCount)
	assert.Equal(t, int64(MaxQuantity*100), state.Subtotal)

	loaded := Normalize(Cart{Items: []Item{
		item("B", math.MaxInt, 1),
		item("B", math.MaxInt, 1),
		item("C", 1, -5),
	}})
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, MaxQuantity, loaded.Items[0].Quantity)
	assert.Equal(t, int64(MaxQuantity), loaded.Subtotal)
}
