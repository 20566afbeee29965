package cart

import "fmt"

// Action 购物车状态机的输入
type Action interface {
	isAction()
}

// AddItem 加购：已有同键商品时累加数量（不超过 MaxQuantity），否则追加
type AddItem struct {
	Item Item
	At   int64
}

// RemoveItem 删除指定商品
type RemoveItem struct {
	Key ItemKey
	At  int64
}

// UpdateQuantity 设置绝对数量，Quantity<=0 等价于 RemoveItem
type UpdateQuantity struct {
	Key      ItemKey
	Quantity int
	At       int64
}

// ClearCart 清空
type ClearCart struct {
	At int64
}

// LoadCart 整体替换为外部快照（远端拉取、登录迁移），合计字段以快照为准
type LoadCart struct {
	Snapshot Cart
}

func (AddItem) isAction()        {}
func (RemoveItem) isAction()     {}
func (UpdateQuantity) isAction() {}
func (ClearCart) isAction()      {}
func (LoadCart) isAction()       {}

// Reduce 纯函数：(state, action) -> state'，不做任何 I/O，也不修改入参
func Reduce(state Cart, action Action) Cart {
	switch a := action.(type) {
	case AddItem:
		items := make([]Item, 0, len(state.Items)+1)
		merged := false
		for _, it := range state.Items {
			if it.Key() == a.Item.Key() {
				it.Quantity = addQuantity(it.Quantity, a.Item.Quantity)
				merged = true
			}
			items = append(items, it)
		}
		if !merged {
			it := a.Item
			it.Quantity = min(it.Quantity, MaxQuantity)
			items = append(items, it)
		}
		return withTotals(items, a.At)

	case RemoveItem:
		return withTotals(without(state.Items, a.Key), a.At)

	case UpdateQuantity:
		if a.Quantity <= 0 {
			return Reduce(state, RemoveItem{Key: a.Key, At: a.At})
		}
		items := make([]Item, 0, len(state.Items))
		for _, it := range state.Items {
			if it.Key() == a.Key {
				it.Quantity = min(a.Quantity, MaxQuantity)
			}
			items = append(items, it)
		}
		return withTotals(items, a.At)

	case ClearCart:
		return withTotals([]Item{}, a.At)

	case LoadCart:
		return a.Snapshot.Clone()
	}
	return state
}

func without(items []Item, key ItemKey) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Key() != key {
			out = append(out, it)
		}
	}
	return out
}

// Validate 在进入状态机之前拦截非法输入，不产生任何 I/O。
// limit 是单行数量上限，<=0 或超过 MaxQuantity 时按 MaxQuantity
func Validate(action Action, limit int) error {
	limit = quantityLimit(limit)
	switch a := action.(type) {
	case AddItem:
		if a.Item.ProductID == "" {
			return &ValidationError{Field: "product_id", Reason: "不能为空"}
		}
		if a.Item.Quantity <= 0 {
			return &ValidationError{Field: "quantity", Reason: "必须大于0"}
		}
		if a.Item.Quantity > limit {
			return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("不能超过%d", limit)}
		}
		if a.Item.UnitPrice < 0 {
			return &ValidationError{Field: "unit_price", Reason: "不能为负数"}
		}
		if a.Item.UnitPrice > MaxUnitPrice {
			return &ValidationError{Field: "unit_price", Reason: "超出范围"}
		}
	case RemoveItem:
		if a.Key.ProductID == "" {
			return &ValidationError{Field: "product_id", Reason: "不能为空"}
		}
	case UpdateQuantity:
		if a.Key.ProductID == "" {
			return &ValidationError{Field: "product_id", Reason: "不能为空"}
		}
		if a.Quantity > limit {
			return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("不能超过%d", limit)}
		}
	case ClearCart, LoadCart:
	case nil:
		return &ValidationError{Field: "action", Reason: "不能为空"}
	}
	return nil
}

// ValidateAgainst 结合当前购物车校验：加购后同一行的累计数量也不能超过上限
func ValidateAgainst(state Cart, action Action, limit int) error {
	if err := Validate(action, limit); err != nil {
		return err
	}
	limit = quantityLimit(limit)
	if a, ok := action.(AddItem); ok {
		if cur, found := state.Find(a.Item.Key()); found && a.Item.Quantity > limit-cur.Quantity {
			return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("累计不能超过%d", limit)}
		}
	}
	return nil
}

func quantityLimit(limit int) int {
	if limit <= 0 || limit > MaxQuantity {
		return MaxQuantity
	}
	return limit
}

// stamp 给用户发起的动作打上时间戳，LoadCart 会先规整快照再盖上新时间
func stamp(action Action, at int64) Action {
	switch a := action.(type) {
	case AddItem:
		a.At = at
		if a.Item.AddedAt.IsZero() {
			a.Item.AddedAt = unixMilli(at)
		}
		return a
	case RemoveItem:
		a.At = at
		return a
	case UpdateQuantity:
		a.At = at
		return a
	case ClearCart:
		a.At = at
		return a
	case LoadCart:
		a.Snapshot = Normalize(a.Snapshot)
		a.Snapshot.LastUpdated = at
		return a
	}
	return action
}
