package service

import (
	"Storefront/config"
	"Storefront/dao"
	"Storefront/internal/cart"
	"Storefront/models"
	"Storefront/pkg/log"
	"Storefront/pkg/snowflake"
	"Storefront/pkg/utils"
	"Storefront/types"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateOrderInput 下单输入。Items 里的单价只作参考，成交价以库存台账为准
type CreateOrderInput struct {
	UserID          string
	Items           []cart.Item
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
}

type OrderService struct {
	Config         *config.Config
	InventoryStore dao.InventoryStore
	OrderDAO       *dao.Order
	OutboxDAO      *dao.Outbox
}

var _ IOrderService = (*OrderService)(nil)

type IOrderService interface {
	CreateOrder(ctx context.Context, in *CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID string, cursor int64, limit int) (*types.ListOrdersResponse, error)
	CancelOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error)
}

// orderCreatedEvent outbox 消息体
type orderCreatedEvent struct {
	OrderID int64  `json:"order_id,string"`
	OrderSn string `json:"order_sn"`
	UserID  string `json:"user_id"`
	Total   int64  `json:"total"`
}

func (s *OrderService) validate(in *CreateOrderInput) error {
	if in.UserID == "" {
		return ErrLoginRequired
	}
	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "不能为空"}
	}
	for _, it := range in.Items {
		if it.ProductID == "" {
			return &ValidationError{Field: "product_id", Reason: "不能为空"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Field: "quantity", Reason: "必须大于0"}
		}
	}

	addr := in.ShippingAddress
	switch {
	case addr.Name == "":
		return &ValidationError{Field: "shipping_address.name", Reason: "不能为空"}
	case addr.Line1 == "":
		return &ValidationError{Field: "shipping_address.line1", Reason: "不能为空"}
	case addr.City == "":
		return &ValidationError{Field: "shipping_address.city", Reason: "不能为空"}
	case addr.PostalCode == "":
		return &ValidationError{Field: "shipping_address.postal_code", Reason: "不能为空"}
	case addr.Country == "":
		return &ValidationError{Field: "shipping_address.country", Reason: "不能为空"}
	}

	if !slices.Contains(s.Config.Order.PaymentMethods, in.PaymentMethod) {
		return &ValidationError{Field: "payment_method", Reason: "不支持的支付方式"}
	}
	return nil
}

// CreateOrder 校验 -> 预占库存并在同一事务中写订单和 outbox -> 返回 pending 订单。
// 任一商品缺货时整单失败，返回包含所有缺货商品的 StockConflictError
func (s *OrderService) CreateOrder(ctx context.Context, in *CreateOrderInput) (*models.Order, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	// 1. 合并同一商品规格，保持首次出现的顺序
	type line struct {
		key models.InventoryKey
		qty int64
	}
	var lines []*line
	index := make(map[models.InventoryKey]*line, len(in.Items))
	for _, it := range in.Items {
		k := models.InventoryKey{ProductID: it.ProductID, VariantKey: it.VariantKey}
		if l, ok := index[k]; ok {
			l.qty += int64(it.Quantity)
			continue
		}
		l := &line{key: k, qty: int64(it.Quantity)}
		index[k] = l
		lines = append(lines, l)
	}
	reserve := make([]dao.ReserveLine, 0, len(lines))
	for _, l := range lines {
		reserve = append(reserve, dao.ReserveLine{Key: l.key, Quantity: l.qty})
	}

	now := time.Now()
	orderID := snowflake.GenOrderID()
	order := &models.Order{
		ID:              orderID,
		OrderSn:         utils.GenOrderSn(orderID, now),
		UserID:          in.UserID,
		ShippingAddress: datatypes.NewJSONType(in.ShippingAddress),
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		OrderStatus:     models.OrderStatusPending,
	}

	// 2. 预占库存，回调中的行已加锁，价格取台账当前价
	err := s.InventoryStore.Reserve(ctx, reserve, func(tx *gorm.DB, rows map[models.InventoryKey]*models.Inventory) error {
		snapshot := make([]models.OrderLine, 0, len(lines))
		var subtotal int64
		for _, l := range lines {
			row := rows[l.key]
			lt := row.Price * l.qty
			snapshot = append(snapshot, models.OrderLine{
				ProductID:  l.key.ProductID,
				VariantKey: l.key.VariantKey,
				Title:      row.Title,
				UnitPrice:  row.Price,
				Quantity:   int(l.qty),
				LineTotal:  lt,
			})
			subtotal += lt
		}

		order.Items = datatypes.NewJSONType(snapshot)
		order.Subtotal = subtotal
		order.Tax = s.tax(subtotal)
		order.Shipping = s.shipping(subtotal)
		order.Total = order.Subtotal + order.Tax + order.Shipping

		if err := s.OrderDAO.CreateTx(tx, order); err != nil {
			return err
		}

		payload, err := json.Marshal(orderCreatedEvent{
			OrderID: order.ID,
			OrderSn: order.OrderSn,
			UserID:  order.UserID,
			Total:   order.Total,
		})
		if err != nil {
			return err
		}
		return s.OutboxDAO.CreateTx(tx, &models.OrderOutbox{
			OrderID: order.ID,
			Topic:   s.Config.Order.Topic,
			Payload: datatypes.JSON(payload),
		})
	})

	var conflict *StockConflictError
	if errors.As(err, &conflict) {
		stockConflictsTotal.Inc()
		return nil, conflict
	}
	if err != nil {
		return nil, err
	}

	ordersCreatedTotal.Inc()
	s.logPriceDrift(in.Items, order)
	log.L.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_sn", order.OrderSn),
		zap.String("user_id", order.UserID),
		zap.Int64("total", order.Total),
	)
	return order, nil
}

// tax 万分比，四舍五入到分
func (s *OrderService) tax(subtotal int64) int64 {
	return (subtotal*s.Config.Order.TaxRateBP + 5000) / 10000
}

func (s *OrderService) shipping(subtotal int64) int64 {
	free := s.Config.Order.FreeShippingOver
	if free > 0 && subtotal >= free {
		return 0
	}
	return s.Config.Order.ShippingFee
}

// logPriceDrift 加购价与成交价不一致时记录，便于排查价格投诉
func (s *OrderService) logPriceDrift(items []cart.Item, order *models.Order) {
	paid := make(map[models.InventoryKey]int64, len(items))
	for _, l := range order.Items.Data() {
		paid[models.InventoryKey{ProductID: l.ProductID, VariantKey: l.VariantKey}] = l.UnitPrice
	}
	for _, it := range items {
		k := models.InventoryKey{ProductID: it.ProductID, VariantKey: it.VariantKey}
		if it.UnitPrice > 0 && paid[k] != it.UnitPrice {
			log.L.Info("cart price drift",
				zap.Int64("order_id", order.ID),
				zap.String("product_id", it.ProductID),
				zap.Int64("cart_price", it.UnitPrice),
				zap.Int64("paid_price", paid[k]),
			)
		}
	}
}

func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	order, err := s.OrderDAO.FindByUser(ctx, userID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, userID string, cursor int64, limit int) (*types.ListOrdersResponse, error) {
	if limit <= 0 {
		limit = 10 // 默认每页10条
	}
	if limit > 50 {
		limit = 50
	}

	// 多查一条用来判断是否还有下一页
	orders, err := s.OrderDAO.ListByUser(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &types.ListOrdersResponse{Orders: orders}
	if len(orders) > limit {
		resp.HasMore = true
		resp.Orders = orders[:limit]
	}
	if len(resp.Orders) == 0 {
		resp.Orders = make([]*models.Order, 0)
		return resp, nil
	}
	resp.NextCursor = resp.Orders[len(resp.Orders)-1].ID
	return resp, nil
}

// CancelOrder 取消订单并回补库存，与下单失败无关，是单独的显式操作
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID int64) (*models.Order, error) {
	var cancelled *models.Order
	err := s.OrderDAO.Txx(ctx, func(tx *gorm.DB) error {
		order, err := s.OrderDAO.LockTx(tx, userID, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		if order.OrderStatus != models.OrderStatusPending && order.OrderStatus != models.OrderStatusConfirmed {
			return ErrOrderNotCancellable
		}

		payment := order.PaymentStatus
		if payment == models.PaymentStatusPaid {
			payment = models.PaymentStatusRefunded
		}
		ok, err := s.OrderDAO.CancelTx(tx, order.ID, order.OrderStatus, payment)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOrderNotCancellable
		}

		lines := make([]dao.ReserveLine, 0, len(order.Items.Data()))
		for _, l := range order.Items.Data() {
			lines = append(lines, dao.ReserveLine{
				Key:      models.InventoryKey{ProductID: l.ProductID, VariantKey: l.VariantKey},
				Quantity: int64(l.Quantity),
			})
		}
		if err = s.InventoryStore.RestockTx(tx, lines); err != nil {
			return err
		}

		order.OrderStatus = models.OrderStatusCancelled
		order.PaymentStatus = payment
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.L.Info("order cancelled", zap.Int64("order_id", orderID), zap.String("user_id", userID))
	return cancelled, nil
}

func orderKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
