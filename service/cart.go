package service

import (
	"Storefront/dao"
	"Storefront/internal/cart"
	"Storefront/models"
	"Storefront/pkg/log"
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Session 一次请求对应的购物车会话：ID 是设备级会话号，Identity 是当前身份
type Session struct {
	ID       string
	Identity cart.Identity
}

type ICartService interface {
	AddToCart(ctx context.Context, sess Session, productID, variantKey string, qty int) (cart.Snapshot, error)
	RemoveFromCart(ctx context.Context, sess Session, productID, variantKey string) (cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, sess Session, productID, variantKey string, qty int) (cart.Snapshot, error)
	ClearCart(ctx context.Context, sess Session) (cart.Snapshot, error)
	GetCart(ctx context.Context, sess Session) (cart.Snapshot, error)
	Checkout(ctx context.Context, sess Session, addr models.ShippingAddress, paymentMethod string) (*models.Order, error)
	Coordinator(ctx context.Context, sess Session) (*cart.Coordinator, error)
}

var _ ICartService = (*CartService)(nil)

type CartService struct {
	Hub            *cart.Hub
	InventoryStore dao.InventoryStore
	OrderService   IOrderService
}

// Coordinator 取会话的协调器并切换到本次请求的身份。
// 新建的协调器先挂上匿名身份，保证登录后仍会迁移本设备的匿名购物车
func (s *CartService) Coordinator(ctx context.Context, sess Session) (*cart.Coordinator, error) {
	if sess.ID == "" || sess.Identity.IsZero() {
		return nil, cart.ErrNoIdentity
	}

	// 被回收的协调器可能刚好在两次调用之间关闭，重试一次
	for attempt := 0; attempt < 2; attempt++ {
		c := s.Hub.Session(sess.ID)
		err := s.bind(ctx, c, sess)
		if errors.Is(err, cart.ErrClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, cart.ErrClosed
}

func (s *CartService) bind(ctx context.Context, c *cart.Coordinator, sess Session) error {
	if sess.Identity.Authenticated {
		cur, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		if cur.Identity.IsZero() {
			if _, err = c.SetIdentity(ctx, cart.Anonymous(sess.ID)); err != nil {
				return err
			}
		}
	}
	_, err := c.SetIdentity(ctx, sess.Identity)
	return err
}

func (s *CartService) dispatch(ctx context.Context, sess Session, action cart.Action) (cart.Snapshot, error) {
	if err := cart.Validate(action, s.Hub.MaxQuantity()); err != nil {
		return cart.Snapshot{}, err
	}
	c, err := s.Coordinator(ctx, sess)
	if err != nil {
		return cart.Snapshot{}, err
	}
	// 同一会话的并发请求可能在绑定之后又切换了身份
	return c.DispatchAs(ctx, sess.Identity, action)
}

// AddToCart 加购，单价取台账当前价
func (s *CartService) AddToCart(ctx context.Context, sess Session, productID, variantKey string, qty int) (cart.Snapshot, error) {
	if productID == "" {
		return cart.Snapshot{}, &ValidationError{Field: "product_id", Reason: "不能为空"}
	}
	if qty <= 0 {
		return cart.Snapshot{}, &ValidationError{Field: "quantity", Reason: "必须大于0"}
	}

	row, err := s.InventoryStore.Find(ctx, models.InventoryKey{ProductID: productID, VariantKey: variantKey})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cart.Snapshot{}, &NotFoundError{ProductID: productID, VariantKey: variantKey}
	}
	if err != nil {
		return cart.Snapshot{}, err
	}

	return s.dispatch(ctx, sess, cart.AddItem{Item: cart.Item{
		ProductID:  productID,
		VariantKey: variantKey,
		UnitPrice:  row.Price,
		Quantity:   qty,
	}})
}

func (s *CartService) RemoveFromCart(ctx context.Context, sess Session, productID, variantKey string) (cart.Snapshot, error) {
	return s.dispatch(ctx, sess, cart.RemoveItem{Key: cart.ItemKey{ProductID: productID, VariantKey: variantKey}})
}

// UpdateQuantity 设置绝对数量，<=0 时删除
func (s *CartService) UpdateQuantity(ctx context.Context, sess Session, productID, variantKey string, qty int) (cart.Snapshot, error) {
	return s.dispatch(ctx, sess, cart.UpdateQuantity{
		Key:      cart.ItemKey{ProductID: productID, VariantKey: variantKey},
		Quantity: qty,
	})
}

func (s *CartService) ClearCart(ctx context.Context, sess Session) (cart.Snapshot, error) {
	return s.dispatch(ctx, sess, cart.ClearCart{})
}

func (s *CartService) GetCart(ctx context.Context, sess Session) (cart.Snapshot, error) {
	c, err := s.Coordinator(ctx, sess)
	if err != nil {
		return cart.Snapshot{}, err
	}
	return c.Snapshot(ctx)
}

// Checkout 用当前购物车下单，成功后清空购物车。价格和库存都在下单事务里重新校验
func (s *CartService) Checkout(ctx context.Context, sess Session, addr models.ShippingAddress, paymentMethod string) (*models.Order, error) {
	if !sess.Identity.Authenticated {
		return nil, ErrLoginRequired
	}

	c, err := s.Coordinator(ctx, sess)
	if err != nil {
		return nil, err
	}
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Identity != sess.Identity {
		return nil, cart.ErrIdentityRace
	}
	if snap.Cart.IsEmpty() {
		return nil, &ValidationError{Field: "cart", Reason: "购物车为空"}
	}

	order, err := s.OrderService.CreateOrder(ctx, &CreateOrderInput{
		UserID:          sess.Identity.ID,
		Items:           snap.Cart.Items,
		ShippingAddress: addr,
		PaymentMethod:   paymentMethod,
	})
	if err != nil {
		return nil, err
	}

	// 订单已落库，清空失败不影响下单结果
	if _, err = c.DispatchAs(ctx, sess.Identity, cart.ClearCart{}); err != nil {
		log.L.Warn("clear cart after checkout", zap.String("session", sess.ID), zap.Int64("order_id", order.ID), zap.Error(err))
	}
	return order, nil
}
