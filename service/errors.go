package service

import (
	"Storefront/dao"
	"Storefront/internal/cart"
	"errors"
	"fmt"
)

type (
	StockConflictError = dao.StockConflictError
	Shortfall          = dao.Shortfall
	ValidationError    = cart.ValidationError
)

var (
	ErrLoginRequired       = errors.New("请先登录")
	ErrOrderNotFound       = errors.New("订单不存在")
	ErrOrderNotCancellable = errors.New("订单当前状态不可取消")
)

// NotFoundError 商品或规格已不存在
type NotFoundError struct {
	ProductID  string
	VariantKey string
}

func (e *NotFoundError) Error() string {
	if e.VariantKey == "" {
		return fmt.Sprintf("商品 %s 不存在", e.ProductID)
	}
	return fmt.Sprintf("商品 %s 规格 %s 不存在", e.ProductID, e.VariantKey)
}
