package handler

import (
	"Storefront/internal/cart"
	"Storefront/pkg/response"
	"Storefront/service"
	"Storefront/types"
	"errors"
	"net/http"
)

// bizError 领域错误转成带 HTTP 状态码的业务错误，其余错误原样返回按 500 处理
func bizError(err error) error {
	if err == nil {
		return nil
	}

	var (
		verr     *service.ValidationError
		notFound *service.NotFoundError
		conflict *service.StockConflictError
	)
	switch {
	case errors.As(err, &verr):
		return response.NewError(http.StatusBadRequest, verr.Error())
	case errors.As(err, &notFound):
		return response.NewError(http.StatusNotFound, notFound.Error())
	case errors.As(err, &conflict):
		return response.NewError(http.StatusConflict, "库存不足").
			WithData(&types.StockConflictResponse{Failures: conflict.Items})
	case errors.Is(err, service.ErrLoginRequired):
		return response.NewError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		return response.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOrderNotCancellable):
		return response.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrNoIdentity):
		return response.NewError(http.StatusBadRequest, "缺少购物车会话")
	case errors.Is(err, cart.ErrIdentityRace):
		return response.NewError(http.StatusConflict, "登录状态已变化，请重试")
	case errors.Is(err, cart.ErrClosed):
		return response.NewError(http.StatusServiceUnavailable, "购物车会话已关闭，请重试")
	}
	return err
}
