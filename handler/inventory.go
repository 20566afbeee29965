package handler

import (
	"Storefront/config"
	"Storefront/middleware"
	"Storefront/pkg/context"
	"Storefront/pkg/response"
	"Storefront/service"
	"Storefront/types"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Inventory 运营补货和库存查询。改价改库存只允许运营账号
type Inventory struct {
	Config           *config.Config
	InventoryService service.IInventoryService
}

func (h *Inventory) RegisterRouter(r gin.IRouter) {
	secret := []byte(h.Config.Jwt.Secret)
	g := r.Group("/v1/inventory")
	{
		g.POST("", middleware.Admin(secret), context.Wrap(h.Upsert))
		g.POST("/restock", middleware.Admin(secret), context.Wrap(h.Restock))
		g.GET("/:product_id", middleware.Auth(secret), context.Wrap(h.Levels))
	}
}

func (h *Inventory) Restock(c *gin.Context) error {
	var req types.RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	stock, err := h.InventoryService.Restock(c.Request.Context(), &req)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, &types.RestockResponse{Stock: stock})
	return nil
}

func (h *Inventory) Upsert(c *gin.Context) error {
	var req types.UpsertInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return response.NewError(http.StatusBadRequest, "参数格式错误: "+err.Error())
	}
	row, err := h.InventoryService.Upsert(c.Request.Context(), &req)
	if err != nil {
		return bizError(err)
	}
	response.Success(c, row)
	return nil
}

func (h *Inventory) Levels(c *gin.Context) error {
	rows, err := h.InventoryService.Levels(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		return bizError(err)
	}
	response.Success(c, rows)
	return nil
}
