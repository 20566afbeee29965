package service

import (
	"Storefront/dao"
	"Storefront/internal/cart"
	"Storefront/models"
	"Storefront/types"
	"context"
	"errors"

	"gorm.io/gorm"
)

type IInventoryService interface {
	Restock(ctx context.Context, req *types.RestockRequest) (int64, error)
	Levels(ctx context.Context, productID string) ([]*models.Inventory, error)
	Upsert(ctx context.Context, req *types.UpsertInventoryRequest) (*models.Inventory, error)
}

var _ IInventoryService = (*InventoryService)(nil)

type InventoryService struct {
	InventoryDAO *dao.Inventory
}

func (s *InventoryService) Restock(ctx context.Context, req *types.RestockRequest) (int64, error) {
	if req.Quantity <= 0 {
		return 0, &ValidationError{Field: "quantity", Reason: "必须大于0"}
	}
	stock, err := s.InventoryDAO.Restock(ctx, models.InventoryKey{ProductID: req.ProductID, VariantKey: req.VariantKey}, req.Quantity)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, &NotFoundError{ProductID: req.ProductID, VariantKey: req.VariantKey}
	}
	return stock, err
}

// Levels 商品下所有规格的库存
func (s *InventoryService) Levels(ctx context.Context, productID string) ([]*models.Inventory, error) {
	if productID == "" {
		return nil, &ValidationError{Field: "product_id", Reason: "不能为空"}
	}
	return s.InventoryDAO.ListByProduct(ctx, productID)
}

func (s *InventoryService) Upsert(ctx context.Context, req *types.UpsertInventoryRequest) (*models.Inventory, error) {
	switch {
	case req.ProductID == "":
		return nil, &ValidationError{Field: "product_id", Reason: "不能为空"}
	case req.Price < 0:
		return nil, &ValidationError{Field: "price", Reason: "不能为负"}
	case req.Price > cart.MaxUnitPrice:
		return nil, &ValidationError{Field: "price", Reason: "超出范围"}
	case req.Stock < 0:
		return nil, &ValidationError{Field: "stock", Reason: "不能为负"}
	}

	row := &models.Inventory{
		ProductID:    req.ProductID,
		VariantIndex: req.VariantIndex,
		VariantKey:   req.VariantKey,
		Title:        req.Title,
		Price:        req.Price,
		Stock:        req.Stock,
	}
	if err := s.InventoryDAO.Upsert(ctx, row); err != nil {
		return nil, err
	}
	return s.InventoryDAO.Find(ctx, row.Key())
}
