package catalog

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/repository/product_repo"
	"storefront/internal/util"
)

type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	// GetSellableProduct is GetProduct plus the active check checkout needs.
	GetSellableProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type catalogService struct {
	productRepo  product_repo.ProductRepository
	queryTimeout time.Duration
	logger       *zap.Logger
}

func NewCatalogService(productRepo product_repo.ProductRepository, queryTimeout time.Duration, logger *zap.Logger) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		queryTimeout: queryTimeout,
		logger:       logger,
	}
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if !util.IsUUID(productID) {
		return nil, domain.NotFound("product not found")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	product, err := s.productRepo.GetProductByID(queryCtx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Debug("Product not found", zap.String("product_id", productID))
			return nil, domain.NotFound("product not found")
		}
		s.logger.Error("Failed to get product from repository", zap.String("product_id", productID), zap.Error(err))
		return nil, err
	}
	return product, nil
}

func (s *catalogService) GetSellableProduct(ctx context.Context, productID string) (*domain.Product, error) {
	product, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		s.logger.Warn("Inactive product requested for sale", zap.String("product_id", productID))
		return nil, domain.NewError(domain.ErrProductUnavailable, "product "+product.Name+" is not available for sale")
	}
	return product, nil
}
