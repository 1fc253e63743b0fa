package product_repo

import (
	"context"

	"storefront/internal/domain"
)

type ProductRepository interface {
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStockTx takes quantity units out of a finite stock. It fails
	// with domain.ErrOutOfStock when fewer units remain and leaves unlimited
	// stock untouched.
	DecrementStockTx(ctx context.Context, querier domain.Querier, productID string, quantity int) error
	RestoreStockTx(ctx context.Context, querier domain.Querier, productID string, quantity int) error
}
