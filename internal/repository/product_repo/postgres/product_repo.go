package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/infrastructure/database"
	"storefront/internal/repository/product_repo"
)

const productColumns = `id, name, slug, price_cents, compare_at_price_cents, stock,
	weight_grams, width_cm, height_cm, depth_cm, active, created_at, updated_at`

type pgProductRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewProductRepository(db *sqlx.DB, l *zap.Logger) product_repo.ProductRepository {
	return &pgProductRepository{db: db, logger: l}
}

func (r *pgProductRepository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		err = database.Classify("get product", err)
		r.logger.Debug("Product lookup failed", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

func (r *pgProductRepository) DecrementStockTx(ctx context.Context, querier domain.Querier, productID string, quantity int) error {
	query := `
		UPDATE products
		SET stock = CASE WHEN stock IS NULL THEN NULL ELSE stock - $1 END, updated_at = NOW()
		WHERE id = $2 AND (stock IS NULL OR stock >= $1)
	`
	res, err := querier.ExecContext(ctx, query, quantity, productID)
	if err != nil {
		return database.Classify("decrement stock", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for stock decrement: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("Stock decrement rejected", zap.String("product_id", productID), zap.Int("quantity", quantity))
		return domain.NewError(domain.ErrOutOfStock, "not enough units in stock")
	}
	r.logger.Debug("Stock decremented", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return nil
}

func (r *pgProductRepository) RestoreStockTx(ctx context.Context, querier domain.Querier, productID string, quantity int) error {
	query := `UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2 AND stock IS NOT NULL`
	if _, err := querier.ExecContext(ctx, query, quantity, productID); err != nil {
		return database.Classify("restore stock", err)
	}
	r.logger.Debug("Stock restored", zap.String("product_id", productID), zap.Int("quantity", quantity))
	return nil
}
