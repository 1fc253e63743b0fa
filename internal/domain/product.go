package domain

import "time"

// Product is read-only to checkout; catalog management lives elsewhere.
type Product struct {
	ID                  string    `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Slug                string    `db:"slug" json:"slug"`
	PriceCents          int64     `db:"price_cents" json:"price_cents"`
	CompareAtPriceCents *int64    `db:"compare_at_price_cents" json:"compare_at_price_cents,omitempty"`
	Stock               *int      `db:"stock" json:"stock,omitempty"`
	WeightGrams         int       `db:"weight_grams" json:"weight_grams"`
	WidthCm             int       `db:"width_cm" json:"width_cm"`
	HeightCm            int       `db:"height_cm" json:"height_cm"`
	DepthCm             int       `db:"depth_cm" json:"depth_cm"`
	Active              bool      `db:"active" json:"active"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// HasStockFor reports whether quantity units can be sold. A nil stock means
// unlimited (digital goods).
func (p *Product) HasStockFor(quantity int) bool {
	return p.Stock == nil || *p.Stock >= quantity
}

// Physical reports whether the product ships in a box.
func (p *Product) Physical() bool {
	return p.WeightGrams > 0
}
