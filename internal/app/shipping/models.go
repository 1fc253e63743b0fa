package shipping

import "storefront/internal/domain"

type PackageItem struct {
	WeightGrams int `json:"weight_grams"`
	WidthCm     int `json:"width_cm"`
	HeightCm    int `json:"height_cm"`
	DepthCm     int `json:"depth_cm"`
	Quantity    int `json:"quantity"`
}

func PackageItemFor(p *domain.Product, quantity int) PackageItem {
	return PackageItem{
		WeightGrams: p.WeightGrams,
		WidthCm:     p.WidthCm,
		HeightCm:    p.HeightCm,
		DepthCm:     p.DepthCm,
		Quantity:    quantity,
	}
}

type Option struct {
	Code          string `json:"code"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	EstimatedDays int    `json:"estimated_days"`
}
