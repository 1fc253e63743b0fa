package shipping

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/domain"
)

// cubicDivisor converts cm³ to billable kilograms.
var cubicDivisor = decimal.NewFromInt(6000)

type ShippingService interface {
	// Quote never fails for an uncovered destination; it returns no options.
	Quote(ctx context.Context, postalCode string, items []PackageItem) ([]Option, error)
}

type shippingService struct {
	rates  *config.ShippingRates
	logger *zap.Logger
}

func NewShippingService(rates *config.ShippingRates, logger *zap.Logger) ShippingService {
	return &shippingService{rates: rates, logger: logger}
}

func (s *shippingService) Quote(ctx context.Context, postalCode string, items []PackageItem) ([]Option, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("shipping quote cancelled", err)
	}
	cep, err := domain.NormalizePostalCode(postalCode)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.Validation("at least one package item is required")
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, domain.Validation("package item quantity must be at least 1")
		}
		if it.WeightGrams < 0 || it.WidthCm < 0 || it.HeightCm < 0 || it.DepthCm < 0 {
			return nil, domain.Validation("package dimensions cannot be negative")
		}
	}

	region := s.regionFor(cep)
	if region == nil {
		s.logger.Info("No shipping coverage for destination", zap.String("postal_code", cep))
		return []Option{}, nil
	}

	kg := BillableKg(items)
	options := make([]Option, 0, len(region.Rates))
	for _, svc := range s.rates.Services {
		rate, ok := region.Rates[svc.Code]
		if !ok {
			continue
		}
		price := decimal.NewFromInt(rate.PerKgCents).Mul(kg).Round(0).IntPart() + rate.BaseCents
		name := svc.Name
		if name == "" {
			name = svc.Code
		}
		options = append(options, Option{
			Code:          svc.Code,
			Name:          name,
			PriceCents:    price,
			EstimatedDays: rate.Days,
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].PriceCents < options[j].PriceCents })

	s.logger.Debug("Shipping quoted",
		zap.String("postal_code", cep),
		zap.String("region", region.Name),
		zap.String("billable_kg", kg.String()),
		zap.Int("options", len(options)))
	return options, nil
}

func (s *shippingService) regionFor(cep string) *config.ShippingRegion {
	for i := range s.rates.Regions {
		r := &s.rates.Regions[i]
		if cep >= r.From && cep <= r.To {
			return r
		}
	}
	return nil
}

// BillableKg sums, per item, the larger of actual and cubic weight times the
// quantity, rounded up to 100 g.
func BillableKg(items []PackageItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		actual := decimal.New(int64(it.WeightGrams), -3)
		cubic := decimal.NewFromInt(int64(it.WidthCm) * int64(it.HeightCm) * int64(it.DepthCm)).Div(cubicDivisor)
		total = total.Add(decimal.Max(actual, cubic).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.RoundCeil(1)
}

// Find returns the option with the given carrier code.
func Find(options []Option, code string) (Option, bool) {
	for _, o := range options {
		if o.Code == code {
			return o, true
		}
	}
	return Option{}, false
}
