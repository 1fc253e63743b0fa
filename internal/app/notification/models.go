package notification

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// OrderConfirmation is what the buyer is told once checkout finished. Payment
// is nil when payment initiation failed.
type OrderConfirmation struct {
	Email         string
	Order         *domain.Order
	Items         []domain.OrderItem
	Address       domain.AddressSnapshot
	PaymentMethod domain.PaymentMethod
	Payment       *domain.PaymentTransaction
}

var saoPaulo = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// FormatBRL renders minor units as Brazilian reais, e.g. 123456 -> "R$ 1.234,56".
func FormatBRL(cents int64) string {
	amount := decimal.New(cents, -2)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	fixed := amount.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return sign + "R$ " + b.String() + "," + frac
}
