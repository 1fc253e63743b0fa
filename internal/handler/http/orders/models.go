package orders

import (
	"storefront/internal/domain"
)

type BuyerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document"`
	Phone    string `json:"phone"`
}

func (b BuyerRequest) toDomain() domain.Buyer {
	return domain.Buyer{Name: b.Name, Email: b.Email, Document: b.Document, Phone: b.Phone}
}

type CardRequest struct {
	Number       string `json:"number"`
	HolderName   string `json:"holder_name"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	CVV          string `json:"cvv"`
	Installments int    `json:"installments"`
}

func (c *CardRequest) toDomain() *domain.CardDetails {
	if c == nil {
		return nil
	}
	return &domain.CardDetails{
		Number:      c.Number,
		HolderName:  c.HolderName,
		ExpMonth:    c.ExpMonth,
		ExpYear:     c.ExpYear,
		CVV:         c.CVV,
		Installment: c.Installments,
	}
}

type CheckoutRequest struct {
	ProductID          string                  `json:"product_id"`
	Quantity           int                     `json:"quantity"`
	ShippingMethod     string                  `json:"shipping_method"`
	ShippingPriceCents int64                   `json:"shipping_price_cents"`
	Address            domain.AddressSnapshot  `json:"address"`
	PaymentMethod      string                  `json:"payment_method"`
	Notes              string                  `json:"notes"`
	Buyer              BuyerRequest            `json:"buyer"`
	BillingAddress     *domain.AddressSnapshot `json:"billing_address,omitempty"`
	Card               *CardRequest            `json:"card,omitempty"`
}

type PaymentRequest struct {
	PaymentMethod  string                  `json:"payment_method"`
	Buyer          BuyerRequest            `json:"buyer"`
	BillingAddress *domain.AddressSnapshot `json:"billing_address,omitempty"`
	Card           *CardRequest            `json:"card,omitempty"`
}
