package domain

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodCard            PaymentMethod = "credit_card"
	PaymentMethodInstantTransfer PaymentMethod = "pix"
	PaymentMethodVoucher         PaymentMethod = "boleto"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", Validation("unknown payment method %q", s)
	}
	return m, nil
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodInstantTransfer, PaymentMethodVoucher:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusRefunded   PaymentStatus = "refunded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCanceled   PaymentStatus = "canceled"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusAuthorized, PaymentStatusPaid,
		PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCanceled:
		return st, nil
	case "refused":
		return PaymentStatusFailed, nil
	}
	return "", Validation("unknown payment status %q", s)
}

// Settled reports whether the transaction holds the buyer's money.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusAuthorized || s == PaymentStatusPaid
}

// Active reports whether the transaction is settled or still waiting on the
// gateway. At most one active transaction may exist per order.
func (s PaymentStatus) Active() bool {
	return s == PaymentStatusProcessing || s.Settled()
}

type Buyer struct {
	UserID   string
	Name     string
	Email    string
	Document string
	Phone    string
}

type CardDetails struct {
	Number      string
	HolderName  string
	ExpMonth    int
	ExpYear     int
	CVV         string
	Installment int
}

func (c *CardDetails) Validate(now time.Time) error {
	if c == nil {
		return Validation("card details are required for credit_card payments")
	}
	digits := strings.ReplaceAll(strings.ReplaceAll(c.Number, " ", ""), "-", "")
	if len(digits) < 13 || len(digits) > 19 {
		return Validation("card number must have between 13 and 19 digits")
	}
	if !isDigits(digits) {
		return Validation("card number must be numeric")
	}
	if strings.TrimSpace(c.HolderName) == "" {
		return Validation("card holder name is required")
	}
	if c.ExpMonth < 1 || c.ExpMonth > 12 {
		return Validation("card expiry month must be between 1 and 12")
	}
	year := c.ExpYear
	if year < 100 {
		year += 2000
	}
	if year < now.Year() || (year == now.Year() && c.ExpMonth < int(now.Month())) {
		return Validation("card is expired")
	}
	if cvv := strings.TrimSpace(c.CVV); len(cvv) < 3 || len(cvv) > 4 || !isDigits(cvv) {
		return Validation("card verification code must have 3 or 4 digits")
	}
	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// LastFour is the only card data kept after the gateway call.
func (c *CardDetails) LastFour() string {
	digits := strings.ReplaceAll(strings.ReplaceAll(c.Number, " ", ""), "-", "")
	if len(digits) < 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// PaymentRequest is what the payment initiation stage sends to the gateway.
type PaymentRequest struct {
	AttemptID      string
	OrderID        string
	AmountCents    int64
	Method         PaymentMethod
	Buyer          Buyer
	BillingAddress AddressSnapshot
	Card           *CardDetails
	PixExpiresAt   time.Time
	BoletoDueAt    time.Time
	Description    string
}

// PaymentTransaction is one attempt to charge an order.
type PaymentTransaction struct {
	ID            string
	OrderID       string
	ExternalID    string
	Method        PaymentMethod
	AmountCents   int64
	Status        PaymentStatus
	Simulated     bool
	PixQRCode     string
	PixQRCodeURL  string
	PixExpiresAt  *time.Time
	BoletoBarcode string
	BoletoURL     string
	BoletoDueAt   *time.Time
	CardLastFour  string
	GatewayMsg    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
