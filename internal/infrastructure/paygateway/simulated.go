package paygateway

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

const (
	SimulatedPixPrefix    = "sim_pix_"
	SimulatedBoletoPrefix = "sim_boleto_"
	SimulatedCardPrefix   = "sim_card_"

	simulatedBaseURL = "https://sandbox.payments.invalid"

	// Card numbers ending in this suffix are declined.
	simulatedRefusedSuffix = "0002"
)

// Simulated answers every charge locally with the same shape a real gateway
// would return. Transactions it creates are marked Simulated.
type Simulated struct {
	now func() time.Time
}

func NewSimulated(now func() time.Time) *Simulated {
	return &Simulated{now: now}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Charge(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.Transient("payment request cancelled", err)
	}
	if req.AmountCents <= 0 {
		return nil, domain.NewError(domain.ErrPaymentFailed, "amount must be positive")
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	tx := &domain.PaymentTransaction{
		OrderID:     req.OrderID,
		Method:      req.Method,
		AmountCents: req.AmountCents,
		Simulated:   true,
	}

	switch req.Method {
	case domain.PaymentMethodInstantTransfer:
		expires := req.PixExpiresAt
		if expires.IsZero() {
			expires = s.now().Add(30 * time.Minute)
		}
		tx.ExternalID = SimulatedPixPrefix + token
		tx.Status = domain.PaymentStatusPending
		tx.PixQRCode = pixCopyPaste(tx.ExternalID, req.AmountCents)
		tx.PixQRCodeURL = fmt.Sprintf("%s/pix/%s.png", simulatedBaseURL, tx.ExternalID)
		tx.PixExpiresAt = &expires
		tx.GatewayMsg = "simulated pix charge"
	case domain.PaymentMethodVoucher:
		due := req.BoletoDueAt
		if due.IsZero() {
			due = s.now().AddDate(0, 0, 3)
		}
		tx.ExternalID = SimulatedBoletoPrefix + token
		tx.Status = domain.PaymentStatusPending
		tx.BoletoBarcode = boletoBarcode(tx.ExternalID, req.AmountCents, due)
		tx.BoletoURL = fmt.Sprintf("%s/boleto/%s.pdf", simulatedBaseURL, tx.ExternalID)
		tx.BoletoDueAt = &due
		tx.GatewayMsg = "simulated boleto"
	case domain.PaymentMethodCard:
		if req.Card == nil {
			return nil, domain.NewError(domain.ErrPaymentFailed, "card details missing")
		}
		tx.ExternalID = SimulatedCardPrefix + token
		tx.CardLastFour = req.Card.LastFour()
		if tx.CardLastFour == simulatedRefusedSuffix {
			tx.Status = domain.PaymentStatusFailed
			tx.GatewayMsg = "card refused by issuer (simulated)"
		} else {
			tx.Status = domain.PaymentStatusAuthorized
			tx.GatewayMsg = "card authorized (simulated)"
		}
	default:
		return nil, domain.Validation("unknown payment method %q", req.Method)
	}
	return tx, nil
}

// pixCopyPaste builds a BR Code shaped payload. It is not a valid EMV code and
// only needs to be non-empty and unique per charge.
func pixCopyPaste(txid string, amountCents int64) string {
	amount := fmt.Sprintf("%d.%02d", amountCents/100, amountCents%100)
	return fmt.Sprintf("00020126360014BR.GOV.BCB.PIX0114SIMULATED%s5204000053039865406%s5802BR5909SIMULATED6009SAO PAULO62%02d%s6304",
		txid[len(txid)-8:], amount, len(txid)+4, "05"+txid)
}

// boletoBarcode returns a 47 digit typeable line derived from the charge.
func boletoBarcode(txid string, amountCents int64, due time.Time) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(txid))
	base := time.Date(1997, 10, 7, 0, 0, 0, 0, time.UTC)
	factor := int64(due.Sub(base).Hours()/24) % 10000
	line := fmt.Sprintf("00190%020d%d%04d%010d", h.Sum64()%1e18, 0, factor, amountCents%1e10)
	for len(line) < 47 {
		line += "0"
	}
	return line[:47]
}
