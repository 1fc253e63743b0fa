package payments

import (
	"time"

	"storefront/internal/domain"
)

type InitiatePaymentRequest struct {
	Order          *domain.Order
	Method         domain.PaymentMethod
	Buyer          domain.Buyer
	BillingAddress *domain.AddressSnapshot
	Card           *domain.CardDetails
}

type RetryPaymentRequest struct {
	Method         domain.PaymentMethod
	Buyer          domain.Buyer
	BillingAddress *domain.AddressSnapshot
	Card           *domain.CardDetails
}

type PaymentResponse struct {
	TransactionID string     `json:"transaction_id"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	AmountCents   int64      `json:"amount_cents"`
	Simulated     bool       `json:"simulated"`
	PixQRCode     string     `json:"pix_qr_code,omitempty"`
	PixQRCodeURL  string     `json:"pix_qr_code_url,omitempty"`
	PixExpiresAt  *time.Time `json:"pix_expires_at,omitempty"`
	BoletoBarcode string     `json:"boleto_barcode,omitempty"`
	BoletoURL     string     `json:"boleto_url,omitempty"`
	BoletoDueAt   *time.Time `json:"boleto_due_at,omitempty"`
	CardLastFour  string     `json:"card_last_four,omitempty"`
	Message       string     `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func MapTransactionToResponse(tx *domain.PaymentTransaction) *PaymentResponse {
	if tx == nil {
		return nil
	}
	return &PaymentResponse{
		TransactionID: tx.ExternalID,
		Method:        string(tx.Method),
		Status:        string(tx.Status),
		AmountCents:   tx.AmountCents,
		Simulated:     tx.Simulated,
		PixQRCode:     tx.PixQRCode,
		PixQRCodeURL:  tx.PixQRCodeURL,
		PixExpiresAt:  tx.PixExpiresAt,
		BoletoBarcode: tx.BoletoBarcode,
		BoletoURL:     tx.BoletoURL,
		BoletoDueAt:   tx.BoletoDueAt,
		CardLastFour:  tx.CardLastFour,
		Message:       tx.GatewayMsg,
		CreatedAt:     tx.CreatedAt,
	}
}
