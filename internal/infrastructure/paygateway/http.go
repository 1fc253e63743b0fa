package paygateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

type chargeRequest struct {
	Reference      string            `json:"reference"`
	Amount         int64             `json:"amount"`
	PaymentMethod  string            `json:"payment_method"`
	Description    string            `json:"description,omitempty"`
	Customer       customerPayload   `json:"customer"`
	BillingAddress *addressPayload   `json:"billing_address,omitempty"`
	Card           *cardPayload      `json:"card,omitempty"`
	Pix            *pixPayload       `json:"pix,omitempty"`
	Boleto         *boletoPayload    `json:"boleto,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type customerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Document string `json:"document,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type addressPayload struct {
	ZipCode    string `json:"zip_code"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
}

type cardPayload struct {
	Number       string `json:"number"`
	HolderName   string `json:"holder_name"`
	ExpMonth     int    `json:"exp_month"`
	ExpYear      int    `json:"exp_year"`
	CVV          string `json:"cvv"`
	Installments int    `json:"installments"`
}

type pixPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type boletoPayload struct {
	DueAt time.Time `json:"due_at"`
}

type chargeResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Pix     *struct {
		QRCode    string     `json:"qr_code"`
		QRCodeURL string     `json:"qr_code_url"`
		ExpiresAt *time.Time `json:"expires_at"`
	} `json:"pix"`
	Boleto *struct {
		Barcode string     `json:"barcode"`
		PDFURL  string     `json:"pdf_url"`
		DueAt   *time.Time `json:"due_at"`
	} `json:"boleto"`
	Card *struct {
		LastFour string `json:"last_four"`
	} `json:"card"`
}

type errorResponse struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type httpGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
	logger    *zap.Logger
}

func NewHTTPGateway(cfg Config, logger *zap.Logger) Gateway {
	return &httpGateway{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
	}
}

func (g *httpGateway) Name() string { return "http" }

func (g *httpGateway) Charge(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentTransaction, error) {
	body, err := json.Marshal(buildChargeRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.OrderID+":"+string(req.Method)+":"+req.AttemptID)
	httpReq.SetBasicAuth(g.secretKey, "")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger.Error("Payment gateway request failed",
			zap.String("order_id", req.OrderID),
			zap.String("payment_method", string(req.Method)),
			zap.Error(err))
		return nil, domain.Transient("payment gateway unavailable, please try again", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domain.Transient("payment gateway response could not be read", err)
	}

	switch {
	case resp.StatusCode >= 500:
		g.logger.Error("Payment gateway returned server error",
			zap.String("order_id", req.OrderID),
			zap.Int("status_code", resp.StatusCode))
		return nil, domain.Transient("payment gateway unavailable, please try again",
			fmt.Errorf("gateway status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		msg := gatewayMessage(raw)
		g.logger.Warn("Payment gateway rejected charge",
			zap.String("order_id", req.OrderID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("gateway_message", msg))
		return nil, domain.WrapError(domain.ErrPaymentFailed, msg, fmt.Errorf("gateway status %d", resp.StatusCode))
	}

	var cr chargeResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, domain.WrapError(domain.ErrPaymentFailed, "payment gateway returned an unreadable response", err)
	}
	if cr.ID == "" {
		return nil, domain.NewError(domain.ErrPaymentFailed, "payment gateway returned no transaction id")
	}
	status, err := domain.ParsePaymentStatus(cr.Status)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPaymentFailed, "payment gateway returned an unknown status", err)
	}

	tx := &domain.PaymentTransaction{
		OrderID:     req.OrderID,
		ExternalID:  cr.ID,
		Method:      req.Method,
		AmountCents: req.AmountCents,
		Status:      status,
		GatewayMsg:  cr.Message,
	}
	if cr.Pix != nil {
		tx.PixQRCode = cr.Pix.QRCode
		tx.PixQRCodeURL = cr.Pix.QRCodeURL
		tx.PixExpiresAt = cr.Pix.ExpiresAt
	}
	if cr.Boleto != nil {
		tx.BoletoBarcode = cr.Boleto.Barcode
		tx.BoletoURL = cr.Boleto.PDFURL
		tx.BoletoDueAt = cr.Boleto.DueAt
	}
	if cr.Card != nil {
		tx.CardLastFour = cr.Card.LastFour
	}
	return tx, nil
}

func buildChargeRequest(req domain.PaymentRequest) chargeRequest {
	cr := chargeRequest{
		Reference:     req.OrderID,
		Amount:        req.AmountCents,
		PaymentMethod: string(req.Method),
		Description:   req.Description,
		Customer: customerPayload{
			Name:     req.Buyer.Name,
			Email:    req.Buyer.Email,
			Document: req.Buyer.Document,
			Phone:    req.Buyer.Phone,
		},
		Metadata: map[string]string{"order_id": req.OrderID, "user_id": req.Buyer.UserID},
	}
	switch req.Method {
	case domain.PaymentMethodCard:
		a := req.BillingAddress
		cr.BillingAddress = &addressPayload{
			ZipCode:    a.PostalCode,
			Street:     a.Street,
			Number:     a.Number,
			Complement: a.Complement,
			District:   a.District,
			City:       a.City,
			State:      a.State,
			Country:    "BR",
		}
		if req.Card != nil {
			installments := req.Card.Installment
			if installments < 1 {
				installments = 1
			}
			cr.Card = &cardPayload{
				Number:       strings.ReplaceAll(req.Card.Number, " ", ""),
				HolderName:   req.Card.HolderName,
				ExpMonth:     req.Card.ExpMonth,
				ExpYear:      req.Card.ExpYear,
				CVV:          req.Card.CVV,
				Installments: installments,
			}
		}
	case domain.PaymentMethodInstantTransfer:
		cr.Pix = &pixPayload{ExpiresAt: req.PixExpiresAt}
	case domain.PaymentMethodVoucher:
		cr.Boleto = &boletoPayload{DueAt: req.BoletoDueAt}
	}
	return cr
}

func gatewayMessage(raw []byte) string {
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil {
		if er.Message != "" {
			return er.Message
		}
		msgs := make([]string, 0, len(er.Errors))
		for _, e := range er.Errors {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 200 {
		return s
	}
	return "payment was rejected by the gateway"
}
