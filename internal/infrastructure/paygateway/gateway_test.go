package paygateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

func pixRequest() domain.PaymentRequest {
	return domain.PaymentRequest{
		AttemptID:    "attempt-1",
		OrderID:      "order-1",
		AmountCents:  8290,
		Method:       domain.PaymentMethodInstantTransfer,
		Buyer:        domain.Buyer{UserID: "user-1", Name: "Ana", Email: "ana@example.com"},
		PixExpiresAt: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func cardRequest(number string) domain.PaymentRequest {
	return domain.PaymentRequest{
		OrderID:     "order-1",
		AmountCents: 8290,
		Method:      domain.PaymentMethodCard,
		Buyer:       domain.Buyer{UserID: "user-1", Name: "Ana", Email: "ana@example.com"},
		BillingAddress: domain.AddressSnapshot{
			RecipientName: "Ana", PostalCode: "01310100", Street: "Av. Paulista", Number: "1000",
			District: "Bela Vista", City: "São Paulo", State: "SP",
		},
		Card: &domain.CardDetails{Number: number, HolderName: "ANA S", ExpMonth: 12, ExpYear: 2030, CVV: "123"},
	}
}

func TestNew_FallsBackToSimulated(t *testing.T) {
	g := New(Config{URL: "https://pay.example.com"}, zap.NewNop())
	assert.Equal(t, "simulated", g.Name())

	g = New(Config{URL: "https://pay.example.com", SecretKey: "sk_test"}, zap.NewNop())
	assert.Equal(t, "http", g.Name())
}

func TestSimulated_Pix(t *testing.T) {
	g := NewSimulated(time.Now)
	tx, err := g.Charge(context.Background(), pixRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tx.ExternalID, SimulatedPixPrefix))
	assert.Equal(t, domain.PaymentStatusPending, tx.Status)
	assert.NotEmpty(t, tx.PixQRCode)
	assert.Contains(t, tx.PixQRCodeURL, tx.ExternalID)
	require.NotNil(t, tx.PixExpiresAt)
	assert.Equal(t, pixRequest().PixExpiresAt, *tx.PixExpiresAt)
	assert.True(t, tx.Simulated)
	assert.Equal(t, int64(8290), tx.AmountCents)
}

func TestSimulated_Boleto(t *testing.T) {
	req := pixRequest()
	req.Method = domain.PaymentMethodVoucher
	req.BoletoDueAt = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	tx, err := NewSimulated(time.Now).Charge(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(tx.ExternalID, SimulatedBoletoPrefix))
	assert.Equal(t, domain.PaymentStatusPending, tx.Status)
	assert.Len(t, tx.BoletoBarcode, 47)
	assert.True(t, strings.HasSuffix(tx.BoletoURL, ".pdf"))
	require.NotNil(t, tx.BoletoDueAt)
	assert.Equal(t, req.BoletoDueAt, *tx.BoletoDueAt)
}

func TestSimulated_Card(t *testing.T) {
	g := NewSimulated(time.Now)

	tx, err := g.Charge(context.Background(), cardRequest("4111 1111 1111 1111"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusAuthorized, tx.Status)
	assert.Equal(t, "1111", tx.CardLastFour)
	assert.True(t, strings.HasPrefix(tx.ExternalID, SimulatedCardPrefix))

	tx, err = g.Charge(context.Background(), cardRequest("4000000000000002"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, tx.Status)
	assert.NotEmpty(t, tx.GatewayMsg)
}

func TestSimulated_UniqueIDs(t *testing.T) {
	g := NewSimulated(time.Now)
	a, err := g.Charge(context.Background(), pixRequest())
	require.NoError(t, err)
	b, err := g.Charge(context.Background(), pixRequest())
	require.NoError(t, err)
	assert.NotEqual(t, a.ExternalID, b.ExternalID)
}

func TestHTTPGateway_Charge(t *testing.T) {
	var got chargeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Equal(t, "order-1:pix:attempt-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch_123","status":"pending","pix":{"qr_code":"000201","qr_code_url":"https://qr/ch_123.png"}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(Config{URL: srv.URL + "/", SecretKey: "sk_test", Timeout: time.Second}, zap.NewNop())
	tx, err := g.Charge(context.Background(), pixRequest())
	require.NoError(t, err)

	assert.Equal(t, "ch_123", tx.ExternalID)
	assert.Equal(t, domain.PaymentStatusPending, tx.Status)
	assert.Equal(t, "000201", tx.PixQRCode)
	assert.False(t, tx.Simulated)

	assert.Equal(t, int64(8290), got.Amount)
	assert.Equal(t, "pix", got.PaymentMethod)
	assert.Equal(t, "order-1", got.Reference)
	require.NotNil(t, got.Pix)
	assert.Nil(t, got.Card)
}

func TestHTTPGateway_RefusedCardIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"ch_9","status":"refused","message":"insufficient funds","card":{"last_four":"0002"}}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway(Config{URL: srv.URL, SecretKey: "sk", Timeout: time.Second}, zap.NewNop())
	tx, err := g.Charge(context.Background(), cardRequest("4000000000000002"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, tx.Status)
	assert.Equal(t, "insufficient funds", tx.GatewayMsg)
	assert.Equal(t, "0002", tx.CardLastFour)
}

func TestHTTPGateway_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		delay   time.Duration
		kind    error
		message string
	}{
		{name: "validation rejected", status: http.StatusBadRequest, body: `{"message":"invalid card number"}`, kind: domain.ErrPaymentFailed, message: "invalid card number"},
		{name: "error list", status: http.StatusUnprocessableEntity, body: `{"errors":[{"message":"cvv"},{"message":"holder"}]}`, kind: domain.ErrPaymentFailed, message: "cvv; holder"},
		{name: "server error", status: http.StatusBadGateway, body: `oops`, kind: domain.ErrTransient},
		{name: "timeout", status: http.StatusOK, body: `{}`, delay: 200 * time.Millisecond, kind: domain.ErrTransient},
		{name: "no id", status: http.StatusOK, body: `{"status":"pending"}`, kind: domain.ErrPaymentFailed},
		{name: "unknown status", status: http.StatusOK, body: `{"id":"x","status":"weird"}`, kind: domain.ErrPaymentFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.delay > 0 {
					time.Sleep(tt.delay)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := NewHTTPGateway(Config{URL: srv.URL, SecretKey: "sk", Timeout: 50 * time.Millisecond}, zap.NewNop())
			tx, err := g.Charge(context.Background(), cardRequest("4111111111111111"))
			require.Error(t, err)
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.kind)
			if tt.message != "" {
				assert.Equal(t, tt.message, domain.UserMessage(err))
			}
		})
	}
}
