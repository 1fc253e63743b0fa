package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(t *testing.T, priceCents int64, qty int, shippingCents int64) (*Order, *OrderItem) {
	t.Helper()
	stock := 5
	p := &Product{ID: "p1", Name: "O Livro", PriceCents: priceCents, Stock: &stock, Active: true}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item, err := NewOrderItem("i1", p, qty, now)
	require.NoError(t, err)
	addr := NewOrderAddress("a1", "u1", AddressSnapshot{
		RecipientName: "Maria", PostalCode: "01310-100", Street: "Av. Paulista", Number: "1000",
		District: "Bela Vista", City: "São Paulo", State: "sp",
	}, now)
	o, err := NewOrder("o1", "u1", addr, item, "PAC", shippingCents, PaymentMethodInstantTransfer, "", now)
	require.NoError(t, err)
	return o, item
}

func TestNewOrder_Totals(t *testing.T) {
	o, item := newTestOrder(t, 6790, 1, 1500)

	assert.Equal(t, int64(6790), o.SubtotalCents)
	assert.Equal(t, int64(8290), o.TotalCents)
	assert.Equal(t, OrderStatusAwaitingPayment, o.Status)
	assert.Equal(t, "o1", item.OrderID)
	assert.Equal(t, "01310100", o.ShippingAddress.PostalCode)
	assert.Equal(t, "SP", o.ShippingAddress.State)
	require.NoError(t, o.CheckTotals([]OrderItem{*item}))
}

func TestNewOrder_TotalsForQuantities(t *testing.T) {
	for _, qty := range []int{1, 2, 3, 10} {
		for _, ship := range []int64{0, 1500, 2390} {
			o, item := newTestOrder(t, 4990, qty, ship)
			assert.Equal(t, int64(4990)*int64(qty)+ship, o.TotalCents)
			assert.NoError(t, o.CheckTotals([]OrderItem{*item}))
		}
	}
}

func TestNewOrderItem_RejectsZeroQuantity(t *testing.T) {
	_, err := NewOrderItem("i1", &Product{ID: "p1", PriceCents: 100}, 0, time.Now())
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTransitionTo_StampsOnce(t *testing.T) {
	o, _ := newTestOrder(t, 6790, 1, 1500)
	first := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	changed, err := o.TransitionTo(OrderStatusPaid, first)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, first, *o.PaidAt)

	changed, err = o.TransitionTo(OrderStatusPaid, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *o.PaidAt)
}

func TestTransitionTo_Lifecycle(t *testing.T) {
	o, _ := newTestOrder(t, 6790, 1, 1500)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for _, st := range []OrderStatus{OrderStatusPaid, OrderStatusPreparing, OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered} {
		_, err := o.TransitionTo(st, at)
		require.NoError(t, err, st)
	}
	assert.NotNil(t, o.PaidAt)
	assert.NotNil(t, o.ShippedAt)
	assert.NotNil(t, o.DeliveredAt)
	assert.Nil(t, o.CancelledAt)

	_, err := o.TransitionTo(OrderStatusRefunded, at)
	require.NoError(t, err)

	_, err = o.TransitionTo(OrderStatusPaid, at)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusAwaitingPayment, OrderStatusPaid, true},
		{OrderStatusAwaitingPayment, OrderStatusCancelled, true},
		{OrderStatusAwaitingPayment, OrderStatusRefunded, false},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusRefunded, true},
		{OrderStatusPreparing, OrderStatusCancelled, false},
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusRefunded, true},
		{OrderStatusShipped, OrderStatusPaid, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
		{OrderStatusPaid, OrderStatus("SHIPPED"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCancelStampsCancelledAt(t *testing.T) {
	o, _ := newTestOrder(t, 100, 1, 0)
	at := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	_, err := o.TransitionTo(OrderStatusCancelled, at)
	require.NoError(t, err)
	assert.Equal(t, at, *o.CancelledAt)
	assert.Nil(t, o.PaidAt)
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("EM_TRANSITO")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusInTransit, st)

	_, err = ParseOrderStatus("SHIPPED")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestNormalizePostalCode(t *testing.T) {
	cep, err := NormalizePostalCode("01310-100")
	require.NoError(t, err)
	assert.Equal(t, "01310100", cep)

	_, err = NormalizePostalCode("0131")
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = NormalizePostalCode("ABCDE-123")
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCardDetailsValidate(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	valid := &CardDetails{Number: "4111 1111 1111 1111", HolderName: "MARIA S", ExpMonth: 12, ExpYear: 2028, CVV: "123"}
	assert.NoError(t, valid.Validate(now))
	assert.Equal(t, "1111", valid.LastFour())

	var missing *CardDetails
	assert.True(t, errors.Is(missing.Validate(now), ErrValidation))

	expired := *valid
	expired.ExpYear, expired.ExpMonth = 2026, 9
	assert.True(t, errors.Is(expired.Validate(now), ErrValidation))

	short := *valid
	short.Number = "4111"
	assert.True(t, errors.Is(short.Validate(now), ErrValidation))

	for _, cvv := range []string{"12a", "1 3", "12", "12345", ""} {
		bad := *valid
		bad.CVV = cvv
		assert.True(t, errors.Is(bad.Validate(now), ErrValidation), "cvv %q", cvv)
	}
	fourDigits := *valid
	fourDigits.CVV = " 1234 "
	assert.NoError(t, fourDigits.Validate(now))
}

func TestErrorKinds(t *testing.T) {
	err := WrapError(ErrPaymentFailed, "card declined", errors.New("gateway said no"))
	assert.True(t, errors.Is(err, ErrPaymentFailed))
	assert.False(t, errors.Is(err, ErrTransient))
	assert.Equal(t, "card declined", UserMessage(err))
	assert.Equal(t, "out of stock", UserMessage(ErrOutOfStock))
	assert.Equal(t, "internal server error", UserMessage(errors.New("boom")))
}
