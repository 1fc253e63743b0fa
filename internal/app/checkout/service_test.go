package checkout

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/app/notification"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/app/shipping"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/paygateway"
	"storefront/internal/policy"
	"storefront/internal/repository/memory"
	"storefront/internal/util"
)

var buyer = policy.Actor{UserID: "user-1", Email: "ana@example.com", Name: "Ana Souza", Role: policy.RoleBuyer}

type recordingNotifier struct {
	sent chan *notification.OrderConfirmation
}

func (r *recordingNotifier) SendOrderConfirmation(ctx context.Context, c *notification.OrderConfirmation) {
	r.sent <- c
}

type failingGateway struct{}

func (failingGateway) Charge(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentTransaction, error) {
	return nil, domain.Transient("payment gateway unavailable, please try again", errors.New("connection refused"))
}

func (failingGateway) Name() string { return "failing" }

type fixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	orders   orders.OrderService
	checkout CheckoutService
	book     domain.Product
}

func newFixture(t *testing.T, gateway paygateway.Gateway) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := memory.NewStore()
	if gateway == nil {
		gateway = paygateway.NewSimulated(time.Now)
	}
	cat := catalog.NewCatalogService(store.Products(), time.Second, log)
	orderService := orders.NewOrderService(cat, store.Orders(), store.Payments(), "order_events", time.Second, log)
	paymentService := payments.NewPaymentService(gateway, store.Payments(), orderService, payments.Options{
		PixExpiration:  30 * time.Minute,
		BoletoDueDays:  3,
		GatewayTimeout: time.Second,
		QueryTimeout:   time.Second,
	}, log)
	notifier := &recordingNotifier{sent: make(chan *notification.OrderConfirmation, 1)}
	svc := NewCheckoutService(cat, shipping.NewShippingService(config.DefaultShippingRates(), log),
		orderService, paymentService, notifier, time.Second, log)

	stock := 5
	book := domain.Product{
		ID:          util.GenerateUUID(),
		Name:        "Livro de Receitas",
		PriceCents:  6790,
		Stock:       &stock,
		WeightGrams: 500,
		WidthCm:     23,
		HeightCm:    16,
		DepthCm:     3,
		Active:      true,
	}
	store.AddProduct(book)
	return &fixture{store: store, notifier: notifier, orders: orderService, checkout: svc, book: book}
}

func (f *fixture) waitNotification(t *testing.T) *notification.OrderConfirmation {
	t.Helper()
	select {
	case c := <-f.notifier.sent:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("order confirmation was not sent")
		return nil
	}
}

func pixRequest(productID string) *CreateOrderRequest {
	return &CreateOrderRequest{
		ProductID:          productID,
		Quantity:           1,
		ShippingMethod:     "PAC",
		ShippingPriceCents: 1650,
		PaymentMethod:      domain.PaymentMethodInstantTransfer,
		Address: domain.AddressSnapshot{
			RecipientName: "Ana Souza",
			PostalCode:    "01310-100",
			Street:        "Av. Paulista",
			Number:        "1000",
			District:      "Bela Vista",
			City:          "São Paulo",
			State:         "SP",
		},
	}
}

func TestCreateOrder_Pix(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.checkout.CreateOrder(context.Background(), buyer, pixRequest(f.book.ID))
	require.NoError(t, err)

	assert.Equal(t, int64(6790+1650), result.TotalCents)
	require.NotNil(t, result.Payment)
	assert.Equal(t, domain.PaymentStatusPending, result.Payment.Status)
	assert.True(t, strings.HasPrefix(result.Payment.ExternalID, paygateway.SimulatedPixPrefix))
	assert.NotEmpty(t, result.Payment.PixQRCode)

	stock, _ := f.store.Stock(f.book.ID)
	assert.Equal(t, 4, stock)

	sent := f.waitNotification(t)
	assert.Equal(t, "ana@example.com", sent.Email)
	assert.Equal(t, result.OrderID, sent.Order.ID)
	assert.Equal(t, result.Payment, sent.Payment)
	assert.Len(t, sent.Items, 1)

	resp := MapResultToResponse(result)
	assert.Equal(t, string(domain.OrderStatusAwaitingPayment), resp.Status)
	assert.Equal(t, result.Payment.ExternalID, resp.Payment.TransactionID)
}

func TestCreateOrder_RejectsBeforeAnySideEffect(t *testing.T) {
	f := newFixture(t, nil)
	expiredCard := &domain.CardDetails{Number: "4111111111111111", HolderName: "ANA", ExpMonth: 1, ExpYear: 2001, CVV: "123"}

	tests := []struct {
		name   string
		actor  policy.Actor
		mutate func(r *CreateOrderRequest)
		kind   error
	}{
		{"anonymous", policy.Actor{}, func(r *CreateOrderRequest) {}, domain.ErrPermissionDenied},
		{"zero quantity", buyer, func(r *CreateOrderRequest) { r.Quantity = 0 }, domain.ErrValidation},
		{"unknown method", buyer, func(r *CreateOrderRequest) { r.PaymentMethod = "cash" }, domain.ErrValidation},
		{"missing city", buyer, func(r *CreateOrderRequest) { r.Address.City = "" }, domain.ErrValidation},
		{"long state", buyer, func(r *CreateOrderRequest) { r.Address.State = "SPX" }, domain.ErrValidation},
		{"negative shipping", buyer, func(r *CreateOrderRequest) { r.ShippingPriceCents = -1 }, domain.ErrValidation},
		{"no e-mail", policy.Actor{UserID: "user-1"}, func(r *CreateOrderRequest) {}, domain.ErrValidation},
		{"card missing", buyer, func(r *CreateOrderRequest) { r.PaymentMethod = domain.PaymentMethodCard }, domain.ErrValidation},
		{"card expired", buyer, func(r *CreateOrderRequest) {
			r.PaymentMethod = domain.PaymentMethodCard
			r.Card = expiredCard
		}, domain.ErrValidation},
		{"unknown shipping method", buyer, func(r *CreateOrderRequest) { r.ShippingMethod = "DRONE" }, domain.ErrValidation},
		{"stale shipping price", buyer, func(r *CreateOrderRequest) { r.ShippingPriceCents = 1000 }, domain.ErrValidation},
		{"uncovered destination", buyer, func(r *CreateOrderRequest) { r.Address.PostalCode = "00000-000" }, domain.ErrValidation},
		{"unknown product", buyer, func(r *CreateOrderRequest) { r.ProductID = util.GenerateUUID() }, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := pixRequest(f.book.ID)
			tt.mutate(req)
			result, err := f.checkout.CreateOrder(context.Background(), tt.actor, req)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}

	_, orderCount, _ := f.store.Counts()
	assert.Zero(t, orderCount)
	stock, _ := f.store.Stock(f.book.ID)
	assert.Equal(t, 5, stock)
	assert.Empty(t, f.notifier.sent)
}

func TestCreateOrder_OutOfStockAfterQuote(t *testing.T) {
	f := newFixture(t, nil)
	req := pixRequest(f.book.ID)
	req.Quantity = 6

	// the quote for six books is priced on their combined weight
	options, err := shipping.NewShippingService(config.DefaultShippingRates(), zap.NewNop()).
		Quote(context.Background(), req.Address.PostalCode, []shipping.PackageItem{shipping.PackageItemFor(&f.book, 6)})
	require.NoError(t, err)
	pac, ok := shipping.Find(options, "PAC")
	require.True(t, ok)
	req.ShippingPriceCents = pac.PriceCents

	_, err = f.checkout.CreateOrder(context.Background(), buyer, req)
	assert.True(t, errors.Is(err, domain.ErrOutOfStock), "got %v", err)
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	f := newFixture(t, nil)
	inactive := f.book
	inactive.ID = util.GenerateUUID()
	inactive.Active = false
	f.store.AddProduct(inactive)

	_, err := f.checkout.CreateOrder(context.Background(), buyer, pixRequest(inactive.ID))
	assert.True(t, errors.Is(err, domain.ErrProductUnavailable))
	addresses, orderCount, items := f.store.Counts()
	assert.Zero(t, addresses+orderCount+items)
}

func TestCreateOrder_PaymentFailureKeepsOrder(t *testing.T) {
	f := newFixture(t, failingGateway{})

	result, err := f.checkout.CreateOrder(context.Background(), buyer, pixRequest(f.book.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransient))
	require.NotNil(t, result)
	assert.NotEmpty(t, result.OrderID)
	assert.Nil(t, result.Payment)

	details, err := f.orders.GetOrder(context.Background(), buyer, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusAwaitingPayment, details.Order.Status)

	sent := f.waitNotification(t)
	assert.Nil(t, sent.Payment)
}

func TestCreateOrder_RefusedCardIsNotAnError(t *testing.T) {
	f := newFixture(t, nil)
	req := pixRequest(f.book.ID)
	req.PaymentMethod = domain.PaymentMethodCard
	req.Card = &domain.CardDetails{
		Number:     "4000000000000002",
		HolderName: "ANA SOUZA",
		ExpMonth:   12,
		ExpYear:    time.Now().Year() + 1,
		CVV:        "123",
	}

	result, err := f.checkout.CreateOrder(context.Background(), buyer, req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, result.Payment.Status)
	f.waitNotification(t)
}

func TestCreateOrder_NotificationOutlivesRequest(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	result, err := f.checkout.CreateOrder(ctx, buyer, pixRequest(f.book.ID))
	require.NoError(t, err)
	cancel()

	sent := f.waitNotification(t)
	assert.Equal(t, result.OrderID, sent.Order.ID)
}

type slowNotifier struct {
	release chan struct{}
	sent    chan string
}

func (n *slowNotifier) SendOrderConfirmation(ctx context.Context, c *notification.OrderConfirmation) {
	<-n.release
	n.sent <- c.Order.ID
}

func TestDrain_WaitsForConfirmations(t *testing.T) {
	f := newFixture(t, nil)
	slow := &slowNotifier{release: make(chan struct{}), sent: make(chan string, 1)}
	f.checkout.(*checkoutService).notifications = slow

	result, err := f.checkout.CreateOrder(context.Background(), buyer, pixRequest(f.book.ID))
	require.NoError(t, err)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.checkout.Drain(short), context.DeadlineExceeded)

	close(slow.release)
	require.NoError(t, f.checkout.Drain(context.Background()))
	select {
	case id := <-slow.sent:
		assert.Equal(t, result.OrderID, id)
	default:
		t.Fatal("Drain returned before the confirmation was sent")
	}
}

func TestDrain_NothingInFlight(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, f.checkout.Drain(ctx))
}
