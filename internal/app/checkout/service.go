package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/app/catalog"
	"storefront/internal/app/notification"
	"storefront/internal/app/orders"
	"storefront/internal/app/payments"
	"storefront/internal/app/shipping"
	"storefront/internal/domain"
	"storefront/internal/policy"
)

// CheckoutService runs the purchase stages strictly forward: catalog lookup,
// shipping quote, order assembly, payment initiation and notification.
type CheckoutService interface {
	// CreateOrder places the order and starts its payment. When payment
	// initiation fails after the order was stored, the result still carries
	// the order id next to the error so the buyer can retry payment.
	CreateOrder(ctx context.Context, actor policy.Actor, req *CreateOrderRequest) (*Result, error)
	// Drain waits for confirmations still being sent, or for ctx to end.
	Drain(ctx context.Context) error
}

type checkoutService struct {
	catalog       catalog.CatalogService
	shipping      shipping.ShippingService
	orders        orders.OrderService
	payments      payments.PaymentService
	notifications notification.NotificationService
	notifyTimeout time.Duration
	logger        *zap.Logger

	inflight sync.WaitGroup
}

func NewCheckoutService(
	catalog catalog.CatalogService,
	shipping shipping.ShippingService,
	orders orders.OrderService,
	payments payments.PaymentService,
	notifications notification.NotificationService,
	notifyTimeout time.Duration,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		catalog:       catalog,
		shipping:      shipping,
		orders:        orders,
		payments:      payments,
		notifications: notifications,
		notifyTimeout: notifyTimeout,
		logger:        logger,
	}
}

func (s *checkoutService) CreateOrder(ctx context.Context, actor policy.Actor, req *CreateOrderRequest) (*Result, error) {
	if actor.Anonymous() {
		return nil, domain.NewError(domain.ErrPermissionDenied, "authentication required")
	}
	email := strings.TrimSpace(req.Buyer.Email)
	if email == "" {
		email = actor.Email
	}
	if err := s.validate(req, email); err != nil {
		s.logger.Warn("Rejected checkout request", zap.String("product_id", req.ProductID), zap.Error(err))
		return nil, err
	}

	product, err := s.catalog.GetSellableProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	options, err := s.shipping.Quote(ctx, req.Address.PostalCode, []shipping.PackageItem{shipping.PackageItemFor(product, req.Quantity)})
	if err != nil {
		return nil, err
	}
	option, ok := shipping.Find(options, req.ShippingMethod)
	if !ok {
		return nil, domain.Validation("shipping method %q is not available for postal code %s", req.ShippingMethod, req.Address.PostalCode)
	}
	if option.PriceCents != req.ShippingPriceCents {
		s.logger.Warn("Shipping price changed since quote",
			zap.String("product_id", product.ID),
			zap.String("shipping_method", option.Code),
			zap.Int64("quoted_cents", option.PriceCents),
			zap.Int64("requested_cents", req.ShippingPriceCents))
		return nil, domain.Validation("shipping price for %s changed, please quote again", option.Name)
	}

	placed, err := s.orders.AssembleOrder(ctx, &orders.AssembleOrderRequest{
		UserID:         actor.UserID,
		ProductID:      product.ID,
		Quantity:       req.Quantity,
		ShippingMethod: option.Code,
		ShippingCents:  option.PriceCents,
		Address:        req.Address,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, err
	}
	order := placed.Order
	result := &Result{OrderID: order.ID, TotalCents: order.TotalCents, Order: order}

	buyer := req.Buyer
	buyer.UserID = actor.UserID
	buyer.Email = email
	if buyer.Name == "" {
		buyer.Name = actor.Name
	}
	if buyer.Name == "" {
		buyer.Name = req.Address.RecipientName
	}
	tx, payErr := s.payments.InitiatePayment(ctx, &payments.InitiatePaymentRequest{
		Order:          order,
		Method:         req.PaymentMethod,
		Buyer:          buyer,
		BillingAddress: req.BillingAddress,
		Card:           req.Card,
	})
	result.Payment = tx

	s.notify(ctx, &notification.OrderConfirmation{
		Email:         email,
		Order:         order,
		Items:         placed.Items,
		Address:       order.ShippingAddress,
		PaymentMethod: req.PaymentMethod,
		Payment:       tx,
	})

	if payErr != nil {
		return result, payErr
	}
	s.logger.Info("Checkout completed",
		zap.String("order_id", order.ID),
		zap.String("payment_method", string(req.PaymentMethod)),
		zap.String("transaction_id", tx.ExternalID),
		zap.String("payment_status", string(tx.Status)))
	return result, nil
}

func (s *checkoutService) validate(req *CreateOrderRequest, email string) error {
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Validation("product_id is required")
	}
	if req.Quantity < 1 {
		return domain.Validation("quantity must be at least 1")
	}
	if !req.PaymentMethod.Valid() {
		return domain.Validation("unknown payment method %q", req.PaymentMethod)
	}
	if strings.TrimSpace(req.ShippingMethod) == "" {
		return domain.Validation("shipping_method is required")
	}
	if req.ShippingPriceCents < 0 {
		return domain.Validation("shipping price cannot be negative")
	}
	if err := req.Address.Validate(); err != nil {
		return err
	}
	if !strings.Contains(email, "@") {
		return domain.Validation("buyer e-mail is required")
	}
	if req.PaymentMethod == domain.PaymentMethodCard {
		if err := req.Card.Validate(time.Now()); err != nil {
			return err
		}
		if req.BillingAddress != nil {
			if err := req.BillingAddress.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// notify sends the confirmation in the background. It outlives the request
// but not the notify timeout.
func (s *checkoutService) notify(ctx context.Context, c *notification.OrderConfirmation) {
	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		notifyCtx, cancel := context.WithTimeout(detached, s.notifyTimeout)
		defer cancel()
		s.notifications.SendOrderConfirmation(notifyCtx, c)
	}()
}

func (s *checkoutService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
