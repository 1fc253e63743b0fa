package payments

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"storefront/internal/app/orders"
	"storefront/internal/domain"
	"storefront/internal/infrastructure/paygateway"
	"storefront/internal/policy"
	"storefront/internal/repository/payment_repo"
	"storefront/internal/util"
)

type PaymentService interface {
	// InitiatePayment charges an order that is awaiting payment. A declined
	// card is returned as a failed transaction, not as an error. While one
	// attempt for the order is with the gateway or authorized, others fail
	// with domain.ErrValidation.
	InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*domain.PaymentTransaction, error)
	RetryPayment(ctx context.Context, actor policy.Actor, orderID string, req *RetryPaymentRequest) (*domain.PaymentTransaction, error)
	ListPayments(ctx context.Context, actor policy.Actor, orderID string) ([]domain.PaymentTransaction, error)
	HandlePaymentStatusUpdate(ctx context.Context, event *domain.PaymentStatusEvent) error
}

type Options struct {
	PixExpiration  time.Duration
	BoletoDueDays  int
	GatewayTimeout time.Duration
	QueryTimeout   time.Duration
}

type paymentService struct {
	gateway     paygateway.Gateway
	paymentRepo payment_repo.PaymentRepository
	orders      orders.OrderService
	opts        Options
	now         func() time.Time
	logger      *zap.Logger
}

func NewPaymentService(
	gateway paygateway.Gateway,
	paymentRepo payment_repo.PaymentRepository,
	orderService orders.OrderService,
	opts Options,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		gateway:     gateway,
		paymentRepo: paymentRepo,
		orders:      orderService,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*domain.PaymentTransaction, error) {
	order := req.Order
	if order == nil {
		return nil, domain.Validation("order is required")
	}
	if !order.AwaitingPayment() {
		return nil, domain.Validation("order %s is %s and cannot receive a payment", order.ID, order.Status)
	}
	if !req.Method.Valid() {
		return nil, domain.Validation("unknown payment method %q", req.Method)
	}
	if order.TotalCents <= 0 {
		return nil, domain.Validation("order total must be positive")
	}
	now := s.now()

	billing := order.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	if req.Method == domain.PaymentMethodCard {
		if err := req.Card.Validate(now); err != nil {
			return nil, err
		}
		if err := billing.Validate(); err != nil {
			return nil, err
		}
	}

	attemptID := util.GenerateUUID()
	attempt, err := s.reserveAttempt(ctx, order, req.Method, attemptID, now)
	if err != nil {
		return nil, err
	}

	chargeReq := domain.PaymentRequest{
		AttemptID:      attemptID,
		OrderID:        order.ID,
		AmountCents:    order.TotalCents,
		Method:         req.Method,
		Buyer:          req.Buyer,
		BillingAddress: billing,
		Card:           req.Card,
		Description:    "Pedido " + order.ID,
	}
	switch req.Method {
	case domain.PaymentMethodInstantTransfer:
		chargeReq.PixExpiresAt = now.Add(s.opts.PixExpiration)
	case domain.PaymentMethodVoucher:
		chargeReq.BoletoDueAt = now.AddDate(0, 0, s.opts.BoletoDueDays)
	}

	gatewayCtx, cancelGateway := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	tx, err := s.gateway.Charge(gatewayCtx, chargeReq)
	cancelGateway()
	if err != nil {
		if errors.Is(err, domain.ErrTransient) {
			// The gateway may still have charged; the attempt keeps the order
			// reserved until it goes stale.
			s.logger.Warn("Payment gateway did not answer, attempt left processing",
				zap.String("order_id", order.ID),
				zap.String("attempt_id", attemptID),
				zap.String("gateway", s.gateway.Name()),
				zap.Error(err))
			return nil, err
		}
		if !errors.Is(err, domain.ErrPaymentFailed) && !errors.Is(err, domain.ErrValidation) {
			err = domain.WrapError(domain.ErrPaymentFailed, "payment could not be processed", err)
		}
		s.logger.Warn("Payment initiation failed, order left awaiting payment",
			zap.String("order_id", order.ID),
			zap.String("payment_method", string(req.Method)),
			zap.String("gateway", s.gateway.Name()),
			zap.Error(err))
		attempt.Status = domain.PaymentStatusFailed
		attempt.GatewayMsg = domain.UserMessage(err)
		attempt.UpdatedAt = s.now()
		if completeErr := s.completeAttempt(ctx, attempt); completeErr != nil {
			s.logger.Error("Failed to release failed payment attempt",
				zap.String("order_id", order.ID),
				zap.String("attempt_id", attemptID),
				zap.Error(completeErr))
		}
		return nil, err
	}

	tx.ID = attemptID
	tx.OrderID = order.ID
	tx.Method = req.Method
	tx.AmountCents = order.TotalCents
	if tx.ExternalID == "" {
		tx.ExternalID = attemptID
	}
	if tx.CardLastFour == "" && req.Card != nil {
		tx.CardLastFour = req.Card.LastFour()
	}
	tx.CreatedAt = now
	tx.UpdatedAt = s.now()

	if err := s.completeAttempt(ctx, tx); err != nil {
		if errors.Is(err, domain.ErrValidation) && tx.Status.Settled() {
			s.logger.Error("Gateway settled an attempt that was already released, manual refund required",
				zap.String("order_id", order.ID),
				zap.String("transaction_id", tx.ExternalID))
		} else {
			s.logger.Error("Failed to record payment transaction",
				zap.String("order_id", order.ID),
				zap.String("transaction_id", tx.ExternalID),
				zap.String("status", string(tx.Status)),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("Payment initiated",
		zap.String("order_id", order.ID),
		zap.String("transaction_id", tx.ExternalID),
		zap.String("payment_method", string(tx.Method)),
		zap.String("status", string(tx.Status)),
		zap.Bool("simulated", tx.Simulated))
	return tx, nil
}

// reserveAttempt stores a processing attempt before the gateway is called.
// Only one active attempt may exist per order, so a concurrent request for the
// same order fails here with domain.ErrValidation.
func (s *paymentService) reserveAttempt(ctx context.Context, order *domain.Order, method domain.PaymentMethod, attemptID string, now time.Time) (*domain.PaymentTransaction, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	released, err := s.paymentRepo.ReleaseStale(dbCtx, order.ID, now.Add(-s.staleAfter()))
	if err != nil {
		s.logger.Error("Failed to release stale payment attempts", zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}
	if released > 0 {
		s.logger.Error("Released payment attempts the gateway never answered, reconcile with the gateway",
			zap.String("order_id", order.ID),
			zap.Int64("released", released))
	}

	attempt := &domain.PaymentTransaction{
		ID:          attemptID,
		OrderID:     order.ID,
		ExternalID:  attemptID,
		Method:      method,
		AmountCents: order.TotalCents,
		Status:      domain.PaymentStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.paymentRepo.Create(dbCtx, attempt); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.logger.Warn("Payment already in progress or authorized for order", zap.String("order_id", order.ID))
			return nil, err
		}
		s.logger.Error("Failed to reserve payment attempt", zap.String("order_id", order.ID), zap.Error(err))
		return nil, err
	}
	return attempt, nil
}

// completeAttempt outlives the request: once the gateway has answered, its
// answer is stored even if the caller went away.
func (s *paymentService) completeAttempt(ctx context.Context, tx *domain.PaymentTransaction) error {
	dbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.QueryTimeout)
	defer cancel()
	return s.paymentRepo.Complete(dbCtx, tx)
}

// staleAfter is how long a processing attempt may wait on the gateway before
// the next attempt for the order releases it.
func (s *paymentService) staleAfter() time.Duration {
	return 2*s.opts.GatewayTimeout + s.opts.QueryTimeout
}

func (s *paymentService) RetryPayment(ctx context.Context, actor policy.Actor, orderID string, req *RetryPaymentRequest) (*domain.PaymentTransaction, error) {
	details, err := s.orders.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	buyer := req.Buyer
	buyer.UserID = actor.UserID
	if buyer.Email == "" {
		buyer.Email = actor.Email
	}
	if buyer.Name == "" {
		buyer.Name = actor.Name
	}
	return s.InitiatePayment(ctx, &InitiatePaymentRequest{
		Order:          details.Order,
		Method:         req.Method,
		Buyer:          buyer,
		BillingAddress: req.BillingAddress,
		Card:           req.Card,
	})
}

func (s *paymentService) ListPayments(ctx context.Context, actor policy.Actor, orderID string) ([]domain.PaymentTransaction, error) {
	if _, err := s.orders.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	dbCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()
	txs, err := s.paymentRepo.ListByOrderID(dbCtx, orderID)
	if err != nil {
		s.logger.Error("Failed to list payment transactions", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}
	return txs, nil
}

func (s *paymentService) HandlePaymentStatusUpdate(ctx context.Context, event *domain.PaymentStatusEvent) error {
	status, err := domain.ParsePaymentStatus(event.Status)
	if err != nil {
		s.logger.Warn("Received unknown payment status",
			zap.String("order_id", event.OrderID),
			zap.String("transaction_id", event.TransactionID),
			zap.String("received_status", event.Status))
		return nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()
	tx, err := s.paymentRepo.GetByExternalID(dbCtx, event.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Payment transaction not found for status update, ignoring",
				zap.String("transaction_id", event.TransactionID),
				zap.String("order_id", event.OrderID))
			return nil
		}
		return err
	}
	if event.OrderID != "" && event.OrderID != tx.OrderID {
		s.logger.Warn("Payment status update names a different order, ignoring",
			zap.String("transaction_id", tx.ExternalID),
			zap.String("order_id", tx.OrderID),
			zap.String("event_order_id", event.OrderID))
		return nil
	}

	if tx.Status != status {
		old := tx.Status
		tx.Status = status
		if event.Message != "" {
			tx.GatewayMsg = event.Message
		}
		tx.UpdatedAt = s.now()
		if err := s.paymentRepo.UpdateStatus(dbCtx, tx); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				s.logger.Error("Gateway settled a second payment for order, manual refund required",
					zap.String("order_id", tx.OrderID),
					zap.String("transaction_id", tx.ExternalID))
				return nil
			}
			return err
		}
		s.logger.Info("Payment transaction status updated",
			zap.String("order_id", tx.OrderID),
			zap.String("transaction_id", tx.ExternalID),
			zap.String("old_status", string(old)),
			zap.String("new_status", string(status)))
	}

	return s.orders.ApplyPaymentOutcome(ctx, tx.OrderID, status)
}
