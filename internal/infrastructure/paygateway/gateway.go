package paygateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
)

// Gateway creates one charge per call. A business refusal (card declined) is a
// transaction with status failed, not an error; errors are reserved for
// rejected requests (ErrPaymentFailed) and unreachable gateways (ErrTransient).
type Gateway interface {
	Charge(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentTransaction, error)
	Name() string
}

type Config struct {
	URL       string
	SecretKey string
	Timeout   time.Duration
}

func (c Config) Configured() bool {
	return c.URL != "" && c.SecretKey != ""
}

// New returns the HTTP client when credentials are present and the simulated
// gateway otherwise.
func New(cfg Config, logger *zap.Logger) Gateway {
	if !cfg.Configured() {
		logger.Warn("Payment gateway not configured, using simulated charges")
		return NewSimulated(time.Now)
	}
	logger.Info("Payment gateway configured", zap.String("url", cfg.URL), zap.Duration("timeout", cfg.Timeout))
	return NewHTTPGateway(cfg, logger)
}
