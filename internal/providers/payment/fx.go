package payment

import (
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.payment",
	fx.Provide(NewGateway),
)

// NewGateway returns the Stripe gateway when an API key is configured,
// otherwise a disabled gateway that refuses checkout attempts.
func NewGateway(cfg config.Config, log *zap.Logger) Gateway {
	if strings.TrimSpace(cfg.StripeAPIKey) == "" {
		log.Warn("stripe api key missing, hosted checkout disabled")
		return disabledGateway{}
	}
	return NewStripeGateway(cfg.StripeAPIKey, log)
}
