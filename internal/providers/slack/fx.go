package slack

import (
	"github.com/smallbiznis/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.slack",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the webhook provider when a URL is configured,
// otherwise a no-op so stock sweeps never block on alerting.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.SlackWebhookURL == "" {
		log.Warn("slack webhook url missing, low stock alerts disabled")
		return &NoOpProvider{}
	}
	return NewWebhook(cfg.SlackWebhookURL)
}
