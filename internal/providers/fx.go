package providers

import (
	"github.com/smallbiznis/storefront/internal/providers/email"
	"github.com/smallbiznis/storefront/internal/providers/payment"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"github.com/smallbiznis/storefront/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	payment.Module,
	pdf.Module,
	email.Module,
	slack.Module,
)
