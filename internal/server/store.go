package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type storeInfoResponse struct {
	StoreName            string  `json:"store_name"`
	Currency             string  `json:"currency"`
	TaxRate              float64 `json:"tax_rate"`
	ShippingFlatRate     int64   `json:"shipping_flat_rate_cents"`
	PendingOrderTTLHours int     `json:"pending_order_ttl_hours"`
}

// GetStoreInfo exposes the merchant settings the storefront needs to
// render totals before an order exists.
func (s *Server) GetStoreInfo(c *gin.Context) {
	cfg := s.store.Get()
	c.JSON(http.StatusOK, gin.H{"data": storeInfoResponse{
		StoreName:            cfg.StoreName,
		Currency:             cfg.Currency,
		TaxRate:              cfg.TaxRate,
		ShippingFlatRate:     cfg.ShippingFlatRate,
		PendingOrderTTLHours: cfg.PendingOrderTTLHours,
	}})
}
