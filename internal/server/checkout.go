package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	orderID := strings.TrimSpace(c.Param("orderId"))
	resp, err := s.checkout.CreateCheckout(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ConfirmCheckout lands the success redirect. The webhook stays the
// source of truth; this endpoint just settles faster when the shopper
// beats the webhook back.
func (s *Server) ConfirmCheckout(c *gin.Context) {
	orderID := strings.TrimSpace(c.Query("order_id"))
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if orderID == "" || sessionID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkout.ConfirmRedirect(c.Request.Context(), orderID, sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
