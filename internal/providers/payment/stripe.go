package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/payment/domain"
	"go.uber.org/zap"
)

const stripeAPIBase = "https://api.stripe.com/v1"

// StripeGateway drives Stripe Checkout over its form-encoded REST API.
type StripeGateway struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewStripeGateway(apiKey string, log *zap.Logger) *StripeGateway {
	return &StripeGateway{
		apiKey:  apiKey,
		baseURL: stripeAPIBase,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.Named("providers.stripe"),
	}
}

// WithBaseURL points the gateway at a different API host. Used in tests.
func (g *StripeGateway) WithBaseURL(base string) *StripeGateway {
	g.baseURL = strings.TrimRight(base, "/")
	return g
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return nil, domain.ErrProviderUnavailable
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.OrderID)
	form.Set("metadata[order_id]", req.OrderID)
	form.Set("metadata[order_number]", req.OrderNumber)
	form.Set("payment_intent_data[metadata][order_id]", req.OrderID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	if email := strings.TrimSpace(req.CustomerEmail); email != "" {
		form.Set("customer_email", email)
	}

	var session stripeSession
	if err := g.do(ctx, http.MethodPost, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return session.toCheckoutSession(), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return nil, domain.ErrProviderUnavailable
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidEvent
	}

	var session stripeSession
	if err := g.do(ctx, http.MethodGet, "/checkout/sessions/"+url.PathEscape(sessionID), nil, &session); err != nil {
		return nil, err
	}
	return session.toCheckoutSession(), nil
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	Metadata      struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

func (s stripeSession) toCheckoutSession() *CheckoutSession {
	return &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: s.PaymentStatus,
		OrderID:       s.Metadata.OrderID,
		AmountCents:   s.AmountTotal,
		Currency:      strings.ToUpper(s.Currency),
	}
}

type stripeErrorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.Warn("stripe request failed", zap.String("path", path), zap.Error(err))
		return domain.ErrProviderUnavailable
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope stripeErrorEnvelope
		_ = json.Unmarshal(payload, &envelope)
		g.log.Warn("stripe request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error_type", envelope.Error.Type),
			zap.String("error_code", envelope.Error.Code),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			return domain.ErrProviderUnavailable
		}
		return fmt.Errorf("stripe: %s", nonEmpty(envelope.Error.Code, envelope.Error.Type, "request_failed"))
	}

	return json.Unmarshal(payload, out)
}

func nonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
