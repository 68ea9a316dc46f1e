package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newAdapter(t *testing.T) paymentdomain.PaymentAdapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		Provider: "stripe",
		Config:   map[string]any{"webhook_secret": testSecret},
	})
	require.NoError(t, err)
	return adapter
}

func signPayload(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", timestamp, payload)))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func signedHeaders(secret string, payload []byte) http.Header {
	headers := http.Header{}
	headers.Set("Stripe-Signature", signPayload(secret, time.Now().Unix(), payload))
	return headers
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	err := adapter.Verify(context.Background(), payload, signedHeaders(testSecret, payload))
	require.NoError(t, err)
}

func TestVerifyRejectsBadSignatures(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	tests := []struct {
		name    string
		headers http.Header
	}{
		{"missing header", http.Header{}},
		{"wrong secret", signedHeaders("whsec_other", payload)},
		{"garbage header", func() http.Header {
			h := http.Header{}
			h.Set("Stripe-Signature", "not-a-signature")
			return h
		}()},
		{"tampered payload", signedHeaders(testSecret, []byte(`{"id":"evt_2"}`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := adapter.Verify(context.Background(), payload, tt.headers)
			require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
		})
	}
}

func TestFactoryRequiresWebhookSecret(t *testing.T) {
	_, err := NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		Provider: "stripe",
		Config:   map[string]any{"webhook_secret": "  "},
	})
	require.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestParseCheckoutSessionCompleted(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1700000000,
		"data": {"object": {
			"id": "cs_test_1",
			"amount_total": 2950,
			"currency": "usd",
			"payment_status": "paid",
			"metadata": {"order_id": "1859426374123456512"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, "stripe", event.Provider)
	require.Equal(t, "evt_1", event.ProviderEventID)
	require.Equal(t, "cs_test_1", event.ProviderPaymentID)
	require.Equal(t, paymentdomain.EventTypePaymentSucceeded, event.Type)
	require.Equal(t, int64(2950), event.Amount)
	require.Equal(t, "USD", event.Currency)
	require.NotZero(t, event.OrderID)
}

func TestParseIgnoresUnpaidCheckoutSession(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "payment_status": "unpaid", "metadata": {"order_id": "42"}}}
	}`)

	_, err := adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParseIgnoresUnknownEventTypes(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{"id": "evt_1", "type": "customer.created", "data": {"object": {}}}`)

	_, err := adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParseRequiresOrderMetadata(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_1", "amount": 100, "currency": "usd", "metadata": {}}}
	}`)

	_, err := adapter.Parse(context.Background(), payload)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidOrder)
}

func TestParseChargeRefunded(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"id": "evt_9",
		"type": "charge.refunded",
		"created": 1700000100,
		"data": {"object": {
			"id": "ch_1",
			"amount": 2950,
			"amount_refunded": 2950,
			"currency": "usd",
			"metadata": {"order_id": "77"}
		}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypeRefunded, event.Type)
	require.Equal(t, int64(2950), event.Amount)
	require.Equal(t, int64(77), event.OrderID)
	require.Equal(t, time.Unix(1700000100, 0).UTC(), event.OccurredAt)
}

func TestParsePaymentIntentFailed(t *testing.T) {
	adapter := newAdapter(t)
	payload := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_2", "amount": 500, "currency": "usd", "metadata": {"order_id": "77"}}}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypePaymentFailed, event.Type)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	adapter := newAdapter(t)

	_, err := adapter.Parse(context.Background(), []byte(`not json`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	_, err = adapter.Parse(context.Background(), []byte(`{"type": "payment_intent.succeeded"}`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)
}
