package paychangu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/campusgigs/internal/config"
	"github.com/digkill/campusgigs/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.Config{
		PayChanguSecretKey: "sec-test",
		PayChanguBaseURL:   baseURL,
		PaymentCurrency:    "MWK",
		AppLogoURL:         "https://cdn.example.com/logo.png",
		GatewayTimeout:     2 * time.Second,
	}, logger.Discard())
}

func TestInitiateCheckoutSendsPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payment", r.URL.Path)
		assert.Equal(t, "Bearer sec-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://checkout.paychangu.com/abc"}}`))
	}))
	defer srv.Close()

	url, err := newTestClient(srv.URL).InitiateCheckout(context.Background(), CheckoutRequest{
		Amount:      decimal.NewFromInt(15000),
		TxRef:       "sub_123",
		CallbackURL: "https://gigs.example.com/api/subscriptions/webhook",
		ReturnURL:   "https://gigs.example.com/billing",
		Title:       "Subscription: Pro",
		Meta:        map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paychangu.com/abc", url)

	assert.Equal(t, 15000.0, got["amount"])
	assert.Equal(t, "MWK", got["currency"])
	assert.Equal(t, "sub_123", got["tx_ref"])
	assert.Equal(t, "sub_123", got["uuid"])
	assert.Equal(t, "https://gigs.example.com/api/subscriptions/webhook", got["callback_url"])
	custom, ok := got["customization"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Subscription: Pro", custom["title"])
	assert.Equal(t, "https://cdn.example.com/logo.png", custom["logo"])
}

func TestInitiateCheckoutNon2xxIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"failed","message":"invalid amount"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).InitiateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1), TxRef: "escrow_1"})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.Status)
	assert.Contains(t, gwErr.Body, "invalid amount")
}

func TestInitiateCheckoutMissingURLIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).InitiateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1), TxRef: "escrow_1"})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.True(t, errors.Is(err, errMissingCheckoutURL))
}

func TestInitiateCheckoutMalformedBodyIsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).InitiateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1), TxRef: "escrow_1"})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestInitiateCheckoutTimeoutIsGatewayError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(srv.URL)
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.InitiateCheckout(context.Background(), CheckoutRequest{Amount: decimal.NewFromInt(1), TxRef: "escrow_1"})
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Zero(t, gwErr.Status)
}
