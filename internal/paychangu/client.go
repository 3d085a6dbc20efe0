package paychangu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/config"
)

// Client initiates hosted checkouts against the PayChangu API.
type Client struct {
	secretKey  string
	baseURL    string
	currency   string
	logoURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// CheckoutRequest describes one hosted checkout session.
type CheckoutRequest struct {
	Amount      decimal.Decimal
	Currency    string
	TxRef       string
	CallbackURL string
	ReturnURL   string
	Title       string
	Meta        map[string]any
}

// GatewayError is returned for transport failures, non-2xx responses and
// bodies without a checkout URL. Status is zero for transport failures.
type GatewayError struct {
	Status int
	Body   string
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paychangu: %v", e.Err)
	}
	return fmt.Sprintf("paychangu: status=%d body=%s", e.Status, e.Body)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

var errMissingCheckoutURL = errors.New("response has no checkout_url")

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		secretKey: cfg.PayChanguSecretKey,
		baseURL:   strings.TrimRight(cfg.PayChanguBaseURL, "/"),
		currency:  cfg.PaymentCurrency,
		logoURL:   cfg.AppLogoURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type customization struct {
	Title string `json:"title"`
	Logo  string `json:"logo"`
}

type paymentPayload struct {
	Amount        json.Number    `json:"amount"`
	Currency      string         `json:"currency"`
	TxRef         string         `json:"tx_ref"`
	CallbackURL   string         `json:"callback_url,omitempty"`
	ReturnURL     string         `json:"return_url,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	UUID          string         `json:"uuid"`
	Customization customization  `json:"customization"`
}

// InitiateCheckout creates a hosted checkout and returns the URL the payer
// should be redirected to. The call is not retried.
func (c *Client) InitiateCheckout(ctx context.Context, in CheckoutRequest) (string, error) {
	currency := in.Currency
	if currency == "" {
		currency = c.currency
	}
	payload := paymentPayload{
		Amount:      json.Number(in.Amount.StringFixed(2)),
		Currency:    currency,
		TxRef:       in.TxRef,
		CallbackURL: in.CallbackURL,
		ReturnURL:   in.ReturnURL,
		Meta:        in.Meta,
		UUID:        in.TxRef,
		Customization: customization{
			Title: in.Title,
			Logo:  c.logoURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payment payload: %w", err)
	}

	fullURL := c.baseURL + "/payment"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("paychangu request failed", "tx_ref", in.TxRef, "err", err)
		return "", &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{Status: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("paychangu checkout rejected", "tx_ref", in.TxRef, "status", resp.StatusCode, "body", truncateBody(rawBody))
		return "", &GatewayError{Status: resp.StatusCode, Body: truncateBody(rawBody)}
	}

	var parsed struct {
		Status  string `json:"status"`
		Message any    `json:"message"`
		Data    struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		c.log.Error("paychangu response malformed", "tx_ref", in.TxRef, "body", truncateBody(rawBody))
		return "", &GatewayError{Status: resp.StatusCode, Body: truncateBody(rawBody), Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Data.CheckoutURL == "" {
		c.log.Error("paychangu response without checkout url", "tx_ref", in.TxRef, "body", truncateBody(rawBody))
		return "", &GatewayError{Status: resp.StatusCode, Body: truncateBody(rawBody), Err: errMissingCheckoutURL}
	}

	c.log.Info("paychangu checkout created", "tx_ref", in.TxRef)
	return parsed.Data.CheckoutURL, nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
