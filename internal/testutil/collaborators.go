package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/digkill/campusgigs/internal/paychangu"
)

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Gateway records checkout requests and answers with URL or Err.
type Gateway struct {
	mu       sync.Mutex
	URL      string
	Err      error
	Requests []paychangu.CheckoutRequest
}

func (g *Gateway) InitiateCheckout(ctx context.Context, req paychangu.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Requests = append(g.Requests, req)
	if g.Err != nil {
		return "", g.Err
	}
	if g.URL == "" {
		return "https://checkout.test/" + req.TxRef, nil
	}
	return g.URL, nil
}

// Mail is one message captured by Mailer.
type Mail struct {
	To      []string
	Subject string
	Body    string
}

// Mailer captures outgoing mail.
type Mailer struct {
	mu   sync.Mutex
	Err  error
	Sent []Mail
}

func (m *Mailer) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, Mail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

// Archive captures archived webhook bodies keyed by kind.
type Archive struct {
	mu     sync.Mutex
	Err    error
	Bodies map[string][]string
}

func (a *Archive) Archive(ctx context.Context, kind string, body []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return "", a.Err
	}
	if a.Bodies == nil {
		a.Bodies = map[string][]string{}
	}
	a.Bodies[kind] = append(a.Bodies[kind], string(body))
	return kind + "/archived.json", nil
}
