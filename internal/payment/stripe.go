// Package payment создаёт платёжные намерения и проверяет вебхуки Stripe.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
)

// EventPaymentIntentSucceeded соответствует успешной оплате намерения.
const EventPaymentIntentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)

// ErrInvalidSignature возвращается, если подпись вебхука не прошла проверку.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// IntentRequest описывает параметры создаваемого платёжного намерения.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent содержит данные созданного намерения, нужные клиенту для подтверждения оплаты.
type Intent struct {
	ID           string
	ClientSecret string
}

// Event содержит разобранное событие вебхука. OrderID берётся из метаданных намерения.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	OrderID         string
}

// Config содержит ключи Stripe. APIURL переопределяет адрес API.
type Config struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
}

// StripeProvider реализует работу с платежами через Stripe.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider создаёт клиент Stripe.
func NewStripeProvider(cfg Config) *StripeProvider {
	var backends *stripe.Backends
	if cfg.APIURL != "" {
		backends = &stripe.Backends{
			API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
				URL:               stripe.String(cfg.APIURL),
				MaxNetworkRetries: stripe.Int64(0),
				LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
			}),
		}
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &StripeProvider{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

// CreateIntent создаёт платёжное намерение на сумму в центах.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ParseEvent проверяет подпись вебхука по сырому телу запроса и разбирает событие.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := &Event{ID: event.ID, Type: string(event.Type)}

	if event.Type == stripe.EventTypePaymentIntentSucceeded && event.Data != nil {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		res.PaymentIntentID = pi.ID
		res.OrderID = pi.Metadata["order_id"]
	}

	return res, nil
}
