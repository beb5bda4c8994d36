// Package payment bridges orders to Stripe PaymentIntents and verifies the
// webhooks that confirm them.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type IntentRequest struct {
	OrderID     int64
	OrderNumber string
	Amount      int64
	Email       string
}

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// Event is the part of a verified webhook the shop acts on.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	OrderID         int64
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
	PublishableKey() string
}

type StripeGateway struct {
	intents        *paymentintent.Client
	webhookSecret  string
	publishableKey string
	currency       string
	logger         *zap.Logger
}

// NewStripeGateway builds a gateway on its own backend with a bounded HTTP
// timeout. The secret key stays on the client; stripe.Key is never set.
func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripe.Int64(1),
	})
	return NewStripeGatewayWithBackend(cfg, backend, logger)
}

func NewStripeGatewayWithBackend(cfg config.StripeConfig, backend stripe.Backend, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		intents:        &paymentintent.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret:  cfg.WebhookSecret,
		publishableKey: cfg.PublishableKey,
		currency:       cfg.Currency,
		logger:         logger,
	}
}

func (g *StripeGateway) PublishableKey() string {
	return g.publishableKey
}

// CreateIntent wraps every processor failure in ErrPaymentProvider.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", database.ErrPaymentProvider)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatInt(req.OrderID, 10))
	params.AddMetadata("order_number", req.OrderNumber)
	params.SetIdempotencyKey(fmt.Sprintf("order-%d-%d", req.OrderID, req.Amount))

	pi, err := g.intents.New(params)
	if err != nil {
		g.logger.Error("create payment intent failed",
			zap.Int64("order_id", req.OrderID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", database.ErrPaymentProvider, err)
	}

	g.logger.Info("payment intent created",
		zap.Int64("order_id", req.OrderID),
		zap.String("payment_intent_id", pi.ID))

	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if out.Type != EventPaymentSucceeded && out.Type != EventPaymentFailed {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	out.PaymentIntentID = pi.ID
	if raw, ok := pi.Metadata["order_id"]; ok {
		out.OrderID, _ = strconv.ParseInt(raw, 10, 64)
	}

	return out, nil
}
