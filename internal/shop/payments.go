package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

// PaymentSession is handed to the browser to confirm the card payment.
type PaymentSession struct {
	OrderID        int64  `json:"order_id"`
	OrderNumber    string `json:"order_number"`
	IntentID       string `json:"payment_intent_id"`
	ClientSecret   string `json:"client_secret"`
	PublishableKey string `json:"publishable_key"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

// CreatePaymentIntent opens a payment intent for an unpaid order of the
// caller. The order is only marked paid once the provider's webhook says so.
func (s *Service) CreatePaymentIntent(ctx context.Context, id auth.Identity, orderID int64) (*PaymentSession, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	order, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != id.UserID {
		return nil, database.ErrOrderNotFound
	}
	if order.IsPaid() {
		return nil, database.ErrAlreadyPaid
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: order is cancelled", database.ErrInvalidStatus)
	}
	// Buy-now orders collect the address before payment.
	if err := order.Shipping.Validate(); err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.MinorUnits(),
		Email:       order.Shipping.Email,
	})
	if err != nil {
		s.logger.Error("create payment intent failed",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return nil, err
	}

	if err := store.SetPaymentIntent(ctx, s.db, order.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("store payment intent: %w", err)
	}

	s.logger.Info("payment intent created",
		zap.Int64("order_id", order.ID),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", intent.Amount))

	return &PaymentSession{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		IntentID:       intent.ID,
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.gateway.PublishableKey(),
		Amount:         intent.Amount,
		Currency:       intent.Currency,
	}, nil
}

// HandlePaymentWebhook verifies and applies a provider event. Redelivered
// events are acknowledged without being applied twice.
func (s *Service) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected payment webhook", zap.Error(err))
		return err
	}

	log := s.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("payment_intent_id", event.PaymentIntentID))

	switch event.Type {
	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
	default:
		log.Debug("ignoring payment event")
		return nil
	}

	first, err := s.idempotency.MarkProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check event idempotency: %w", err)
	}
	if !first {
		log.Info("duplicate payment event")
		return nil
	}

	if event.Type == payment.EventPaymentFailed {
		log.Warn("payment failed", zap.Int64("order_id", event.OrderID))
		return nil
	}

	order, err := store.ConfirmPaymentByIntent(ctx, s.db, event.PaymentIntentID)
	if err != nil {
		if relErr := s.idempotency.Release(ctx, event.ID); relErr != nil {
			log.Error("release idempotency key", zap.Error(relErr))
		}
		if errors.Is(err, database.ErrOrderNotFound) {
			log.Warn("payment for unknown intent")
		}
		return fmt.Errorf("confirm payment: %w", err)
	}

	log.Info("order paid",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)))

	return nil
}
