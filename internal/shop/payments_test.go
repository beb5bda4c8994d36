package shop

import (
	"encoding/json"
	"testing"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookPayload(t *testing.T, ev payment.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

// payableOrder places a buy-now order and completes its shipping details.
func (f *fixture) payableOrder(t *testing.T, customer auth.Identity, productID int64) *models.Order {
	t.Helper()
	o, err := f.svc.BuyNow(f.ctx, customer, productID, 1)
	require.NoError(t, err)
	o, err = f.svc.UpdateOrderShipping(f.ctx, customer, o.ID, shipping())
	require.NoError(t, err)
	return o
}

func TestCreatePaymentIntent(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "19.99", "", 5)

	o := f.payableOrder(t, customer, p.ID)

	session, err := f.svc.CreatePaymentIntent(f.ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "pk_test", session.PublishableKey)
	assert.Equal(t, "secret", session.ClientSecret)
	assert.EqualValues(t, 1999, session.Amount)

	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, o.OrderNumber, f.gateway.created[0].OrderNumber)

	stored, err := store.GetOrder(f.ctx, f.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, session.IntentID, stored.PaymentIntentID)
	assert.False(t, stored.IsPaid())

	stranger := f.user(t, models.RoleCustomer)
	_, err = f.svc.CreatePaymentIntent(f.ctx, stranger, o.ID)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestCreatePaymentIntentRejections(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "10.00", "", 5)

	paid, err := f.svc.BuyNow(f.ctx, customer, p.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(f.ctx, f.staff, paid.ID)
	require.NoError(t, err)
	_, err = f.svc.CreatePaymentIntent(f.ctx, customer, paid.ID)
	assert.ErrorIs(t, err, database.ErrAlreadyPaid)

	cancelled, err := f.svc.BuyNow(f.ctx, customer, p.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.UpdateOrderStatus(f.ctx, f.staff, cancelled.ID, string(models.OrderStatusCancelled))
	require.NoError(t, err)
	_, err = f.svc.CreatePaymentIntent(f.ctx, customer, cancelled.ID)
	assert.ErrorIs(t, err, database.ErrInvalidStatus)

	open := f.payableOrder(t, customer, p.ID)
	f.gateway.fail = database.ErrPaymentProvider
	_, err = f.svc.CreatePaymentIntent(f.ctx, customer, open.ID)
	assert.ErrorIs(t, err, database.ErrPaymentProvider)

	stored, err := store.GetOrder(f.ctx, f.db, open.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PaymentIntentID)
}

func TestCreatePaymentIntentNeedsShipping(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "10.00", "", 5)

	o, err := f.svc.BuyNow(f.ctx, customer, p.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.CreatePaymentIntent(f.ctx, customer, o.ID)
	assert.ErrorIs(t, err, database.ErrInvalidShipping)
	assert.Empty(t, f.gateway.created, "no intent before the address is known")

	_, err = f.svc.UpdateOrderShipping(f.ctx, customer, o.ID, shipping())
	require.NoError(t, err)

	session, err := f.svc.CreatePaymentIntent(f.ctx, customer, o.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, session.IntentID)
}

func TestPaymentWebhookConfirmsOrder(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "10.00", "", 5)

	o := f.payableOrder(t, customer, p.ID)
	session, err := f.svc.CreatePaymentIntent(f.ctx, customer, o.ID)
	require.NoError(t, err)

	payload := webhookPayload(t, payment.Event{
		ID:              "evt_1",
		Type:            payment.EventPaymentSucceeded,
		PaymentIntentID: session.IntentID,
		OrderID:         o.ID,
	})

	err = f.svc.HandlePaymentWebhook(f.ctx, payload, "forged")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	require.NoError(t, f.svc.HandlePaymentWebhook(f.ctx, payload, testSignature))

	confirmed, err := store.GetOrder(f.ctx, f.db, o.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.IsPaid())
	assert.Equal(t, models.OrderStatusProcessing, confirmed.Status)

	// A redelivery must not advance the order a second time.
	_, err = f.svc.UpdateOrderStatus(f.ctx, f.staff, o.ID, string(models.OrderStatusShipped))
	require.NoError(t, err)
	require.NoError(t, f.svc.HandlePaymentWebhook(f.ctx, payload, testSignature))

	after, err := store.GetOrder(f.ctx, f.db, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, after.Status)
	assert.Equal(t, confirmed.Version+1, after.Version)
}

func TestPaymentWebhookUnknownIntentCanBeRetried(t *testing.T) {
	f := setup(t)

	payload := webhookPayload(t, payment.Event{
		ID:              "evt_unknown",
		Type:            payment.EventPaymentSucceeded,
		PaymentIntentID: "pi_missing",
	})

	err := f.svc.HandlePaymentWebhook(f.ctx, payload, testSignature)
	assert.ErrorIs(t, err, database.ErrOrderNotFound)

	err = f.svc.HandlePaymentWebhook(f.ctx, payload, testSignature)
	assert.ErrorIs(t, err, database.ErrOrderNotFound, "failed events are released for redelivery")
}

func TestPaymentWebhookFailedIsLoggedOnly(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "10.00", "", 5)

	o := f.payableOrder(t, customer, p.ID)
	session, err := f.svc.CreatePaymentIntent(f.ctx, customer, o.ID)
	require.NoError(t, err)

	payload := webhookPayload(t, payment.Event{
		ID:              "evt_failed",
		Type:            payment.EventPaymentFailed,
		PaymentIntentID: session.IntentID,
		OrderID:         o.ID,
	})
	require.NoError(t, f.svc.HandlePaymentWebhook(f.ctx, payload, testSignature))

	stored, err := store.GetOrder(f.ctx, f.db, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid())
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}
