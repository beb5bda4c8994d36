package shop

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/database/dbtest"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSignature = "signed"

type fakeGateway struct {
	mu      sync.Mutex
	created []payment.IntentRequest
	fail    error
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	g.created = append(g.created, req)
	return &payment.Intent{
		ID:           fmt.Sprintf("pi_%d_%d", req.OrderID, len(g.created)),
		ClientSecret: "secret",
		Amount:       req.Amount,
		Currency:     "usd",
	}, nil
}

// ParseWebhook accepts a JSON-encoded payment.Event signed with testSignature.
func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if signature != testSignature {
		return nil, payment.ErrInvalidSignature
	}
	var ev payment.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *fakeGateway) PublishableKey() string { return "pk_test" }

type fixture struct {
	ctx      context.Context
	db       *sql.DB
	svc      *Service
	gateway  *fakeGateway
	staff    auth.Identity
	category *models.Category
	seq      int
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.Setup(t)
	gw := &fakeGateway{}
	f := &fixture{
		ctx:     context.Background(),
		db:      db,
		gateway: gw,
		svc:     NewService(db, gw, payment.NewMemoryIdempotencyStore(time.Hour), zap.NewNop()),
	}
	f.staff = f.user(t, models.RoleStaff)

	c, err := store.CreateCategory(f.ctx, db, store.CategoryInput{Name: "Coffee", Slug: "coffee"})
	require.NoError(t, err)
	f.category = c

	return f
}

func (f *fixture) user(t *testing.T, role models.Role) auth.Identity {
	t.Helper()
	f.seq++
	u, err := store.CreateUser(f.ctx, f.db, fmt.Sprintf("user%d@example.com", f.seq), fmt.Sprintf("User %d", f.seq), role)
	require.NoError(t, err)
	return auth.Identity{UserID: u.ID, Role: role}
}

func (f *fixture) agent(t *testing.T) (auth.Identity, *models.DeliveryAgent) {
	t.Helper()
	id := f.user(t, models.RoleDeliveryAgent)
	a, err := f.svc.CreateDeliveryAgent(f.ctx, f.staff, id.UserID, "+15550100")
	require.NoError(t, err)
	return id, a
}

func (f *fixture) product(t *testing.T, price, salePrice string, stock int) *models.Product {
	t.Helper()
	f.seq++
	in := store.ProductInput{
		CategoryID: f.category.ID,
		Name:       fmt.Sprintf("Product %d", f.seq),
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Available:  true,
	}
	if salePrice != "" {
		in.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString(salePrice))
	}
	p, err := f.svc.CreateProduct(f.ctx, f.staff, in)
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, productID int64) int {
	t.Helper()
	p, err := store.GetProduct(f.ctx, f.db, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRowContext(f.ctx, "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func shipping() models.ShippingDetails {
	return models.ShippingDetails{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Phone:      "+15550199",
		Address:    "12 Analytical Way",
		City:       "London",
		PostalCode: "N1 9GU",
		Country:    "GB",
	}
}

func TestCheckoutCart(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)

	p1 := f.product(t, "10.00", "8.00", 5)
	p2 := f.product(t, "20.00", "", 3)

	_, err := f.svc.AddToCart(f.ctx, customer, p1.ID, 2)
	require.NoError(t, err)
	cart, err := f.svc.AddToCart(f.ctx, customer, p2.ID, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(36).Equal(cart.TotalPrice()))

	order, err := f.svc.CheckoutCart(f.ctx, customer, shipping())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.True(t, decimal.NewFromInt(36).Equal(order.TotalAmount), "total %s", order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.True(t, order.ItemsTotal().Equal(order.TotalAmount))
	assert.Equal(t, "Ada", order.Shipping.FirstName)

	byProduct := map[int64]models.OrderItem{}
	for _, item := range order.Items {
		byProduct[item.ProductID] = item
	}
	assert.True(t, decimal.NewFromInt(8).Equal(byProduct[p1.ID].Price))
	assert.Equal(t, 2, byProduct[p1.ID].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(byProduct[p2.ID].Price))

	assert.Equal(t, 3, f.stock(t, p1.ID))
	assert.Equal(t, 2, f.stock(t, p2.ID))

	_, err = store.FindCart(f.ctx, f.db, customer.CartOwner())
	assert.ErrorIs(t, err, database.ErrCartNotFound)

	// Later price changes do not touch the snapshot.
	_, err = f.svc.UpdateProductSalePrice(f.ctx, f.staff, p1.ID, decimal.NullDecimal{})
	require.NoError(t, err)
	again, err := f.svc.GetOrder(f.ctx, customer, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(36).Equal(again.TotalAmount))
	assert.True(t, again.ItemsTotal().Equal(again.TotalAmount))
}

func TestCheckoutCartRejections(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)

	_, err := f.svc.CheckoutCart(f.ctx, customer, shipping())
	assert.ErrorIs(t, err, database.ErrEmptyCart)

	_, err = f.svc.CheckoutCart(f.ctx, auth.Identity{SessionKey: "anon"}, shipping())
	assert.ErrorIs(t, err, database.ErrAuthenticationRequired)

	p := f.product(t, "5.00", "", 1)
	_, err = f.svc.AddToCart(f.ctx, customer, p.ID, 1)
	require.NoError(t, err)

	incomplete := shipping()
	incomplete.City = ""
	_, err = f.svc.CheckoutCart(f.ctx, customer, incomplete)
	assert.ErrorIs(t, err, database.ErrInvalidShipping)

	assert.Zero(t, f.count(t, "orders"))
	assert.Equal(t, 1, f.stock(t, p.ID))
}

func TestCheckoutRollsBackWhenStockRanOut(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p1 := f.product(t, "10.00", "", 5)
	p2 := f.product(t, "10.00", "", 2)

	_, err := f.svc.AddToCart(f.ctx, customer, p1.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.AddToCart(f.ctx, customer, p2.ID, 2)
	require.NoError(t, err)

	// Someone else buys p2 first.
	other := f.user(t, models.RoleCustomer)
	_, err = f.svc.BuyNow(f.ctx, other, p2.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.CheckoutCart(f.ctx, customer, shipping())
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	assert.Equal(t, 1, f.count(t, "orders"))
	assert.Equal(t, 5, f.stock(t, p1.ID))
	cart, err := store.FindCart(f.ctx, f.db, customer.CartOwner())
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
}

func TestBuyNowRequiresAuthentication(t *testing.T) {
	f := setup(t)
	p := f.product(t, "12.00", "", 4)

	_, err := f.svc.BuyNow(f.ctx, auth.Identity{SessionKey: "visitor"}, p.ID, 1)
	assert.ErrorIs(t, err, database.ErrAuthenticationRequired)

	assert.Zero(t, f.count(t, "orders"))
	assert.Zero(t, f.count(t, "order_items"))
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestBuyNowThenShipping(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "12.00", "", 4)

	order, err := f.svc.BuyNow(f.ctx, customer, p.ID, 2)
	require.NoError(t, err)
	assert.Empty(t, order.Shipping.FirstName)
	assert.True(t, decimal.NewFromInt(24).Equal(order.TotalAmount))

	_, err = f.svc.BuyNow(f.ctx, customer, p.ID, 3)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	stranger := f.user(t, models.RoleCustomer)
	_, err = f.svc.UpdateOrderShipping(f.ctx, stranger, order.ID, shipping())
	assert.ErrorIs(t, err, database.ErrOrderNotFound)

	updated, err := f.svc.UpdateOrderShipping(f.ctx, customer, order.ID, shipping())
	require.NoError(t, err)
	assert.Equal(t, "London", updated.Shipping.City)
	assert.True(t, order.TotalAmount.Equal(updated.TotalAmount))
	assert.Len(t, updated.Items, 1)
}

func TestUpdateCartLine(t *testing.T) {
	f := setup(t)
	visitor := auth.Identity{SessionKey: "session-1"}
	p := f.product(t, "3.00", "", 5)

	cart, err := f.svc.AddToCart(f.ctx, visitor, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	line := cart.Items[0]

	_, err = f.svc.UpdateCartLine(f.ctx, visitor, line.ID, 6)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	cart, err = f.svc.ResolveCart(f.ctx, visitor)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	_, err = f.svc.UpdateCartLine(f.ctx, auth.Identity{SessionKey: "session-2"}, line.ID, 1)
	assert.ErrorIs(t, err, database.ErrCartItemNotFound)

	cart, err = f.svc.UpdateCartLine(f.ctx, visitor, line.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	cart, err = f.svc.UpdateCartLine(f.ctx, visitor, line.ID, 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 5, f.stock(t, p.ID), "cart operations never touch stock")
}

func TestAddToCartAccumulates(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "3.00", "", 4)

	_, err := f.svc.AddToCart(f.ctx, customer, p.ID, 2)
	require.NoError(t, err)
	cart, err := f.svc.AddToCart(f.ctx, customer, p.ID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	_, err = f.svc.AddToCart(f.ctx, customer, p.ID, 1)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)

	_, err = f.svc.AddToCart(f.ctx, customer, p.ID, 0)
	assert.ErrorIs(t, err, database.ErrInvalidQuantity)

	_, err = f.svc.AddToCart(f.ctx, customer, 999999, 1)
	assert.ErrorIs(t, err, database.ErrProductNotFound)
}

func TestResolveCartConverges(t *testing.T) {
	f := setup(t)
	visitor := auth.Identity{SessionKey: "shared-session"}

	const workers = 8
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cart, err := f.svc.ResolveCart(f.ctx, visitor)
			if assert.NoError(t, err) {
				ids <- cart.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, f.count(t, "carts"))
}

func TestConcurrentBuyNow(t *testing.T) {
	f := setup(t)
	customer := f.user(t, models.RoleCustomer)
	p := f.product(t, "100.00", "", 20)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.BuyNow(f.ctx, customer, p.ID, 3)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	insufficientStockCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case assert.ErrorIs(t, err, database.ErrInsufficientStock):
			insufficientStockCount++
		}
	}

	assert.Equal(t, 6, successCount)
	assert.Equal(t, 4, insufficientStockCount)
	assert.Equal(t, 2, f.stock(t, p.ID))
}
