package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, mock
}

var orderRowColumns = []string{
	"id", "user_id", "order_number", "status", "payment_status", "payment_method",
	"payment_intent_id", "total_amount", "first_name", "last_name", "email", "phone", "address",
	"city", "state", "postal_code", "country", "assigned_to", "created_at", "updated_at", "version",
}

func orderRows(id int64, status models.OrderStatus, payment models.PaymentStatus, assignedTo any, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(orderRowColumns).AddRow(
		id, 10, "ORD-20240101120000-abcdef12", string(status), string(payment), "stripe",
		"pi_123", "150.00", "Ada", "Lovelace", "ada@example.com", "555", "1 Way",
		"London", "", "N1", "UK", assignedTo, now, now, version,
	)
}

func TestAddCartItem(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects non-positive quantity without touching the database", func(t *testing.T) {
		db, mock := newMock(t)

		_, err := AddCartItem(ctx, db, 1, 2, 0)
		assert.ErrorIs(t, err, database.ErrInvalidQuantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("accumulated quantity above stock writes nothing", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(int64(1), int64(2), 3).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "product_id", "quantity", "created_at", "updated_at"}))

		_, err := AddCartItem(ctx, db, 1, 2, 3)
		assert.ErrorIs(t, err, database.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns the stored line", func(t *testing.T) {
		db, mock := newMock(t)
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO cart_items`).
			WithArgs(int64(1), int64(2), 3).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "product_id", "quantity", "created_at", "updated_at"}).
				AddRow(7, 1, 2, 5, now, now))

		item, err := AddCartItem(ctx, db, 1, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, item.Quantity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateCartItem(t *testing.T) {
	ctx := context.Background()

	t.Run("above stock leaves the line and reports insufficient stock", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectExec(`UPDATE cart_items ci`).
			WithArgs(int64(5), int64(1), 99).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := UpdateCartItem(ctx, db, 1, 5, 99)
		assert.ErrorIs(t, err, database.ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("line of another cart is not found", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectExec(`UPDATE cart_items ci`).
			WithArgs(int64(5), int64(1), 2).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(5), int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := UpdateCartItem(ctx, db, 1, 5, 2)
		assert.ErrorIs(t, err, database.ErrCartItemNotFound)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})

	t.Run("sets quantity", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectExec(`UPDATE cart_items ci`).
			WithArgs(int64(5), int64(1), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, UpdateCartItem(ctx, db, 1, 5, 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRemoveCartItemScopedToCart(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`)).
		WithArgs(int64(9), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := RemoveCartItem(context.Background(), db, 1, 9)
	assert.ErrorIs(t, err, database.ErrCartItemNotFound)
}

func TestGetOrCreateCartRequiresOneOwner(t *testing.T) {
	db, mock := newMock(t)

	_, err := GetOrCreateCart(context.Background(), db, CartOwner{UserID: 1, SessionKey: "abc"})
	assert.ErrorIs(t, err, database.ErrAuthenticationRequired)

	_, err = GetOrCreateCart(context.Background(), db, CartOwner{})
	assert.ErrorIs(t, err, database.ErrAuthenticationRequired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementStockIsConditional(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE products\s+SET stock = stock - \$1`).
		WithArgs(4, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	err = DecrementStock(ctx, tx, 3, 4)
	assert.ErrorIs(t, err, database.ErrInsufficientStock)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOrderAlwaysShips(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE orders AS o\s+SET assigned_to = \$2, status = \$3`).
		WithArgs(int64(1), int64(4), "shipped", "delivery_agent").
		WillReturnRows(orderRows(1, models.OrderStatusShipped, models.PaymentStatusPending, int64(4), 3))

	order, err := AssignOrder(context.Background(), db, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipped, order.Status)
	require.NotNil(t, order.AssignedTo)
	assert.Equal(t, int64(4), *order.AssignedTo)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOrderRequiresActiveAgent(t *testing.T) {
	tests := []struct {
		name        string
		orderExists bool
		want        error
	}{
		{"unknown or demoted agent", true, database.ErrDeliveryAgentNotFound},
		{"unknown order", false, database.ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)

			mock.ExpectQuery(`UPDATE orders AS o[\s\S]+u\.role = \$4`).
				WithArgs(int64(1), int64(99), "shipped", "delivery_agent").
				WillReturnRows(sqlmock.NewRows(orderRowColumns))
			mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM orders WHERE id = \$1\)`).
				WithArgs(int64(1)).
				WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(tt.orderExists))

			_, err := AssignOrder(context.Background(), db, 1, 99)
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRestoreOrderStockOnlyOnce(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE orders SET stock_reserved = FALSE\s+WHERE id = \$1 AND stock_reserved`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec(`UPDATE products p\s+SET stock = p.stock \+ oi.qty`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`UPDATE orders SET stock_reserved = FALSE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	restored, err := RestoreOrderStock(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.True(t, restored)

	restored, err = RestoreOrderStock(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.False(t, restored, "a released order puts nothing back")

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusVersionMismatch(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE orders AS o\s+SET status = \$2`).
		WithArgs(int64(1), "delivered", 2).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	_, err := UpdateOrderStatus(context.Background(), db, 1, models.OrderStatusDelivered, 2)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentByIntent(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE orders AS o\s+SET payment_status = \$2`).
		WithArgs("pi_123", "paid", "pending", "processing").
		WillReturnRows(orderRows(1, models.OrderStatusProcessing, models.PaymentStatusPaid, nil, 4))

	order, err := ConfirmPaymentByIntent(context.Background(), db, "pi_123")
	require.NoError(t, err)
	assert.True(t, order.IsPaid())
	assert.Equal(t, models.OrderStatusProcessing, order.Status)
	assert.Nil(t, order.AssignedTo)
	assert.Equal(t, "pi_123", order.PaymentIntentID)
}

func TestConfirmPaymentUnknownIntent(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE orders AS o`).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	_, err := ConfirmPaymentByIntent(context.Background(), db, "pi_missing")
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestUpdateOrderShippingOnlyPending(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(`UPDATE orders AS o\s+SET first_name`).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	_, err := UpdateOrderShipping(context.Background(), db, 1, 10, models.ShippingDetails{FirstName: "Ada"})
	assert.ErrorIs(t, err, database.ErrOrderNotFound)
}

func TestSyncSalePrice(t *testing.T) {
	ctx := context.Background()

	t.Run("writes product and flash items", func(t *testing.T) {
		db, mock := newMock(t)
		price := decimal.NewNullDecimal(decimal.RequireFromString("79.00"))

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE products SET sale_price`).
			WithArgs(int64(3), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE flash_sale_items SET sale_price`).
			WithArgs(int64(3), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, SyncSalePrice(ctx, tx, 3, price))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clearing the price leaves flash items alone", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE products SET sale_price`).
			WithArgs(int64(3), nil).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		require.NoError(t, SyncSalePrice(ctx, tx, 3, decimal.NullDecimal{}))
		require.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown product", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE products SET sale_price`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		err = SyncSalePrice(ctx, tx, 3, decimal.NewNullDecimal(decimal.NewFromInt(1)))
		assert.ErrorIs(t, err, database.ErrProductNotFound)
		require.NoError(t, tx.Rollback())
	})
}

func TestAddWishlistItemReportsExisting(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO wishlist_items`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO wishlist_items`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := AddWishlistItem(ctx, db, 1, 2)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = AddWishlistItem(ctx, db, 1, 2)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestCreateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid rating", func(t *testing.T) {
		db, mock := newMock(t)

		_, err := CreateReview(ctx, db, 1, 2, 6, "")
		assert.ErrorIs(t, err, database.ErrInvalidRating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second review by the same user", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectQuery(`INSERT INTO reviews`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "reviews_product_user_key"})

		_, err := CreateReview(ctx, db, 1, 2, 4, "good")
		assert.ErrorIs(t, err, database.ErrDuplicateReview)
	})
}

func TestUniqueSlug(t *testing.T) {
	db, mock := newMock(t)

	for _, slug := range []string{"desk-lamp", "desk-lamp-1"} {
		mock.ExpectQuery(`SELECT EXISTS`).WithArgs(slug).
			WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(true))
	}
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("desk-lamp-2").
		WillReturnRows(sqlmock.NewRows([]string{"used"}).AddRow(false))

	slug, err := UniqueSlug(context.Background(), db, "desk-lamp")
	require.NoError(t, err)
	assert.Equal(t, "desk-lamp-2", slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProductsAppliesFilters(t *testing.T) {
	db, mock := newMock(t)
	min := decimal.NewNullDecimal(decimal.NewFromInt(10))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM products p JOIN categories c`).
		WithArgs("%lamp%", "lighting", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(13))

	productCols := []string{"id", "category_id", "name", "slug", "description", "price", "sale_price",
		"stock", "available", "featured", "image_url", "created_at", "updated_at", "version"}
	now := time.Now()
	mock.ExpectQuery(`ORDER BY CASE WHEN .* DESC, p.id DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("%lamp%", "lighting", sqlmock.AnyArg(), 12, 12).
		WillReturnRows(sqlmock.NewRows(productCols).
			AddRow(1, 1, "Desk Lamp", "desk-lamp", "", "40.00", nil, 3, true, false, "", now, now, 1))
	mock.ExpectQuery(`FROM product_images`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "image_url", "alt_text", "is_primary", "created_at"}).
			AddRow(5, 1, "https://cdn/lamp.jpg", "", true, now))

	page, err := ListProducts(context.Background(), db, ProductFilter{
		Query:        "lamp",
		CategorySlug: "lighting",
		MinPrice:     min,
		Sort:         "-price",
		Page:         PageRequest{Page: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(13), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, ProductPageSize, page.PageSize)

	products := page.Items.([]models.Product)
	require.Len(t, products, 1)
	assert.Equal(t, "https://cdn/lamp.jpg", products[0].ImageSource())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderValidation(t *testing.T) {
	db, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	_, err = PlaceOrder(ctx, tx, PlaceOrderRequest{UserID: 1})
	assert.ErrorIs(t, err, database.ErrEmptyCart)

	_, err = PlaceOrder(ctx, tx, PlaceOrderRequest{UserID: 1, Items: []OrderItemRequest{{ProductID: 1, Quantity: 0}}})
	assert.ErrorIs(t, err, database.ErrInvalidQuantity)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeItemsSortsAndFolds(t *testing.T) {
	merged, err := mergeItems([]OrderItemRequest{
		{ProductID: 9, Quantity: 1},
		{ProductID: 2, Quantity: 2},
		{ProductID: 9, Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []OrderItemRequest{{ProductID: 2, Quantity: 2}, {ProductID: 9, Quantity: 4}}, merged)
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	number := GenerateOrderNumber(now)

	assert.Regexp(t, `^ORD-20240309140507-[0-9a-f]{8}$`, number)
	assert.NotEqual(t, number, GenerateOrderNumber(now))
}

func TestDecodeCursor(t *testing.T) {
	encoded := EncodeCursor(OrderCursor{CreatedAt: time.Unix(1700000000, 0).UTC(), ID: 42})
	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, database.ErrInvalidCursor)

	_, err = DecodeCursor(EncodeCursor(OrderCursor{}))
	assert.ErrorIs(t, err, database.ErrInvalidCursor)

	first, err := DecodeCursor("")
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.After(time.Now()))
}
