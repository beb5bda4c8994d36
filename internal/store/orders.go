package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.user_id, o.order_number, o.status, o.payment_status, o.payment_method,
	o.payment_intent_id, o.total_amount, o.first_name, o.last_name, o.email, o.phone, o.address,
	o.city, o.state, o.postal_code, o.country, o.assigned_to, o.created_at, o.updated_at, o.version`

type PlaceOrderRequest struct {
	UserID   int64
	Shipping models.ShippingDetails
	Items    []OrderItemRequest
	Now      time.Time
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

type OrderFilter struct {
	Status models.OrderStatus
	Page   PageRequest
}

// GenerateOrderNumber formats ORD-<YYYYMMDDHHMMSS>-<8 hex chars>.
func GenerateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102150405"), uuid.NewString()[:8])
}

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	o := &models.Order{}
	var intentID sql.NullString
	var assignedTo sql.NullInt64
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.OrderNumber,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&intentID,
		&o.TotalAmount,
		&o.Shipping.FirstName,
		&o.Shipping.LastName,
		&o.Shipping.Email,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.PostalCode,
		&o.Shipping.Country,
		&assignedTo,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.Version,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentIntentID = intentID.String
	if assignedTo.Valid {
		o.AssignedTo = &assignedTo.Int64
	}
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// mergeItems folds repeated products together and orders lines by product id
// so concurrent orders lock rows in the same order.
func mergeItems(items []OrderItemRequest) ([]OrderItemRequest, error) {
	byProduct := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, database.ErrInvalidQuantity
		}
		byProduct[item.ProductID] += item.Quantity
	}

	merged := make([]OrderItemRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, OrderItemRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged, nil
}

// PlaceOrder runs inside the caller's transaction. It locks every
// product, snapshots effective prices into the order items, reserves stock
// and draws down active flash-sale quantities. Any failure leaves tx to be
// rolled back by the caller, so no partial order is ever visible.
func PlaceOrder(ctx context.Context, tx *sql.Tx, req PlaceOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, database.ErrEmptyCart
	}

	items, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
		req.UserID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check user exists: %w", err)
	}
	if !exists {
		return nil, database.ErrUserNotFound
	}

	totalAmount := decimal.Zero
	prices := make(map[int64]decimal.Decimal, len(items))

	for _, item := range items {
		product, err := LockProduct(ctx, tx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Available {
			return nil, database.ErrProductNotFound
		}
		if product.Stock < item.Quantity {
			return nil, database.ErrInsufficientStock
		}

		price := product.EffectivePrice()
		prices[item.ProductID] = price
		totalAmount = totalAmount.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	s := req.Shipping
	var orderID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, order_number, status, payment_status, payment_method, total_amount,
			first_name, last_name, email, phone, address, city, state, postal_code, country,
			created_at, updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW(), 1)
		 RETURNING id`,
		req.UserID, GenerateOrderNumber(now), models.OrderStatusPending, models.PaymentStatusPending,
		models.PaymentMethodStripe, totalAmount,
		s.FirstName, s.LastName, s.Email, s.Phone, s.Address, s.City, s.State, s.PostalCode, s.Country,
	).Scan(&orderID)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, price, created_at)
			 VALUES ($1, $2, $3, $4, NOW())`,
			orderID, item.ProductID, item.Quantity, prices[item.ProductID])
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	for _, item := range items {
		if err := DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
		if err := ConsumeFlashSaleQuantity(ctx, tx, item.ProductID, item.Quantity, now); err != nil {
			return nil, err
		}
	}

	return GetOrder(ctx, tx, orderID)
}

func GetOrder(ctx context.Context, db database.DBTX, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	itemsQuery := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.price, oi.created_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`

	rows, err := db.QueryContext(ctx, itemsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Price,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	order.Items = items

	return order, nil
}

// LockOrder takes a row lock on the order for the rest of tx. Items are not loaded.
func LockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`

	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

func ListOrdersCursor(ctx context.Context, db database.DBTX, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.user_id = $1
		  AND (o.created_at, o.id) < ($2, $3)
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListOrders is the staff view over every order, optionally filtered by status.
func ListOrders(ctx context.Context, db database.DBTX, f OrderFilter) (*OffsetPage, error) {
	page := f.Page.normalize(DefaultPageSize)

	where := ""
	args := []any{}
	if f.Status != "" {
		where = ` WHERE o.status = $1`
		args = append(args, f.Status)
	}

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o`+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, page.PageSize, page.offset())
	query := fmt.Sprintf(`SELECT %s FROM orders o%s ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(orders, total, page), nil
}

// ListAgentOrders returns the orders assigned to a delivery agent, newest first.
func ListAgentOrders(ctx context.Context, db database.DBTX, agentID int64, page PageRequest) (*OffsetPage, error) {
	page = page.normalize(DefaultPageSize)

	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE assigned_to = $1`, agentID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count agent orders: %w", err)
	}

	query := `
		SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.assigned_to = $1
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, agentID, page.PageSize, page.offset())
	if err != nil {
		return nil, fmt.Errorf("list agent orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(orders, total, page), nil
}

// AssignOrder sets the agent and moves the order to shipped in one statement,
// whatever its previous status. The agent's user must still hold the
// delivery_agent role.
func AssignOrder(ctx context.Context, db database.DBTX, orderID, agentID int64) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET assigned_to = $2, status = $3, updated_at = NOW(), version = version + 1
		WHERE o.id = $1
		  AND EXISTS (
		      SELECT 1 FROM delivery_agents d
		      JOIN users u ON u.id = d.user_id
		      WHERE d.id = $2 AND u.role = $4)
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query,
		orderID, agentID, models.OrderStatusShipped, models.RoleDeliveryAgent))
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assign order: %w", err)
	}

	var exists bool
	if err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return nil, database.ErrOrderNotFound
	}
	return nil, database.ErrDeliveryAgentNotFound
}

// UpdateOrderStatus writes status only if the row still has the given version.
func UpdateOrderStatus(ctx context.Context, db database.DBTX, orderID int64, status models.OrderStatus, version int) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET status = $2, updated_at = NOW(), version = version + 1
		WHERE o.id = $1 AND o.version = $3
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query, orderID, status, version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOptimisticLockFailed
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return order, nil
}

// RestoreOrderStock returns every item's quantity to its product if the
// order still holds its reservation, and releases it. It reports whether
// any stock went back.
func RestoreOrderStock(ctx context.Context, tx *sql.Tx, orderID int64) (bool, error) {
	released, err := ReleaseReservation(ctx, tx, orderID)
	if err != nil || !released {
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products p
		 SET stock = p.stock + oi.qty, updated_at = NOW()
		 FROM (SELECT product_id, SUM(quantity) AS qty
		       FROM order_items WHERE order_id = $1
		       GROUP BY product_id) oi
		 WHERE p.id = oi.product_id`,
		orderID)
	if err != nil {
		return false, fmt.Errorf("restore order stock: %w", err)
	}
	return true, nil
}

// ReleaseReservation clears the order's stock reservation. Delivered goods
// release it without going back to stock.
func ReleaseReservation(ctx context.Context, db database.DBTX, orderID int64) (bool, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`UPDATE orders SET stock_reserved = FALSE
		 WHERE id = $1 AND stock_reserved
		 RETURNING id`,
		orderID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("release reservation: %w", err)
	}
	return true, nil
}

func MarkOrderPaid(ctx context.Context, db database.DBTX, orderID int64) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET payment_status = $2, updated_at = NOW(), version = version + 1
		WHERE o.id = $1
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query, orderID, models.PaymentStatusPaid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	return order, nil
}

func SetPaymentIntent(ctx context.Context, db database.DBTX, orderID int64, intentID string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		orderID, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}
	return nil
}

// ConfirmPaymentByIntent marks the order owning intentID as paid and moves a
// pending order to processing. Orders already past pending keep their status.
func ConfirmPaymentByIntent(ctx context.Context, db database.DBTX, intentID string) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET payment_status = $2,
		    status = CASE WHEN o.status = $3 THEN $4 ELSE o.status END,
		    updated_at = NOW(),
		    version = version + 1
		WHERE o.payment_intent_id = $1
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query, intentID,
		models.PaymentStatusPaid, models.OrderStatusPending, models.OrderStatusProcessing))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	return order, nil
}

// UpdateOrderShipping rewrites the shipping snapshot of a pending order owned
// by userID. Items and total are untouched.
func UpdateOrderShipping(ctx context.Context, db database.DBTX, orderID, userID int64, s models.ShippingDetails) (*models.Order, error) {
	query := `
		UPDATE orders AS o
		SET first_name = $3, last_name = $4, email = $5, phone = $6, address = $7,
		    city = $8, state = $9, postal_code = $10, country = $11,
		    updated_at = NOW(), version = version + 1
		WHERE o.id = $1 AND o.user_id = $2 AND o.status = $12
		RETURNING ` + orderColumns

	order, err := scanOrder(db.QueryRowContext(ctx, query, orderID, userID,
		s.FirstName, s.LastName, s.Email, s.Phone, s.Address, s.City, s.State, s.PostalCode, s.Country,
		models.OrderStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order shipping: %w", err)
	}
	return order, nil
}
