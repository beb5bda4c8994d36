package models

import (
	"strings"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending           OrderStatus = "pending"
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusShipped           OrderStatus = "shipped"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDeliveryAttempted OrderStatus = "delivery_attempted"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCancelled         OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:           {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:        {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:           {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery:    {OrderStatusDeliveryAttempted, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDeliveryAttempted: {OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:         nil,
	OrderStatusCancelled:         nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(s))
	if _, ok := orderTransitions[status]; !ok {
		return "", database.ErrInvalidStatus
	}
	return status, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidStatus for unknown targets and
// ErrInvalidTransition for known targets the table does not allow.
func (s OrderStatus) ValidateTransition(next OrderStatus) error {
	if _, ok := orderTransitions[next]; !ok {
		return database.ErrInvalidStatus
	}
	if !s.CanTransitionTo(next) {
		return database.ErrInvalidTransition
	}
	return nil
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

const PaymentMethodStripe = "stripe"

type ShippingDetails struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate requires every field except state.
func (s ShippingDetails) Validate() error {
	required := []string{s.FirstName, s.LastName, s.Email, s.Phone, s.Address, s.City, s.PostalCode, s.Country}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return database.ErrInvalidShipping
		}
	}
	return nil
}

type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Shipping        ShippingDetails `json:"shipping"`
	AssignedTo      *int64          `json:"assigned_to,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
	Items           []OrderItem     `json:"items,omitempty"`
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

func (o Order) IsAssignedTo(agentID int64) bool {
	return o.AssignedTo != nil && *o.AssignedTo == agentID
}

// MinorUnits is the total in cents, truncated.
func (o Order) MinorUnits() int64 {
	return o.TotalAmount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
