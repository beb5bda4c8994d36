package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03":
			return ErrorClassTransient
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrorClassPermanent
	}

	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

// IsUniqueViolation reports whether err is a unique constraint failure,
// optionally on the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// ErrNotFound is wrapped by every "missing row" error so callers can map the
// whole family with errors.Is.
var ErrNotFound = errors.New("not found")

var (
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrCategoryNotFound      = fmt.Errorf("category %w", ErrNotFound)
	ErrProductNotFound       = fmt.Errorf("product %w", ErrNotFound)
	ErrCartNotFound          = fmt.Errorf("cart %w", ErrNotFound)
	ErrCartItemNotFound      = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound         = fmt.Errorf("order %w", ErrNotFound)
	ErrDeliveryAgentNotFound = fmt.Errorf("delivery agent %w", ErrNotFound)
	ErrWishlistItemNotFound  = fmt.Errorf("wishlist item %w", ErrNotFound)
	ErrCampaignNotFound      = fmt.Errorf("flash sale campaign %w", ErrNotFound)
)

var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("quantity must be at least 1")
	ErrInvalidStatus          = errors.New("invalid order status")
	ErrInvalidTransition      = errors.New("order status transition not allowed")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidShipping        = errors.New("shipping details are incomplete")
	ErrInvalidPrice           = errors.New("price must not be negative")
	ErrInvalidSchedule        = errors.New("campaign must end after it starts")
	ErrInvalidRating          = errors.New("rating must be between 1 and 5")
	ErrDuplicateReview        = errors.New("product already reviewed by this user")
	ErrAlreadyExists          = errors.New("already exists")
	ErrInvalidRole            = errors.New("invalid role")
	ErrInvalidCursor          = errors.New("invalid page cursor")
	ErrAlreadyPaid            = errors.New("order is already paid")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationDenied    = errors.New("not allowed to perform this action")
	ErrPaymentProvider        = errors.New("payment provider error")
	ErrOptimisticLockFailed   = errors.New("optimistic lock failed")
)
