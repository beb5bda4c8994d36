// Package shop enforces who may do what to carts, orders and the catalog,
// and runs each mutating operation in its own transaction over the store
// functions.
package shop

import (
	"database/sql"
	"time"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/payment"
	"go.uber.org/zap"
)

type Service struct {
	db          *sql.DB
	gateway     payment.Gateway
	idempotency payment.IdempotencyStore
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for flash-sale windows in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(
	db *sql.DB,
	gateway payment.Gateway,
	idempotency payment.IdempotencyStore,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		db:          db,
		gateway:     gateway,
		idempotency: idempotency,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireUser(id auth.Identity) error {
	if !id.IsAuthenticated() {
		return database.ErrAuthenticationRequired
	}
	return nil
}

func requireStaff(id auth.Identity) error {
	if err := requireUser(id); err != nil {
		return err
	}
	if !id.IsStaff() {
		return database.ErrAuthorizationDenied
	}
	return nil
}
