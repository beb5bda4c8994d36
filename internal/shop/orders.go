package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

// DeliveryDashboard is what an agent sees: their profile and assigned orders.
type DeliveryDashboard struct {
	Agent  *models.DeliveryAgent `json:"agent"`
	Orders *store.OffsetPage     `json:"orders"`
}

// agentFor returns the delivery agent profile of id, or nil when the caller
// is not an agent or has no profile yet.
func (s *Service) agentFor(ctx context.Context, db database.DBTX, id auth.Identity) (*models.DeliveryAgent, error) {
	if !id.IsDeliveryAgent() {
		return nil, nil
	}
	agent, err := store.GetDeliveryAgentByUser(ctx, db, id.UserID)
	if err != nil {
		if errors.Is(err, database.ErrDeliveryAgentNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return agent, nil
}

func (s *Service) canView(ctx context.Context, id auth.Identity, order *models.Order) (bool, error) {
	if id.IsStaff() || order.UserID == id.UserID {
		return true, nil
	}
	agent, err := s.agentFor(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return agent != nil && order.IsAssignedTo(agent.ID), nil
}

// GetOrder hides orders the caller may not see behind ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	order, err := store.GetOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	ok, err := s.canView(ctx, id, order)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListMyOrders(ctx context.Context, id auth.Identity, cursor string, limit int) (*store.CursorPage, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if limit < 1 || limit > store.MaxPageSize {
		limit = store.DefaultPageSize
	}
	return store.ListOrdersCursor(ctx, s.db, id.UserID, cursor, limit)
}

func (s *Service) ListAllOrders(ctx context.Context, id auth.Identity, filter store.OrderFilter) (*store.OffsetPage, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if filter.Status != "" {
		if _, err := models.ParseOrderStatus(string(filter.Status)); err != nil {
			return nil, err
		}
	}
	return store.ListOrders(ctx, s.db, filter)
}

// AssignDelivery hands the order to an agent and marks it shipped,
// whatever its status was. Stock is not reserved again, so a cancelled or
// delivered order that is reassigned cannot be restocked a second time.
func (s *Service) AssignDelivery(ctx context.Context, id auth.Identity, orderID, agentID int64) (*models.Order, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}

	if _, err := store.AssignOrder(ctx, s.db, orderID, agentID); err != nil {
		return nil, fmt.Errorf("assign delivery: %w", err)
	}

	s.logger.Info("order assigned",
		zap.Int64("order_id", orderID),
		zap.Int64("agent_id", agentID),
		zap.Int64("staff_id", id.UserID))

	return store.GetOrder(ctx, s.db, orderID)
}

// UpdateOrderStatus moves the order along the status graph. Staff may move
// any order; a delivery agent only the orders assigned to them. Cancelling
// returns stock still reserved for the order; delivering releases the
// reservation for good.
func (s *Service) UpdateOrderStatus(ctx context.Context, id auth.Identity, orderID int64, rawStatus string) (*models.Order, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}

	next, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var restocked bool
	err = database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		restocked = false
		order, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if !id.IsStaff() {
			agent, err := s.agentFor(ctx, tx, id)
			if err != nil {
				return err
			}
			if agent == nil || !order.IsAssignedTo(agent.ID) {
				return database.ErrAuthorizationDenied
			}
		}

		if err := order.Status.ValidateTransition(next); err != nil {
			return err
		}

		if _, err := store.UpdateOrderStatus(ctx, tx, order.ID, next, order.Version); err != nil {
			return err
		}

		switch next {
		case models.OrderStatusCancelled:
			restocked, err = store.RestoreOrderStock(ctx, tx, order.ID)
			return err
		case models.OrderStatusDelivered:
			_, err := store.ReleaseReservation(ctx, tx, order.ID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	s.logger.Info("order status changed",
		zap.Int64("order_id", orderID),
		zap.String("status", string(next)),
		zap.Bool("restocked", restocked),
		zap.Int64("by_user", id.UserID))

	return store.GetOrder(ctx, s.db, orderID)
}

// MarkPaid records an out-of-band payment.
func (s *Service) MarkPaid(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if _, err := store.MarkOrderPaid(ctx, s.db, orderID); err != nil {
		return nil, fmt.Errorf("mark paid: %w", err)
	}
	return store.GetOrder(ctx, s.db, orderID)
}

func (s *Service) DeliveryDashboard(ctx context.Context, id auth.Identity, page store.PageRequest) (*DeliveryDashboard, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if !id.IsDeliveryAgent() {
		return nil, database.ErrAuthorizationDenied
	}

	agent, err := store.GetDeliveryAgentByUser(ctx, s.db, id.UserID)
	if err != nil {
		return nil, err
	}

	orders, err := store.ListAgentOrders(ctx, s.db, agent.ID, page)
	if err != nil {
		return nil, err
	}
	return &DeliveryDashboard{Agent: agent, Orders: orders}, nil
}
