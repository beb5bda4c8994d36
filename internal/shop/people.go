package shop

import (
	"context"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

func (s *Service) CreateUser(ctx context.Context, id auth.Identity, email, name, role string) (*models.User, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	u, err := store.CreateUser(ctx, s.db, email, name, r)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("user %q: %w", email, database.ErrAlreadyExists)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, id auth.Identity, page store.PageRequest) (*store.OffsetPage, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	return store.ListUsers(ctx, s.db, page)
}

func (s *Service) SetUserRole(ctx context.Context, id auth.Identity, userID int64, role string) (*models.User, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	r, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}

	u, err := store.SetUserRole(ctx, s.db, userID, r)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user role changed",
		zap.Int64("user_id", userID),
		zap.String("role", string(r)),
		zap.Int64("staff_id", id.UserID))
	return u, nil
}

// CreateDeliveryAgent gives a delivery_agent user the profile orders are
// assigned to. Calling it again updates the phone.
func (s *Service) CreateDeliveryAgent(ctx context.Context, id auth.Identity, userID int64, phone string) (*models.DeliveryAgent, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}

	u, err := store.GetUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u.Role != models.RoleDeliveryAgent {
		return nil, fmt.Errorf("%w: user %d is a %s", database.ErrInvalidRole, u.ID, u.Role)
	}

	return store.CreateDeliveryAgent(ctx, s.db, userID, phone)
}

func (s *Service) ListDeliveryAgents(ctx context.Context, id auth.Identity, availableOnly bool) ([]models.DeliveryAgent, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	return store.ListDeliveryAgents(ctx, s.db, availableOnly)
}

func (s *Service) SetMyAvailability(ctx context.Context, id auth.Identity, available bool) (*models.DeliveryAgent, error) {
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
	if err := store.SetAgentAvailability(ctx, s.db, agent.ID, available); err != nil {
		return nil, err
	}
	agent.IsAvailable = available
	return agent, nil
}
