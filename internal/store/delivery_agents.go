package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const agentColumns = `a.id, a.user_id, u.name, u.email, a.phone, a.is_available, a.created_at, a.updated_at`

func scanAgent(row interface{ Scan(...any) error }) (*models.DeliveryAgent, error) {
	a := &models.DeliveryAgent{}
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Email, &a.Phone, &a.IsAvailable, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateDeliveryAgent creates the profile or, when one already exists for
// the user, updates its phone.
func CreateDeliveryAgent(ctx context.Context, db database.DBTX, userID int64, phone string) (*models.DeliveryAgent, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`INSERT INTO delivery_agents (user_id, phone, is_available, created_at, updated_at)
		 VALUES ($1, $2, TRUE, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE SET phone = EXCLUDED.phone, updated_at = NOW()
		 RETURNING id`,
		userID, phone).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create delivery agent: %w", err)
	}
	return GetDeliveryAgent(ctx, db, id)
}

func GetDeliveryAgent(ctx context.Context, db database.DBTX, id int64) (*models.DeliveryAgent, error) {
	query := `SELECT ` + agentColumns + ` FROM delivery_agents a JOIN users u ON u.id = a.user_id WHERE a.id = $1`

	a, err := scanAgent(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDeliveryAgentNotFound
		}
		return nil, fmt.Errorf("get delivery agent: %w", err)
	}
	return a, nil
}

func GetDeliveryAgentByUser(ctx context.Context, db database.DBTX, userID int64) (*models.DeliveryAgent, error) {
	query := `SELECT ` + agentColumns + ` FROM delivery_agents a JOIN users u ON u.id = a.user_id WHERE a.user_id = $1`

	a, err := scanAgent(db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrDeliveryAgentNotFound
		}
		return nil, fmt.Errorf("get delivery agent by user: %w", err)
	}
	return a, nil
}

func ListDeliveryAgents(ctx context.Context, db database.DBTX, availableOnly bool) ([]models.DeliveryAgent, error) {
	query := `SELECT ` + agentColumns + ` FROM delivery_agents a JOIN users u ON u.id = a.user_id`
	if availableOnly {
		query += ` WHERE a.is_available`
	}
	query += ` ORDER BY u.name, a.id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list delivery agents: %w", err)
	}
	defer rows.Close()

	agents := []models.DeliveryAgent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery agent: %w", err)
		}
		agents = append(agents, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return agents, nil
}

func SetAgentAvailability(ctx context.Context, db database.DBTX, agentID int64, available bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE delivery_agents SET is_available = $2, updated_at = NOW() WHERE id = $1`,
		agentID, available)
	if err != nil {
		return fmt.Errorf("set agent availability: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrDeliveryAgentNotFound
	}
	return nil
}
