package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// ParentChildRepository provides data access for parent -> child links.
type ParentChildRepository interface {
	// Create inserts the link unless the same ordered pair exists.
	// Returns false when the link was already present.
	Create(ctx context.Context, link *models.ParentChild) (bool, error)
	// GetChildren returns the children of parentID in link order.
	GetChildren(ctx context.Context, parentID int64) ([]*models.Person, error)
	// GetParents returns the parents of childID in link order.
	GetParents(ctx context.Context, childID int64) ([]*models.Person, error)
}

type parentChildRepository struct{}

// NewParentChildRepository creates a new ParentChildRepository.
func NewParentChildRepository() ParentChildRepository {
	return &parentChildRepository{}
}

var _ ParentChildRepository = (*parentChildRepository)(nil)

func (r *parentChildRepository) Create(ctx context.Context, link *models.ParentChild) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, database.ErrNoScope
	}

	query := `
		INSERT INTO parent_child (parent_id, child_id)
		VALUES ($1, $2)
		ON CONFLICT (parent_id, child_id) DO NOTHING
		RETURNING id, created_at`

	err := scope.Conn.QueryRow(ctx, query, link.ParentID, link.ChildID).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if hasPgCode(err, pgForeignKeyViolation) {
			return false, fmt.Errorf("parent-child link %d -> %d references an unknown person: %w",
				link.ParentID, link.ChildID, apperrors.ErrNotFound)
		}
		return false, fmt.Errorf("failed to create parent-child link: %w", err)
	}
	return true, nil
}

func (r *parentChildRepository) GetChildren(ctx context.Context, parentID int64) ([]*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + `
		FROM parent_child pc
		JOIN members m ON m.id = pc.child_id
		WHERE pc.parent_id = $1
		ORDER BY pc.id`

	rows, err := scope.Conn.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	return collectPeople(rows)
}

func (r *parentChildRepository) GetParents(ctx context.Context, childID int64) ([]*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + `
		FROM parent_child pc
		JOIN members m ON m.id = pc.parent_id
		WHERE pc.child_id = $1
		ORDER BY pc.id`

	rows, err := scope.Conn.Query(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parents: %w", err)
	}
	return collectPeople(rows)
}
