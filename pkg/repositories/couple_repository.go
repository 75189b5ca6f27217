package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// CoupleRepository provides data access for couples.
type CoupleRepository interface {
	// GetByPair finds the couple of a and b in either orientation.
	GetByPair(ctx context.Context, a, b int64) (*models.Couple, error)
	GetByPerson(ctx context.Context, personID int64) ([]*models.Couple, error)
	Create(ctx context.Context, couple *models.Couple) error
	UpdateStatus(ctx context.Context, id int64, status string) error
}

type coupleRepository struct{}

// NewCoupleRepository creates a new CoupleRepository.
func NewCoupleRepository() CoupleRepository {
	return &coupleRepository{}
}

var _ CoupleRepository = (*coupleRepository)(nil)

func (r *coupleRepository) GetByPair(ctx context.Context, a, b int64) (*models.Couple, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, partner_a_id, partner_b_id, status, created_at, updated_at
		FROM couples
		WHERE (partner_a_id = $1 AND partner_b_id = $2)
		   OR (partner_a_id = $2 AND partner_b_id = $1)
		ORDER BY id
		LIMIT 1`

	couple, err := scanCouple(scope.Conn.QueryRow(ctx, query, a, b))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("couple %d-%d: %w", a, b, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return couple, nil
}

// GetByPerson returns every couple the person belongs to, in either role, ordered by id.
func (r *coupleRepository) GetByPerson(ctx context.Context, personID int64) ([]*models.Couple, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `
		SELECT id, partner_a_id, partner_b_id, status, created_at, updated_at
		FROM couples
		WHERE partner_a_id = $1 OR partner_b_id = $1
		ORDER BY id`

	rows, err := scope.Conn.Query(ctx, query, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query couples: %w", err)
	}
	defer rows.Close()

	var couples []*models.Couple
	for rows.Next() {
		c, err := scanCouple(rows)
		if err != nil {
			return nil, err
		}
		couples = append(couples, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating couples: %w", err)
	}
	return couples, nil
}

// Create inserts the couple. If a row for the same unordered pair already exists its
// status is updated instead and couple receives the existing id.
func (r *coupleRepository) Create(ctx context.Context, couple *models.Couple) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	couple.CreatedAt = now
	couple.UpdatedAt = now

	query := `
		INSERT INTO couples (partner_a_id, partner_b_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ((LEAST(partner_a_id, partner_b_id)), (GREATEST(partner_a_id, partner_b_id)))
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id, partner_a_id, partner_b_id, created_at`

	err := scope.Conn.QueryRow(ctx, query,
		couple.PartnerAID, couple.PartnerBID, couple.Status, couple.CreatedAt, couple.UpdatedAt,
	).Scan(&couple.ID, &couple.PartnerAID, &couple.PartnerBID, &couple.CreatedAt)
	if err != nil {
		if hasPgCode(err, pgForeignKeyViolation) {
			return fmt.Errorf("couple %d + %d references an unknown person: %w",
				couple.PartnerAID, couple.PartnerBID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("failed to create couple: %w", err)
	}
	return nil
}

func (r *coupleRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	tag, err := scope.Conn.Exec(ctx,
		`UPDATE couples SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update couple status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("couple %d: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanCouple(row pgx.Row) (*models.Couple, error) {
	var c models.Couple
	err := row.Scan(&c.ID, &c.PartnerAID, &c.PartnerBID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan couple: %w", err)
	}
	return &c, nil
}
