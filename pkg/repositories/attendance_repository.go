package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// AttendanceRepository provides data access for attendance facts.
// Only present=true rows are ever returned or counted.
type AttendanceRepository interface {
	// MarkPresent records (person, slot) as present, creating the row if needed.
	MarkPresent(ctx context.Context, personID, slotID int64) error
	// Clear removes any fact for (person, slot).
	Clear(ctx context.Context, personID, slotID int64) error
	GetPresentByPersons(ctx context.Context, personIDs []int64) ([]*models.PersonAttendance, error)
	// GetPresentExcluding returns present facts of everyone not in personIDs.
	GetPresentExcluding(ctx context.Context, personIDs []int64) ([]*models.PersonAttendance, error)
	// CountPresentBySlot returns slot id -> number of present people. Slots without any are omitted.
	CountPresentBySlot(ctx context.Context) (map[int64]int, error)
}

type attendanceRepository struct{}

// NewAttendanceRepository creates a new AttendanceRepository.
func NewAttendanceRepository() AttendanceRepository {
	return &attendanceRepository{}
}

var _ AttendanceRepository = (*attendanceRepository)(nil)

func (r *attendanceRepository) MarkPresent(ctx context.Context, personID, slotID int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO person_attendance (person_id, slot_id, present, updated_at)
		VALUES ($1, $2, TRUE, now())
		ON CONFLICT (person_id, slot_id)
		DO UPDATE SET present = TRUE, updated_at = now()`

	if _, err := scope.Conn.Exec(ctx, query, personID, slotID); err != nil {
		return fmt.Errorf("failed to mark attendance: %w", err)
	}
	return nil
}

func (r *attendanceRepository) Clear(ctx context.Context, personID, slotID int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	_, err := scope.Conn.Exec(ctx,
		`DELETE FROM person_attendance WHERE person_id = $1 AND slot_id = $2`, personID, slotID)
	if err != nil {
		return fmt.Errorf("failed to clear attendance: %w", err)
	}
	return nil
}

func (r *attendanceRepository) GetPresentByPersons(ctx context.Context, personIDs []int64) ([]*models.PersonAttendance, error) {
	if len(personIDs) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, person_id, slot_id, present, updated_at
		FROM person_attendance
		WHERE present AND person_id = ANY($1)
		ORDER BY person_id, slot_id`, personIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return collectAttendance(rows)
}

func (r *attendanceRepository) GetPresentExcluding(ctx context.Context, personIDs []int64) ([]*models.PersonAttendance, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}
	if personIDs == nil {
		personIDs = []int64{}
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, person_id, slot_id, present, updated_at
		FROM person_attendance
		WHERE present AND NOT (person_id = ANY($1))
		ORDER BY person_id, slot_id`, personIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return collectAttendance(rows)
}

func (r *attendanceRepository) CountPresentBySlot(ctx context.Context) (map[int64]int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT slot_id, COUNT(*)
		FROM person_attendance
		WHERE present
		GROUP BY slot_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count attendance: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]int)
	for rows.Next() {
		var slotID int64
		var n int
		if err := rows.Scan(&slotID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan attendance total: %w", err)
		}
		totals[slotID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance totals: %w", err)
	}
	return totals, nil
}

func collectAttendance(rows pgx.Rows) ([]*models.PersonAttendance, error) {
	defer rows.Close()

	var facts []*models.PersonAttendance
	for rows.Next() {
		var a models.PersonAttendance
		if err := rows.Scan(&a.ID, &a.PersonID, &a.SlotID, &a.Present, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		facts = append(facts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}
	return facts, nil
}
