package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// seedLockKey is the advisory lock key held while the calendar is seeded.
const seedLockKey int64 = 0x636f7573696e // "cousin"

// EventRepository provides data access for event weekends and slots.
type EventRepository interface {
	// LockSeed takes a transaction-scoped advisory lock serialising calendar seeding.
	// It must be called inside a transaction.
	LockSeed(ctx context.Context) error
	CountSlots(ctx context.Context) (int, error)
	CreateWeekend(ctx context.Context, weekend *models.EventWeekend) error
	CreateSlot(ctx context.Context, slot *models.EventSlot) error
	// ListWeekends returns weekends ordered by start date, then id.
	ListWeekends(ctx context.Context) ([]*models.EventWeekend, error)
	// ListSlots returns every slot ordered by weekend, order index, then id.
	ListSlots(ctx context.Context) ([]*models.EventSlot, error)
	// ListSlotsByWeekend returns the weekend's slots ordered by order index, then id.
	ListSlotsByWeekend(ctx context.Context, weekendID int64) ([]*models.EventSlot, error)
}

type eventRepository struct{}

// NewEventRepository creates a new EventRepository.
func NewEventRepository() EventRepository {
	return &eventRepository{}
}

var _ EventRepository = (*eventRepository)(nil)

func (r *eventRepository) LockSeed(ctx context.Context) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}
	if !scope.InTx() {
		return fmt.Errorf("calendar seed lock requires a transaction")
	}

	if _, err := scope.Conn.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, seedLockKey); err != nil {
		return fmt.Errorf("failed to acquire calendar seed lock: %w", err)
	}
	return nil
}

func (r *eventRepository) CountSlots(ctx context.Context) (int, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, database.ErrNoScope
	}

	var n int
	if err := scope.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM event_slots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count event slots: %w", err)
	}
	return n, nil
}

func (r *eventRepository) CreateWeekend(ctx context.Context, weekend *models.EventWeekend) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO event_weekends (name, start_date, end_date)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query, weekend.Name, weekend.StartDate, weekend.EndDate).Scan(&weekend.ID)
	if err != nil {
		return fmt.Errorf("failed to create event weekend: %w", err)
	}
	return nil
}

func (r *eventRepository) CreateSlot(ctx context.Context, slot *models.EventSlot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	query := `
		INSERT INTO event_slots (weekend_id, date, label, order_index)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := scope.Conn.QueryRow(ctx, query, slot.WeekendID, slot.Date, slot.Label, slot.OrderIndex).Scan(&slot.ID)
	if err != nil {
		return fmt.Errorf("failed to create event slot: %w", err)
	}
	return nil
}

func (r *eventRepository) ListWeekends(ctx context.Context) ([]*models.EventWeekend, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, name, start_date, end_date
		FROM event_weekends
		ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event weekends: %w", err)
	}
	defer rows.Close()

	var weekends []*models.EventWeekend
	for rows.Next() {
		var w models.EventWeekend
		if err := rows.Scan(&w.ID, &w.Name, &w.StartDate, &w.EndDate); err != nil {
			return nil, fmt.Errorf("failed to scan event weekend: %w", err)
		}
		weekends = append(weekends, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event weekends: %w", err)
	}
	return weekends, nil
}

func (r *eventRepository) ListSlots(ctx context.Context) ([]*models.EventSlot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, weekend_id, date, label, order_index
		FROM event_slots
		ORDER BY weekend_id, order_index, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query event slots: %w", err)
	}
	return collectSlots(rows)
}

func (r *eventRepository) ListSlotsByWeekend(ctx context.Context, weekendID int64) ([]*models.EventSlot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, weekend_id, date, label, order_index
		FROM event_slots
		WHERE weekend_id = $1
		ORDER BY order_index, id`, weekendID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event slots: %w", err)
	}
	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]*models.EventSlot, error) {
	defer rows.Close()

	var slots []*models.EventSlot
	for rows.Next() {
		var s models.EventSlot
		if err := rows.Scan(&s.ID, &s.WeekendID, &s.Date, &s.Label, &s.OrderIndex); err != nil {
			return nil, fmt.Errorf("failed to scan event slot: %w", err)
		}
		slots = append(slots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event slots: %w", err)
	}
	return slots, nil
}
