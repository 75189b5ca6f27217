package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/calendar"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// CalendarService exposes the event weekends and their slots.
type CalendarService interface {
	// EnsureSeed inserts the seed calendar when no slot exists yet.
	// Returns true when it inserted anything.
	EnsureSeed(ctx context.Context, seed *calendar.Seed) (bool, error)

	// AllWeekends returns weekends ordered by start date, then id.
	AllWeekends(ctx context.Context) ([]*models.EventWeekend, error)

	// SlotsOf returns the weekend's slots ordered by order index, then id.
	SlotsOf(ctx context.Context, weekendID int64) ([]*models.EventSlot, error)

	AllSlots(ctx context.Context) ([]*models.EventSlot, error)

	// Schedule returns every weekend with its ordered slots.
	Schedule(ctx context.Context) ([]*models.WeekendSlots, error)
}

type calendarService struct {
	eventRepo repositories.EventRepository
	inTx      TxFunc
	logger    *zap.Logger
}

// NewCalendarService creates a new CalendarService.
func NewCalendarService(eventRepo repositories.EventRepository, inTx TxFunc, logger *zap.Logger) CalendarService {
	return &calendarService{
		eventRepo: eventRepo,
		inTx:      inTx,
		logger:    logger.Named("calendar"),
	}
}

var _ CalendarService = (*calendarService)(nil)

func (s *calendarService) EnsureSeed(ctx context.Context, seed *calendar.Seed) (bool, error) {
	weekends, err := seed.Build()
	if err != nil {
		return false, err
	}

	seeded := false
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.eventRepo.LockSeed(ctx); err != nil {
			return err
		}

		n, err := s.eventRepo.CountSlots(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for _, ws := range weekends {
			if err := s.eventRepo.CreateWeekend(ctx, ws.Weekend); err != nil {
				return err
			}
			for _, slot := range ws.Slots {
				slot.WeekendID = ws.Weekend.ID
				if err := s.eventRepo.CreateSlot(ctx, slot); err != nil {
					return err
				}
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed calendar: %w", err)
	}

	if seeded {
		s.logger.Info("Seeded event calendar",
			zap.Int("weekends", len(weekends)),
			zap.Int("slots", seed.SlotCount()))
	}
	return seeded, nil
}

func (s *calendarService) AllWeekends(ctx context.Context) ([]*models.EventWeekend, error) {
	return s.eventRepo.ListWeekends(ctx)
}

func (s *calendarService) SlotsOf(ctx context.Context, weekendID int64) ([]*models.EventSlot, error) {
	return s.eventRepo.ListSlotsByWeekend(ctx, weekendID)
}

func (s *calendarService) AllSlots(ctx context.Context) ([]*models.EventSlot, error) {
	return s.eventRepo.ListSlots(ctx)
}

func (s *calendarService) Schedule(ctx context.Context) ([]*models.WeekendSlots, error) {
	weekends, err := s.eventRepo.ListWeekends(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := s.eventRepo.ListSlots(ctx)
	if err != nil {
		return nil, err
	}
	return GroupSlots(weekends, slots), nil
}

// GroupSlots attaches slots to their weekends, keeping both input orders.
// Slots of unknown weekends are dropped.
func GroupSlots(weekends []*models.EventWeekend, slots []*models.EventSlot) []*models.WeekendSlots {
	result := make([]*models.WeekendSlots, 0, len(weekends))
	byWeekend := make(map[int64]*models.WeekendSlots, len(weekends))
	for _, w := range weekends {
		ws := &models.WeekendSlots{Weekend: w}
		byWeekend[w.ID] = ws
		result = append(result, ws)
	}
	for _, slot := range slots {
		if ws, ok := byWeekend[slot.WeekendID]; ok {
			ws.Slots = append(ws.Slots, slot)
		}
	}
	return result
}
