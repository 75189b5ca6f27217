package services

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/cache"
	"github.com/cousinade/cousinade-engine/pkg/metrics"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// AttendanceService records who attends which slot and builds the household view.
type AttendanceService interface {
	// SetAttendance rewrites attendance for every (person, slot) of the cross product:
	// pairs in answered are marked present, all others are cleared.
	SetAttendance(ctx context.Context, personIDs, slotIDs []int64, answered models.SlotKeySet) error

	// SaveHousehold rewrites attendance of the person's household over all slots.
	SaveHousehold(ctx context.Context, personID int64, answered models.SlotKeySet) error

	// BuildView assembles the attendance view for the person's household.
	BuildView(ctx context.Context, personID int64) (*models.AttendanceView, error)

	// TotalsPerSlot counts present people per slot across everyone.
	TotalsPerSlot(ctx context.Context) (map[int64]int, error)
}

type attendanceService struct {
	attendanceRepo repositories.AttendanceRepository
	personRepo     repositories.PersonRepository
	householdSvc   HouseholdService
	calendarSvc    CalendarService
	totals         cache.TotalsCache
	// totalsStale is set when an invalidation failed; reads skip the cache until
	// an invalidation succeeds.
	totalsStale    atomic.Bool
	inTx           TxFunc
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(
	attendanceRepo repositories.AttendanceRepository,
	personRepo repositories.PersonRepository,
	householdSvc HouseholdService,
	calendarSvc CalendarService,
	totals cache.TotalsCache,
	inTx TxFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) AttendanceService {
	if totals == nil {
		totals = cache.NoopTotalsCache{}
	}
	return &attendanceService{
		attendanceRepo: attendanceRepo,
		personRepo:     personRepo,
		householdSvc:   householdSvc,
		calendarSvc:    calendarSvc,
		totals:         totals,
		inTx:           inTx,
		metrics:        m,
		logger:         logger.Named("attendance"),
	}
}

var _ AttendanceService = (*attendanceService)(nil)

func (s *attendanceService) SetAttendance(ctx context.Context, personIDs, slotIDs []int64, answered models.SlotKeySet) error {
	err := s.inTx(ctx, func(ctx context.Context) error {
		for _, personID := range personIDs {
			for _, slotID := range slotIDs {
				key := models.SlotKey{PersonID: personID, SlotID: slotID}
				if answered.Has(key) {
					if err := s.attendanceRepo.MarkPresent(ctx, personID, slotID); err != nil {
						return err
					}
					continue
				}
				if err := s.attendanceRepo.Clear(ctx, personID, slotID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}

	s.invalidateTotals(ctx)
	s.metrics.AttendanceSaved()
	return nil
}

func (s *attendanceService) SaveHousehold(ctx context.Context, personID int64, answered models.SlotKeySet) error {
	household, err := s.householdSvc.Household(ctx, personID)
	if err != nil {
		return err
	}
	slots, err := s.calendarSvc.AllSlots(ctx)
	if err != nil {
		return err
	}

	slotIDs := make([]int64, 0, len(slots))
	for _, slot := range slots {
		slotIDs = append(slotIDs, slot.ID)
	}

	if err := s.SetAttendance(ctx, personIDs(household), slotIDs, answered); err != nil {
		return err
	}

	s.logger.Info("Saved household attendance",
		zap.Int64("person_id", personID),
		zap.Int("household_size", len(household)),
		zap.Int("answered", len(answered)))
	return nil
}

// invalidateTotals drops cached totals after a committed save. When Redis cannot be
// reached the cache is bypassed until a later invalidation succeeds.
func (s *attendanceService) invalidateTotals(ctx context.Context) bool {
	if err := s.totals.Invalidate(ctx); err != nil {
		s.totalsStale.Store(true)
		s.logger.Warn("Failed to invalidate attendance totals, bypassing cache", zap.Error(err))
		return false
	}
	s.totalsStale.Store(false)
	return true
}

func (s *attendanceService) TotalsPerSlot(ctx context.Context) (map[int64]int, error) {
	if s.totalsStale.Load() && !s.invalidateTotals(ctx) {
		s.metrics.TotalsLookup("bypass")
		return s.attendanceRepo.CountPresentBySlot(ctx)
	}

	totals, hit, err := s.totals.Get(ctx)
	switch {
	case err != nil:
		s.metrics.TotalsLookup("error")
		s.logger.Warn("Failed to read cached attendance totals", zap.Error(err))
	case hit:
		s.metrics.TotalsLookup("hit")
		return totals, nil
	default:
		s.metrics.TotalsLookup("miss")
	}

	// the generation is read before counting so a save committed meanwhile
	// rejects the write below
	gen, genErr := s.totals.Generation(ctx)

	totals, err = s.attendanceRepo.CountPresentBySlot(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		s.logger.Warn("Failed to read attendance totals generation", zap.Error(genErr))
		return totals, nil
	}

	stored, err := s.totals.Set(ctx, gen, totals)
	switch {
	case err != nil:
		s.logger.Warn("Failed to cache attendance totals", zap.Error(err))
	case !stored:
		s.logger.Debug("Attendance changed while counting, totals not cached", zap.Int64("generation", gen))
	}
	return totals, nil
}

func (s *attendanceService) BuildView(ctx context.Context, personID int64) (*models.AttendanceView, error) {
	household, err := s.householdSvc.Household(ctx, personID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.calendarSvc.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	ids := personIDs(household)
	own, err := s.attendanceRepo.GetPresentByPersons(ctx, ids)
	if err != nil {
		return nil, err
	}
	others, err := s.attendanceRepo.GetPresentExcluding(ctx, ids)
	if err != nil {
		return nil, err
	}
	totals, err := s.TotalsPerSlot(ctx)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]int64, 0, len(others))
	seen := make(map[int64]bool)
	for _, fact := range others {
		if !seen[fact.PersonID] {
			seen[fact.PersonID] = true
			otherIDs = append(otherIDs, fact.PersonID)
		}
	}
	otherPeople, err := s.personRepo.GetByIDs(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	return AssembleAttendanceView(household, schedule, own, others, totals, otherPeople), nil
}

// AssembleAttendanceView builds the view from loaded data. Facts with Present=false are
// ignored, as are facts of household members in others.
func AssembleAttendanceView(
	household []*models.Person,
	schedule []*models.WeekendSlots,
	own []*models.PersonAttendance,
	others []*models.PersonAttendance,
	totals map[int64]int,
	otherPeople []*models.Person,
) *models.AttendanceView {
	inHousehold := make(map[int64]bool, len(household))
	for _, p := range household {
		inHousehold[p.ID] = true
	}

	view := &models.AttendanceView{
		Household:       household,
		Weekends:        schedule,
		PresentMap:      make(map[models.SlotKey]bool),
		TotalsPerSlot:   make(map[int64]int, len(totals)),
		OthersPresent:   make(models.SlotKeySet),
		OthersByWeekend: make(map[int64][]*models.Person, len(schedule)),
	}

	for _, p := range household {
		for _, ws := range schedule {
			for _, slot := range ws.Slots {
				view.PresentMap[models.SlotKey{PersonID: p.ID, SlotID: slot.ID}] = false
			}
		}
	}
	for _, fact := range own {
		if fact.Present && inHousehold[fact.PersonID] {
			key := models.SlotKey{PersonID: fact.PersonID, SlotID: fact.SlotID}
			if _, ok := view.PresentMap[key]; ok {
				view.PresentMap[key] = true
			}
		}
	}

	for slotID, n := range totals {
		view.TotalsPerSlot[slotID] = n
	}

	for _, fact := range others {
		if fact.Present && !inHousehold[fact.PersonID] {
			view.OthersPresent.Add(models.SlotKey{PersonID: fact.PersonID, SlotID: fact.SlotID})
		}
	}

	people := indexPeople(otherPeople)
	for _, ws := range schedule {
		attending := make(map[int64]bool)
		for _, slot := range ws.Slots {
			for key := range view.OthersPresent {
				if key.SlotID == slot.ID {
					attending[key.PersonID] = true
				}
			}
		}

		roster := make([]*models.Person, 0, len(attending))
		for id := range attending {
			if p, ok := people[id]; ok {
				roster = append(roster, p)
			}
		}
		sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
		view.OthersByWeekend[ws.Weekend.ID] = roster
	}

	return view
}
