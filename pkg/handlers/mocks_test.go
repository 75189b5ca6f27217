package handlers

import (
	"context"
	"net/http"

	"github.com/cousinade/cousinade-engine/pkg/calendar"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/services"
)

// noScope runs handlers without a database scope; the mocks below never touch a database.
func noScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}

type mockPersonService struct {
	people []*models.Person
	card   *services.MemberCard
	err    error
	lastQ  string
	lastID int64
}

func (m *mockPersonService) FindByID(_ context.Context, id int64) (*models.Person, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Person{ID: id}, nil
}

func (m *mockPersonService) FindByEmail(_ context.Context, _ string) (*models.Person, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.people[0], nil
}

func (m *mockPersonService) Search(_ context.Context, pattern string) ([]*models.Person, error) {
	m.lastQ = pattern
	return m.people, m.err
}

func (m *mockPersonService) Upsert(_ context.Context, _ *models.PersonPatch) (*models.Person, error) {
	return nil, m.err
}

func (m *mockPersonService) MemberCard(_ context.Context, id int64) (*services.MemberCard, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.card, nil
}

type mockHouseholdService struct {
	household []*models.Person
	err       error
}

func (m *mockHouseholdService) Household(_ context.Context, _ int64) ([]*models.Person, error) {
	return m.household, m.err
}

type mockHouseholdEditService struct {
	result *models.HouseholdEditResult
	err    error
	edit   *models.HouseholdEdit
}

func (m *mockHouseholdEditService) Apply(_ context.Context, edit *models.HouseholdEdit) (*models.HouseholdEditResult, error) {
	m.edit = edit
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockAttendanceService struct {
	view     *models.AttendanceView
	err      error
	saveErr  error
	savedFor int64
	answered models.SlotKeySet
}

func (m *mockAttendanceService) SetAttendance(_ context.Context, _, _ []int64, answered models.SlotKeySet) error {
	m.answered = answered
	return m.saveErr
}

func (m *mockAttendanceService) SaveHousehold(_ context.Context, personID int64, answered models.SlotKeySet) error {
	m.savedFor = personID
	m.answered = answered
	return m.saveErr
}

func (m *mockAttendanceService) BuildView(_ context.Context, _ int64) (*models.AttendanceView, error) {
	return m.view, m.err
}

func (m *mockAttendanceService) TotalsPerSlot(_ context.Context) (map[int64]int, error) {
	if m.view == nil {
		return nil, m.err
	}
	return m.view.TotalsPerSlot, m.err
}

type mockCalendarService struct {
	schedule []*models.WeekendSlots
	err      error
}

func (m *mockCalendarService) EnsureSeed(_ context.Context, _ *calendar.Seed) (bool, error) {
	return false, m.err
}

func (m *mockCalendarService) AllWeekends(_ context.Context) ([]*models.EventWeekend, error) {
	var weekends []*models.EventWeekend
	for _, ws := range m.schedule {
		weekends = append(weekends, ws.Weekend)
	}
	return weekends, m.err
}

func (m *mockCalendarService) SlotsOf(_ context.Context, weekendID int64) ([]*models.EventSlot, error) {
	for _, ws := range m.schedule {
		if ws.Weekend.ID == weekendID {
			return ws.Slots, m.err
		}
	}
	return nil, m.err
}

func (m *mockCalendarService) AllSlots(_ context.Context) ([]*models.EventSlot, error) {
	var slots []*models.EventSlot
	for _, ws := range m.schedule {
		slots = append(slots, ws.Slots...)
	}
	return slots, m.err
}

func (m *mockCalendarService) Schedule(_ context.Context) ([]*models.WeekendSlots, error) {
	return m.schedule, m.err
}

type mockImportService struct {
	result *models.ImportResult
	err    error
	rows   []models.ImportRow
}

func (m *mockImportService) Import(_ context.Context, rows []models.ImportRow) (*models.ImportResult, error) {
	m.rows = rows
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockOutreachService struct {
	people    []*models.Person
	err       error
	lastLimit int
}

func (m *mockOutreachService) Recipients(_ context.Context, limit int) ([]*models.Person, error) {
	m.lastLimit = limit
	return m.people, m.err
}
