package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// memDB is an in-memory stand-in for the engine schema. inTx snapshots the state and
// restores it when the callback fails, so atomicity can be tested without Postgres.
type memDB struct {
	people     map[int64]*models.Person
	couples    []*models.Couple
	links      []*models.ParentChild
	weekends   []*models.EventWeekend
	slots      []*models.EventSlot
	attendance map[models.SlotKey]*models.PersonAttendance

	nextPerson  int64
	nextCouple  int64
	nextLink    int64
	nextWeekend int64
	nextSlot    int64
	txDepth     int

	// failAttendanceAt makes the n-th attendance write (1-based) fail.
	failAttendanceAt int
	attendanceWrites int
}

func newMemDB() *memDB {
	return &memDB{
		people:     make(map[int64]*models.Person),
		attendance: make(map[models.SlotKey]*models.PersonAttendance),
	}
}

type memSnapshot struct {
	people     map[int64]*models.Person
	couples    []*models.Couple
	links      []*models.ParentChild
	weekends   []*models.EventWeekend
	slots      []*models.EventSlot
	attendance map[models.SlotKey]*models.PersonAttendance
	counters   [5]int64
}

func (db *memDB) snapshot() *memSnapshot {
	s := &memSnapshot{
		people:     make(map[int64]*models.Person, len(db.people)),
		couples:    append([]*models.Couple(nil), db.couples...),
		links:      append([]*models.ParentChild(nil), db.links...),
		weekends:   append([]*models.EventWeekend(nil), db.weekends...),
		slots:      append([]*models.EventSlot(nil), db.slots...),
		attendance: make(map[models.SlotKey]*models.PersonAttendance, len(db.attendance)),
		counters:   [5]int64{db.nextPerson, db.nextCouple, db.nextLink, db.nextWeekend, db.nextSlot},
	}
	for k, v := range db.people {
		s.people[k] = v
	}
	for k, v := range db.attendance {
		s.attendance[k] = v
	}
	return s
}

func (db *memDB) restore(s *memSnapshot) {
	db.people = s.people
	db.couples = s.couples
	db.links = s.links
	db.weekends = s.weekends
	db.slots = s.slots
	db.attendance = s.attendance
	db.nextPerson, db.nextCouple, db.nextLink, db.nextWeekend, db.nextSlot =
		s.counters[0], s.counters[1], s.counters[2], s.counters[3], s.counters[4]
}

// inTx behaves like database.DB.InTx: nested calls join the outer transaction.
func (db *memDB) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.txDepth > 0 {
		return fn(ctx)
	}
	snap := db.snapshot()
	db.txDepth++
	err := fn(ctx)
	db.txDepth--
	if err != nil {
		db.restore(snap)
	}
	return err
}

func (db *memDB) addPerson(first, last string) *models.Person {
	db.nextPerson++
	p := &models.Person{ID: db.nextPerson, FirstName: first, LastName: last}
	db.people[p.ID] = p
	return clonePerson(p)
}

func clonePerson(p *models.Person) *models.Person {
	c := *p
	return &c
}

// ---------------------------------------------------------------------------
// People
// ---------------------------------------------------------------------------

type fakePersonRepository struct {
	db *memDB
}

var _ repositories.PersonRepository = (*fakePersonRepository)(nil)

func (r *fakePersonRepository) GetByID(_ context.Context, id int64) (*models.Person, error) {
	p, ok := r.db.people[id]
	if !ok {
		return nil, fmt.Errorf("person %d: %w", id, apperrors.ErrNotFound)
	}
	return clonePerson(p), nil
}

func (r *fakePersonRepository) GetByIDs(_ context.Context, ids []int64) ([]*models.Person, error) {
	var result []*models.Person
	seen := make(map[int64]bool)
	for _, id := range ids {
		if p, ok := r.db.people[id]; ok && !seen[id] {
			seen[id] = true
			result = append(result, clonePerson(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakePersonRepository) GetByEmail(_ context.Context, email string) (*models.Person, error) {
	want := strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.sorted() {
		if p.Email != nil && strings.ToLower(strings.TrimSpace(*p.Email)) == want {
			return clonePerson(p), nil
		}
	}
	return nil, fmt.Errorf("person with email: %w", apperrors.ErrNotFound)
}

func (r *fakePersonRepository) Search(_ context.Context, pattern string) ([]*models.Person, error) {
	needle := strings.ToLower(strings.TrimSpace(pattern))
	var result []*models.Person
	for _, p := range r.db.people {
		if strings.Contains(strings.ToLower(p.FirstName), needle) || strings.Contains(strings.ToLower(p.LastName), needle) {
			result = append(result, clonePerson(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.LastName != b.LastName {
			return a.LastName < b.LastName
		}
		if a.FirstName != b.FirstName {
			return a.FirstName < b.FirstName
		}
		return a.ID < b.ID
	})
	return result, nil
}

func (r *fakePersonRepository) FindMatch(_ context.Context, match *models.PersonMatch) (*models.Person, error) {
	for _, p := range r.sorted() {
		if p.FirstName == match.FirstName &&
			sameOptional(p.Branch, match.Branch) &&
			sameOptional(p.Email, match.Email) &&
			sameOptional(p.Phone, match.Phone) {
			return clonePerson(p), nil
		}
	}
	return nil, fmt.Errorf("matching person: %w", apperrors.ErrNotFound)
}

func (r *fakePersonRepository) ListWithEmail(_ context.Context) ([]*models.Person, error) {
	var result []*models.Person
	for _, p := range r.sorted() {
		if p.Email != nil && strings.TrimSpace(*p.Email) != "" {
			result = append(result, clonePerson(p))
		}
	}
	return result, nil
}

func (r *fakePersonRepository) Create(_ context.Context, person *models.Person) error {
	if person.ID > 0 {
		if _, exists := r.db.people[person.ID]; exists {
			return fmt.Errorf("person %d: %w", person.ID, apperrors.ErrConflict)
		}
		if person.ID > r.db.nextPerson {
			r.db.nextPerson = person.ID
		}
	} else {
		r.db.nextPerson++
		person.ID = r.db.nextPerson
	}
	now := time.Now()
	person.CreatedAt, person.UpdatedAt = now, now
	r.db.people[person.ID] = clonePerson(person)
	return nil
}

func (r *fakePersonRepository) Update(_ context.Context, person *models.Person) error {
	if _, ok := r.db.people[person.ID]; !ok {
		return fmt.Errorf("person %d: %w", person.ID, apperrors.ErrNotFound)
	}
	person.UpdatedAt = time.Now()
	r.db.people[person.ID] = clonePerson(person)
	return nil
}

func (r *fakePersonRepository) sorted() []*models.Person {
	people := make([]*models.Person, 0, len(r.db.people))
	for _, p := range r.db.people {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	return people
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ---------------------------------------------------------------------------
// Couples and parent-child links
// ---------------------------------------------------------------------------

type fakeCoupleRepository struct {
	db *memDB
}

var _ repositories.CoupleRepository = (*fakeCoupleRepository)(nil)

func (r *fakeCoupleRepository) GetByPair(_ context.Context, a, b int64) (*models.Couple, error) {
	for _, c := range r.db.couples {
		if (c.PartnerAID == a && c.PartnerBID == b) || (c.PartnerAID == b && c.PartnerBID == a) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("couple %d-%d: %w", a, b, apperrors.ErrNotFound)
}

func (r *fakeCoupleRepository) GetByPerson(_ context.Context, personID int64) ([]*models.Couple, error) {
	var result []*models.Couple
	for _, c := range r.db.couples {
		if c.PartnerAID == personID || c.PartnerBID == personID {
			cp := *c
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (r *fakeCoupleRepository) Create(_ context.Context, couple *models.Couple) error {
	if _, ok := r.db.people[couple.PartnerAID]; !ok {
		return errors.New("foreign key violation: partner_a_id")
	}
	if _, ok := r.db.people[couple.PartnerBID]; !ok {
		return errors.New("foreign key violation: partner_b_id")
	}
	for i, c := range r.db.couples {
		if (c.PartnerAID == couple.PartnerAID && c.PartnerBID == couple.PartnerBID) ||
			(c.PartnerAID == couple.PartnerBID && c.PartnerBID == couple.PartnerAID) {
			updated := *c
			updated.Status = couple.Status
			r.db.couples[i] = &updated
			*couple = updated
			return nil
		}
	}
	r.db.nextCouple++
	couple.ID = r.db.nextCouple
	cp := *couple
	r.db.couples = append(r.db.couples, &cp)
	return nil
}

func (r *fakeCoupleRepository) UpdateStatus(_ context.Context, id int64, status string) error {
	for i, c := range r.db.couples {
		if c.ID == id {
			updated := *c
			updated.Status = status
			r.db.couples[i] = &updated
			return nil
		}
	}
	return fmt.Errorf("couple %d: %w", id, apperrors.ErrNotFound)
}

type fakeParentChildRepository struct {
	db *memDB
}

var _ repositories.ParentChildRepository = (*fakeParentChildRepository)(nil)

func (r *fakeParentChildRepository) Create(_ context.Context, link *models.ParentChild) (bool, error) {
	if _, ok := r.db.people[link.ParentID]; !ok {
		return false, errors.New("foreign key violation: parent_id")
	}
	if _, ok := r.db.people[link.ChildID]; !ok {
		return false, errors.New("foreign key violation: child_id")
	}
	for _, l := range r.db.links {
		if l.ParentID == link.ParentID && l.ChildID == link.ChildID {
			return false, nil
		}
	}
	r.db.nextLink++
	link.ID = r.db.nextLink
	cp := *link
	r.db.links = append(r.db.links, &cp)
	return true, nil
}

func (r *fakeParentChildRepository) GetChildren(_ context.Context, parentID int64) ([]*models.Person, error) {
	var result []*models.Person
	for _, l := range r.db.links {
		if l.ParentID == parentID {
			result = append(result, clonePerson(r.db.people[l.ChildID]))
		}
	}
	return result, nil
}

func (r *fakeParentChildRepository) GetParents(_ context.Context, childID int64) ([]*models.Person, error) {
	var result []*models.Person
	for _, l := range r.db.links {
		if l.ChildID == childID {
			result = append(result, clonePerson(r.db.people[l.ParentID]))
		}
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Calendar and attendance
// ---------------------------------------------------------------------------

type fakeEventRepository struct {
	db *memDB
}

var _ repositories.EventRepository = (*fakeEventRepository)(nil)

func (r *fakeEventRepository) LockSeed(_ context.Context) error {
	if r.db.txDepth == 0 {
		return errors.New("seed lock requires a transaction")
	}
	return nil
}

func (r *fakeEventRepository) CountSlots(_ context.Context) (int, error) {
	return len(r.db.slots), nil
}

func (r *fakeEventRepository) CreateWeekend(_ context.Context, weekend *models.EventWeekend) error {
	r.db.nextWeekend++
	weekend.ID = r.db.nextWeekend
	cp := *weekend
	r.db.weekends = append(r.db.weekends, &cp)
	return nil
}

func (r *fakeEventRepository) CreateSlot(_ context.Context, slot *models.EventSlot) error {
	r.db.nextSlot++
	slot.ID = r.db.nextSlot
	cp := *slot
	r.db.slots = append(r.db.slots, &cp)
	return nil
}

func (r *fakeEventRepository) ListWeekends(_ context.Context) ([]*models.EventWeekend, error) {
	result := append([]*models.EventWeekend(nil), r.db.weekends...)
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *fakeEventRepository) ListSlots(_ context.Context) ([]*models.EventSlot, error) {
	result := append([]*models.EventSlot(nil), r.db.slots...)
	sortSlots(result)
	return result, nil
}

func (r *fakeEventRepository) ListSlotsByWeekend(_ context.Context, weekendID int64) ([]*models.EventSlot, error) {
	var result []*models.EventSlot
	for _, s := range r.db.slots {
		if s.WeekendID == weekendID {
			result = append(result, s)
		}
	}
	sortSlots(result)
	return result, nil
}

func sortSlots(slots []*models.EventSlot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.WeekendID != b.WeekendID {
			return a.WeekendID < b.WeekendID
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.ID < b.ID
	})
}

type fakeAttendanceRepository struct {
	db *memDB
}

var _ repositories.AttendanceRepository = (*fakeAttendanceRepository)(nil)

func (r *fakeAttendanceRepository) write() error {
	r.db.attendanceWrites++
	if r.db.failAttendanceAt > 0 && r.db.attendanceWrites == r.db.failAttendanceAt {
		return errors.New("connection reset")
	}
	return nil
}

func (r *fakeAttendanceRepository) MarkPresent(_ context.Context, personID, slotID int64) error {
	if err := r.write(); err != nil {
		return err
	}
	key := models.SlotKey{PersonID: personID, SlotID: slotID}
	r.db.attendance[key] = &models.PersonAttendance{PersonID: personID, SlotID: slotID, Present: true}
	return nil
}

func (r *fakeAttendanceRepository) Clear(_ context.Context, personID, slotID int64) error {
	if err := r.write(); err != nil {
		return err
	}
	delete(r.db.attendance, models.SlotKey{PersonID: personID, SlotID: slotID})
	return nil
}

func (r *fakeAttendanceRepository) GetPresentByPersons(_ context.Context, personIDs []int64) ([]*models.PersonAttendance, error) {
	want := make(map[int64]bool, len(personIDs))
	for _, id := range personIDs {
		want[id] = true
	}
	return r.filter(func(a *models.PersonAttendance) bool { return want[a.PersonID] }), nil
}

func (r *fakeAttendanceRepository) GetPresentExcluding(_ context.Context, personIDs []int64) ([]*models.PersonAttendance, error) {
	skip := make(map[int64]bool, len(personIDs))
	for _, id := range personIDs {
		skip[id] = true
	}
	return r.filter(func(a *models.PersonAttendance) bool { return !skip[a.PersonID] }), nil
}

func (r *fakeAttendanceRepository) CountPresentBySlot(_ context.Context) (map[int64]int, error) {
	totals := make(map[int64]int)
	for _, a := range r.db.attendance {
		if a.Present {
			totals[a.SlotID]++
		}
	}
	return totals, nil
}

func (r *fakeAttendanceRepository) filter(keep func(*models.PersonAttendance) bool) []*models.PersonAttendance {
	var result []*models.PersonAttendance
	for _, a := range r.db.attendance {
		if a.Present && keep(a) {
			cp := *a
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].PersonID != result[j].PersonID {
			return result[i].PersonID < result[j].PersonID
		}
		return result[i].SlotID < result[j].SlotID
	})
	return result
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

// testEngine wires every service over one memDB.
type testEngine struct {
	db           *memDB
	people       PersonService
	relations    RelationshipService
	households   HouseholdService
	edits        HouseholdEditService
	calendar     CalendarService
	attendance   AttendanceService
	imports      ImportService
	outreach     OutreachService
	personRepo   *fakePersonRepository
	totalsClient *fakeTotalsCache
}

func newTestEngine() *testEngine {
	db := newMemDB()
	logger := zap.NewNop()

	personRepo := &fakePersonRepository{db: db}
	coupleRepo := &fakeCoupleRepository{db: db}
	linkRepo := &fakeParentChildRepository{db: db}
	eventRepo := &fakeEventRepository{db: db}
	attendanceRepo := &fakeAttendanceRepository{db: db}
	totals := newFakeTotalsCache()

	people := NewPersonService(personRepo, coupleRepo, linkRepo, db.inTx, logger)
	relations := NewRelationshipService(coupleRepo, linkRepo, logger)
	households := NewHouseholdService(personRepo, coupleRepo, linkRepo, logger)
	calendarSvc := NewCalendarService(eventRepo, db.inTx, logger)

	return &testEngine{
		db:           db,
		people:       people,
		relations:    relations,
		households:   households,
		edits:        NewHouseholdEditService(people, relations, db.inTx, nil, logger),
		calendar:     calendarSvc,
		attendance:   NewAttendanceService(attendanceRepo, personRepo, households, calendarSvc, totals, db.inTx, nil, logger),
		imports:      NewImportService(personRepo, people, relations, db.inTx, nil, logger),
		outreach:     NewOutreachService(personRepo, logger),
		personRepo:   personRepo,
		totalsClient: totals,
	}
}

// fakeTotalsCache is an in-memory cache.TotalsCache.
type fakeTotalsCache struct {
	totals        map[int64]int
	filled        bool
	generation    int64
	getErr        error
	invalidateErr error
	// beforeSet runs between the count and the generation check of Set.
	beforeSet   func()
	sets        int
	rejected    int
	invalidates int
}

func newFakeTotalsCache() *fakeTotalsCache {
	return &fakeTotalsCache{}
}

func (c *fakeTotalsCache) Get(_ context.Context) (map[int64]int, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	if !c.filled {
		return nil, false, nil
	}
	cp := make(map[int64]int, len(c.totals))
	for k, v := range c.totals {
		cp[k] = v
	}
	return cp, true, nil
}

func (c *fakeTotalsCache) Generation(_ context.Context) (int64, error) {
	return c.generation, nil
}

func (c *fakeTotalsCache) Set(_ context.Context, generation int64, totals map[int64]int) (bool, error) {
	if c.beforeSet != nil {
		hook := c.beforeSet
		c.beforeSet = nil
		hook()
	}
	if generation != c.generation {
		c.rejected++
		return false, nil
	}
	c.sets++
	c.totals = make(map[int64]int, len(totals))
	for k, v := range totals {
		c.totals[k] = v
	}
	c.filled = true
	return true, nil
}

func (c *fakeTotalsCache) Invalidate(_ context.Context) error {
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	c.invalidates++
	c.generation++
	c.totals = nil
	c.filled = false
	return nil
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func patch(id int64, first string) models.PersonPatch {
	p := models.PersonPatch{FirstName: strPtr(first)}
	if id != 0 {
		p.ID = int64Ptr(id)
	}
	return p
}
