//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/testhelpers"
)

// personTestContext holds test dependencies for person repository tests.
type personTestContext struct {
	t    *testing.T
	ctx  context.Context
	repo PersonRepository
}

func setupPersonTest(t *testing.T) *personTestContext {
	engineDB := testhelpers.GetEngineDB(t)
	engineDB.Reset(t)

	return &personTestContext{
		t:    t,
		ctx:  engineDB.ScopedContext(t),
		repo: NewPersonRepository(),
	}
}

func (tc *personTestContext) create(first, last string, email *string) *models.Person {
	tc.t.Helper()
	p := &models.Person{FirstName: first, LastName: last, Email: email}
	if err := tc.repo.Create(tc.ctx, p); err != nil {
		tc.t.Fatalf("failed to create person: %v", err)
	}
	return p
}

func strPtr(s string) *string { return &s }

func TestPersonRepository_CreateAndGet(t *testing.T) {
	tc := setupPersonTest(t)

	birth := time.Date(1985, 6, 1, 0, 0, 0, 0, time.UTC)
	p := &models.Person{
		FirstName: "Claire",
		LastName:  "Dupont",
		BirthDate: &birth,
		City:      strPtr("Nantes"),
		Branch:    strPtr("Dupont"),
	}
	if err := tc.repo.Create(tc.ctx, p); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if p.ID <= 0 {
		t.Fatalf("expected generated id, got %d", p.ID)
	}

	got, err := tc.repo.GetByID(tc.ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FirstName != "Claire" || got.LastName != "Dupont" {
		t.Errorf("unexpected names: %q %q", got.FirstName, got.LastName)
	}
	if got.BirthDateString() != "1985-06-01" {
		t.Errorf("expected birth date 1985-06-01, got %q", got.BirthDateString())
	}
	if got.City == nil || *got.City != "Nantes" {
		t.Errorf("expected city Nantes, got %v", got.City)
	}
}

func TestPersonRepository_GetByID_NotFound(t *testing.T) {
	tc := setupPersonTest(t)

	_, err := tc.repo.GetByID(tc.ctx, 999)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonRepository_CreateAnchored(t *testing.T) {
	tc := setupPersonTest(t)

	anchored := &models.Person{ID: 50, FirstName: "Anchored"}
	if err := tc.repo.Create(tc.ctx, anchored); err != nil {
		t.Fatalf("Create anchored failed: %v", err)
	}

	got, err := tc.repo.GetByID(tc.ctx, 50)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FirstName != "Anchored" {
		t.Errorf("expected anchored row, got %q", got.FirstName)
	}

	// generated ids continue after the anchored one
	next := tc.create("Next", "", nil)
	if next.ID <= 50 {
		t.Errorf("expected generated id above 50, got %d", next.ID)
	}

	dup := &models.Person{ID: 50, FirstName: "Again"}
	if err := tc.repo.Create(tc.ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict for a taken id, got %v", err)
	}
}

func TestPersonRepository_Update(t *testing.T) {
	tc := setupPersonTest(t)

	p := tc.create("Paul", "Martin", nil)
	p.Phone = strPtr("0611223344")
	if err := tc.repo.Update(tc.ctx, p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := tc.repo.GetByID(tc.ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Phone == nil || *got.Phone != "0611223344" {
		t.Errorf("expected phone to be updated, got %v", got.Phone)
	}

	missing := &models.Person{ID: 12345}
	if err := tc.repo.Update(tc.ctx, missing); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing person, got %v", err)
	}
}

func TestPersonRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	tc := setupPersonTest(t)

	p := tc.create("Lea", "Roux", strPtr("Lea.Roux@Example.com"))

	got, err := tc.repo.GetByEmail(tc.ctx, "  lea.roux@example.COM ")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("expected person %d, got %d", p.ID, got.ID)
	}

	if _, err := tc.repo.GetByEmail(tc.ctx, "nobody@example.com"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonRepository_Search(t *testing.T) {
	tc := setupPersonTest(t)

	tc.create("Zoe", "Bernard", nil)
	tc.create("Adam", "Bernard", nil)
	tc.create("Hugo", "Arnaud", nil)

	all, err := tc.repo.Search(tc.ctx, "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 people, got %d", len(all))
	}
	want := []string{"Hugo", "Adam", "Zoe"}
	for i, p := range all {
		if p.FirstName != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.FirstName)
		}
	}

	matches, err := tc.repo.Search(tc.ctx, "bern")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches for 'bern', got %d", len(matches))
	}

	none, err := tc.repo.Search(tc.ctx, "%")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected literal %% to match nothing, got %d", len(none))
	}
}

func TestPersonRepository_FindMatch_NullSafe(t *testing.T) {
	tc := setupPersonTest(t)

	withEmail := &models.Person{FirstName: "Marc", Branch: strPtr("Leroy"), Email: strPtr("marc@example.com")}
	if err := tc.repo.Create(tc.ctx, withEmail); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	noEmail := &models.Person{FirstName: "Marc", Branch: strPtr("Leroy")}
	if err := tc.repo.Create(tc.ctx, noEmail); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := tc.repo.FindMatch(tc.ctx, &models.PersonMatch{FirstName: "Marc", Branch: strPtr("Leroy")})
	if err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if got.ID != noEmail.ID {
		t.Errorf("expected NULL email to match person %d, got %d", noEmail.ID, got.ID)
	}

	got, err = tc.repo.FindMatch(tc.ctx, &models.PersonMatch{
		FirstName: "Marc", Branch: strPtr("Leroy"), Email: strPtr("marc@example.com"),
	})
	if err != nil {
		t.Fatalf("FindMatch failed: %v", err)
	}
	if got.ID != withEmail.ID {
		t.Errorf("expected person %d, got %d", withEmail.ID, got.ID)
	}

	_, err = tc.repo.FindMatch(tc.ctx, &models.PersonMatch{FirstName: "Marc"})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for NULL branch, got %v", err)
	}
}

func TestPersonRepository_ListWithEmailAndGetByIDs(t *testing.T) {
	tc := setupPersonTest(t)

	a := tc.create("A", "", strPtr("a@example.com"))
	tc.create("B", "", strPtr("  "))
	c := tc.create("C", "", nil)

	withEmail, err := tc.repo.ListWithEmail(tc.ctx)
	if err != nil {
		t.Fatalf("ListWithEmail failed: %v", err)
	}
	if len(withEmail) != 1 || withEmail[0].ID != a.ID {
		t.Errorf("expected only person %d, got %+v", a.ID, withEmail)
	}

	people, err := tc.repo.GetByIDs(tc.ctx, []int64{c.ID, a.ID, 999})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(people) != 2 || people[0].ID != a.ID || people[1].ID != c.ID {
		t.Errorf("expected people [%d %d] ordered by id, got %+v", a.ID, c.ID, people)
	}
}
