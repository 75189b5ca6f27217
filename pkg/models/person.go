package models

import (
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used for birth dates and event dates.
const DateLayout = "2006-01-02"

// Person is one member of the family registry. Stored in the members table.
// People are created on first reference and never deleted.
type Person struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	BirthDate  *time.Time `json:"-"`
	Email      *string    `json:"email,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Address    *string    `json:"address,omitempty"`
	PostalCode *string    `json:"postal_code,omitempty"`
	City       *string    `json:"city,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Branch     *string    `json:"branch,omitempty"` // family branch or ancestor line
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// BirthDateString returns the birth date formatted as YYYY-MM-DD, or "" when unknown.
func (p *Person) BirthDateString() string {
	if p.BirthDate == nil {
		return ""
	}
	return p.BirthDate.Format(DateLayout)
}

// FullName joins first and last name.
func (p *Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PersonPatch carries a partial person update. Nil fields are left untouched.
//
// ID semantics: nil, zero or negative means "new person" (negative values are
// temporary ids chosen by the caller for cross-referencing within one edit batch);
// a positive value targets an existing person, or anchors a new row at that id.
type PersonPatch struct {
	ID         *int64  `json:"id,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	BirthDate  *string `json:"birth_date,omitempty"` // YYYY-MM-DD
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Address    *string `json:"address,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	City       *string `json:"city,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Branch     *string `json:"branch,omitempty"`
}

// IsNew reports whether the patch describes a person that does not exist yet.
func (p *PersonPatch) IsNew() bool {
	return p.ID == nil || *p.ID <= 0
}

// RefID returns the caller-side id of the patch (0 when absent).
func (p *PersonPatch) RefID() int64 {
	if p.ID == nil {
		return 0
	}
	return *p.ID
}

// ApplyPatch merges patch into person: every non-nil field that is non-empty after
// trimming overwrites the stored value; nil or blank fields leave it untouched.
// A birth date that is not a valid YYYY-MM-DD date is ignored. The names of ignored
// malformed fields are returned so callers can log them.
func ApplyPatch(person *Person, patch *PersonPatch) []string {
	var ignored []string

	if v, ok := trimmed(patch.FirstName); ok {
		person.FirstName = v
	}
	if v, ok := trimmed(patch.LastName); ok {
		person.LastName = v
	}
	if v, ok := trimmed(patch.BirthDate); ok {
		if d, err := time.Parse(DateLayout, v); err == nil {
			person.BirthDate = &d
		} else {
			ignored = append(ignored, "birth_date")
		}
	}

	mergeOptional(&person.Email, patch.Email)
	mergeOptional(&person.Phone, patch.Phone)
	mergeOptional(&person.Address, patch.Address)
	mergeOptional(&person.PostalCode, patch.PostalCode)
	mergeOptional(&person.City, patch.City)
	mergeOptional(&person.Notes, patch.Notes)
	mergeOptional(&person.Branch, patch.Branch)

	return ignored
}

func trimmed(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}

func mergeOptional(dst **string, src *string) {
	if v, ok := trimmed(src); ok {
		*dst = &v
	}
}

// FillEmpty narrows patch to the fields person does not have yet. Names are
// never replaced; the result targets person.ID.
func FillEmpty(person *Person, patch *PersonPatch) *PersonPatch {
	id := person.ID
	fill := &PersonPatch{ID: &id}

	if person.BirthDate == nil {
		fill.BirthDate = patch.BirthDate
	}
	fill.Email = unlessSet(person.Email, patch.Email)
	fill.Phone = unlessSet(person.Phone, patch.Phone)
	fill.Address = unlessSet(person.Address, patch.Address)
	fill.PostalCode = unlessSet(person.PostalCode, patch.PostalCode)
	fill.City = unlessSet(person.City, patch.City)
	fill.Notes = unlessSet(person.Notes, patch.Notes)
	fill.Branch = unlessSet(person.Branch, patch.Branch)
	return fill
}

func unlessSet(current, v *string) *string {
	if _, ok := trimmed(current); ok {
		return nil
	}
	return v
}
