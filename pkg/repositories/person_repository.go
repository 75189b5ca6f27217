package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/database"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// PersonRepository provides data access for people (the members table).
type PersonRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Person, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Person, error)
	GetByEmail(ctx context.Context, email string) (*models.Person, error)
	Search(ctx context.Context, pattern string) ([]*models.Person, error)
	FindMatch(ctx context.Context, match *models.PersonMatch) (*models.Person, error)
	ListWithEmail(ctx context.Context) ([]*models.Person, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
}

type personRepository struct{}

// NewPersonRepository creates a new PersonRepository.
func NewPersonRepository() PersonRepository {
	return &personRepository{}
}

var _ PersonRepository = (*personRepository)(nil)

const personColumns = `
		m.id, m.first_name, m.last_name, m.birth_date, m.email, m.phone,
		m.address, m.postal_code, m.city, m.notes, m.family_branch,
		m.created_at, m.updated_at`

func (r *personRepository) GetByID(ctx context.Context, id int64) (*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + ` FROM members m WHERE m.id = $1`

	person, err := scanPerson(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("person %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return person, nil
}

// GetByIDs returns the people with the given ids ordered by id. Unknown ids are skipped.
func (r *personRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + ` FROM members m WHERE m.id = ANY($1) ORDER BY m.id`

	rows, err := scope.Conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query people by ids: %w", err)
	}
	return collectPeople(rows)
}

// GetByEmail looks a person up by e-mail, ignoring case and surrounding spaces.
// When several people share the address the lowest id wins.
func (r *personRepository) GetByEmail(ctx context.Context, email string) (*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("empty email: %w", apperrors.ErrNotFound)
	}

	query := `SELECT` + personColumns + `
		FROM members m
		WHERE lower(m.email) = $1
		ORDER BY m.id
		LIMIT 1`

	person, err := scanPerson(scope.Conn.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("person with email: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}
	return person, nil
}

func (r *personRepository) Search(ctx context.Context, pattern string) ([]*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + `
		FROM members m
		WHERE $1 = '' OR m.first_name ILIKE '%' || $1 || '%' OR m.last_name ILIKE '%' || $1 || '%'
		ORDER BY m.last_name, m.first_name, m.id`

	rows, err := scope.Conn.Query(ctx, query, escapeLike(strings.TrimSpace(pattern)))
	if err != nil {
		return nil, fmt.Errorf("failed to search people: %w", err)
	}
	return collectPeople(rows)
}

// FindMatch returns the lowest-id person whose first name, branch, email and phone all
// equal the match tuple, NULL matching NULL.
func (r *personRepository) FindMatch(ctx context.Context, match *models.PersonMatch) (*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + `
		FROM members m
		WHERE m.first_name = $1
		  AND m.family_branch IS NOT DISTINCT FROM $2
		  AND m.email IS NOT DISTINCT FROM $3
		  AND m.phone IS NOT DISTINCT FROM $4
		ORDER BY m.id
		LIMIT 1`

	person, err := scanPerson(scope.Conn.QueryRow(ctx, query,
		match.FirstName, match.Branch, match.Email, match.Phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("matching person: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}
	return person, nil
}

// ListWithEmail returns everyone with a non-blank e-mail, ordered by id.
func (r *personRepository) ListWithEmail(ctx context.Context) ([]*models.Person, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	query := `SELECT` + personColumns + `
		FROM members m
		WHERE m.email IS NOT NULL AND btrim(m.email) <> ''
		ORDER BY m.id`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list people with email: %w", err)
	}
	return collectPeople(rows)
}

// Create inserts person. A positive person.ID anchors the row at that id and moves the
// identity sequence past it; otherwise the database assigns the id.
func (r *personRepository) Create(ctx context.Context, person *models.Person) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	now := time.Now()
	person.CreatedAt = now
	person.UpdatedAt = now

	args := []any{
		person.FirstName, person.LastName, person.BirthDate, person.Email, person.Phone,
		person.Address, person.PostalCode, person.City, person.Notes, person.Branch,
		person.CreatedAt, person.UpdatedAt,
	}

	if person.ID <= 0 {
		query := `
			INSERT INTO members (
				first_name, last_name, birth_date, email, phone,
				address, postal_code, city, notes, family_branch,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`

		if err := scope.Conn.QueryRow(ctx, query, args...).Scan(&person.ID); err != nil {
			return fmt.Errorf("failed to create person: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO members (
			id, first_name, last_name, birth_date, email, phone,
			address, postal_code, city, notes, family_branch,
			created_at, updated_at
		) VALUES ($13, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	if _, err := scope.Conn.Exec(ctx, query, append(args, person.ID)...); err != nil {
		if hasPgCode(err, pgUniqueViolation) {
			return fmt.Errorf("person %d already exists: %w", person.ID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create person %d: %w", person.ID, err)
	}

	// keep generated ids clear of explicitly anchored ones
	_, err := scope.Conn.Exec(ctx, `
		SELECT setval(pg_get_serial_sequence('members', 'id'),
		              GREATEST((SELECT MAX(id) FROM members), 1))`)
	if err != nil {
		return fmt.Errorf("failed to advance member id sequence: %w", err)
	}
	return nil
}

func (r *personRepository) Update(ctx context.Context, person *models.Person) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	person.UpdatedAt = time.Now()

	query := `
		UPDATE members SET
			first_name = $2, last_name = $3, birth_date = $4, email = $5, phone = $6,
			address = $7, postal_code = $8, city = $9, notes = $10, family_branch = $11,
			updated_at = $12
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query,
		person.ID, person.FirstName, person.LastName, person.BirthDate, person.Email, person.Phone,
		person.Address, person.PostalCode, person.City, person.Notes, person.Branch,
		person.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update person %d: %w", person.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %d: %w", person.ID, apperrors.ErrNotFound)
	}
	return nil
}

func scanPerson(row pgx.Row) (*models.Person, error) {
	var p models.Person
	var birthDate *time.Time

	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &birthDate, &p.Email, &p.Phone,
		&p.Address, &p.PostalCode, &p.City, &p.Notes, &p.Branch,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}

	if birthDate != nil {
		d := time.Date(birthDate.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC)
		p.BirthDate = &d
	}
	return &p, nil
}

func collectPeople(rows pgx.Rows) ([]*models.Person, error) {
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating people: %w", err)
	}
	return people, nil
}

// escapeLike escapes ILIKE wildcards so the pattern is matched literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
