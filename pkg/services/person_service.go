package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// PersonService owns the identity lifecycle of people.
type PersonService interface {
	// FindByID returns the person or apperrors.ErrNotFound.
	FindByID(ctx context.Context, id int64) (*models.Person, error)

	// FindByEmail looks a person up by e-mail, case-insensitively.
	FindByEmail(ctx context.Context, email string) (*models.Person, error)

	// Search matches pattern against first and last names. An empty pattern lists everyone.
	Search(ctx context.Context, pattern string) ([]*models.Person, error)

	// Upsert creates or updates a person from patch. For new people the assigned id
	// is written back into patch.ID.
	Upsert(ctx context.Context, patch *models.PersonPatch) (*models.Person, error)

	// MemberCard returns a person with all partners, children and parents.
	MemberCard(ctx context.Context, id int64) (*MemberCard, error)
}

// MemberCard is the full relationship view of one person.
type MemberCard struct {
	Person   *models.Person
	Partners []*Partner
	Children []*models.Person
	Parents  []*models.Person
}

// Partner is a person seen through a couple, with the couple's status.
type Partner struct {
	Person   *models.Person
	CoupleID int64
	Status   string
}

type personService struct {
	personRepo      repositories.PersonRepository
	coupleRepo      repositories.CoupleRepository
	parentChildRepo repositories.ParentChildRepository
	inTx            TxFunc
	logger          *zap.Logger
}

// NewPersonService creates a new PersonService.
func NewPersonService(
	personRepo repositories.PersonRepository,
	coupleRepo repositories.CoupleRepository,
	parentChildRepo repositories.ParentChildRepository,
	inTx TxFunc,
	logger *zap.Logger,
) PersonService {
	return &personService{
		personRepo:      personRepo,
		coupleRepo:      coupleRepo,
		parentChildRepo: parentChildRepo,
		inTx:            inTx,
		logger:          logger.Named("person"),
	}
}

var _ PersonService = (*personService)(nil)

func (s *personService) FindByID(ctx context.Context, id int64) (*models.Person, error) {
	return s.personRepo.GetByID(ctx, id)
}

func (s *personService) FindByEmail(ctx context.Context, email string) (*models.Person, error) {
	return s.personRepo.GetByEmail(ctx, email)
}

func (s *personService) Search(ctx context.Context, pattern string) ([]*models.Person, error) {
	return s.personRepo.Search(ctx, pattern)
}

func (s *personService) Upsert(ctx context.Context, patch *models.PersonPatch) (*models.Person, error) {
	if patch == nil {
		return nil, fmt.Errorf("nil person patch: %w", apperrors.ErrInvalidInput)
	}

	var person *models.Person
	err := s.inTx(ctx, func(ctx context.Context) error {
		if patch.IsNew() {
			person = &models.Person{}
			s.apply(person, patch)
			if err := s.personRepo.Create(ctx, person); err != nil {
				return err
			}
			id := person.ID
			patch.ID = &id
			return nil
		}

		existing, err := s.personRepo.GetByID(ctx, *patch.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			// unknown positive ids become the identity of a new row
			person = &models.Person{ID: *patch.ID}
			s.apply(person, patch)
			return s.personRepo.Create(ctx, person)
		}
		if err != nil {
			return err
		}

		person = existing
		s.apply(person, patch)
		return s.personRepo.Update(ctx, person)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert person: %w", err)
	}
	return person, nil
}

func (s *personService) apply(person *models.Person, patch *models.PersonPatch) {
	for _, field := range models.ApplyPatch(person, patch) {
		s.logger.Debug("Ignoring malformed field",
			zap.Int64("person_id", person.ID),
			zap.String("field", field))
	}
}

func (s *personService) MemberCard(ctx context.Context, id int64) (*MemberCard, error) {
	person, err := s.personRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	couples, err := s.coupleRepo.GetByPerson(ctx, id)
	if err != nil {
		return nil, err
	}

	partnerIDs := make([]int64, 0, len(couples))
	for _, c := range couples {
		partnerIDs = append(partnerIDs, c.PartnerOf(id))
	}
	partnerPeople, err := s.personRepo.GetByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}
	byID := indexPeople(partnerPeople)

	card := &MemberCard{Person: person}
	for _, c := range couples {
		p, ok := byID[c.PartnerOf(id)]
		if !ok {
			continue
		}
		card.Partners = append(card.Partners, &Partner{Person: p, CoupleID: c.ID, Status: c.Status})
	}

	if card.Children, err = s.parentChildRepo.GetChildren(ctx, id); err != nil {
		return nil, err
	}
	if card.Parents, err = s.parentChildRepo.GetParents(ctx, id); err != nil {
		return nil, err
	}
	return card, nil
}

func indexPeople(people []*models.Person) map[int64]*models.Person {
	m := make(map[int64]*models.Person, len(people))
	for _, p := range people {
		m[p.ID] = p
	}
	return m
}
