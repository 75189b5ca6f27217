package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// HouseholdService derives the set of people answering together for attendance.
type HouseholdService interface {
	// Household returns the person first, then current partners in couple order,
	// then direct children in link order, each person once.
	Household(ctx context.Context, personID int64) ([]*models.Person, error)
}

type householdService struct {
	personRepo      repositories.PersonRepository
	coupleRepo      repositories.CoupleRepository
	parentChildRepo repositories.ParentChildRepository
	logger          *zap.Logger
}

// NewHouseholdService creates a new HouseholdService.
func NewHouseholdService(
	personRepo repositories.PersonRepository,
	coupleRepo repositories.CoupleRepository,
	parentChildRepo repositories.ParentChildRepository,
	logger *zap.Logger,
) HouseholdService {
	return &householdService{
		personRepo:      personRepo,
		coupleRepo:      coupleRepo,
		parentChildRepo: parentChildRepo,
		logger:          logger.Named("household"),
	}
}

var _ HouseholdService = (*householdService)(nil)

func (s *householdService) Household(ctx context.Context, personID int64) ([]*models.Person, error) {
	person, err := s.personRepo.GetByID(ctx, personID)
	if err != nil {
		return nil, err
	}

	couples, err := s.coupleRepo.GetByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}

	var partnerIDs []int64
	for _, c := range couples {
		if c.IsCurrent() {
			partnerIDs = append(partnerIDs, c.PartnerOf(personID))
		}
	}
	partners, err := s.personRepo.GetByIDs(ctx, partnerIDs)
	if err != nil {
		return nil, err
	}

	children, err := s.parentChildRepo.GetChildren(ctx, personID)
	if err != nil {
		return nil, err
	}

	return BuildHousehold(person, couples, indexPeople(partners), children), nil
}

// BuildHousehold orders a household: subject, partners of current couples in the order
// of couples, then children in the given order. Duplicates keep their first position.
func BuildHousehold(subject *models.Person, couples []*models.Couple, partners map[int64]*models.Person, children []*models.Person) []*models.Person {
	seen := map[int64]bool{subject.ID: true}
	household := []*models.Person{subject}

	add := func(p *models.Person) {
		if p == nil || seen[p.ID] {
			return
		}
		seen[p.ID] = true
		household = append(household, p)
	}

	for _, c := range couples {
		if !c.IsCurrent() {
			continue
		}
		add(partners[c.PartnerOf(subject.ID)])
	}
	for _, child := range children {
		add(child)
	}
	return household
}

func personIDs(people []*models.Person) []int64 {
	ids := make([]int64, 0, len(people))
	for _, p := range people {
		ids = append(ids, p.ID)
	}
	return ids
}
