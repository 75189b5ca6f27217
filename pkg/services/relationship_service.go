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

// RelationshipService maintains couples and parent-child links.
type RelationshipService interface {
	// LinkCouple records a couple between a and b, updating the status of an existing
	// couple in either orientation. An empty status means current.
	LinkCouple(ctx context.Context, a, b int64, status string) (*models.Couple, error)

	// LinkParentChild ensures the parent -> child link exists.
	// Returns false when it was already present.
	LinkParentChild(ctx context.Context, parentID, childID int64) (bool, error)

	CouplesOf(ctx context.Context, personID int64) ([]*models.Couple, error)
	ChildrenOf(ctx context.Context, personID int64) ([]*models.Person, error)
	ParentsOf(ctx context.Context, personID int64) ([]*models.Person, error)
}

type relationshipService struct {
	coupleRepo      repositories.CoupleRepository
	parentChildRepo repositories.ParentChildRepository
	logger          *zap.Logger
}

// NewRelationshipService creates a new RelationshipService.
func NewRelationshipService(
	coupleRepo repositories.CoupleRepository,
	parentChildRepo repositories.ParentChildRepository,
	logger *zap.Logger,
) RelationshipService {
	return &relationshipService{
		coupleRepo:      coupleRepo,
		parentChildRepo: parentChildRepo,
		logger:          logger.Named("relationship"),
	}
}

var _ RelationshipService = (*relationshipService)(nil)

func (s *relationshipService) LinkCouple(ctx context.Context, a, b int64, status string) (*models.Couple, error) {
	if a <= 0 || b <= 0 {
		return nil, fmt.Errorf("couple %d-%d: person ids must be positive: %w", a, b, apperrors.ErrInvalidInput)
	}
	if a == b {
		return nil, fmt.Errorf("person %d cannot be coupled with themselves: %w", a, apperrors.ErrInvalidInput)
	}
	normalized, ok := models.NormalizeCoupleStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown couple status %q: %w", status, apperrors.ErrInvalidInput)
	}

	existing, err := s.coupleRepo.GetByPair(ctx, a, b)
	switch {
	case err == nil:
		if existing.Status != normalized {
			if err := s.coupleRepo.UpdateStatus(ctx, existing.ID, normalized); err != nil {
				return nil, err
			}
			s.logger.Debug("Updated couple status",
				zap.Int64("couple_id", existing.ID),
				zap.String("from", existing.Status),
				zap.String("to", normalized))
			existing.Status = normalized
		}
		return existing, nil
	case errors.Is(err, apperrors.ErrNotFound):
		couple := &models.Couple{PartnerAID: a, PartnerBID: b, Status: normalized}
		if err := s.coupleRepo.Create(ctx, couple); err != nil {
			return nil, err
		}
		return couple, nil
	default:
		return nil, err
	}
}

func (s *relationshipService) LinkParentChild(ctx context.Context, parentID, childID int64) (bool, error) {
	if parentID <= 0 || childID <= 0 {
		return false, fmt.Errorf("link %d->%d: person ids must be positive: %w", parentID, childID, apperrors.ErrInvalidInput)
	}
	if parentID == childID {
		return false, fmt.Errorf("person %d cannot be their own parent: %w", parentID, apperrors.ErrInvalidInput)
	}

	created, err := s.parentChildRepo.Create(ctx, &models.ParentChild{ParentID: parentID, ChildID: childID})
	if err != nil {
		return false, err
	}
	if !created {
		s.logger.Debug("Parent-child link already present",
			zap.Int64("parent_id", parentID),
			zap.Int64("child_id", childID))
	}
	return created, nil
}

func (s *relationshipService) CouplesOf(ctx context.Context, personID int64) ([]*models.Couple, error) {
	return s.coupleRepo.GetByPerson(ctx, personID)
}

func (s *relationshipService) ChildrenOf(ctx context.Context, personID int64) ([]*models.Person, error) {
	return s.parentChildRepo.GetChildren(ctx, personID)
}

func (s *relationshipService) ParentsOf(ctx context.Context, personID int64) ([]*models.Person, error) {
	return s.parentChildRepo.GetParents(ctx, personID)
}
