package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/metrics"
	"github.com/cousinade/cousinade-engine/pkg/models"
)

// HouseholdEditService applies household edit batches to the family graph.
type HouseholdEditService interface {
	// Apply upserts the owner, partners and children of edit, links the owner to each
	// partner, then creates the requested parent-child links, all in one transaction.
	Apply(ctx context.Context, edit *models.HouseholdEdit) (*models.HouseholdEditResult, error)
}

type householdEditService struct {
	personSvc       PersonService
	relationshipSvc RelationshipService
	inTx            TxFunc
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

// NewHouseholdEditService creates a new HouseholdEditService.
func NewHouseholdEditService(
	personSvc PersonService,
	relationshipSvc RelationshipService,
	inTx TxFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) HouseholdEditService {
	return &householdEditService{
		personSvc:       personSvc,
		relationshipSvc: relationshipSvc,
		inTx:            inTx,
		metrics:         m,
		logger:          logger.Named("household-edit"),
	}
}

var _ HouseholdEditService = (*householdEditService)(nil)

// editRefs resolves the ids used inside one edit batch to real person ids.
type editRefs struct {
	ownerRef int64
	ownerID  int64
	partners map[int64]int64
	children map[int64]int64
}

// resolve maps a batch reference to a person id. The owner's own reference resolves to
// the owner; negative references are looked up among partners, then children; positive
// references are existing ids.
func (r *editRefs) resolve(ref int64) (int64, bool) {
	if ref == r.ownerRef && ref != 0 {
		return r.ownerID, true
	}
	if ref < 0 {
		if id, ok := r.partners[ref]; ok {
			return id, true
		}
		if id, ok := r.children[ref]; ok {
			return id, true
		}
		return 0, false
	}
	return ref, ref > 0
}

func (s *householdEditService) Apply(ctx context.Context, edit *models.HouseholdEdit) (*models.HouseholdEditResult, error) {
	if edit == nil {
		return nil, fmt.Errorf("empty household edit: %w", apperrors.ErrInvalidInput)
	}

	var result *models.HouseholdEditResult
	err := s.inTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.apply(ctx, edit)
		return err
	})
	if err != nil {
		s.metrics.HouseholdEdit("error", 0)
		return nil, err
	}

	s.metrics.HouseholdEdit("ok", result.ParentFallbacks)
	s.logger.Info("Applied household edit",
		zap.Int64("owner_id", result.OwnerID),
		zap.Int("partners", len(edit.Partners)),
		zap.Int("children", len(edit.Children)),
		zap.Int("links_created", result.LinksCreated),
		zap.Int("parent_fallbacks", result.ParentFallbacks))
	return result, nil
}

func (s *householdEditService) apply(ctx context.Context, edit *models.HouseholdEdit) (*models.HouseholdEditResult, error) {
	result := &models.HouseholdEditResult{IDMap: make(map[int64]int64)}
	refs := &editRefs{
		ownerRef: edit.OwnerRef,
		partners: make(map[int64]int64),
		children: make(map[int64]int64),
	}
	if refs.ownerRef == 0 {
		refs.ownerRef = edit.Owner.RefID()
	}

	owner, err := s.personSvc.Upsert(ctx, &edit.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	refs.ownerID = owner.ID
	result.OwnerID = owner.ID
	if refs.ownerRef < 0 {
		result.IDMap[refs.ownerRef] = owner.ID
	}

	partnerIDs := make([]int64, len(edit.Partners))
	for i := range edit.Partners {
		patch := &edit.Partners[i].PersonPatch
		ref := patch.RefID()
		partner, err := s.personSvc.Upsert(ctx, patch)
		if err != nil {
			return nil, fmt.Errorf("partner %d: %w", i, err)
		}
		partnerIDs[i] = partner.ID
		if ref < 0 {
			refs.partners[ref] = partner.ID
			result.IDMap[ref] = partner.ID
		}
	}

	for i := range edit.Children {
		patch := &edit.Children[i]
		ref := patch.RefID()
		child, err := s.personSvc.Upsert(ctx, patch)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		if ref < 0 {
			refs.children[ref] = child.ID
			result.IDMap[ref] = child.ID
		}
	}

	for i, partnerID := range partnerIDs {
		if _, err := s.relationshipSvc.LinkCouple(ctx, owner.ID, partnerID, edit.Partners[i].CoupleStatus); err != nil {
			return nil, fmt.Errorf("partner %d: %w", i, err)
		}
	}

	for _, link := range edit.ParentChild {
		parentID, ok := refs.resolve(link.ParentID)
		if !ok {
			parentID = s.parentFallbackOwner(link, owner.ID)
			result.ParentFallbacks++
		}

		childID, ok := refs.resolve(link.ChildID)
		if !ok {
			return nil, fmt.Errorf("child reference %d: %w", link.ChildID, apperrors.ErrUnresolvedReference)
		}

		created, err := s.relationshipSvc.LinkParentChild(ctx, parentID, childID)
		if err != nil {
			return nil, fmt.Errorf("link %d->%d: %w", link.ParentID, link.ChildID, err)
		}
		if created {
			result.LinksCreated++
		}
	}

	return result, nil
}

// parentFallbackOwner attributes a link whose parent reference matches nobody in the
// batch to the household owner.
func (s *householdEditService) parentFallbackOwner(link models.ParentChildRef, ownerID int64) int64 {
	s.logger.Warn("Unresolved parent reference, attributing link to owner",
		zap.Int64("parent_ref", link.ParentID),
		zap.Int64("child_ref", link.ChildID),
		zap.Int64("owner_id", ownerID))
	return ownerID
}
