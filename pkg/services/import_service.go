package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/apperrors"
	"github.com/cousinade/cousinade-engine/pkg/metrics"
	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// frenchDateLayout is the alternate birth date format accepted on import.
const frenchDateLayout = "02/01/2006"

// ImportService loads a family tree from ordered import rows.
type ImportService interface {
	// Import processes rows in order inside one transaction. A member row opens a new
	// line; partner and child rows attach to the current member; child_partner and
	// grandchild rows attach to the current child.
	Import(ctx context.Context, rows []models.ImportRow) (*models.ImportResult, error)
}

type importService struct {
	personRepo      repositories.PersonRepository
	personSvc       PersonService
	relationshipSvc RelationshipService
	inTx            TxFunc
	metrics         *metrics.Metrics
	logger          *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(
	personRepo repositories.PersonRepository,
	personSvc PersonService,
	relationshipSvc RelationshipService,
	inTx TxFunc,
	m *metrics.Metrics,
	logger *zap.Logger,
) ImportService {
	return &importService{
		personRepo:      personRepo,
		personSvc:       personSvc,
		relationshipSvc: relationshipSvc,
		inTx:            inTx,
		metrics:         m,
		logger:          logger.Named("import"),
	}
}

var _ ImportService = (*importService)(nil)

// importCursor tracks the people later rows attach to.
type importCursor struct {
	member        int64
	memberPartner int64
	child         int64
	childPartner  int64
}

func (s *importService) Import(ctx context.Context, rows []models.ImportRow) (*models.ImportResult, error) {
	result := &models.ImportResult{}
	err := s.inTx(ctx, func(ctx context.Context) error {
		cur := &importCursor{}
		for i := range rows {
			if err := s.importRow(ctx, &rows[i], cur, result); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			result.Rows++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import rows: %w", err)
	}

	for i := range rows {
		s.metrics.ImportRow(rows[i].Kind)
	}
	s.logger.Info("Imported family rows",
		zap.Int("rows", result.Rows),
		zap.Int("created", result.Created),
		zap.Int("matched", result.Matched),
		zap.Int("couples", result.Couples),
		zap.Int("parent_links", result.ParentLinks))
	return result, nil
}

func (s *importService) importRow(ctx context.Context, row *models.ImportRow, cur *importCursor, result *models.ImportResult) error {
	kind := strings.TrimSpace(row.Kind)
	switch kind {
	case models.ImportKindMember:
	case models.ImportKindPartner, models.ImportKindChild:
		if cur.member == 0 {
			return fmt.Errorf("%s row without a preceding member: %w", kind, apperrors.ErrInvalidInput)
		}
	case models.ImportKindChildPartner, models.ImportKindGrandchild:
		if cur.child == 0 {
			return fmt.Errorf("%s row without a preceding child: %w", kind, apperrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("unknown row kind %q: %w", row.Kind, apperrors.ErrInvalidInput)
	}

	id, err := s.upsertRow(ctx, row, result)
	if err != nil {
		return err
	}

	switch kind {
	case models.ImportKindMember:
		*cur = importCursor{member: id}
	case models.ImportKindPartner:
		if err := s.couple(ctx, cur.member, id, result); err != nil {
			return err
		}
		cur.memberPartner = id
	case models.ImportKindChild:
		if err := s.parents(ctx, id, result, cur.member, cur.memberPartner); err != nil {
			return err
		}
		cur.child, cur.childPartner = id, 0
	case models.ImportKindChildPartner:
		if err := s.couple(ctx, cur.child, id, result); err != nil {
			return err
		}
		cur.childPartner = id
	case models.ImportKindGrandchild:
		if err := s.parents(ctx, id, result, cur.child, cur.childPartner); err != nil {
			return err
		}
	}
	return nil
}

// upsertRow matches the row to an existing person and fills its empty fields, or
// creates a new person from the row.
func (s *importService) upsertRow(ctx context.Context, row *models.ImportRow, result *models.ImportResult) (int64, error) {
	firstName := strings.TrimSpace(row.FirstName)
	if firstName == "" {
		return 0, fmt.Errorf("first name is required: %w", apperrors.ErrInvalidInput)
	}

	patch := &models.PersonPatch{
		FirstName: &firstName,
		LastName:  optional(row.LastName),
		BirthDate: optional(NormalizeImportDate(row.BirthDate)),
		Email:     optional(row.Email),
		Phone:     optional(row.Phone),
		Branch:    optional(row.Branch),
	}

	existing, err := s.personRepo.FindMatch(ctx, &models.PersonMatch{
		FirstName: firstName,
		Branch:    patch.Branch,
		Email:     patch.Email,
		Phone:     patch.Phone,
	})
	switch {
	case err == nil:
		// re-imports only complete what the registry is missing
		patch = models.FillEmpty(existing, patch)
		result.Matched++
	case errors.Is(err, apperrors.ErrNotFound):
		result.Created++
	default:
		return 0, err
	}

	person, err := s.personSvc.Upsert(ctx, patch)
	if err != nil {
		return 0, err
	}
	return person.ID, nil
}

func (s *importService) couple(ctx context.Context, a, b int64, result *models.ImportResult) error {
	if a == b {
		return nil
	}
	if _, err := s.relationshipSvc.LinkCouple(ctx, a, b, models.CoupleStatusCurrent); err != nil {
		return err
	}
	result.Couples++
	return nil
}

func (s *importService) parents(ctx context.Context, childID int64, result *models.ImportResult, parentIDs ...int64) error {
	for _, parentID := range parentIDs {
		if parentID == 0 || parentID == childID {
			continue
		}
		created, err := s.relationshipSvc.LinkParentChild(ctx, parentID, childID)
		if err != nil {
			return err
		}
		if created {
			result.ParentLinks++
		}
	}
	return nil
}

// NormalizeImportDate converts DD/MM/YYYY to YYYY-MM-DD. Other values are returned trimmed
// and unchanged.
func NormalizeImportDate(s string) string {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(frenchDateLayout, s); err == nil {
		return d.Format(models.DateLayout)
	}
	return s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
