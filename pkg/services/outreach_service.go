package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/cousinade/cousinade-engine/pkg/models"
	"github.com/cousinade/cousinade-engine/pkg/repositories"
)

// OutreachService selects people to contact about the event.
type OutreachService interface {
	// Recipients returns people with an e-mail address, one per address (lowest id wins),
	// ordered by id. limit <= 0 means no limit.
	Recipients(ctx context.Context, limit int) ([]*models.Person, error)
}

type outreachService struct {
	personRepo repositories.PersonRepository
	logger     *zap.Logger
}

// NewOutreachService creates a new OutreachService.
func NewOutreachService(personRepo repositories.PersonRepository, logger *zap.Logger) OutreachService {
	return &outreachService{
		personRepo: personRepo,
		logger:     logger.Named("outreach"),
	}
}

var _ OutreachService = (*outreachService)(nil)

func (s *outreachService) Recipients(ctx context.Context, limit int) ([]*models.Person, error) {
	people, err := s.personRepo.ListWithEmail(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(people))
	recipients := make([]*models.Person, 0, len(people))
	for _, p := range people {
		if p.Email == nil {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(*p.Email))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		recipients = append(recipients, p)
		if limit > 0 && len(recipients) == limit {
			break
		}
	}

	s.logger.Debug("Selected outreach recipients",
		zap.Int("candidates", len(people)),
		zap.Int("recipients", len(recipients)))
	return recipients, nil
}
