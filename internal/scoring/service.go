package scoring

import (
	"context"
	"fmt"
	"log"

	"github.com/exambank/scoring/internal/config"
	"github.com/exambank/scoring/internal/models"
)

// PerformanceStore persists scored attempts.
type PerformanceStore interface {
	SavePerformances(ctx context.Context, perfs []models.ContextPerformance, explicitAttempt *int) (int, error)
}

// MasteryRecorder consumes committed performance rows. Implemented by the
// mastery aggregator; failures there never unwind a committed score.
type MasteryRecorder interface {
	Record(ctx context.Context, perf models.ContextPerformance) error
}

type Service struct {
	resolver *Resolver
	store    PerformanceStore
	mastery  MasteryRecorder
	cfg      config.ScoringConfig
}

func NewService(resolver *Resolver, store PerformanceStore, mastery MasteryRecorder, cfg config.ScoringConfig) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
		mastery:  mastery,
		cfg:      cfg,
	}
}

// ScoreSubmission resolves the requirement, scores the submission, and
// persists the attempt's performance rows as one atomic unit. The mastery
// cache is fed after the commit; a mastery failure is logged and left for
// re-derivation, it does not fail the request.
func (s *Service) ScoreSubmission(ctx context.Context, resp *models.StudentResponse) (*models.ScoreResult, error) {
	if resp == nil || resp.StudentID <= 0 || !resp.Parent.Valid() {
		return nil, fmt.Errorf("%w: missing student or parent", models.ErrInvalidResponse)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: no response tuples", models.ErrInvalidResponse)
	}

	if s.cfg.ScoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScoreTimeout)
		defer cancel()
	}

	req, components, err := s.resolver.Resolve(ctx, resp.Parent)
	if err != nil {
		return nil, err
	}

	result, err := Score(req, components, resp, ScoreOptions{NegativeMarking: s.cfg.NegativeMarking})
	if err != nil {
		return nil, err
	}

	attempt, err := s.store.SavePerformances(ctx, result.PerContext, resp.AttemptNumber)
	if err != nil {
		return nil, fmt.Errorf("save performances: %w", err)
	}
	result.AttemptNumber = attempt

	if s.mastery != nil {
		for _, perf := range result.PerContext {
			if err := s.mastery.Record(ctx, perf); err != nil {
				log.Printf("WARN: mastery update failed for student=%d context=%s: %v",
					perf.StudentID, perf.Key(), err)
			}
		}
	}

	return result, nil
}
