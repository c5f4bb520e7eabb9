package mastery

import (
	"context"
	"errors"
	"fmt"

	"github.com/exambank/scoring/internal/config"
	"github.com/exambank/scoring/internal/models"
)

// Aggregator maintains the per-(student, context) mastery cache. The
// read-modify-write is serialized two ways: a keyed mutex within this
// process, and optimistic versioning in the store for writers elsewhere.
type Aggregator struct {
	store CacheStore
	locks *keyLock
	cfg   config.ScoringConfig
}

func NewAggregator(store CacheStore, cfg config.ScoringConfig) *Aggregator {
	return &Aggregator{
		store: store,
		locks: newKeyLock(),
		cfg:   cfg,
	}
}

// Record folds one committed performance row into the cache, retrying a
// bounded number of times on version conflicts before reporting the cache
// row unavailable. Lost updates are impossible: every conflicted attempt
// re-reads before re-applying.
func (a *Aggregator) Record(ctx context.Context, perf models.ContextPerformance) error {
	lockKey := fmt.Sprintf("%d|%s", perf.StudentID, perf.Key())
	mu := a.locks.Lock(lockKey)
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < a.cfg.MasteryRetries; attempt++ {
		err := a.recordOnce(ctx, perf)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: mastery update for student=%d context=%s: %v",
		models.ErrUnavailable, perf.StudentID, perf.Key(), lastErr)
}

func (a *Aggregator) recordOnce(ctx context.Context, perf models.ContextPerformance) error {
	cache, err := a.store.Get(ctx, perf.StudentID, perf.Key())
	switch {
	case errors.Is(err, models.ErrNotFound):
		fresh := &models.ContextMasteryCache{
			StudentID:    perf.StudentID,
			ContextType:  perf.ContextType,
			ContextValue: perf.ContextValue,
		}
		Apply(fresh, perf, a.cfg.DecayRate)
		return a.store.Insert(ctx, fresh)
	case err != nil:
		return err
	}

	Apply(cache, perf, a.cfg.DecayRate)
	return a.store.Update(ctx, cache)
}

// ── Reads ───────────────────────────────────────────────

func (a *Aggregator) GetMastery(ctx context.Context, studentID int64, key models.ContextKey) (*models.ContextMasteryCache, error) {
	return a.store.Get(ctx, studentID, key)
}

func (a *Aggregator) ListMastery(ctx context.Context, studentID int64) (*models.MasteryResponse, error) {
	entries, err := a.store.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.ContextMasteryCache{}
	}
	return &models.MasteryResponse{StudentID: studentID, Entries: entries}, nil
}

func (a *Aggregator) GetMasterySummary(ctx context.Context, studentID int64) (*models.MasterySummaryResponse, error) {
	summaries, err := a.store.SummaryByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []models.MasterySummary{}
	}
	return &models.MasterySummaryResponse{StudentID: studentID, Summaries: summaries}, nil
}
