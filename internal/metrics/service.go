package metrics

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exambank/scoring/internal/config"
	"github.com/exambank/scoring/internal/models"
)

// Calculator is the batch side of the analytics core: it periodically
// re-derives difficulty snapshots from the performance stream, fully
// decoupled from live scoring traffic.
type Calculator struct {
	store MetricStore
	cfg   config.MetricsConfig
}

func NewCalculator(store MetricStore, cfg config.MetricsConfig) *Calculator {
	return &Calculator{store: store, cfg: cfg}
}

// Recompute rebuilds the snapshot for one context over a period. Prior
// committed performance rows are never touched; the snapshot row is
// replaced, so rerunning over unchanged data is idempotent.
func (c *Calculator) Recompute(ctx context.Context, key models.ContextKey, period models.Period) (*models.ContextDifficultyMetric, error) {
	perfs, err := c.store.GetPerformances(ctx, key, period)
	if err != nil {
		return nil, err
	}

	studentIDs := distinctStudents(perfs)
	mastery, err := c.store.StudentMastery(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	metric, err := Compute(Inputs{
		Key:            key,
		Period:         period,
		Performances:   perfs,
		StudentMastery: mastery,
		MinSampleSize:  c.cfg.MinSampleSize,
		Thresholds:     Thresholds{Easy: c.cfg.EasyThreshold, Hard: c.cfg.HardThreshold},
	})
	if err != nil {
		return nil, err
	}

	if metric.LowConfidence {
		log.Printf("WARN: low-confidence difficulty metric for %s: sample=%d min=%d",
			key, metric.SampleSize, c.cfg.MinSampleSize)
	}

	if err := c.store.UpsertMetric(ctx, metric); err != nil {
		return nil, err
	}
	return metric, nil
}

// RecomputeAll rebuilds snapshots for every context active in the period,
// with bounded concurrency. Per-context failures are logged and left for
// the next cycle; they never abort the rest of the batch.
func (c *Calculator) RecomputeAll(ctx context.Context, period models.Period) (int, error) {
	keys, err := c.store.ListActiveContexts(ctx, period)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)

	done := make(chan models.ContextKey, len(keys))
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if _, err := c.Recompute(gctx, key, period); err != nil {
				if errors.Is(err, models.ErrInsufficientData) {
					log.Printf("[difficulty] skipped %s: %v", key, err)
				} else {
					log.Printf("WARN: recompute failed for %s: %v", key, err)
				}
				return nil
			}
			done <- key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	close(done)

	recomputed := 0
	for range done {
		recomputed++
	}
	return recomputed, nil
}

// StartWorker runs RecomputeAll on a fixed interval until ctx is canceled.
func (c *Calculator) StartWorker(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RecomputeInterval)
	defer ticker.Stop()

	log.Println("[difficulty] Background recompute worker started")

	for {
		select {
		case <-ctx.Done():
			log.Println("[difficulty] Shutting down")
			return
		case <-ticker.C:
			period := c.currentPeriod()
			n, err := c.RecomputeAll(ctx, period)
			if err != nil {
				log.Printf("WARN: difficulty batch failed: %v", err)
				continue
			}
			log.Printf("[difficulty] Recomputed %d contexts for period %s to %s",
				n, period.Start.Format(time.RFC3339), period.End.Format(time.RFC3339))
		}
	}
}

// currentPeriod truncates to the hour so consecutive runs within the hour
// land on the same snapshot row.
func (c *Calculator) currentPeriod() models.Period {
	end := time.Now().UTC().Truncate(time.Hour)
	return models.Period{Start: end.Add(-c.cfg.PeriodWindow), End: end}
}

func (c *Calculator) GetMetric(ctx context.Context, key models.ContextKey) (*models.ContextDifficultyMetric, error) {
	return c.store.GetLatestMetric(ctx, key)
}

func (c *Calculator) ListMetrics(ctx context.Context) ([]models.ContextDifficultyMetric, error) {
	return c.store.ListLatestMetrics(ctx)
}

func distinctStudents(perfs []models.ContextPerformance) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, p := range perfs {
		if !seen[p.StudentID] {
			seen[p.StudentID] = true
			ids = append(ids, p.StudentID)
		}
	}
	return ids
}
