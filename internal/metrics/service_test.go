package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/exambank/scoring/internal/config"
	"github.com/exambank/scoring/internal/models"
)

type memoryMetricStore struct {
	mu      sync.Mutex
	perfs   map[string][]models.ContextPerformance
	mastery map[int64]float64
	metrics map[string]*models.ContextDifficultyMetric
	upserts int
}

func newMemoryMetricStore() *memoryMetricStore {
	return &memoryMetricStore{
		perfs:   make(map[string][]models.ContextPerformance),
		mastery: make(map[int64]float64),
		metrics: make(map[string]*models.ContextDifficultyMetric),
	}
}

func (s *memoryMetricStore) GetPerformances(_ context.Context, key models.ContextKey, _ models.Period) ([]models.ContextPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perfs[key.String()], nil
}

func (s *memoryMetricStore) ListActiveContexts(_ context.Context, _ models.Period) ([]models.ContextKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []models.ContextKey
	for _, rows := range s.perfs {
		keys = append(keys, models.ContextKey{Type: rows[0].ContextType, Value: rows[0].ContextValue})
	}
	return keys, nil
}

func (s *memoryMetricStore) StudentMastery(_ context.Context, ids []int64) (map[int64]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]float64)
	for _, id := range ids {
		if m, ok := s.mastery[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (s *memoryMetricStore) UpsertMetric(_ context.Context, m *models.ContextDifficultyMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	key := models.ContextKey{Type: m.ContextType, Value: m.ContextValue}.String()
	cp := *m
	cp.ID = int64(len(s.metrics) + 1)
	if prev, ok := s.metrics[key]; ok {
		cp.ID = prev.ID
	}
	cp.CalculatedAt = time.Now().UTC()
	s.metrics[key] = &cp
	m.ID = cp.ID
	m.CalculatedAt = cp.CalculatedAt
	return nil
}

func (s *memoryMetricStore) GetLatestMetric(_ context.Context, key models.ContextKey) (*models.ContextDifficultyMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[key.String()]
	if !ok {
		return nil, models.ErrNotFound
	}
	return m, nil
}

func (s *memoryMetricStore) ListLatestMetrics(_ context.Context) ([]models.ContextDifficultyMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContextDifficultyMetric
	for _, m := range s.metrics {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memoryMetricStore) addPerformances(key models.ContextKey, perfs ...models.ContextPerformance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range perfs {
		perfs[i].ContextType = key.Type
		perfs[i].ContextValue = key.Value
	}
	s.perfs[key.String()] = append(s.perfs[key.String()], perfs...)
}

func metricsConfig() config.MetricsConfig {
	return config.MetricsConfig{
		MinSampleSize: 2,
		EasyThreshold: 0.7,
		HardThreshold: 0.4,
		Workers:       4,
		PeriodWindow:  30 * 24 * time.Hour,
	}
}

func TestRecomputePersistsSnapshot(t *testing.T) {
	store := newMemoryMetricStore()
	key := models.ContextKey{Type: models.ContextStep, Value: "step_1"}
	store.addPerformances(key,
		contextPerf(1, 2, 2, true),
		contextPerf(2, 2, 2, true),
		contextPerf(3, 0, 2, false),
	)

	calc := NewCalculator(store, metricsConfig())
	metric, err := calc.Recompute(context.Background(), key, testPeriod())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	saved, err := calc.GetMetric(context.Background(), key)
	if err != nil {
		t.Fatalf("GetMetric: %v", err)
	}
	if saved.AvgSuccessRate != metric.AvgSuccessRate || saved.SampleSize != 3 {
		t.Errorf("stored %+v does not match computed %+v", saved, metric)
	}
	if saved.DifficultyLevel != models.DifficultyMedium {
		t.Errorf("level = %s, want medium at 2/3 success", saved.DifficultyLevel)
	}
}

func TestRecomputeIdempotentOverUnchangedData(t *testing.T) {
	store := newMemoryMetricStore()
	key := models.ContextKey{Type: models.ContextStep, Value: "step_1"}
	store.addPerformances(key,
		contextPerf(1, 2, 2, true),
		contextPerf(2, 0, 2, false),
	)

	calc := NewCalculator(store, metricsConfig())
	first, err := calc.Recompute(context.Background(), key, testPeriod())
	if err != nil {
		t.Fatalf("first Recompute: %v", err)
	}
	second, err := calc.Recompute(context.Background(), key, testPeriod())
	if err != nil {
		t.Fatalf("second Recompute: %v", err)
	}

	if first.AvgSuccessRate != second.AvgSuccessRate ||
		first.DiscriminationIndex != second.DiscriminationIndex ||
		first.StdDeviation != second.StdDeviation ||
		first.DifficultyLevel != second.DifficultyLevel {
		t.Errorf("rerun produced different values: %+v vs %+v", first, second)
	}
	if first.ID != second.ID {
		t.Errorf("rerun created a new row: id %d then %d", first.ID, second.ID)
	}
	if len(store.metrics) != 1 {
		t.Errorf("want a single snapshot row, got %d", len(store.metrics))
	}
}

func TestRecomputeEmptyContext(t *testing.T) {
	store := newMemoryMetricStore()
	calc := NewCalculator(store, metricsConfig())

	key := models.ContextKey{Type: models.ContextStep, Value: "never_answered"}
	_, err := calc.Recompute(context.Background(), key, testPeriod())
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
	if store.upserts != 0 {
		t.Errorf("empty context must not write a snapshot")
	}
}

func TestRecomputeAllCoversActiveContexts(t *testing.T) {
	store := newMemoryMetricStore()
	for i := 1; i <= 5; i++ {
		key := models.ContextKey{Type: models.ContextStep, Value: "step_" + string(rune('0'+i))}
		store.addPerformances(key,
			contextPerf(1, 2, 2, true),
			contextPerf(2, 0, 2, false),
		)
	}

	calc := NewCalculator(store, metricsConfig())
	n, err := calc.RecomputeAll(context.Background(), testPeriod())
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if n != 5 {
		t.Errorf("recomputed %d contexts, want 5", n)
	}

	listed, err := calc.ListMetrics(context.Background())
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(listed) != 5 {
		t.Errorf("listed %d metrics, want 5", len(listed))
	}
}

func TestRecomputeUsesMasteryForDiscrimination(t *testing.T) {
	store := newMemoryMetricStore()
	key := models.ContextKey{Type: models.ContextStep, Value: "step_1"}
	for i := int64(1); i <= 10; i++ {
		strong := i <= 5
		store.mastery[i] = 0.2
		achieved := 0.0
		if strong {
			store.mastery[i] = 0.9
			achieved = 2
		}
		store.addPerformances(key, contextPerf(i, achieved, 2, strong))
	}

	calc := NewCalculator(store, metricsConfig())
	metric, err := calc.Recompute(context.Background(), key, testPeriod())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if metric.DiscriminationIndex != 1 {
		t.Errorf("discrimination = %v, want 1 for a perfectly separating item", metric.DiscriminationIndex)
	}
}
