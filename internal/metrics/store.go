package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/exambank/scoring/internal/models"
)

// MetricStore is the calculator's persistence surface.
type MetricStore interface {
	GetPerformances(ctx context.Context, key models.ContextKey, period models.Period) ([]models.ContextPerformance, error)
	ListActiveContexts(ctx context.Context, period models.Period) ([]models.ContextKey, error)
	StudentMastery(ctx context.Context, studentIDs []int64) (map[int64]float64, error)
	UpsertMetric(ctx context.Context, metric *models.ContextDifficultyMetric) error
	GetLatestMetric(ctx context.Context, key models.ContextKey) (*models.ContextDifficultyMetric, error)
	ListLatestMetrics(ctx context.Context) ([]models.ContextDifficultyMetric, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetPerformances(ctx context.Context, key models.ContextKey, period models.Period) ([]models.ContextPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, session_id, parent_kind, parent_id, context_type, context_value,
		        response_text, achieved_marks, possible_marks, is_correct, attempt_number, answered_at
		 FROM context_performances
		 WHERE context_type = $1 AND context_value = $2 AND answered_at >= $3 AND answered_at < $4
		 ORDER BY answered_at, id`,
		key.Type, key.Value, period.Start, period.End,
	)
	if err != nil {
		return nil, fmt.Errorf("get performances: %w", err)
	}
	defer rows.Close()

	var perfs []models.ContextPerformance
	for rows.Next() {
		var p models.ContextPerformance
		if err := rows.Scan(&p.ID, &p.StudentID, &p.SessionID, &p.Parent.Kind, &p.Parent.ID,
			&p.ContextType, &p.ContextValue, &p.ResponseText, &p.AchievedMarks, &p.PossibleMarks,
			&p.IsCorrect, &p.AttemptNumber, &p.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		perfs = append(perfs, p)
	}
	return perfs, rows.Err()
}

func (s *Store) ListActiveContexts(ctx context.Context, period models.Period) ([]models.ContextKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT context_type, context_value
		 FROM context_performances
		 WHERE answered_at >= $1 AND answered_at < $2
		 ORDER BY context_type, context_value`,
		period.Start, period.End,
	)
	if err != nil {
		return nil, fmt.Errorf("list active contexts: %w", err)
	}
	defer rows.Close()

	var keys []models.ContextKey
	for rows.Next() {
		var k models.ContextKey
		if err := rows.Scan(&k.Type, &k.Value); err != nil {
			return nil, fmt.Errorf("scan context key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// StudentMastery returns each student's overall mastery, averaged across
// their cache rows. Used to rank students for the discrimination split.
func (s *Store) StudentMastery(ctx context.Context, studentIDs []int64) (map[int64]float64, error) {
	if len(studentIDs) == 0 {
		return map[int64]float64{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, AVG(mastery_level)
		 FROM context_mastery_cache
		 WHERE student_id = ANY($1)
		 GROUP BY student_id`,
		pq.Array(studentIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("student mastery: %w", err)
	}
	defer rows.Close()

	mastery := make(map[int64]float64, len(studentIDs))
	for rows.Next() {
		var id int64
		var level float64
		if err := rows.Scan(&id, &level); err != nil {
			return nil, fmt.Errorf("scan student mastery: %w", err)
		}
		mastery[id] = level
	}
	return mastery, rows.Err()
}

// UpsertMetric replaces the snapshot for (context, period). Reruns over
// unchanged data land on the same row with the same values.
func (s *Store) UpsertMetric(ctx context.Context, m *models.ContextDifficultyMetric) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO context_difficulty_metrics
		 (context_type, context_value, avg_success_rate, discrimination_index, std_deviation,
		  difficulty_level, sample_size, low_confidence, calculation_period_start, calculation_period_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (context_type, context_value, calculation_period_start, calculation_period_end)
		 DO UPDATE SET avg_success_rate = EXCLUDED.avg_success_rate,
		               discrimination_index = EXCLUDED.discrimination_index,
		               std_deviation = EXCLUDED.std_deviation,
		               difficulty_level = EXCLUDED.difficulty_level,
		               sample_size = EXCLUDED.sample_size,
		               low_confidence = EXCLUDED.low_confidence,
		               calculated_at = NOW()
		 RETURNING id, calculated_at`,
		m.ContextType, m.ContextValue, m.AvgSuccessRate, m.DiscriminationIndex, m.StdDeviation,
		m.DifficultyLevel, m.SampleSize, m.LowConfidence, m.CalculationPeriodStart, m.CalculationPeriodEnd,
	).Scan(&m.ID, &m.CalculatedAt)
	if err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}
	return nil
}

func (s *Store) GetLatestMetric(ctx context.Context, key models.ContextKey) (*models.ContextDifficultyMetric, error) {
	var m models.ContextDifficultyMetric
	err := s.db.QueryRowContext(ctx,
		`SELECT id, context_type, context_value, avg_success_rate, discrimination_index,
		        std_deviation, difficulty_level, sample_size, low_confidence,
		        calculation_period_start, calculation_period_end, calculated_at
		 FROM context_difficulty_metrics
		 WHERE context_type = $1 AND context_value = $2
		 ORDER BY calculated_at DESC LIMIT 1`,
		key.Type, key.Value,
	).Scan(&m.ID, &m.ContextType, &m.ContextValue, &m.AvgSuccessRate, &m.DiscriminationIndex,
		&m.StdDeviation, &m.DifficultyLevel, &m.SampleSize, &m.LowConfidence,
		&m.CalculationPeriodStart, &m.CalculationPeriodEnd, &m.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("metric for %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get metric: %w", err)
	}
	return &m, nil
}

func (s *Store) ListLatestMetrics(ctx context.Context) ([]models.ContextDifficultyMetric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (context_type, context_value)
		        id, context_type, context_value, avg_success_rate, discrimination_index,
		        std_deviation, difficulty_level, sample_size, low_confidence,
		        calculation_period_start, calculation_period_end, calculated_at
		 FROM context_difficulty_metrics
		 ORDER BY context_type, context_value, calculated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.ContextDifficultyMetric
	for rows.Next() {
		var m models.ContextDifficultyMetric
		if err := rows.Scan(&m.ID, &m.ContextType, &m.ContextValue, &m.AvgSuccessRate,
			&m.DiscriminationIndex, &m.StdDeviation, &m.DifficultyLevel, &m.SampleSize,
			&m.LowConfidence, &m.CalculationPeriodStart, &m.CalculationPeriodEnd, &m.CalculatedAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}
