package mastery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/exambank/scoring/internal/models"
)

// CacheStore is the persistence surface of the mastery cache. Insert and
// Update report models.ErrConflict on races so the aggregator can retry.
type CacheStore interface {
	Get(ctx context.Context, studentID int64, key models.ContextKey) (*models.ContextMasteryCache, error)
	Insert(ctx context.Context, cache *models.ContextMasteryCache) error
	Update(ctx context.Context, cache *models.ContextMasteryCache) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.ContextMasteryCache, error)
	SummaryByStudent(ctx context.Context, studentID int64) ([]models.MasterySummary, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, studentID int64, key models.ContextKey) (*models.ContextMasteryCache, error) {
	var m models.ContextMasteryCache
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, context_type, context_value, mastery_level, weighted_mastery,
		        total_attempts, successful_attempts, total_marks_achieved, total_marks_possible,
		        first_attempt_at, last_attempt_at, version
		 FROM context_mastery_cache
		 WHERE student_id = $1 AND context_type = $2 AND context_value = $3`,
		studentID, key.Type, key.Value,
	).Scan(&m.ID, &m.StudentID, &m.ContextType, &m.ContextValue, &m.MasteryLevel, &m.WeightedMastery,
		&m.TotalAttempts, &m.SuccessfulAttempts, &m.TotalMarksAchieved, &m.TotalMarksPossible,
		&m.FirstAttemptAt, &m.LastAttemptAt, &m.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mastery for student=%d context=%s: %w", studentID, key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	return &m, nil
}

func (s *Store) Insert(ctx context.Context, m *models.ContextMasteryCache) error {
	m.Version = 1
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO context_mastery_cache
		 (student_id, context_type, context_value, mastery_level, weighted_mastery,
		  total_attempts, successful_attempts, total_marks_achieved, total_marks_possible,
		  first_attempt_at, last_attempt_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		m.StudentID, m.ContextType, m.ContextValue, m.MasteryLevel, m.WeightedMastery,
		m.TotalAttempts, m.SuccessfulAttempts, m.TotalMarksAchieved, m.TotalMarksPossible,
		m.FirstAttemptAt, m.LastAttemptAt, m.Version,
	).Scan(&m.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Another writer created the row first.
			return fmt.Errorf("insert mastery: %w", models.ErrConflict)
		}
		return fmt.Errorf("insert mastery: %w", err)
	}
	return nil
}

// Update is version-guarded: a concurrent writer that committed in between
// leaves our version stale and the update matches nothing.
func (s *Store) Update(ctx context.Context, m *models.ContextMasteryCache) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE context_mastery_cache
		 SET mastery_level = $1, weighted_mastery = $2, total_attempts = $3,
		     successful_attempts = $4, total_marks_achieved = $5, total_marks_possible = $6,
		     last_attempt_at = $7, version = version + 1
		 WHERE id = $8 AND version = $9`,
		m.MasteryLevel, m.WeightedMastery, m.TotalAttempts,
		m.SuccessfulAttempts, m.TotalMarksAchieved, m.TotalMarksPossible,
		m.LastAttemptAt, m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("update mastery: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update mastery: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update mastery student=%d context=%s:%s: %w",
			m.StudentID, m.ContextType, m.ContextValue, models.ErrConflict)
	}
	m.Version++
	return nil
}

func (s *Store) ListByStudent(ctx context.Context, studentID int64) ([]models.ContextMasteryCache, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, context_type, context_value, mastery_level, weighted_mastery,
		        total_attempts, successful_attempts, total_marks_achieved, total_marks_possible,
		        first_attempt_at, last_attempt_at, version
		 FROM context_mastery_cache WHERE student_id = $1
		 ORDER BY context_type, context_value`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	defer rows.Close()

	var entries []models.ContextMasteryCache
	for rows.Next() {
		var m models.ContextMasteryCache
		if err := rows.Scan(&m.ID, &m.StudentID, &m.ContextType, &m.ContextValue,
			&m.MasteryLevel, &m.WeightedMastery, &m.TotalAttempts, &m.SuccessfulAttempts,
			&m.TotalMarksAchieved, &m.TotalMarksPossible,
			&m.FirstAttemptAt, &m.LastAttemptAt, &m.Version); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		entries = append(entries, m)
	}
	return entries, rows.Err()
}

func (s *Store) SummaryByStudent(ctx context.Context, studentID int64) ([]models.MasterySummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT context_type, COUNT(*), AVG(mastery_level), AVG(weighted_mastery),
		        SUM(total_attempts), SUM(successful_attempts)
		 FROM context_mastery_cache WHERE student_id = $1
		 GROUP BY context_type ORDER BY context_type`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("mastery summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.MasterySummary
	for rows.Next() {
		var s models.MasterySummary
		if err := rows.Scan(&s.ContextType, &s.Contexts, &s.AvgMastery,
			&s.AvgWeightedMastery, &s.TotalAttempts, &s.SuccessfulAttempts); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
