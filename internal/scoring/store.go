package scoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/exambank/scoring/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Requirement Reads ───────────────────────────────────

func (s *Store) GetRequirement(ctx context.Context, parent models.ParentRef) (*models.AnswerRequirement, error) {
	var req models.AnswerRequirement
	err := s.db.QueryRowContext(ctx,
		`SELECT id, parent_kind, parent_id, requirement_type, total_alternatives,
		        min_required, max_required, total_marks, created_at
		 FROM answer_requirements WHERE parent_kind = $1 AND parent_id = $2`,
		parent.Kind, parent.ID,
	).Scan(&req.ID, &req.Parent.Kind, &req.Parent.ID, &req.RequirementType,
		&req.TotalAlternatives, &req.MinRequired, &req.MaxRequired, &req.TotalMarks, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("requirement for %s: %w", parent, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get requirement: %w", err)
	}
	return &req, nil
}

func (s *Store) GetComponents(ctx context.Context, parent models.ParentRef) ([]models.AnswerComponent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, parent_kind, parent_id, alternative_id, answer_text, marks,
		        context_type, context_value, context_label, is_correct, created_at
		 FROM answer_components WHERE parent_kind = $1 AND parent_id = $2
		 ORDER BY alternative_id`,
		parent.Kind, parent.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("get components: %w", err)
	}
	defer rows.Close()

	var components []models.AnswerComponent
	for rows.Next() {
		var c models.AnswerComponent
		if err := rows.Scan(&c.ID, &c.Parent.Kind, &c.Parent.ID, &c.AlternativeID,
			&c.AnswerText, &c.Marks, &c.ContextType, &c.ContextValue,
			&c.ContextLabel, &c.IsCorrect, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		components = append(components, c)
	}
	return components, rows.Err()
}

// ── Performance Writes ──────────────────────────────────

// SavePerformances inserts all rows for one attempt in a single transaction
// and returns the attempt number used. When the caller supplies no attempt
// number it is derived as max+1 for (student, parent) under an advisory
// lock held until commit, so racing submissions serialize and each gets a
// distinct, increasing attempt number.
func (s *Store) SavePerformances(ctx context.Context, perfs []models.ContextPerformance, explicitAttempt *int) (int, error) {
	if len(perfs) == 0 {
		return 0, fmt.Errorf("%w: no performance rows to save", models.ErrInvalidResponse)
	}
	studentID := perfs[0].StudentID
	parent := perfs[0].Parent

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	attempt := 0
	if explicitAttempt != nil {
		attempt = *explicitAttempt
	} else {
		// Without the lock two transactions could read the same MAX and
		// commit duplicate attempt numbers; the xact lock releases itself
		// at commit or rollback.
		if _, err := tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1))`,
			fmt.Sprintf("%d|%s", studentID, parent),
		); err != nil {
			return 0, fmt.Errorf("lock attempt counter: %w", err)
		}
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(attempt_number), 0) + 1
			 FROM context_performances
			 WHERE student_id = $1 AND parent_kind = $2 AND parent_id = $3`,
			studentID, parent.Kind, parent.ID,
		).Scan(&attempt)
		if err != nil {
			return 0, fmt.Errorf("derive attempt number: %w", err)
		}
	}

	for i := range perfs {
		p := &perfs[i]
		p.AttemptNumber = attempt
		err := tx.QueryRowContext(ctx,
			`INSERT INTO context_performances
			 (student_id, session_id, parent_kind, parent_id, context_type, context_value,
			  response_text, achieved_marks, possible_marks, is_correct, attempt_number)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 RETURNING id, answered_at`,
			p.StudentID, p.SessionID, p.Parent.Kind, p.Parent.ID, p.ContextType, p.ContextValue,
			p.ResponseText, p.AchievedMarks, p.PossibleMarks, p.IsCorrect, attempt,
		).Scan(&p.ID, &p.AnsweredAt)
		if err != nil {
			return 0, fmt.Errorf("insert performance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit performances: %w", err)
	}
	return attempt, nil
}
