package models

import "time"

// ContextMasteryCache is the incrementally maintained mastery estimate for
// one (student, context) pair. Created lazily on first attempt, updated on
// every subsequent one, never deleted.
type ContextMasteryCache struct {
	ID                 int64       `json:"id"`
	StudentID          int64       `json:"student_id"`
	ContextType        ContextType `json:"context_type"`
	ContextValue       string      `json:"context_value"`
	MasteryLevel       float64     `json:"mastery_level"`
	WeightedMastery    float64     `json:"weighted_mastery"`
	TotalAttempts      int         `json:"total_attempts"`
	SuccessfulAttempts int         `json:"successful_attempts"`
	TotalMarksAchieved float64     `json:"total_marks_achieved"`
	TotalMarksPossible float64     `json:"total_marks_possible"`
	FirstAttemptAt     time.Time   `json:"first_attempt_at"`
	LastAttemptAt      time.Time   `json:"last_attempt_at"`
	Version            int64       `json:"-"`
}

func (m ContextMasteryCache) Key() ContextKey {
	return ContextKey{Type: m.ContextType, Value: m.ContextValue}
}

// MasterySummary rolls a student's cache rows up by context type. Computed
// at read time; it is not a second mutable cache.
type MasterySummary struct {
	ContextType        ContextType `json:"context_type"`
	Contexts           int         `json:"contexts"`
	AvgMastery         float64     `json:"avg_mastery"`
	AvgWeightedMastery float64     `json:"avg_weighted_mastery"`
	TotalAttempts      int         `json:"total_attempts"`
	SuccessfulAttempts int         `json:"successful_attempts"`
}

type MasteryResponse struct {
	StudentID int64                 `json:"student_id"`
	Entries   []ContextMasteryCache `json:"entries"`
}

type MasterySummaryResponse struct {
	StudentID int64            `json:"student_id"`
	Summaries []MasterySummary `json:"summaries"`
}
