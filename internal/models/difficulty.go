package models

import "time"

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// ContextDifficultyMetric is a derived, disposable snapshot of how one
// context performed over a calculation period. Fully recomputed each run.
type ContextDifficultyMetric struct {
	ID                     int64           `json:"id"`
	ContextType            ContextType     `json:"context_type"`
	ContextValue           string          `json:"context_value"`
	AvgSuccessRate         float64         `json:"avg_success_rate"`
	DiscriminationIndex    float64         `json:"discrimination_index"`
	StdDeviation           float64         `json:"std_deviation"`
	DifficultyLevel        DifficultyLevel `json:"difficulty_level"`
	SampleSize             int             `json:"sample_size"`
	LowConfidence          bool            `json:"low_confidence"`
	CalculationPeriodStart time.Time       `json:"calculation_period_start"`
	CalculationPeriodEnd   time.Time       `json:"calculation_period_end"`
	CalculatedAt           time.Time       `json:"calculated_at"`
}

func (m ContextDifficultyMetric) Key() ContextKey {
	return ContextKey{Type: m.ContextType, Value: m.ContextValue}
}

// Period bounds one difficulty calculation window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
