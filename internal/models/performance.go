package models

import "time"

// ResponseTuple is one submitted answer for a context slot.
type ResponseTuple struct {
	ContextType  ContextType `json:"context_type"`
	ContextValue string      `json:"context_value"`
	ResponseText string      `json:"response_text"`
	Confidence   *float64    `json:"confidence,omitempty"`
}

func (t ResponseTuple) Key() ContextKey {
	return ContextKey{Type: t.ContextType, Value: t.ContextValue}
}

// StudentResponse is one attempt's worth of answers for a parent. It is
// supplied by the submission layer and never stored as-is; the scorer turns
// it into ContextPerformance rows.
type StudentResponse struct {
	StudentID     int64           `json:"student_id"`
	SessionID     *int64          `json:"session_id,omitempty"`
	Parent        ParentRef       `json:"parent"`
	AttemptNumber *int            `json:"attempt_number,omitempty"`
	Responses     []ResponseTuple `json:"responses"`
}

// ContextPerformance is one matched/unmatched context outcome for one
// attempt. Rows are append-only: they are the source of truth the mastery
// cache and difficulty snapshots are derived from.
type ContextPerformance struct {
	ID            int64       `json:"id"`
	StudentID     int64       `json:"student_id"`
	SessionID     *int64      `json:"session_id,omitempty"`
	Parent        ParentRef   `json:"parent"`
	ContextType   ContextType `json:"context_type"`
	ContextValue  string      `json:"context_value"`
	ResponseText  *string     `json:"response_text,omitempty"`
	AchievedMarks float64     `json:"achieved_marks"`
	PossibleMarks float64     `json:"possible_marks"`
	IsCorrect     bool        `json:"is_correct"`
	AttemptNumber int         `json:"attempt_number"`
	AnsweredAt    time.Time   `json:"answered_at"`
}

func (p ContextPerformance) Key() ContextKey {
	return ContextKey{Type: p.ContextType, Value: p.ContextValue}
}

// ScoreResult is the synchronous outcome of scoring one submission.
type ScoreResult struct {
	AchievedMarks  float64              `json:"achieved_marks"`
	PossibleMarks  float64              `json:"possible_marks"`
	AttemptNumber  int                  `json:"attempt_number"`
	CorrectMatched int                  `json:"correct_matched"`
	PerContext     []ContextPerformance `json:"per_context"`
	RejectedTuples []ResponseTuple      `json:"rejected_tuples,omitempty"`
}
