package models

import "time"

type RequirementType string

const (
	RequirementExact      RequirementType = "exact"
	RequirementSelectNOfM RequirementType = "select_n_of_m"
)

var ValidRequirementTypes = map[RequirementType]bool{
	RequirementExact:      true,
	RequirementSelectNOfM: true,
}

type ContextType string

const (
	ContextPosition  ContextType = "position"
	ContextStep      ContextType = "step"
	ContextField     ContextType = "field"
	ContextProperty  ContextType = "property"
	ContextComponent ContextType = "component"
)

var ValidContextTypes = map[ContextType]bool{
	ContextPosition:  true,
	ContextStep:      true,
	ContextField:     true,
	ContextProperty:  true,
	ContextComponent: true,
}

// AnswerRequirement describes how many of a parent's answer alternatives a
// student must supply, and under which policy credit is awarded.
type AnswerRequirement struct {
	ID                int64           `json:"id"`
	Parent            ParentRef       `json:"parent"`
	RequirementType   RequirementType `json:"requirement_type"`
	TotalAlternatives int             `json:"total_alternatives"`
	MinRequired       int             `json:"min_required"`
	MaxRequired       int             `json:"max_required"`
	TotalMarks        float64         `json:"total_marks"`
	CreatedAt         time.Time       `json:"created_at"`
}

// AnswerComponent is one correct or distractor alternative, anchored to a
// semantic context slot within its parent.
type AnswerComponent struct {
	ID            int64       `json:"id"`
	Parent        ParentRef   `json:"parent"`
	AlternativeID int         `json:"alternative_id"`
	AnswerText    string      `json:"answer_text"`
	Marks         float64     `json:"marks"`
	ContextType   ContextType `json:"context_type"`
	ContextValue  string      `json:"context_value"`
	ContextLabel  string      `json:"context_label"`
	IsCorrect     bool        `json:"is_correct"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Key returns the context key the component occupies within its parent.
func (c AnswerComponent) Key() ContextKey {
	return ContextKey{Type: c.ContextType, Value: c.ContextValue}
}

// ContextKey identifies one semantic answer slot.
type ContextKey struct {
	Type  ContextType `json:"context_type"`
	Value string      `json:"context_value"`
}

func (k ContextKey) String() string {
	return string(k.Type) + ":" + k.Value
}
