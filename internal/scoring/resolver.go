package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/exambank/scoring/internal/models"
)

// RequirementStore supplies authored requirements and components. The
// authoring subsystem owns these rows; this core only reads them.
type RequirementStore interface {
	GetRequirement(ctx context.Context, parent models.ParentRef) (*models.AnswerRequirement, error)
	GetComponents(ctx context.Context, parent models.ParentRef) ([]models.AnswerComponent, error)
}

// Resolver loads a requirement and its components and validates the
// data-model invariants before anything is scored. A malformed requirement
// blocks scoring outright rather than defaulting to zero credit.
type Resolver struct {
	store RequirementStore
}

func NewResolver(store RequirementStore) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, parent models.ParentRef) (*models.AnswerRequirement, []models.AnswerComponent, error) {
	if !parent.Valid() {
		return nil, nil, fmt.Errorf("%w: bad parent ref %s", models.ErrNotFound, parent)
	}

	req, err := r.store.GetRequirement(ctx, parent)
	if err != nil {
		return nil, nil, fmt.Errorf("get requirement for %s: %w", parent, err)
	}

	components, err := r.store.GetComponents(ctx, parent)
	if err != nil {
		return nil, nil, fmt.Errorf("get components for %s: %w", parent, err)
	}

	if err := ValidateRequirement(req, components); err != nil {
		return nil, nil, err
	}
	return req, components, nil
}

// marksEpsilon absorbs half-mark decimal representations when comparing sums.
const marksEpsilon = 1e-6

// ValidateRequirement enforces the invariants the authoring store cannot:
// bounds ordering, dense alternative ids, mark sums, parent agreement.
func ValidateRequirement(req *models.AnswerRequirement, components []models.AnswerComponent) error {
	if !models.ValidRequirementTypes[req.RequirementType] {
		return fmt.Errorf("%w: unknown requirement type %q", models.ErrInvalidRequirement, req.RequirementType)
	}
	if req.MinRequired < 1 || req.MinRequired > req.MaxRequired || req.MaxRequired > req.TotalAlternatives {
		return fmt.Errorf("%w: bounds must satisfy 1 <= min(%d) <= max(%d) <= total(%d)",
			models.ErrInvalidRequirement, req.MinRequired, req.MaxRequired, req.TotalAlternatives)
	}

	seenAlt := make(map[int]bool, len(components))
	seenCorrectKey := make(map[models.ContextKey]bool)
	correctCount := 0
	correctMarks := 0.0

	for _, c := range components {
		if c.Parent != req.Parent {
			return fmt.Errorf("%w: component %d belongs to %s, requirement to %s",
				models.ErrInvalidRequirement, c.AlternativeID, c.Parent, req.Parent)
		}
		if !models.ValidContextTypes[c.ContextType] {
			return fmt.Errorf("%w: component %d has unknown context type %q",
				models.ErrInvalidRequirement, c.AlternativeID, c.ContextType)
		}
		if c.Marks < 0 {
			return fmt.Errorf("%w: component %d has negative marks", models.ErrInvalidRequirement, c.AlternativeID)
		}
		if seenAlt[c.AlternativeID] {
			return fmt.Errorf("%w: duplicate alternative id %d", models.ErrInvalidRequirement, c.AlternativeID)
		}
		seenAlt[c.AlternativeID] = true

		if c.IsCorrect {
			if seenCorrectKey[c.Key()] {
				return fmt.Errorf("%w: duplicate correct context %s", models.ErrInvalidRequirement, c.Key())
			}
			seenCorrectKey[c.Key()] = true
			correctCount++
			correctMarks += c.Marks
		}
	}

	// Alternative ids are dense within a parent: 1..len(components).
	for i := 1; i <= len(components); i++ {
		if !seenAlt[i] {
			return fmt.Errorf("%w: alternative ids not dense, missing %d", models.ErrInvalidRequirement, i)
		}
	}

	if correctCount != req.TotalAlternatives {
		return fmt.Errorf("%w: requirement declares %d alternatives but %d correct components exist",
			models.ErrInvalidRequirement, req.TotalAlternatives, correctCount)
	}
	if math.Abs(correctMarks-req.TotalMarks) > marksEpsilon {
		return fmt.Errorf("%w: correct component marks sum to %.2f, parent total is %.2f",
			models.ErrInvalidRequirement, correctMarks, req.TotalMarks)
	}
	return nil
}
