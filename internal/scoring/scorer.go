package scoring

import (
	"fmt"

	"github.com/exambank/scoring/internal/models"
)

// ScoreOptions carries the configurable grading switches.
type ScoreOptions struct {
	// NegativeMarking deducts a matched distractor's marks from the total.
	// The deduction never drives achieved marks below zero.
	NegativeMarking bool
}

// Score matches a submission against a resolved requirement and produces the
// result plus one ContextPerformance row per component and per stray tuple.
// Wrong answers are a normal zero-credit outcome, never an error; only a
// structurally unusable submission fails.
//
// Credit policy:
//   - exact: all correct contexts must be matched or the whole requirement
//     earns nothing. Matched contexts still record is_correct=true so the
//     mastery and difficulty streams see the per-context outcome.
//   - select_n_of_m: per-context credit for matched correct contexts, capped
//     at max_required (later matches are recorded without credit); fewer
//     than min_required distinct matches voids all credit.
//
// The emitted rows always satisfy sum(row.achieved) == result.achieved when
// negative marking is off; the aggregate deduction is applied to the result
// only, so the audit rows keep their context-local view.
func Score(req *models.AnswerRequirement, components []models.AnswerComponent, resp *models.StudentResponse, opts ScoreOptions) (*models.ScoreResult, error) {
	if resp.StudentID <= 0 {
		return nil, fmt.Errorf("%w: missing student id", models.ErrInvalidResponse)
	}
	if resp.Parent != req.Parent {
		return nil, fmt.Errorf("%w: submission targets %s, requirement is for %s",
			models.ErrInvalidResponse, resp.Parent, req.Parent)
	}

	correct := make(map[models.ContextKey]models.AnswerComponent)
	distractors := make(map[models.ContextKey]models.AnswerComponent)
	possible := 0.0
	for _, c := range components {
		if c.IsCorrect {
			correct[c.Key()] = c
			possible += c.Marks
		} else {
			distractors[c.Key()] = c
		}
	}

	result := &models.ScoreResult{PossibleMarks: possible}

	type match struct {
		component models.AnswerComponent
		tuple     models.ResponseTuple
	}
	var correctMatches []match
	var distractorMatches []match
	var strays []models.ResponseTuple

	seen := make(map[models.ContextKey]bool, len(resp.Responses))
	for _, tuple := range resp.Responses {
		if !models.ValidContextTypes[tuple.ContextType] {
			result.RejectedTuples = append(result.RejectedTuples, tuple)
			continue
		}
		key := tuple.Key()
		if seen[key] {
			// Repeated tuples for one context never count twice; the first
			// submission for the slot stands.
			continue
		}
		seen[key] = true

		if c, ok := correct[key]; ok {
			correctMatches = append(correctMatches, match{component: c, tuple: tuple})
		} else if c, ok := distractors[key]; ok {
			distractorMatches = append(distractorMatches, match{component: c, tuple: tuple})
		} else {
			strays = append(strays, tuple)
		}
	}

	k := len(correctMatches)
	result.CorrectMatched = k

	// Decide which matched correct contexts earn their marks.
	earns := func(i int) bool {
		switch req.RequirementType {
		case models.RequirementExact:
			return k == req.TotalAlternatives
		case models.RequirementSelectNOfM:
			if k < req.MinRequired {
				return false
			}
			return i < req.MaxRequired
		}
		return false
	}

	achieved := 0.0
	for i, m := range correctMatches {
		rowMarks := 0.0
		if earns(i) {
			rowMarks = m.component.Marks
		}
		achieved += rowMarks
		result.PerContext = append(result.PerContext, performanceRow(resp, m.component.Key(), &m.tuple, rowMarks, m.component.Marks, true))
	}

	// Unmatched correct components: counted in possible, zero achieved.
	for _, c := range components {
		if !c.IsCorrect || seen[c.Key()] {
			continue
		}
		result.PerContext = append(result.PerContext, performanceRow(resp, c.Key(), nil, 0, c.Marks, false))
	}

	penalty := 0.0
	for _, m := range distractorMatches {
		penalty += m.component.Marks
		result.PerContext = append(result.PerContext, performanceRow(resp, m.component.Key(), &m.tuple, 0, 0, false))
	}

	// Stray tuples: audited, never counted toward min_required.
	for _, tuple := range strays {
		result.PerContext = append(result.PerContext, performanceRow(resp, tuple.Key(), &tuple, 0, 0, false))
	}

	if opts.NegativeMarking {
		achieved -= penalty
	}
	if achieved < 0 {
		achieved = 0
	}
	result.AchievedMarks = achieved
	return result, nil
}

func performanceRow(resp *models.StudentResponse, key models.ContextKey, tuple *models.ResponseTuple, achieved, possibleMarks float64, isCorrect bool) models.ContextPerformance {
	row := models.ContextPerformance{
		StudentID:     resp.StudentID,
		SessionID:     resp.SessionID,
		Parent:        resp.Parent,
		ContextType:   key.Type,
		ContextValue:  key.Value,
		AchievedMarks: achieved,
		PossibleMarks: possibleMarks,
		IsCorrect:     isCorrect,
	}
	if tuple != nil {
		text := tuple.ResponseText
		row.ResponseText = &text
	}
	return row
}
