package mastery

import "github.com/exambank/scoring/internal/models"

// Apply folds one performance row into a cache entry. Pure: callers own
// locking and persistence. Replaying the same row sequence into a fresh
// cache always yields the same final state.
func Apply(cache *models.ContextMasteryCache, perf models.ContextPerformance, decayRate float64) {
	first := cache.TotalAttempts == 0

	cache.TotalAttempts++
	if perf.IsCorrect {
		cache.SuccessfulAttempts++
	}
	cache.TotalMarksAchieved += perf.AchievedMarks
	cache.TotalMarksPossible += perf.PossibleMarks

	cache.MasteryLevel = clamp01(ratio(cache.TotalMarksAchieved, cache.TotalMarksPossible))

	// Recency weighting: newer attempts dominate older ones through
	// exponential decay of the previous estimate.
	attemptRatio := clamp01(ratio(perf.AchievedMarks, perf.PossibleMarks))
	cache.WeightedMastery = clamp01(decayRate*cache.WeightedMastery + (1-decayRate)*attemptRatio)

	if first {
		cache.FirstAttemptAt = perf.AnsweredAt
	}
	cache.LastAttemptAt = perf.AnsweredAt
}

// ratio guards the zero-possible case: no marks on offer means no evidence
// of mastery, not a division error.
func ratio(achieved, possible float64) float64 {
	if possible <= 0 {
		return 0
	}
	return achieved / possible
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
