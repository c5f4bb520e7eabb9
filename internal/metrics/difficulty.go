package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/exambank/scoring/internal/models"
)

// Thresholds bucket avg_success_rate into difficulty levels.
type Thresholds struct {
	Easy float64 // above this rate the item is easy
	Hard float64 // below this rate the item is hard
}

// discriminationFraction is the classical 27% upper/lower group split.
const discriminationFraction = 0.27

// Inputs is everything one snapshot computation needs. Compute is pure and
// deterministic over it: the same inputs always produce the same metric.
type Inputs struct {
	Key            models.ContextKey
	Period         models.Period
	Performances   []models.ContextPerformance
	StudentMastery map[int64]float64
	MinSampleSize  int
	Thresholds     Thresholds
}

// Compute derives one difficulty snapshot from a context's performance rows.
// A sample below MinSampleSize is flagged low_confidence, never withheld;
// only an empty sample is an error.
func Compute(in Inputs) (*models.ContextDifficultyMetric, error) {
	n := len(in.Performances)
	if n == 0 {
		return nil, fmt.Errorf("%w: no performances for context %s in period", models.ErrInsufficientData, in.Key)
	}

	correct := 0
	ratios := make([]float64, 0, n)
	for _, p := range in.Performances {
		if p.IsCorrect {
			correct++
		}
		ratios = append(ratios, markRatio(p))
	}
	successRate := float64(correct) / float64(n)

	stdDev, err := stats.StandardDeviation(stats.Float64Data(ratios))
	if err != nil {
		return nil, fmt.Errorf("std deviation: %w", err)
	}

	metric := &models.ContextDifficultyMetric{
		ContextType:            in.Key.Type,
		ContextValue:           in.Key.Value,
		AvgSuccessRate:         successRate,
		DiscriminationIndex:    discriminationIndex(in.Performances, in.StudentMastery),
		StdDeviation:           stdDev,
		DifficultyLevel:        Classify(successRate, in.Thresholds),
		SampleSize:             n,
		LowConfidence:          n < in.MinSampleSize,
		CalculationPeriodStart: in.Period.Start,
		CalculationPeriodEnd:   in.Period.End,
	}
	return metric, nil
}

func Classify(successRate float64, th Thresholds) models.DifficultyLevel {
	switch {
	case successRate < th.Hard:
		return models.DifficultyHard
	case successRate > th.Easy:
		return models.DifficultyEasy
	default:
		return models.DifficultyMedium
	}
}

// discriminationIndex splits students into top/bottom 27% by overall
// mastery and subtracts the groups' success rates on this context. Always
// in [-1,1]; near zero means the item fails to separate strong and weak
// students, which is a data-quality signal rather than an error.
func discriminationIndex(perfs []models.ContextPerformance, mastery map[int64]float64) float64 {
	byStudent := make(map[int64]*studentOutcome)
	for _, p := range perfs {
		o := byStudent[p.StudentID]
		if o == nil {
			o = &studentOutcome{}
			byStudent[p.StudentID] = o
		}
		o.total++
		if p.IsCorrect {
			o.correct++
		}
	}
	if len(byStudent) < 2 {
		return 0
	}

	students := make([]int64, 0, len(byStudent))
	for id := range byStudent {
		students = append(students, id)
	}
	// Rank by mastery, ties broken by id so reruns order identically.
	sort.Slice(students, func(i, j int) bool {
		mi, mj := mastery[students[i]], mastery[students[j]]
		if mi != mj {
			return mi > mj
		}
		return students[i] < students[j]
	})

	groupSize := int(math.Round(discriminationFraction * float64(len(students))))
	if groupSize < 1 {
		groupSize = 1
	}

	top := students[:groupSize]
	bottom := students[len(students)-groupSize:]
	return groupRate(top, byStudent) - groupRate(bottom, byStudent)
}

type studentOutcome struct {
	total, correct int
}

func groupRate(ids []int64, byStudent map[int64]*studentOutcome) float64 {
	total, correct := 0, 0
	for _, id := range ids {
		o := byStudent[id]
		total += o.total
		correct += o.correct
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

func markRatio(p models.ContextPerformance) float64 {
	if p.PossibleMarks <= 0 {
		return 0
	}
	r := p.AchievedMarks / p.PossibleMarks
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
