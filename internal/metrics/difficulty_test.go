package metrics

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/exambank/scoring/internal/models"
)

var testThresholds = Thresholds{Easy: 0.7, Hard: 0.4}

func testPeriod() models.Period {
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return models.Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func contextPerf(studentID int64, achieved, possible float64, correct bool) models.ContextPerformance {
	return models.ContextPerformance{
		StudentID:     studentID,
		Parent:        models.QuestionRef(1),
		ContextType:   models.ContextStep,
		ContextValue:  "step_1",
		AchievedMarks: achieved,
		PossibleMarks: possible,
		IsCorrect:     correct,
	}
}

func TestComputeSuccessRateAndClassification(t *testing.T) {
	tests := []struct {
		name      string
		correct   int
		total     int
		wantLevel models.DifficultyLevel
	}{
		{"mostly wrong is hard", 1, 10, models.DifficultyHard},
		{"middling is medium", 5, 10, models.DifficultyMedium},
		{"mostly right is easy", 9, 10, models.DifficultyEasy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var perfs []models.ContextPerformance
			for i := 0; i < tt.total; i++ {
				correct := i < tt.correct
				achieved := 0.0
				if correct {
					achieved = 2
				}
				perfs = append(perfs, contextPerf(int64(i+1), achieved, 2, correct))
			}

			metric, err := Compute(Inputs{
				Key:           models.ContextKey{Type: models.ContextStep, Value: "step_1"},
				Period:        testPeriod(),
				Performances:  perfs,
				MinSampleSize: 5,
				Thresholds:    testThresholds,
			})
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}

			wantRate := float64(tt.correct) / float64(tt.total)
			if math.Abs(metric.AvgSuccessRate-wantRate) > 1e-9 {
				t.Errorf("success rate = %v, want %v", metric.AvgSuccessRate, wantRate)
			}
			if metric.DifficultyLevel != tt.wantLevel {
				t.Errorf("level = %s, want %s", metric.DifficultyLevel, tt.wantLevel)
			}
			if metric.SampleSize != tt.total {
				t.Errorf("sample size = %d, want %d", metric.SampleSize, tt.total)
			}
		})
	}
}

func TestComputeEmptySample(t *testing.T) {
	_, err := Compute(Inputs{
		Key:           models.ContextKey{Type: models.ContextStep, Value: "step_1"},
		Period:        testPeriod(),
		MinSampleSize: 5,
		Thresholds:    testThresholds,
	})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Errorf("got %v, want ErrInsufficientData", err)
	}
}

func TestComputeLowConfidenceFlaggedNotWithheld(t *testing.T) {
	perfs := []models.ContextPerformance{
		contextPerf(1, 2, 2, true),
		contextPerf(2, 0, 2, false),
	}
	metric, err := Compute(Inputs{
		Key:           models.ContextKey{Type: models.ContextStep, Value: "step_1"},
		Period:        testPeriod(),
		Performances:  perfs,
		MinSampleSize: 30,
		Thresholds:    testThresholds,
	})
	if err != nil {
		t.Fatalf("Compute must not withhold a small-sample metric: %v", err)
	}
	if !metric.LowConfidence {
		t.Errorf("small sample must be flagged low confidence")
	}
}

func TestDiscriminationIndexSeparatesGroups(t *testing.T) {
	// Ten students: the high-mastery half always succeeds on this context,
	// the low-mastery half always fails. A strongly discriminating item.
	var perfs []models.ContextPerformance
	mastery := make(map[int64]float64)
	for i := int64(1); i <= 10; i++ {
		strong := i <= 5
		mastery[i] = 0.2
		if strong {
			mastery[i] = 0.9
		}
		achieved := 0.0
		if strong {
			achieved = 2
		}
		perfs = append(perfs, contextPerf(i, achieved, 2, strong))
	}

	idx := discriminationIndex(perfs, mastery)
	if idx != 1 {
		t.Errorf("discrimination = %v, want 1", idx)
	}

	// Inverting mastery ranks flips the sign.
	inverted := make(map[int64]float64)
	for id, m := range mastery {
		inverted[id] = 1 - m
	}
	if got := discriminationIndex(perfs, inverted); got != -1 {
		t.Errorf("inverted discrimination = %v, want -1", got)
	}
}

func TestDiscriminationIndexBounds(t *testing.T) {
	var perfs []models.ContextPerformance
	mastery := make(map[int64]float64)
	for i := int64(1); i <= 9; i++ {
		mastery[i] = float64(i) / 10
		perfs = append(perfs, contextPerf(i, float64(i%3), 2, i%2 == 0))
	}

	idx := discriminationIndex(perfs, mastery)
	if idx < -1 || idx > 1 {
		t.Errorf("discrimination %v outside [-1,1]", idx)
	}
}

func TestDiscriminationIndexSingleStudent(t *testing.T) {
	perfs := []models.ContextPerformance{
		contextPerf(1, 2, 2, true),
		contextPerf(1, 0, 2, false),
	}
	if got := discriminationIndex(perfs, map[int64]float64{1: 0.5}); got != 0 {
		t.Errorf("single-student discrimination = %v, want 0", got)
	}
}

func TestComputeStdDeviation(t *testing.T) {
	// Ratios 1, 0, 1, 0 have population std deviation 0.5.
	perfs := []models.ContextPerformance{
		contextPerf(1, 2, 2, true),
		contextPerf(2, 0, 2, false),
		contextPerf(3, 2, 2, true),
		contextPerf(4, 0, 2, false),
	}
	metric, err := Compute(Inputs{
		Key:           models.ContextKey{Type: models.ContextStep, Value: "step_1"},
		Period:        testPeriod(),
		Performances:  perfs,
		MinSampleSize: 1,
		Thresholds:    testThresholds,
	})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.Abs(metric.StdDeviation-0.5) > 1e-9 {
		t.Errorf("std deviation = %v, want 0.5", metric.StdDeviation)
	}
}

func TestComputeDeterministic(t *testing.T) {
	var perfs []models.ContextPerformance
	mastery := make(map[int64]float64)
	for i := int64(1); i <= 20; i++ {
		mastery[i] = float64(i%7) / 7
		perfs = append(perfs, contextPerf(i, float64(i%3), 2, i%2 == 0))
	}
	in := Inputs{
		Key:            models.ContextKey{Type: models.ContextStep, Value: "step_1"},
		Period:         testPeriod(),
		Performances:   perfs,
		StudentMastery: mastery,
		MinSampleSize:  5,
		Thresholds:     testThresholds,
	}

	first, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := Compute(in)
		if err != nil {
			t.Fatalf("Compute rerun: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("rerun diverged: %+v vs %+v", first, again)
		}
	}
}

func TestClassifyThresholdEdges(t *testing.T) {
	tests := []struct {
		rate float64
		want models.DifficultyLevel
	}{
		{0.39, models.DifficultyHard},
		{0.4, models.DifficultyMedium}, // boundary values are medium
		{0.7, models.DifficultyMedium},
		{0.71, models.DifficultyEasy},
	}
	for _, tt := range tests {
		if got := Classify(tt.rate, testThresholds); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}
