package scenario

import (
	"fmt"
	"sort"

	"multilateration-sim/internal/multilateration"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates the localization errors of a run. Error statistics only
// cover solved trials and are zero when nothing was solved.
type Summary struct {
	Trials    int
	Solved    int
	Failed    int
	Exhausted int // solved trials that ran out of iterations

	MeanError   float64
	StdDevError float64
	MedianError float64
	P95Error    float64
	MaxError    float64

	MeanLoss       float64
	MeanAccuracy   float64
	MeanSimilarity float64
}

// Summarize computes the summary of results.
func Summarize(results []TrialResult) Summary {
	s := Summary{Trials: len(results)}
	var errs, losses, accuracies, similarities []float64
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		s.Solved++
		if r.Solution.Status == multilateration.IterationBudgetExhausted {
			s.Exhausted++
		}
		errs = append(errs, r.Error)
		losses = append(losses, r.Loss)
		accuracies = append(accuracies, r.Accuracy)
		similarities = append(similarities, r.Similarity)
	}
	if len(errs) == 0 {
		return s
	}

	s.MeanError = stat.Mean(errs, nil)
	if len(errs) > 1 {
		s.StdDevError = stat.StdDev(errs, nil)
	}
	sort.Float64s(errs)
	s.MedianError = stat.Quantile(0.5, stat.Empirical, errs, nil)
	s.P95Error = stat.Quantile(0.95, stat.Empirical, errs, nil)
	s.MaxError = floats.Max(errs)

	s.MeanLoss = stat.Mean(losses, nil)
	s.MeanAccuracy = stat.Mean(accuracies, nil)
	s.MeanSimilarity = stat.Mean(similarities, nil)
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("trials=%d solved=%d failed=%d exhausted=%d error(mean=%.6g std=%.6g median=%.6g p95=%.6g max=%.6g) loss=%.6g accuracy=%.6g similarity=%.6g",
		s.Trials, s.Solved, s.Failed, s.Exhausted,
		s.MeanError, s.StdDevError, s.MedianError, s.P95Error, s.MaxError,
		s.MeanLoss, s.MeanAccuracy, s.MeanSimilarity)
}
