package runner

import (
	"math"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// Timing is the best observed running time for one input size.
type Timing struct {
	Size    int
	Seconds float64
}

// MinMeasurableSeconds is the slowest timing a fit needs. Below it the
// timings are dominated by timer noise; the harness grows the input sizes
// until the largest one takes at least this long.
const MinMeasurableSeconds = 1e-4

// ClassifyPerformance estimates the asymptotic class of a function from its
// timings by fitting a line to log(time) against log(size). Timings that
// cannot support a fit are inconclusive.
func ClassifyPerformance(timings []Timing) domain.PerformanceClass {
	var xs, ys []float64
	slowest := 0.0
	for _, t := range timings {
		if t.Size <= 0 || t.Seconds <= 0 {
			continue
		}
		xs = append(xs, math.Log(float64(t.Size)))
		ys = append(ys, math.Log(t.Seconds))
		slowest = math.Max(slowest, t.Seconds)
	}
	if len(xs) < 2 || slowest < MinMeasurableSeconds {
		return domain.PerformanceInconclusive
	}

	slope := leastSquaresSlope(xs, ys)
	switch {
	case slope < 0.5:
		return domain.PerformanceConstant
	case slope < 1.5:
		return domain.PerformanceLinear
	case slope < 2.5:
		return domain.PerformanceQuadratic
	default:
		return domain.PerformanceCubic
	}
}

func leastSquaresSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
