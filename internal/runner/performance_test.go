package runner

import (
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func timingsFor(f func(n float64) float64) []Timing {
	var out []Timing
	for _, n := range []int{100, 200, 400, 800, 1600} {
		out = append(out, Timing{Size: n, Seconds: f(float64(n))})
	}
	return out
}

func TestClassifyPerformance(t *testing.T) {
	tests := []struct {
		name    string
		timings []Timing
		want    domain.PerformanceClass
	}{
		{"flat", timingsFor(func(float64) float64 { return 0.01 }), domain.PerformanceConstant},
		{"below timer resolution", timingsFor(func(n float64) float64 { return n * 1e-9 }), domain.PerformanceInconclusive},
		{"fast linear", []Timing{{100, 5.1e-6}, {200, 1.0e-5}, {400, 2.0e-5}, {800, 4.1e-5}, {1600, 8.0e-5}}, domain.PerformanceInconclusive},
		{"linear after scaling", []Timing{{1600, 8.0e-5}, {3200, 1.6e-4}, {6400, 3.3e-4}, {12800, 6.4e-4}, {25600, 1.3e-3}}, domain.PerformanceLinear},
		{"linear", timingsFor(func(n float64) float64 { return n * 1e-5 }), domain.PerformanceLinear},
		{"quadratic", timingsFor(func(n float64) float64 { return n * n * 1e-8 }), domain.PerformanceQuadratic},
		{"cubic", timingsFor(func(n float64) float64 { return n * n * n * 1e-10 }), domain.PerformanceCubic},
		{"single point", []Timing{{Size: 10, Seconds: 1}}, domain.PerformanceInconclusive},
		{"empty", nil, domain.PerformanceInconclusive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPerformance(tt.timings); got != tt.want {
				t.Errorf("ClassifyPerformance() = %s, want %s", got, tt.want)
			}
		})
	}
}
