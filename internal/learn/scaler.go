package learn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres each column on its mean and divides by its
// population standard deviation. Columns with zero spread keep scale 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Fit learns per-column mean and scale from x
func (s *StandardScaler) Fit(x mat.Matrix) error {
	n, p := x.Dims()
	if n == 0 || p == 0 {
		return fmt.Errorf("scaler: cannot fit on empty matrix (%dx%d)", n, p)
	}

	s.Mean = make([]float64, p)
	s.Scale = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
	return nil
}

// Transform returns a standardized copy of x
func (s *StandardScaler) Transform(x mat.Matrix) (*mat.Dense, error) {
	n, p := x.Dims()
	if p != len(s.Mean) {
		return nil, fmt.Errorf("scaler: fitted on %d columns, got %d", len(s.Mean), p)
	}

	out := mat.NewDense(n, p, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, x)
	return out, nil
}

func (s *StandardScaler) fitted() bool {
	return len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}
