package learn

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Ridge is an L2-regularised linear regression. The intercept is fitted on
// centred data so it is never penalised.
type Ridge struct {
	Alpha     float64   `json:"alpha"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Fit solves (XcᵀXc + αI)w = Xcᵀyc with a Cholesky factorization.
func (r *Ridge) Fit(x mat.Matrix, y []float64) error {
	n, p := x.Dims()
	if n != len(y) {
		return fmt.Errorf("ridge: %d rows but %d targets", n, len(y))
	}
	if n == 0 || p == 0 {
		return fmt.Errorf("ridge: cannot fit on empty matrix (%dx%d)", n, p)
	}
	if r.Alpha < 0 {
		return fmt.Errorf("ridge: alpha must not be negative, got %v", r.Alpha)
	}

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		xMean[j] = stat.Mean(col, nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(i, j int, v float64) float64 {
		return v - xMean[j]
	}, x)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xc.T())
	for i := 0; i < p; i++ {
		gram.SetSym(i, i, gram.At(i, i)+r.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("ridge: normal equations are not positive definite (alpha=%v)", r.Alpha)
	}

	rhs := mat.NewVecDense(p, nil)
	rhs.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var w mat.VecDense
	if err := chol.SolveVecTo(&w, rhs); err != nil {
		return fmt.Errorf("ridge: solve failed: %w", err)
	}

	r.Coef = make([]float64, p)
	for j := range r.Coef {
		r.Coef[j] = w.AtVec(j)
	}
	r.Intercept = yMean - floats.Dot(xMean, r.Coef)
	return nil
}

// Predict returns Xw + b for every row of x
func (r *Ridge) Predict(x mat.Matrix) ([]float64, error) {
	n, p := x.Dims()
	if p != len(r.Coef) {
		return nil, fmt.Errorf("ridge: fitted on %d features, got %d", len(r.Coef), p)
	}

	out := make([]float64, n)
	row := make([]float64, p)
	for i := 0; i < n; i++ {
		mat.Row(row, i, x)
		out[i] = r.Intercept + floats.Dot(row, r.Coef)
	}
	return out, nil
}
