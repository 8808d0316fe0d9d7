package learn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Eval holds the regression metrics logged for a run
type Eval struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Evaluate compares predictions against ground truth.
func Evaluate(yTrue, yPred []float64) (Eval, error) {
	if len(yTrue) != len(yPred) {
		return Eval{}, fmt.Errorf("metrics: %d targets but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return Eval{}, fmt.Errorf("metrics: no samples")
	}

	mse := MeanSquaredError(yTrue, yPred)
	var absSum float64
	for i := range yTrue {
		absSum += math.Abs(yTrue[i] - yPred[i])
	}
	return Eval{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  absSum / float64(len(yTrue)),
		R2:   R2(yTrue, yPred),
	}, nil
}

// MeanSquaredError is the mean of squared residuals
func MeanSquaredError(yTrue, yPred []float64) float64 {
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue))
}

// RMSE is the square root of MeanSquaredError.
func RMSE(yTrue, yPred []float64) float64 {
	return math.Sqrt(MeanSquaredError(yTrue, yPred))
}

// R2 is the coefficient of determination. A constant target yields 1 for a
// perfect fit and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	mean := stat.Mean(yTrue, nil)
	var ssRes, ssTot float64
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		ssRes += r * r
		d := yTrue[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
