package learn

import (
	"bytes"
	"math"
	"testing"

	"mlgate/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
	})

	var s StandardScaler
	require.NoError(t, s.Fit(x))

	assert.InDelta(t, 2.0, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(2.0/3.0), s.Scale[0], 1e-12)
	assert.Equal(t, 5.0, s.Mean[1])
	assert.Equal(t, 1.0, s.Scale[1], "zero variance column keeps unit scale")

	out, err := s.Transform(x)
	require.NoError(t, err)
	assert.InDelta(t, -1.224744871391589, out.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, out.At(2, 1))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestRidgeRecoversLinearModelWithoutPenalty(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 1,
		3, 1,
		4, 3,
		5, 2,
		6, 5,
	})
	y := make([]float64, 6)
	for i := range y {
		y[i] = 2*x.At(i, 0) - 3*x.At(i, 1) + 5
	}

	r := Ridge{Alpha: 0}
	require.NoError(t, r.Fit(x, y))

	assert.InDelta(t, 2.0, r.Coef[0], 1e-9)
	assert.InDelta(t, -3.0, r.Coef[1], 1e-9)
	assert.InDelta(t, 5.0, r.Intercept, 1e-9)

	pred, err := r.Predict(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestRidgeShrinksSingleFeature(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	y := []float64{2, 4, 5, 9}
	x := mat.NewDense(4, 1, xs)

	r := Ridge{Alpha: 1}
	require.NoError(t, r.Fit(x, y))

	// closed form on centred data: w = sum(xc*yc) / (sum(xc^2) + alpha)
	xm, ym := 2.5, 5.0
	var num, den float64
	for i := range xs {
		num += (xs[i] - xm) * (y[i] - ym)
		den += (xs[i] - xm) * (xs[i] - xm)
	}
	want := num / (den + 1)

	assert.InDelta(t, want, r.Coef[0], 1e-12)
	assert.InDelta(t, ym-want*xm, r.Intercept, 1e-12)
}

func TestRidgeRejectsBadInput(t *testing.T) {
	r := Ridge{Alpha: 1}
	assert.Error(t, r.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1}))

	neg := Ridge{Alpha: -1}
	assert.Error(t, neg.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}))
}

func sampleTable(t *testing.T) (*dataset.Table, []float64) {
	t.Helper()
	table, err := dataset.NewTable(
		[]string{"a", "b", "c"},
		[][]float64{
			{1, 2, 3, 4, 5, 6, 7, 8},
			{0.5, 0.1, 0.9, 0.3, 0.7, 0.2, 0.8, 0.4},
			{3, 3, 3, 3, 3, 3, 3, 3},
		},
	)
	require.NoError(t, err)
	return table, []float64{5, 6, 5, 7, 6, 8, 6, 7}
}

func TestPipelineSaveLoadRoundTrip(t *testing.T) {
	table, y := sampleTable(t)

	p := NewPipeline(1.0)
	require.NoError(t, p.Fit(table, y))
	assert.True(t, p.Fitted())

	before, err := p.Predict(table)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf))

	loaded, err := LoadPipeline(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)

	after, err := loaded.Predict(table)
	require.NoError(t, err)
	assert.Equal(t, before, after, "predictions must match bit for bit")
}

func TestPipelinePredictUsesFittedColumnOrder(t *testing.T) {
	table, y := sampleTable(t)
	p := NewPipeline(1.0)
	require.NoError(t, p.Fit(table, y))

	want, err := p.Predict(table)
	require.NoError(t, err)

	shuffled, err := table.Select([]string{"c", "a", "b"})
	require.NoError(t, err)
	got, err := p.Predict(shuffled)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	missing, err := table.Select([]string{"a", "b"})
	require.NoError(t, err)
	_, err = p.Predict(missing)
	assert.Error(t, err)
}

func TestLoadPipelineRejectsIncompleteModel(t *testing.T) {
	_, err := LoadPipeline(bytes.NewBufferString(`{"features":["a"],"scaler":{"mean":[],"scale":[]},"ridge":{"alpha":1}}`))
	assert.Error(t, err)

	_, err = LoadPipeline(bytes.NewBufferString(`not json`))
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	yTrue := []float64{3, 5, 7, 9}
	yPred := []float64{2, 5, 8, 9}

	e, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, e.MSE, 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), e.RMSE, 1e-12)
	assert.InDelta(t, 0.5, e.MAE, 1e-12)
	assert.InDelta(t, 1-2.0/20.0, e.R2, 1e-12)
	assert.Equal(t, e.RMSE, RMSE(yTrue, yPred))

	_, err = Evaluate([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
	_, err = Evaluate(nil, nil)
	assert.Error(t, err)
}

func TestR2ConstantTarget(t *testing.T) {
	assert.Equal(t, 1.0, R2([]float64{2, 2}, []float64{2, 2}))
	assert.Equal(t, 0.0, R2([]float64{2, 2}, []float64{1, 2}))
}
