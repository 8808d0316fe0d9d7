package model

import (
	"testing"

	"mlgate/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.NewTable(
		[]string{"fixed acidity", "alcohol"},
		[][]float64{{7.4, 7.8, 11.2}, {9.4, 9.8, 9.8}},
	)
	require.NoError(t, err)
	return table
}

func TestInferSignature(t *testing.T) {
	sig, err := InferSignature(sampleTable(t), []float64{5.1, 5.2, 5.9})
	require.NoError(t, err)

	assert.Equal(t, []string{"fixed acidity", "alcohol"}, sig.InputNames())
	require.Len(t, sig.Outputs, 1)
	assert.Equal(t, "float64", sig.Outputs[0].TensorSpec.DType)
	assert.Equal(t, []int{-1}, sig.Outputs[0].TensorSpec.Shape)

	_, err = InferSignature(sampleTable(t), []float64{1})
	assert.Error(t, err)
}

func TestSignatureDocRoundTrip(t *testing.T) {
	sig, err := InferSignature(sampleTable(t), []float64{1, 2, 3})
	require.NoError(t, err)

	doc, err := sig.Doc()
	require.NoError(t, err)
	assert.Contains(t, doc.Inputs, `"name":"fixed acidity"`)

	decoded, err := doc.Signature()
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
}

func TestSignatureCheckInput(t *testing.T) {
	sig, err := InferSignature(sampleTable(t), []float64{1, 2, 3})
	require.NoError(t, err)

	assert.NoError(t, sig.CheckInput(sampleTable(t)))

	partial, err := sampleTable(t).Select([]string{"alcohol"})
	require.NoError(t, err)
	assert.Error(t, sig.CheckInput(partial))
}

func TestInputExampleTable(t *testing.T) {
	example := NewInputExample(sampleTable(t), 2)
	assert.Equal(t, [][]float64{{7.4, 9.4}, {7.8, 9.8}}, example.Data)

	table, err := example.Table()
	require.NoError(t, err)
	assert.Equal(t, []float64{7.4, 7.8}, table.Columns[0])
}
