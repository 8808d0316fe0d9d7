package analysis

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"mlgate/domain/core"
	"mlgate/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticFeatureTarget(t *testing.T, rows, features int) *dataset.FeatureTarget {
	t.Helper()
	headers := make([]string, 0, features+1)
	columns := make([][]float64, 0, features+1)
	for j := 0; j < features; j++ {
		headers = append(headers, string(rune('a'+j)))
		col := make([]float64, rows)
		for i := range col {
			col[i] = float64(i*(j+1)) + 0.5
		}
		columns = append(columns, col)
	}
	target := make([]float64, rows)
	for i := range target {
		target[i] = float64(i % 7)
	}
	headers = append(headers, "quality")
	columns = append(columns, target)

	table, err := dataset.NewTable(headers, columns)
	require.NoError(t, err)
	ft, err := dataset.SplitFeatureTarget(table, "quality")
	require.NoError(t, err)
	return ft
}

func TestTrainTestSplit_Sizes(t *testing.T) {
	ft := syntheticFeatureTarget(t, 20, 11)

	result, err := TrainTestSplit(ft, 0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, 4, result.Test.Len())
	assert.Equal(t, 16, result.Train.Len())
	assert.Equal(t, 4, result.Test.Features.NumRows())
	assert.Equal(t, 11, result.Test.Features.NumCols())
	assert.Len(t, result.Test.Target, 4)
	assert.Equal(t, PartitionStatistics{TotalRows: 20, TrainRows: 16, TestRows: 4, TestSize: 0.2, RandomSeed: 42}, result.PartitionStats)
}

func TestTrainTestSplit_UsesSeededPermutation(t *testing.T) {
	ft := syntheticFeatureTarget(t, 20, 3)

	result, err := TrainTestSplit(ft, 0.2, 42)
	require.NoError(t, err)

	perm := rand.New(rand.NewSource(42)).Perm(20)
	assert.Equal(t, perm[:4], result.Test.Indices)
	assert.Equal(t, perm[4:], result.Train.Indices)

	for k, i := range result.Test.Indices {
		assert.Equal(t, ft.Target[i], result.Test.Target[k])
		assert.Equal(t, ft.Features.Row(i), result.Test.Features.Row(k))
	}
}

func TestTrainTestSplit_Deterministic(t *testing.T) {
	ft := syntheticFeatureTarget(t, 50, 4)

	first, err := TrainTestSplit(ft, 0.2, 42)
	require.NoError(t, err)
	second, err := TrainTestSplit(ft, 0.2, 42)
	require.NoError(t, err)

	assert.Equal(t, first.Test.Indices, second.Test.Indices)
	assert.Equal(t, first.Train.Indices, second.Train.Indices)
	assert.Equal(t, first.Test.Target, second.Test.Target)

	other, err := TrainTestSplit(ft, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, first.Test.Indices, other.Test.Indices)
}

func TestTrainTestSplit_DisjointAndComplete(t *testing.T) {
	ft := syntheticFeatureTarget(t, 33, 2)

	result, err := TrainTestSplit(ft, 0.25, 1)
	require.NoError(t, err)

	assert.Equal(t, 9, result.Test.Len(), "ceil(0.25*33)")

	all := append(slices.Clone(result.Train.Indices), result.Test.Indices...)
	slices.Sort(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}

func TestTrainTestSplit_InvalidInput(t *testing.T) {
	ft := syntheticFeatureTarget(t, 1, 2)

	_, err := TrainTestSplit(ft, 0.2, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInsufficientData))

	for _, size := range []float64{0, 1, -0.1, 1.5} {
		_, err := NewDataPartitionerWithSeed(size, 42)
		assert.Error(t, err, "test size %v", size)
	}
}

func TestVerifyReproducible(t *testing.T) {
	dp, err := NewDataPartitionerWithSeed(0.2, 42)
	require.NoError(t, err)
	assert.NoError(t, dp.VerifyReproducible(syntheticFeatureTarget(t, 20, 11)))
}
