package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"mlgate/domain/core"
	"mlgate/domain/dataset"
)

// DataPartitioner performs the seeded train/test split shared by the
// training and validation stages.
type DataPartitioner struct {
	testSize   float64
	randomSeed int64
}

// PartitionResult represents the outcome of data partitioning
type PartitionResult struct {
	Train          DatasetPartition
	Test           DatasetPartition
	PartitionStats PartitionStatistics
}

// DatasetPartition is one side of the split
type DatasetPartition struct {
	Indices  []int
	Features *dataset.Table
	Target   []float64
}

// Len returns the number of rows in the partition
func (p DatasetPartition) Len() int {
	return len(p.Indices)
}

// PartitionStatistics provides metadata about the partitioning
type PartitionStatistics struct {
	TotalRows  int
	TrainRows  int
	TestRows   int
	TestSize   float64
	RandomSeed int64
}

// NewDataPartitionerWithSeed creates a partitioner for a fixed test fraction and seed
func NewDataPartitionerWithSeed(testSize float64, seed int64) (*DataPartitioner, error) {
	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, fmt.Errorf("%w: test size %v must be in (0, 1)", core.ErrInsufficientData, testSize)
	}
	return &DataPartitioner{testSize: testSize, randomSeed: seed}, nil
}

// TestRows returns ceil(testSize * n)
func (dp *DataPartitioner) TestRows(n int) int {
	return int(math.Ceil(dp.testSize * float64(n)))
}

// PartitionDataset shuffles row indices with a fresh source seeded by the
// partitioner's seed. The first TestRows(n) shuffled indices form the test
// set and the remainder the training set, both in shuffled order.
func (dp *DataPartitioner) PartitionDataset(ft *dataset.FeatureTarget) (*PartitionResult, error) {
	n := ft.Len()
	nTest := dp.TestRows(n)
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, fmt.Errorf("%w: %d rows cannot be split with test size %v (train=%d, test=%d)",
			core.ErrInsufficientData, n, dp.testSize, nTrain, nTest)
	}

	perm := rand.New(rand.NewSource(dp.randomSeed)).Perm(n)
	testIdx := perm[:nTest]
	trainIdx := perm[nTest:]

	return &PartitionResult{
		Train: dp.extractPartition(ft, trainIdx),
		Test:  dp.extractPartition(ft, testIdx),
		PartitionStats: PartitionStatistics{
			TotalRows:  n,
			TrainRows:  nTrain,
			TestRows:   nTest,
			TestSize:   dp.testSize,
			RandomSeed: dp.randomSeed,
		},
	}, nil
}

func (dp *DataPartitioner) extractPartition(ft *dataset.FeatureTarget, idx []int) DatasetPartition {
	target := make([]float64, len(idx))
	for k, i := range idx {
		target[k] = ft.Target[i]
	}
	return DatasetPartition{
		Indices:  slices.Clone(idx),
		Features: ft.Features.Take(idx),
		Target:   target,
	}
}

// VerifyReproducible partitions twice and fails if membership differs.
func (dp *DataPartitioner) VerifyReproducible(ft *dataset.FeatureTarget) error {
	first, err := dp.PartitionDataset(ft)
	if err != nil {
		return err
	}
	second, err := dp.PartitionDataset(ft)
	if err != nil {
		return err
	}
	if !slices.Equal(first.Test.Indices, second.Test.Indices) || !slices.Equal(first.Train.Indices, second.Train.Indices) {
		return fmt.Errorf("%w: seed %d produced different partitions", core.ErrNonDeterministic, dp.randomSeed)
	}
	return nil
}

// TrainTestSplit is the one-call form used by both stages.
func TrainTestSplit(ft *dataset.FeatureTarget, testSize float64, seed int64) (*PartitionResult, error) {
	dp, err := NewDataPartitionerWithSeed(testSize, seed)
	if err != nil {
		return nil, err
	}
	return dp.PartitionDataset(ft)
}
