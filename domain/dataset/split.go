package dataset

import (
	"fmt"

	"mlgate/domain/core"
)

// FeatureTarget is a table partitioned into a feature view and a target series.
type FeatureTarget struct {
	Features   *Table
	Target     []float64
	TargetName string
}

// SplitFeatureTarget keeps every column except target as a feature, in the
// original column order.
func SplitFeatureTarget(t *Table, target string) (*FeatureTarget, error) {
	y, ok := t.Column(target)
	if !ok {
		return nil, core.NewMissingColumnError(target)
	}

	names := make([]string, 0, t.NumCols()-1)
	for _, h := range t.Headers {
		if h != target {
			names = append(names, h)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no columns besides the target %q", core.ErrMalformedTable, target)
	}

	features, err := t.Select(names)
	if err != nil {
		return nil, err
	}

	return &FeatureTarget{
		Features:   features,
		Target:     append([]float64(nil), y...),
		TargetName: target,
	}, nil
}

// Len returns the number of rows
func (ft *FeatureTarget) Len() int {
	return len(ft.Target)
}
