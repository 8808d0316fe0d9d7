package dataset

import (
	"encoding/json"
	"fmt"
	"math"

	domain "mlgate/domain/dataset"

	"github.com/montanaflynn/stats"
)

// ProfileFile is the artifact name of a logged dataset profile
const ProfileFile = "dataset_profile.json"

// ColumnProfile holds summary statistics for one column
type ColumnProfile struct {
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std"`
	Min      float64 `json:"min"`
	Q25      float64 `json:"q25"`
	Median   float64 `json:"median"`
	Q75      float64 `json:"q75"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
}

// Profile summarizes a whole table
type Profile struct {
	Source      string          `json:"source"`
	SHA256      string          `json:"sha256"`
	Rows        int             `json:"rows"`
	Columns     []ColumnProfile `json:"columns"`
	Target      string          `json:"target,omitempty"`
	TargetStats *ColumnProfile  `json:"target_stats,omitempty"`
}

// BuildProfile computes per-column statistics for the loaded dataset
func BuildProfile(loaded *domain.Loaded, target string) (*Profile, error) {
	t := loaded.Table
	p := &Profile{
		Source:  loaded.Source,
		SHA256:  loaded.Hash.String(),
		Rows:    t.NumRows(),
		Columns: make([]ColumnProfile, 0, t.NumCols()),
		Target:  target,
	}

	for j, name := range t.Headers {
		cp, err := profileColumn(name, t.Columns[j])
		if err != nil {
			return nil, fmt.Errorf("profile column %q: %w", name, err)
		}
		p.Columns = append(p.Columns, cp)
		if name == target {
			targetStats := cp
			p.TargetStats = &targetStats
		}
	}
	return p, nil
}

func profileColumn(name string, data []float64) (ColumnProfile, error) {
	cp := ColumnProfile{Name: name, Count: len(data)}
	if len(data) == 0 {
		return cp, nil
	}

	var err error
	if cp.Mean, err = stats.Mean(data); err != nil {
		return cp, err
	}
	if cp.StdDev, err = stats.StandardDeviationPopulation(data); err != nil {
		return cp, err
	}
	if cp.Min, err = stats.Min(data); err != nil {
		return cp, err
	}
	if cp.Max, err = stats.Max(data); err != nil {
		return cp, err
	}
	if cp.Median, err = stats.Median(data); err != nil {
		return cp, err
	}
	if cp.Q25, err = stats.Percentile(data, 25); err != nil {
		return cp, err
	}
	if cp.Q75, err = stats.Percentile(data, 75); err != nil {
		return cp, err
	}
	cp.Skewness = calculateSkewness(data, cp.Mean, cp.StdDev)
	return cp, nil
}

// calculateSkewness computes the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	return sumCubedDeviations / n * math.Sqrt(n*(n-1)) / (n - 2)
}

// JSON renders the profile for logging as an artifact
func (p *Profile) JSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
