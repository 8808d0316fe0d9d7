package testkit

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"mlgate/domain/dataset"
)

// WineFeatureNames are the physicochemical columns of the red wine dataset
var WineFeatureNames = []string{
	"fixed acidity",
	"volatile acidity",
	"citric acid",
	"residual sugar",
	"chlorides",
	"free sulfur dioxide",
	"total sulfur dioxide",
	"density",
	"pH",
	"sulphates",
	"alcohol",
}

// WineGeneratorConfig configures the synthetic dataset generator
type WineGeneratorConfig struct {
	Rows     int     `json:"rows"`
	Features int     `json:"features"`
	Noise    float64 `json:"noise"`
	Seed     int64   `json:"seed"`
	Target   string  `json:"target"`
}

// DefaultWineConfig matches the end-to-end scenario: 20 rows, 11 features.
func DefaultWineConfig() WineGeneratorConfig {
	return WineGeneratorConfig{
		Rows:     20,
		Features: 11,
		Noise:    0.3,
		Seed:     42,
		Target:   "quality",
	}
}

// WineDataGenerator produces numeric tables with an integer-valued target
// that depends linearly on the features plus noise.
type WineDataGenerator struct {
	config WineGeneratorConfig
	rng    *rand.Rand
}

// NewWineDataGenerator creates a generator
func NewWineDataGenerator(config WineGeneratorConfig) *WineDataGenerator {
	if config.Target == "" {
		config.Target = "quality"
	}
	return &WineDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// GenerateTable returns the features followed by the target column
func (g *WineDataGenerator) GenerateTable() (*dataset.Table, error) {
	headers := make([]string, 0, g.config.Features+1)
	columns := make([][]float64, 0, g.config.Features+1)
	weights := make([]float64, g.config.Features)

	for j := 0; j < g.config.Features; j++ {
		name := fmt.Sprintf("feature_%02d", j+1)
		if j < len(WineFeatureNames) {
			name = WineFeatureNames[j]
		}
		headers = append(headers, name)
		weights[j] = g.rng.Float64() - 0.5

		center := 1 + g.rng.Float64()*10
		col := make([]float64, g.config.Rows)
		for i := range col {
			col[i] = roundTo(center+g.rng.NormFloat64(), 4)
		}
		columns = append(columns, col)
	}

	target := make([]float64, g.config.Rows)
	for i := range target {
		score := 5.5 + g.rng.NormFloat64()*g.config.Noise
		for j, w := range weights {
			score += w * (columns[j][i] - columns[j][0])
		}
		target[i] = math.Max(0, math.Min(10, math.Round(score)))
	}

	headers = append(headers, g.config.Target)
	columns = append(columns, target)
	return dataset.NewTable(headers, columns)
}

// GenerateCSV renders the table the way the remote source publishes it:
// quoted headers, ';' separators.
func (g *WineDataGenerator) GenerateCSV() ([]byte, error) {
	table, err := g.GenerateTable()
	if err != nil {
		return nil, err
	}
	return EncodeCSV(table, ';'), nil
}

// EncodeCSV writes a table with quoted headers and the given delimiter
func EncodeCSV(table *dataset.Table, delimiter rune) []byte {
	var buf bytes.Buffer
	sep := string(delimiter)

	quoted := make([]string, len(table.Headers))
	for i, h := range table.Headers {
		quoted[i] = `"` + h + `"`
	}
	buf.WriteString(strings.Join(quoted, sep))
	buf.WriteByte('\n')

	for i := 0; i < table.NumRows(); i++ {
		row := table.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprintf("%g", v)
		}
		buf.WriteString(strings.Join(cells, sep))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
