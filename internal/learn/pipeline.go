package learn

import (
	"encoding/json"
	"fmt"
	"io"

	"mlgate/domain/dataset"

	"gonum.org/v1/gonum/mat"
)

// ModelKind is the value logged under the "model" parameter
const ModelKind = "Ridge"

// Pipeline chains standardization and ridge regression over a fixed,
// ordered feature list.
type Pipeline struct {
	Features []string       `json:"features"`
	Scaler   StandardScaler `json:"scaler"`
	Ridge    Ridge          `json:"ridge"`
}

// NewPipeline returns an unfitted pipeline
func NewPipeline(alpha float64) *Pipeline {
	return &Pipeline{Ridge: Ridge{Alpha: alpha}}
}

// Fit learns the scaler on the training features, then the regressor on
// the scaled features.
func (p *Pipeline) Fit(features *dataset.Table, y []float64) error {
	x := denseRows(features)
	if err := p.Scaler.Fit(x); err != nil {
		return err
	}
	scaled, err := p.Scaler.Transform(x)
	if err != nil {
		return err
	}
	if err := p.Ridge.Fit(scaled, y); err != nil {
		return err
	}
	p.Features = append([]string(nil), features.Headers...)
	return nil
}

// Predict selects the fitted features by name, scales them and predicts.
func (p *Pipeline) Predict(features *dataset.Table) ([]float64, error) {
	if !p.Fitted() {
		return nil, fmt.Errorf("pipeline is not fitted")
	}
	ordered, err := features.Select(p.Features)
	if err != nil {
		return nil, err
	}
	if ordered.NumRows() == 0 {
		return []float64{}, nil
	}
	scaled, err := p.Scaler.Transform(denseRows(ordered))
	if err != nil {
		return nil, err
	}
	return p.Ridge.Predict(scaled)
}

// Fitted reports whether every stage carries learned state
func (p *Pipeline) Fitted() bool {
	return len(p.Features) > 0 &&
		p.Scaler.fitted() &&
		len(p.Scaler.Mean) == len(p.Features) &&
		len(p.Ridge.Coef) == len(p.Features)
}

// String is the human description used in reports
func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(StandardScaler -> %s(alpha=%g)) on %d features", ModelKind, p.Ridge.Alpha, len(p.Features))
}

// Save writes the pipeline as JSON. encoding/json emits the shortest
// representation that parses back to the same float64.
func (p *Pipeline) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// LoadPipeline reads a pipeline written by Save.
func LoadPipeline(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	if !p.Fitted() {
		return nil, fmt.Errorf("decoded pipeline is incomplete: %d features, %d means, %d coefficients",
			len(p.Features), len(p.Scaler.Mean), len(p.Ridge.Coef))
	}
	return &p, nil
}

func denseRows(t *dataset.Table) *mat.Dense {
	n, p := t.NumRows(), t.NumCols()
	if n == 0 || p == 0 {
		return &mat.Dense{}
	}
	m := mat.NewDense(n, p, nil)
	for j, col := range t.Columns {
		m.SetCol(j, col)
	}
	return m
}
