package model

import (
	"mlgate/domain/dataset"
)

// Flavor names and artifact file names inside a logged model directory
const (
	FlavorPipeline   = "mlgate.pipeline"
	MLModelFile      = "MLmodel"
	PipelineFile     = "model.json"
	InputExampleFile = "input_example.json"
)

// MLModel is the metadata document stored next to a logged model.
type MLModel struct {
	ArtifactPath          string                    `yaml:"artifact_path"`
	Flavors               map[string]map[string]any `yaml:"flavors"`
	ModelUUID             string                    `yaml:"model_uuid"`
	RunID                 string                    `yaml:"run_id"`
	Signature             *SignatureDoc             `yaml:"signature,omitempty"`
	SavedInputExampleInfo *ExampleInfo              `yaml:"saved_input_example_info,omitempty"`
	UTCTimeCreated        string                    `yaml:"utc_time_created"`
}

// ExampleInfo points at the stored input example
type ExampleInfo struct {
	ArtifactPath string `yaml:"artifact_path"`
	Type         string `yaml:"type"`
	Orient       string `yaml:"pandas_orient"`
}

// InputExample is a small representative input in split orientation.
type InputExample struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

// NewInputExample captures the first n rows of a feature table.
func NewInputExample(features *dataset.Table, n int) InputExample {
	head := features.Head(n)
	return InputExample{
		Columns: append([]string(nil), head.Headers...),
		Data:    head.Rows(),
	}
}

// Table converts the example back to a column-major table.
func (e InputExample) Table() (*dataset.Table, error) {
	columns := make([][]float64, len(e.Columns))
	for j := range columns {
		columns[j] = make([]float64, len(e.Data))
	}
	for i, row := range e.Data {
		for j := range e.Columns {
			if j < len(row) {
				columns[j][i] = row[j]
			}
		}
	}
	return dataset.NewTable(e.Columns, columns)
}
