package model

import (
	"encoding/json"
	"fmt"

	"mlgate/domain/dataset"
)

// ColSpec describes one named input column
type ColSpec struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// TensorInfo is the dtype/shape pair of a tensor output
type TensorInfo struct {
	DType string `json:"dtype"`
	Shape []int  `json:"shape"`
}

// TensorSpec describes an unnamed tensor output
type TensorSpec struct {
	Type       string     `json:"type"`
	TensorSpec TensorInfo `json:"tensor-spec"`
}

// Signature is the inferred input/output schema of a model artifact.
type Signature struct {
	Inputs  []ColSpec    `json:"inputs"`
	Outputs []TensorSpec `json:"outputs"`
}

// InferSignature derives the schema from a feature sample and the model's
// predictions for it. Every feature column is a required double and the
// output is a 1-d float64 tensor of variable length.
func InferSignature(sample *dataset.Table, predictions []float64) (Signature, error) {
	if sample.NumRows() != len(predictions) {
		return Signature{}, fmt.Errorf("signature sample has %d rows but %d predictions",
			sample.NumRows(), len(predictions))
	}
	inputs := make([]ColSpec, len(sample.Headers))
	for i, h := range sample.Headers {
		inputs[i] = ColSpec{Type: "double", Name: h, Required: true}
	}
	return Signature{
		Inputs: inputs,
		Outputs: []TensorSpec{{
			Type:       "tensor",
			TensorSpec: TensorInfo{DType: "float64", Shape: []int{-1}},
		}},
	}, nil
}

// InputNames returns the input column names in order
func (s Signature) InputNames() []string {
	names := make([]string, len(s.Inputs))
	for i, c := range s.Inputs {
		names[i] = c.Name
	}
	return names
}

// CheckInput verifies a table carries every required input column.
func (s Signature) CheckInput(t *dataset.Table) error {
	for _, c := range s.Inputs {
		if c.Required && t.Index(c.Name) < 0 {
			return fmt.Errorf("input is missing required column %q", c.Name)
		}
	}
	return nil
}

// SignatureDoc is the stored form: inputs and outputs as JSON strings.
type SignatureDoc struct {
	Inputs  string `yaml:"inputs" json:"inputs"`
	Outputs string `yaml:"outputs" json:"outputs"`
}

// Doc encodes the signature for storage
func (s Signature) Doc() (SignatureDoc, error) {
	in, err := json.Marshal(s.Inputs)
	if err != nil {
		return SignatureDoc{}, err
	}
	out, err := json.Marshal(s.Outputs)
	if err != nil {
		return SignatureDoc{}, err
	}
	return SignatureDoc{Inputs: string(in), Outputs: string(out)}, nil
}

// Signature decodes a stored signature
func (d SignatureDoc) Signature() (Signature, error) {
	var s Signature
	if err := json.Unmarshal([]byte(d.Inputs), &s.Inputs); err != nil {
		return Signature{}, fmt.Errorf("decode signature inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(d.Outputs), &s.Outputs); err != nil {
		return Signature{}, fmt.Errorf("decode signature outputs: %w", err)
	}
	return s, nil
}
