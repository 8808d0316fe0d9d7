// Package modelio logs fitted pipelines as run artifacts and loads them
// back by runs:/ reference.
package modelio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"mlgate/domain/core"
	"mlgate/domain/dataset"
	"mlgate/domain/model"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/internal/learn"
	"mlgate/ports"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultArtifactPath is where training logs the pipeline inside a run
	DefaultArtifactPath = "model"

	// ExampleRows is the size of the stored input example and of the
	// sample the signature is inferred from
	ExampleRows = 5

	createdLayout = "2006-01-02 15:04:05.000000"
)

// LoadedModel is a pipeline reloaded from the tracking store
type LoadedModel struct {
	URI       run.ModelURI
	Run       *run.Run
	Meta      model.MLModel
	Signature model.Signature
	Pipeline  *learn.Pipeline
}

// Repository reads and writes model artifacts for runs
type Repository struct {
	runs      ports.ReaderPort
	artifacts ports.ArtifactRepository
	logger    *internal.Logger

	// ExampleRows overrides the input example size
	ExampleRows int
}

// NewRepository creates a model repository over a tracking store and its
// artifact repository
func NewRepository(runs ports.ReaderPort, artifacts ports.ArtifactRepository, logger *internal.Logger) *Repository {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Repository{runs: runs, artifacts: artifacts, logger: logger, ExampleRows: ExampleRows}
}

// LogModel stores the pipeline, its input example and the MLmodel document
// under artifactPath of the run. The signature is inferred from the first
// r.ExampleRows rows of sample and the pipeline's predictions for them.
func (r *Repository) LogModel(ctx context.Context, info *run.RunInfo, artifactPath string, p *learn.Pipeline, sample *dataset.Table) (run.ModelURI, error) {
	uri := run.NewModelURI(info.RunID, artifactPath)
	if !p.Fitted() {
		return uri, errors.WithCode(errors.CodeInvalidInput, core.ErrInvalidModel, "cannot log an unfitted pipeline")
	}

	rows := r.ExampleRows
	if rows <= 0 {
		rows = ExampleRows
	}
	example := model.NewInputExample(sample, rows)
	exampleTable, err := example.Table()
	if err != nil {
		return uri, errors.Wrap(err, "failed to build input example")
	}
	predictions, err := p.Predict(exampleTable)
	if err != nil {
		return uri, errors.Wrap(err, "failed to predict input example")
	}
	signature, err := model.InferSignature(exampleTable, predictions)
	if err != nil {
		return uri, errors.Wrap(err, "failed to infer model signature")
	}
	sigDoc, err := signature.Doc()
	if err != nil {
		return uri, errors.Wrap(err, "failed to encode model signature")
	}

	var pipelineJSON bytes.Buffer
	if err := p.Save(&pipelineJSON); err != nil {
		return uri, errors.Wrap(err, "failed to encode pipeline")
	}
	exampleJSON, err := json.Marshal(example)
	if err != nil {
		return uri, errors.Wrap(err, "failed to encode input example")
	}

	meta := model.MLModel{
		ArtifactPath: uri.ArtifactPath,
		Flavors: map[string]map[string]any{
			model.FlavorPipeline: {
				"model_file": model.PipelineFile,
				"estimator":  learn.ModelKind,
				"alpha":      p.Ridge.Alpha,
				"n_features": len(p.Features),
			},
		},
		ModelUUID: uuid.NewString(),
		RunID:     info.RunID.String(),
		Signature: &sigDoc,
		SavedInputExampleInfo: &model.ExampleInfo{
			ArtifactPath: model.InputExampleFile,
			Type:         "dataframe",
			Orient:       "split",
		},
		UTCTimeCreated: time.Now().UTC().Format(createdLayout),
	}
	metaYAML, err := yaml.Marshal(&meta)
	if err != nil {
		return uri, errors.Wrap(err, "failed to encode MLmodel")
	}

	// MLmodel goes last so a readable document implies a complete model.
	files := []struct {
		name string
		data []byte
	}{
		{model.PipelineFile, pipelineJSON.Bytes()},
		{model.InputExampleFile, exampleJSON},
		{model.MLModelFile, metaYAML},
	}
	for _, f := range files {
		if err := r.artifacts.LogArtifact(ctx, info.ArtifactURI, path.Join(uri.ArtifactPath, f.name), f.data); err != nil {
			return uri, err
		}
	}

	r.logger.Debug("[Model] logged %s (%d features)", uri, len(p.Features))
	return uri, nil
}

// LoadModel resolves a runs:/<id>/<path> reference. Unknown runs fail with
// a NOT_FOUND error matching core.ErrRunNotFound.
func (r *Repository) LoadModel(ctx context.Context, modelURI string) (*LoadedModel, error) {
	uri, err := run.ParseModelURI(modelURI)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err, "invalid model URI")
	}

	rec, err := r.runs.GetRun(ctx, uri.RunID)
	if err != nil {
		return nil, err
	}

	metaYAML, err := r.artifacts.ReadArtifact(ctx, rec.Info.ArtifactURI, path.Join(uri.ArtifactPath, model.MLModelFile))
	if err != nil {
		return nil, errors.Wrapf(err, "run %s has no model at %q", uri.RunID, uri.ArtifactPath)
	}
	var meta model.MLModel
	if err := yaml.Unmarshal(metaYAML, &meta); err != nil {
		return nil, invalidModel(fmt.Sprintf("MLmodel of %s is not valid YAML: %v", uri, err))
	}
	flavor, ok := meta.Flavors[model.FlavorPipeline]
	if !ok {
		return nil, invalidModel(fmt.Sprintf("MLmodel of %s has no %s flavor", uri, model.FlavorPipeline))
	}
	modelFile, _ := flavor["model_file"].(string)
	if modelFile == "" {
		modelFile = model.PipelineFile
	}

	raw, err := r.artifacts.ReadArtifact(ctx, rec.Info.ArtifactURI, path.Join(uri.ArtifactPath, modelFile))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", modelFile)
	}
	pipeline, err := learn.LoadPipeline(bytes.NewReader(raw))
	if err != nil {
		return nil, invalidModel(err.Error())
	}

	loaded := &LoadedModel{URI: uri, Run: rec, Meta: meta, Pipeline: pipeline}
	if meta.Signature != nil {
		if err := checkSignatureColumns(meta.Signature.Inputs, pipeline.Features); err != nil {
			return nil, err
		}
		sig, err := meta.Signature.Signature()
		if err != nil {
			return nil, invalidModel(err.Error())
		}
		loaded.Signature = sig
	}

	r.logger.Debug("[Model] loaded %s", uri)
	return loaded, nil
}

// InputExample reads the stored example of a logged model.
func (r *Repository) InputExample(ctx context.Context, m *LoadedModel) (model.InputExample, error) {
	name := model.InputExampleFile
	if m.Meta.SavedInputExampleInfo != nil && m.Meta.SavedInputExampleInfo.ArtifactPath != "" {
		name = m.Meta.SavedInputExampleInfo.ArtifactPath
	}
	raw, err := r.artifacts.ReadArtifact(ctx, m.Run.Info.ArtifactURI, path.Join(m.URI.ArtifactPath, name))
	if err != nil {
		return model.InputExample{}, err
	}
	return parseExample(raw)
}

// parseExample decodes a split-oriented example without a fixed schema so
// integer-looking cells still read as floats.
func parseExample(raw []byte) (model.InputExample, error) {
	if !gjson.ValidBytes(raw) {
		return model.InputExample{}, invalidModel("input example is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	var ex model.InputExample
	for _, c := range doc.Get("columns").Array() {
		ex.Columns = append(ex.Columns, c.String())
	}
	for _, row := range doc.Get("data").Array() {
		cells := row.Array()
		values := make([]float64, len(cells))
		for j, cell := range cells {
			values[j] = cell.Float()
		}
		if len(values) != len(ex.Columns) {
			return model.InputExample{}, invalidModel(fmt.Sprintf("input example row has %d cells for %d columns", len(values), len(ex.Columns)))
		}
		ex.Data = append(ex.Data, values)
	}
	return ex, nil
}

// checkSignatureColumns compares the signature input names to the
// pipeline's feature order.
func checkSignatureColumns(inputs string, features []string) error {
	names := gjson.Get(inputs, "#.name").Array()
	if len(names) != len(features) {
		return invalidModel(fmt.Sprintf("signature has %d inputs but the pipeline has %d features", len(names), len(features)))
	}
	for i, n := range names {
		if n.String() != features[i] {
			return invalidModel(fmt.Sprintf("signature input %d is %q, pipeline feature is %q", i, n.String(), features[i]))
		}
	}
	return nil
}

func invalidModel(message string) error {
	return errors.WithCode(errors.CodeTrackingStore, core.ErrInvalidModel, message)
}
