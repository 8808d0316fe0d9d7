// Package report renders the Markdown run summary logged with every
// training run, and its HTML form.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"text/template"
	"time"

	"mlgate/domain/run"
	"mlgate/internal/dataset"
	"mlgate/internal/learn"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Artifact names
const (
	MarkdownFile = "report.md"
	HTMLFile     = "report.html"
)

// TrainingReport is everything the run summary shows
type TrainingReport struct {
	Experiment string
	RunID      string
	RunName    string
	ModelURI   string
	Created    time.Time
	Manifest   run.SplitManifest
	TrainRows  int
	TestRows   int
	Eval       learn.Eval
	Pipeline   *learn.Pipeline
	Profile    *dataset.Profile
}

type coefficient struct {
	Feature string
	Mean    float64
	Scale   float64
	Weight  float64
}

var markdownTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"num": func(v float64) string { return fmt.Sprintf("%.4f", v) },
}).Parse(`# Training run {{.RunName}}

| | |
|---|---|
| Experiment | {{.Experiment}} |
| Run ID | ` + "`{{.RunID}}`" + ` |
| Model | ` + "`{{.ModelURI}}`" + ` |
| Created | {{.Created.Format "2006-01-02 15:04:05 MST"}} |

## Data

| Parameter | Value |
|---|---|
| Dataset | {{.Manifest.Dataset}} |
| Target | {{.Manifest.Target}} |
| SHA-256 | ` + "`{{.Manifest.DatasetHash}}`" + ` |
| Test size | {{.Manifest.TestSize}} |
| Random state | {{.Manifest.Seed}} |
| Train rows | {{.TrainRows}} |
| Test rows | {{.TestRows}} |

## Held-out metrics

| Metric | Value |
|---|---|
| MSE | {{num .Eval.MSE}} |
| RMSE | {{num .Eval.RMSE}} |
| MAE | {{num .Eval.MAE}} |
| R² | {{num .Eval.R2}} |
{{if .Pipeline}}
## Model

{{.Pipeline}}, intercept {{num .Pipeline.Ridge.Intercept}}.

| Feature | Mean | Scale | Coefficient |
|---|---|---|---|
{{range .Coefficients}}| {{.Feature}} | {{num .Mean}} | {{num .Scale}} | {{num .Weight}} |
{{end}}{{end}}{{if .Profile}}
## Dataset profile

{{.Profile.Rows}} rows, {{len .Profile.Columns}} columns.

| Column | Mean | Std | Min | Median | Max |
|---|---|---|---|---|---|
{{range .Profile.Columns}}| {{.Name}} | {{num .Mean}} | {{num .StdDev}} | {{num .Min}} | {{num .Median}} | {{num .Max}} |
{{end}}{{end}}`))

// Coefficients lists the fitted weights, largest magnitude first
func (r TrainingReport) Coefficients() []coefficient {
	if r.Pipeline == nil {
		return nil
	}
	p := r.Pipeline
	out := make([]coefficient, 0, len(p.Features))
	for i, f := range p.Features {
		c := coefficient{Feature: f, Weight: p.Ridge.Coef[i]}
		if i < len(p.Scaler.Mean) {
			c.Mean = p.Scaler.Mean[i]
			c.Scale = p.Scaler.Scale[i]
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return abs(out[i].Weight) > abs(out[j].Weight) })
	return out
}

// Markdown renders the report
func (r TrainingReport) Markdown() ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// ToHTML converts Markdown to a standalone HTML page
func ToHTML(md []byte, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
	})
	return markdown.Render(doc, renderer)
}

// Fragment converts Markdown to HTML without the page wrapper
func Fragment(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return markdown.Render(p.Parse(md), renderer)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
