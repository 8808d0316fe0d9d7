package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal/report"
	"mlgate/internal/testkit"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seeded struct {
	kit    *testkit.TestKit
	exp    *run.Experiment
	runIDs []core.RunID
}

func seed(t *testing.T, runs int) *seeded {
	t.Helper()
	ctx := context.Background()
	kit := testkit.NewTestKit(nil)
	exp, err := kit.Store.CreateExperiment(ctx, "CI-CD-Workshop4")
	require.NoError(t, err)
	_, err = kit.Store.CreateExperiment(ctx, "empty")
	require.NoError(t, err)

	s := &seeded{kit: kit, exp: exp}
	for i := 0; i < runs; i++ {
		info, err := kit.Store.CreateRun(ctx, exp.ID, "ridge", core.Now())
		require.NoError(t, err)
		require.NoError(t, kit.Store.LogParams(ctx, info.RunID, map[string]string{run.ParamAlpha: "1"}))
		require.NoError(t, kit.Store.LogMetric(ctx, info.RunID, run.Metric{Key: run.MetricRMSE, Value: 0.64, Timestamp: core.Now()}))
		require.NoError(t, kit.Artifacts.LogArtifact(ctx, info.ArtifactURI, "model/MLmodel", []byte("artifact_path: model\n")))
		require.NoError(t, kit.Artifacts.LogArtifact(ctx, info.ArtifactURI, report.MarkdownFile, []byte("# Training run ridge\n")))
		require.NoError(t, kit.Store.EndRun(ctx, info.RunID, run.StatusFinished, core.Now()))
		s.runIDs = append(s.runIDs, info.RunID)
	}
	return s
}

func serve(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestBrowserExperimentsCountsRuns(t *testing.T) {
	s := seed(t, 3)
	b := NewBrowser(s.kit.Store, s.kit.Artifacts, nil)

	exps, err := b.Experiments(context.Background())
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range exps {
		counts[e.Name] = e.RunCount
	}
	assert.Empty(t, cmp.Diff(map[string]int{"CI-CD-Workshop4": 3, "empty": 0}, counts))
}

func TestBrowserRunsLoadsData(t *testing.T) {
	s := seed(t, 5)
	b := NewBrowser(s.kit.Store, s.kit.Artifacts, nil)

	runs, err := b.Runs(context.Background(), s.exp.ID)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	for _, r := range runs {
		assert.Equal(t, "1", r.Data.Params[run.ParamAlpha])
		assert.Equal(t, 0.64, r.Data.Metrics[run.MetricRMSE])
	}
}

func TestBrowserRunDetail(t *testing.T) {
	s := seed(t, 1)
	b := NewBrowser(s.kit.Store, s.kit.Artifacts, nil)

	detail, err := b.Run(context.Background(), s.runIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "runs:/"+s.runIDs[0].String()+"/model", detail.ModelURI)

	paths := make([]string, len(detail.Artifacts))
	for i, a := range detail.Artifacts {
		paths[i] = a.Path
	}
	assert.ElementsMatch(t, []string{"model", "model/MLmodel", report.MarkdownFile}, paths)

	html, ok, err := b.ReportHTML(context.Background(), s.runIDs[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, string(html), "<h1")
}

func TestRouter(t *testing.T) {
	s := seed(t, 2)
	h := NewRouter(NewBrowser(s.kit.Store, s.kit.Artifacts, nil), nil)

	rec, body := serve(t, h, "/api/experiments")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["experiments"], 2)

	rec, body = serve(t, h, "/api/experiments/"+s.exp.ID.String()+"/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["runs"], 2)

	rec, body = serve(t, h, "/api/runs/"+s.runIDs[1].String())
	assert.Equal(t, http.StatusOK, rec.Code)
	info := body["info"].(map[string]any)
	assert.Equal(t, s.runIDs[1].String(), info["run_id"])
	assert.Equal(t, "FINISHED", info["status"])
}

func TestRouterErrors(t *testing.T) {
	s := seed(t, 0)
	h := NewRouter(NewBrowser(s.kit.Store, s.kit.Artifacts, nil), nil)

	rec, body := serve(t, h, "/api/runs/"+strings.Repeat("0", 32))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	rec, _ = serve(t, h, "/api/experiments/999/runs")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = serve(t, h, "/api/runs/bad%20id")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", body["code"])
}
