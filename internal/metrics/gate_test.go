package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateExporter(t *testing.T) {
	e := NewGateExporter()
	e.Record(GateResult{RunID: "abc", RMSE: 0.8, Threshold: 0.85, TestRows: 4, Passed: true})

	families, err := e.Registry().Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)

	path := filepath.Join(t.TempDir(), "gate.prom")
	require.NoError(t, e.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `mlgate_gate_passed{run_id="abc"} 1`)
	assert.Contains(t, text, `mlgate_gate_rmse{run_id="abc"} 0.8`)
	assert.Contains(t, text, `mlgate_gate_test_rows{run_id="abc"} 4`)
	assert.Contains(t, text, "# TYPE mlgate_gate_rmse_threshold gauge")
}

func TestGateExporterFailedGate(t *testing.T) {
	e := NewGateExporter()
	e.Record(GateResult{RunID: "def", RMSE: 0.9, Threshold: 0.85, TestRows: 4})

	path := filepath.Join(t.TempDir(), "gate.prom")
	require.NoError(t, e.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `mlgate_gate_passed{run_id="def"} 0`)
}
