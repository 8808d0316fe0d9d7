package run

import (
	"testing"

	"mlgate/domain/core"
)

func testManifest() SplitManifest {
	return SplitManifest{
		Dataset:      "UCI Wine Quality (Red)",
		Target:       "quality",
		TestSize:     0.2,
		Seed:         42,
		DatasetHash:  core.DatasetHash("abc123"),
		FeatureCount: 11,
	}
}

func TestSplitManifest_ParamsRoundTrip(t *testing.T) {
	m := testManifest()
	params := m.Params()

	if params[ParamTestSize] != "0.2" {
		t.Errorf("Expected test_size param '0.2', got %q", params[ParamTestSize])
	}
	if params[ParamRandomState] != "42" {
		t.Errorf("Expected random_state param '42', got %q", params[ParamRandomState])
	}

	decoded, err := SplitManifestFromParams(params)
	if err != nil {
		t.Fatalf("Unexpected error decoding params: %v", err)
	}
	if decoded != m {
		t.Errorf("Decoded manifest mismatch: %+v vs %+v", decoded, m)
	}
}

func TestSplitManifest_FromParamsRequiresSplitKeys(t *testing.T) {
	testCases := []struct {
		name   string
		params map[string]string
	}{
		{"missing test_size", map[string]string{ParamRandomState: "42"}},
		{"missing random_state", map[string]string{ParamTestSize: "0.2"}},
		{"bad test_size", map[string]string{ParamTestSize: "x", ParamRandomState: "42"}},
		{"bad random_state", map[string]string{ParamTestSize: "0.2", ParamRandomState: "4.2"}},
		{"test_size out of range", map[string]string{ParamTestSize: "1.5", ParamRandomState: "42"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := SplitManifestFromParams(tc.params); err == nil {
				t.Errorf("Expected error for %s", tc.name)
			}
		})
	}
}

func TestSplitManifest_FingerprintDeterministic(t *testing.T) {
	base := testManifest()
	if base.Fingerprint() != testManifest().Fingerprint() {
		t.Error("Fingerprints not identical for identical manifests")
	}

	changed := []SplitManifest{base, base, base, base}
	changed[0].Seed = 43
	changed[1].TestSize = 0.25
	changed[2].Target = "alcohol"
	changed[3].DatasetHash = "def456"

	for i, m := range changed {
		if m.Fingerprint() == base.Fingerprint() {
			t.Errorf("Fingerprint should differ for case %d", i)
		}
	}
}

func TestParseModelURI(t *testing.T) {
	uri, err := ParseModelURI("runs:/0123abcd/model")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if uri.RunID != "0123abcd" || uri.ArtifactPath != "model" {
		t.Errorf("Unexpected parse result: %+v", uri)
	}
	if uri.String() != "runs:/0123abcd/model" {
		t.Errorf("Expected round trip, got %s", uri.String())
	}

	for _, bad := range []string{"model", "runs:/", "runs:/abc", "runs:/abc/", "runs:/a b/model", "runs:/abc/../x", "file:///tmp/model"} {
		if _, err := ParseModelURI(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusRunning.IsTerminal() {
		t.Error("RUNNING should not be terminal")
	}
	if !StatusFinished.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("FINISHED and FAILED should be terminal")
	}
}

func TestValidateKey(t *testing.T) {
	valid := []string{"rmse", "random_state", "mlgate.source", "model/signature", "n features"}
	for _, key := range valid {
		if err := ValidateKey(key); err != nil {
			t.Errorf("Expected %q to be valid, got %v", key, err)
		}
	}

	invalid := []string{"", "/abs", "a/../b", "a//b", "tab\tkey", "semi;colon"}
	for _, key := range invalid {
		if err := ValidateKey(key); err == nil {
			t.Errorf("Expected %q to be rejected", key)
		}
	}
}
