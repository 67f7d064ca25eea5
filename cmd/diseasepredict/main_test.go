package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diseasepredict/internal/cfg"
	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/metrics"
	"diseasepredict/internal/ml"
	"diseasepredict/internal/storage"
)

func TestRegistryConfig(t *testing.T) {
	c := cfg.Settings{
		ModelDir:     "models",
		Backend:      "linear",
		ModelTimeout: 3 * time.Second,
		Artifacts:    map[string]string{diagnosis.Thyroid: "thyroid_v2.json"},
	}

	rc := registryConfig(c, diagnosis.DefaultCatalog())
	assert.Equal(t, ml.BackendLinear, rc.Backend)
	assert.Equal(t, 3*time.Second, rc.Script.Timeout)
	require.Len(t, rc.Artifacts, 5)

	files := map[string]string{}
	for _, a := range rc.Artifacts {
		files[a.ID] = a.File
	}
	assert.Equal(t, "diabetes_model.json", files[diagnosis.Diabetes])
	assert.Equal(t, "lungs_disease_model.json", files[diagnosis.LungCancer])
	assert.Equal(t, "thyroid_v2.json", files[diagnosis.Thyroid])

	c.Backend = "script"
	c.Artifacts = nil
	rc = registryConfig(c, diagnosis.DefaultCatalog())
	assert.Equal(t, "Thyroid_model.sav", rc.Artifacts[len(rc.Artifacts)-1].File)

	c.Backend = "lightgbm"
	rc = registryConfig(c, diagnosis.DefaultCatalog())
	assert.Equal(t, ml.BackendLightGBM, rc.Backend)
	assert.Equal(t, "diabetes_model.txt", rc.Artifacts[0].File)
}

func TestRecordManifest(t *testing.T) {
	dir := t.TempDir()
	model := `{"coefficients": [1, 1, 1, 1], "intercept": 0}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thyroid.json"), []byte(model), 0o600))

	c := cfg.Settings{ModelDir: dir, Backend: "linear", Artifacts: map[string]string{diagnosis.Thyroid: "thyroid.json"}}
	catalog, err := diagnosis.NewCatalog(func() diagnosis.DiseaseForm {
		f, _ := diagnosis.DefaultCatalog().Get(diagnosis.Thyroid)
		return f
	}())
	require.NoError(t, err)

	registry, err := ml.LoadRegistry(t.Context(), registryConfig(c, catalog))
	require.NoError(t, err)

	store, err := storage.New(dir)
	require.NoError(t, err)
	defer store.Close()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	mw := metrics.NewWrapper(m)

	recordManifest(store, registry, mw)
	rec, found, err := store.Get(diagnosis.Thyroid)
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, rec.SHA256, 64)

	// Replace the artifact and record again.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thyroid.json"), []byte(`{"coefficients": [2, 2, 2, 2], "intercept": 0}`), 0o600))
	recordManifest(store, registry, mw)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArtifactsChanged))
}
