package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/form"
	"diseasepredict/internal/metrics"
	"diseasepredict/internal/ml"
)

type testEnv struct {
	srv     *httptest.Server
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, catalog *diagnosis.Catalog, models map[string]ml.Model) *testEnv {
	t.Helper()
	if catalog == nil {
		catalog = diagnosis.DefaultCatalog()
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	registry := ml.NewRegistry(models)

	s, err := NewServer(diagnosis.NewDispatcher(catalog, registry), Options{
		Addr:           "127.0.0.1:0",
		Metrics:        metrics.NewWrapper(m),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Models:         registry,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, metrics: m}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) postForm(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(e.srv.URL+path, values)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) (*http.Response, Notification) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var n Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&n))
	return resp, n
}

func diabetesValues() url.Values {
	return url.Values{
		"Pregnancies":              {"2"},
		"Glucose":                  {"120"},
		"BloodPressure":            {"70"},
		"SkinThickness":            {"20"},
		"Insulin":                  {"79"},
		"BMI":                      {"25.5"},
		"DiabetesPedigreeFunction": {"0.5"},
		"Age":                      {"33"},
	}
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Disease Prediction System")
	assert.Contains(t, body, `href="/predict/diabetes"`)
	assert.Contains(t, body, "Hypo-Thyroid Prediction")
	assert.Contains(t, body, "should not replace professional medical advice")
}

func TestFormPage_RendersResolvedControls(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.get(t, "/predict/diabetes")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="Pregnancies" type="number" value="0" data-kind="integer"`)
	assert.Contains(t, body, `name="BMI" type="number" value="0.0" data-kind="real"`)
	assert.Contains(t, body, `step="0.1"`)
	assert.Contains(t, body, "Predict Diabetes")

	_, body = env.get(t, "/predict/parkinsons")
	assert.Contains(t, body, `name="Jitter_Abs_pd" type="number" value="0.00000"`)
	assert.Contains(t, body, `step="0.00001"`)

	_, body = env.get(t, "/predict/heart_disease")
	assert.Contains(t, body, `max="1"`)
}

func TestFormPage_Notices(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, body := env.get(t, "/predict/lung_cancer")
	assert.Contains(t, body, `class="notification warning"`)
	assert.Contains(t, body, "Verify the numerical coding")

	_, body = env.get(t, "/predict/thyroid")
	assert.Contains(t, body, `class="notification error"`)
	assert.Contains(t, body, "CRITICAL WARNING")

	_, body = env.get(t, "/predict/diabetes")
	assert.NotContains(t, body, `class="notification warning"`)
	assert.NotContains(t, body, `class="notification error"`)
}

func TestFormPage_UnknownDisease(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.get(t, "/predict/flu")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Unknown disease: flu")
}

func TestFormSubmit_Success(t *testing.T) {
	model := &ml.StaticModel{Label: ml.NumberLabel(0)}
	env := newTestEnv(t, nil, map[string]ml.Model{diagnosis.Diabetes: model})

	resp, body := env.postForm(t, "/predict/diabetes", diabetesValues())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `class="notification success"`)
	assert.Contains(t, body, "Result: The person is Not Diabetic")
	// Submitted values are kept in the form.
	assert.Contains(t, body, `name="Glucose" type="number" value="120"`)

	require.Len(t, model.Calls(), 1)
	assert.Equal(t, ml.FeatureVector{2, 120, 70, 20, 79, 25.5, 0.5, 33}, model.Calls()[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Predictions.WithLabelValues("diabetes", metrics.OutcomeNegative)))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Submissions.WithLabelValues("form")))
}

func TestFormSubmit_Errors(t *testing.T) {
	model := &ml.StaticModel{Label: ml.NumberLabel(1)}
	env := newTestEnv(t, nil, map[string]ml.Model{
		diagnosis.Diabetes:     model,
		diagnosis.HeartDisease: model,
	})

	_, body := env.postForm(t, "/predict/heart_disease", url.Values{
		"age_hd": {"54"}, "sex_hd": {"1"}, "cp_hd": {"2"},
	})
	assert.Contains(t, body, `class="notification error"`)
	assert.Contains(t, body, "Configuration Error: feature count mismatch: expected 13, got 3")

	values := diabetesValues()
	values.Set("Glucose", "abc")
	_, body = env.postForm(t, "/predict/diabetes", values)
	assert.Contains(t, body, "Input Error: Enter valid numbers only.")
	assert.Contains(t, body, "Glucose")

	assert.Empty(t, model.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Errors.WithLabelValues("heart_disease", "configuration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.Errors.WithLabelValues("diabetes", "input")))
}

func TestAPIPredict(t *testing.T) {
	env := newTestEnv(t, nil, map[string]ml.Model{
		diagnosis.LungCancer:   &ml.StaticModel{Label: ml.TextLabel("YES")},
		diagnosis.HeartDisease: &ml.StaticModel{Label: ml.NumberLabel(1)},
		diagnosis.Parkinsons:   &ml.StaticModel{Err: &ml.ModelError{Type: "ValueError", Message: "bad shape"}},
		diagnosis.Thyroid:      &ml.StaticModel{Label: ml.NumberLabel(0)},
	})

	t.Run("success with values", func(t *testing.T) {
		values := make([]string, 15)
		for i := range values {
			values[i] = "2"
		}
		resp, n := env.postJSON(t, "/api/predict/lung_cancer", PredictRequest{Values: values})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, LevelSuccess, n.Level)
		assert.Equal(t, "Result: The person likely Has Lung Cancer", n.Message)
		require.NotNil(t, n.Positive)
		assert.True(t, *n.Positive)
		_, err := uuid.Parse(n.RequestID)
		assert.NoError(t, err)
	})

	t.Run("success with fields", func(t *testing.T) {
		resp, n := env.postJSON(t, "/api/predict/thyroid", PredictRequest{Fields: map[string]string{
			"age_thyroid": "40", "sex_thyroid": "0", "on_thyroxine_thyroid": "0", "query_on_thyroxine_thyroid": "0",
		}})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "Result: The person likely Does Not Have Hypothyroidism", n.Message)
	})

	t.Run("short vector", func(t *testing.T) {
		resp, n := env.postJSON(t, "/api/predict/heart_disease", PredictRequest{Values: []string{"1", "2", "3"}})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, LevelError, n.Level)
		assert.Equal(t, "configuration", n.Kind)
		assert.Contains(t, n.Message, "expected 13, got 3")
	})

	t.Run("non numeric", func(t *testing.T) {
		values := []string{"40", "x", "0", "0"}
		resp, n := env.postJSON(t, "/api/predict/thyroid", PredictRequest{Values: values})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "input", n.Kind)
		assert.Equal(t, "sex_thyroid", n.Field)
	})

	t.Run("model failure", func(t *testing.T) {
		values := make([]string, 22)
		for i := range values {
			values[i] = "0.5"
		}
		resp, n := env.postJSON(t, "/api/predict/parkinsons", PredictRequest{Values: values})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "Prediction Error: ValueError - bad shape", n.Message)
	})

	t.Run("unknown disease", func(t *testing.T) {
		resp, n := env.postJSON(t, "/api/predict/flu", PredictRequest{Values: []string{"1"}})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, LevelError, n.Level)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(env.srv.URL+"/api/predict/thyroid", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAPIPredict_NumericValues(t *testing.T) {
	diabetes := &ml.StaticModel{Label: ml.NumberLabel(1)}
	thyroid := &ml.StaticModel{Label: ml.NumberLabel(0)}
	env := newTestEnv(t, nil, map[string]ml.Model{
		diagnosis.Diabetes: diabetes,
		diagnosis.Thyroid:  thyroid,
	})

	resp, n := env.postJSON(t, "/api/predict/diabetes", map[string]any{
		"values": []float64{2, 120, 70, 20, 79, 25.5, 0.5, 33},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Result: The person is Diabetic", n.Message)
	require.Len(t, diabetes.Calls(), 1)
	assert.Equal(t, ml.FeatureVector{2, 120, 70, 20, 79, 25.5, 0.5, 33}, diabetes.Calls()[0])

	resp, n = env.postJSON(t, "/api/predict/thyroid", map[string]any{
		"fields": map[string]any{
			"age_thyroid": 40, "sex_thyroid": "1", "on_thyroxine_thyroid": 0, "query_on_thyroxine_thyroid": 0,
		},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, LevelSuccess, n.Level)
	require.Len(t, thyroid.Calls(), 1)
	assert.Equal(t, ml.FeatureVector{40, 1, 0, 0}, thyroid.Calls()[0])

	resp, n = env.postJSON(t, "/api/predict/thyroid", map[string]any{
		"values": []any{40, true, 0, 0},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "input", n.Kind)
	assert.Contains(t, n.Message, "values[1]")
	assert.Len(t, thyroid.Calls(), 1)
}

func TestTokenList_UnmarshalJSON(t *testing.T) {
	var req PredictRequest
	require.NoError(t, json.Unmarshal([]byte(`{"values":["1", 2, 1e-05, " 3 "]}`), &req))
	assert.Equal(t, TokenList{"1", "2", "1e-05", " 3 "}, req.Values)
	assert.Nil(t, req.Fields)

	require.NoError(t, json.Unmarshal([]byte(`{"fields":{"a": 4.5, "b": "x"}}`), &req))
	assert.Equal(t, TokenMap{"a": "4.5", "b": "x"}, req.Fields)

	assert.Error(t, json.Unmarshal([]byte(`{"values":[null]}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"fields":{"a": [1]}}`), &req))
}

func TestAPIForms(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	_, body := env.get(t, "/api/forms")
	var views []FormView
	require.NoError(t, json.Unmarshal([]byte(body), &views))
	require.Len(t, views, 5)

	byID := map[string]FormView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.True(t, byID["thyroid"].Provisional)
	assert.Len(t, byID["parkinsons"].Fields, 22)
	require.Len(t, byID["lung_cancer"].Notices, 1)
	assert.Equal(t, LevelWarning, byID["lung_cancer"].Notices[0].Level)
	require.Len(t, byID["thyroid"].Notices, 1)
	assert.Equal(t, LevelError, byID["thyroid"].Notices[0].Level)

	resp, body := env.get(t, "/api/forms/heart_disease")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var heart FormView
	require.NoError(t, json.Unmarshal([]byte(body), &heart))
	assert.Equal(t, "sex_hd", heart.Fields[1].Key)
	assert.Equal(t, form.Integer, heart.Fields[1].Policy.Kind)
	require.NotNil(t, heart.Fields[1].Policy.Max)
	assert.Equal(t, 1.0, *heart.Fields[1].Policy.Max)
	assert.Contains(t, body, `"kind":"integer"`)

	resp, _ = env.get(t, "/api/forms/flu")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHelpTextSanitized(t *testing.T) {
	catalog, err := diagnosis.NewCatalog(diagnosis.DiseaseForm{
		ID:               "custom",
		Name:             "Custom",
		Title:            "Custom",
		Columns:          1,
		ExpectedFeatures: 2,
		Fields: []form.FieldSpec{
			{Label: "Smoking", Tooltip: `<b>1 = Yes</b><script>alert(1)</script>`, Key: "smoking"},
			{Label: "Notes", Tooltip: "free text", Key: "notes", Type: form.TypeText},
		},
		Labels: diagnosis.Labels{Positive: "yes", Negative: "no"},
	})
	require.NoError(t, err)
	env := newTestEnv(t, catalog, nil)

	_, body := env.get(t, "/predict/custom")
	assert.Contains(t, body, "<b>1 = Yes</b>")
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, `name="notes" type="text" value=""`)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil, map[string]ml.Model{diagnosis.Diabetes: &ml.StaticModel{}})

	resp, body := env.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var h HealthStatus
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	assert.Equal(t, 1, h.Models)
	assert.Equal(t, 5, h.Forms)
	assert.Equal(t, "degraded", h.Status)

	env.postForm(t, "/predict/diabetes", diabetesValues())
	_, body = env.get(t, "/metrics")
	assert.Contains(t, body, "predictions_total")
	assert.Contains(t, body, "submissions_total")
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, _ := env.get(t, "/health")
	_, err := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, id)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, id, resp.Header.Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-a-uuid")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
