package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteModel_AgainstInferenceHandler(t *testing.T) {
	reg := NewRegistry(map[string]Model{
		"diabetes":    &StaticModel{Label: NumberLabel(1)},
		"lung_cancer": &StaticModel{Label: TextLabel("YES")},
		"broken":      &StaticModel{Err: &ModelError{Type: "ValueError", Message: "bad input"}},
	})
	srv := httptest.NewServer(InferenceHandler(reg))
	defer srv.Close()

	cfg := RemoteConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}

	label, err := NewRemoteModel("diabetes", cfg).Predict(context.Background(), FeatureVector{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "1", label.String())

	label, err = NewRemoteModel("lung_cancer", cfg).Predict(context.Background(), FeatureVector{1})
	require.NoError(t, err)
	assert.True(t, label.IsText())

	_, err = NewRemoteModel("broken", cfg).Predict(context.Background(), FeatureVector{1})
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "ValueError", me.Type)
	assert.Equal(t, "bad input", me.Message)
	assert.Equal(t, "ValueError: bad input", me.Error())

	_, err = NewRemoteModel("thyroid", cfg).Predict(context.Background(), FeatureVector{1})
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "NotFound", me.Type)

	assert.NoError(t, NewRemoteModel("diabetes", cfg).Ping(context.Background()))
	assert.Error(t, NewRemoteModel("thyroid", cfg).Ping(context.Background()))
}

func TestRemoteModel_Unreachable(t *testing.T) {
	m := NewRemoteModel("diabetes", RemoteConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	_, err := m.Predict(context.Background(), FeatureVector{1})
	var me *ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "TransportError", me.Type)
}

func TestInferenceHandler_BadRequests(t *testing.T) {
	h := InferenceHandler(NewRegistry(nil))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
}
