package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/form"
)

const maxBodyBytes = 64 << 10

// PredictRequest is the body of POST /api/predict/{disease} and of WebSocket
// messages. Values is the ordered vector; Fields is keyed by field key and is
// used when Values is absent. Entries may be JSON strings or numbers.
type PredictRequest struct {
	Disease string    `json:"disease,omitempty"`
	Values  TokenList `json:"values,omitempty"`
	Fields  TokenMap  `json:"fields,omitempty"`
}

// TokenList is an ordered list of raw field values.
type TokenList []string

func (l *TokenList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*l = nil
		return nil
	}
	out := make(TokenList, len(raw))
	for i, r := range raw {
		s, err := tokenString(r)
		if err != nil {
			return fmt.Errorf("values[%d]: %w", i, err)
		}
		out[i] = s
	}
	*l = out
	return nil
}

// TokenMap holds raw field values keyed by field key.
type TokenMap map[string]string

func (m *TokenMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(TokenMap, len(raw))
	for k, r := range raw {
		s, err := tokenString(r)
		if err != nil {
			return fmt.Errorf("fields[%s]: %w", k, err)
		}
		out[k] = s
	}
	*m = out
	return nil
}

// tokenString returns a JSON string as is and a JSON number in its literal
// form; coercion is left to the dispatcher.
func tokenString(r json.RawMessage) (string, error) {
	r = bytes.TrimSpace(r)
	if len(r) > 0 && r[0] == '"' {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(r, &n); err != nil || n == "" {
		return "", fmt.Errorf("expected a number or string, got %s", r)
	}
	return n.String(), nil
}

// FieldView is a field together with its resolved input policy.
type FieldView struct {
	form.FieldSpec
	Policy form.ResolvedField `json:"policy"`
}

// FormView describes one disease form over the API.
type FormView struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Title            string           `json:"title"`
	ExpectedFeatures int              `json:"expected_features"`
	Provisional      bool             `json:"provisional"`
	Labels           diagnosis.Labels `json:"labels"`
	Notices          []Notification   `json:"notices,omitempty"`
	Fields           []FieldView      `json:"fields"`
}

func newFormView(f diagnosis.DiseaseForm) FormView {
	v := FormView{
		ID:               f.ID,
		Name:             f.Name,
		Title:            f.Title,
		ExpectedFeatures: f.ExpectedFeatures,
		Provisional:      f.Provisional,
		Labels:           f.Labels,
		Fields:           make([]FieldView, len(f.Fields)),
	}
	if n, ok := noticeNotification(f); ok {
		v.Notices = []Notification{n}
	}
	for i, spec := range f.Fields {
		v.Fields[i] = FieldView{FieldSpec: spec, Policy: form.Resolve(spec)}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms := s.dispatcher.Catalog().Forms()
	views := make([]FormView, len(forms))
	for i, f := range forms {
		views[i] = newFormView(f)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["disease"]
	f, ok := s.dispatcher.Catalog().Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, Notification{
			Level:     LevelError,
			Message:   "Unknown disease: " + id,
			RequestID: RequestIDFrom(r.Context()),
		})
		return
	}
	writeJSON(w, http.StatusOK, newFormView(f))
}

// statusFor maps a notification to an HTTP status for the JSON API.
func statusFor(n Notification) int {
	if n.Level == LevelSuccess {
		return http.StatusOK
	}
	switch n.Kind {
	case diagnosis.KindInput.String():
		return http.StatusBadRequest
	case diagnosis.KindConfiguration.String():
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["disease"]
	if _, ok := s.dispatcher.Catalog().Get(id); !ok {
		writeJSON(w, http.StatusNotFound, Notification{
			Level:     LevelError,
			Message:   "Unknown disease: " + id,
			RequestID: RequestIDFrom(r.Context()),
		})
		return
	}

	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Notification{
			Level:     LevelError,
			Message:   "Input Error: malformed request body. Details: " + err.Error(),
			RequestID: RequestIDFrom(r.Context()),
			Disease:   id,
			Kind:      diagnosis.KindInput.String(),
		})
		return
	}

	n := s.submit(r.Context(), "api", id, req.Values, req.Fields)
	writeJSON(w, statusFor(n), n)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string        `json:"status"`
	Models int           `json:"models"`
	Forms  int           `json:"forms"`
	Detail []ModelStatus `json:"detail,omitempty"`
}

// ModelStatus summarises one registry entry.
type ModelStatus struct {
	Disease        string `json:"disease"`
	Backend        string `json:"backend,omitempty"`
	Path           string `json:"path,omitempty"`
	SchemaMismatch bool   `json:"schema_mismatch,omitempty"`
	Version        string `json:"version,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := HealthStatus{Status: "ok", Models: s.models.Len(), Forms: len(s.dispatcher.Catalog().Forms())}
	for _, e := range s.models.Entries() {
		ms := ModelStatus{
			Disease:        e.ID,
			Backend:        string(e.Backend),
			Path:           e.Path,
			SchemaMismatch: e.SchemaMismatch,
		}
		if e.Metadata != nil {
			ms.Version = e.Metadata.Version
		}
		h.Detail = append(h.Detail, ms)
	}
	if h.Models < h.Forms {
		h.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, h)
}
