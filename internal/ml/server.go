package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// InferenceHandler serves the remote backend protocol from a registry:
//
//	POST /predict  {"model": id, "features": [...]} -> {"prediction": label}
//	GET  /health?model=id
//
// It lets one instance host the models for others configured with the
// remote backend.
func InferenceHandler(reg *Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", func(w http.ResponseWriter, r *http.Request) {
		handleInferencePredict(reg, w, r)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleInferenceHealth(reg, w, r)
	})
	return mux
}

func handleInferencePredict(reg *Registry, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeInferenceJSON(w, http.StatusMethodNotAllowed, remoteResponse{Error: "method not allowed", ErrorType: "MethodNotAllowed"})
		return
	}

	start := time.Now()

	var req remoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInferenceJSON(w, http.StatusBadRequest, remoteResponse{Error: fmt.Sprintf("invalid request: %v", err), ErrorType: "BadRequest"})
		return
	}

	model, ok := reg.Get(req.Model)
	if !ok {
		writeInferenceJSON(w, http.StatusNotFound, remoteResponse{Error: fmt.Sprintf("unknown model %q", req.Model), ErrorType: "NotFound"})
		return
	}

	label, err := model.Predict(r.Context(), req.Features)
	if err != nil {
		typ, msg := fmt.Sprintf("%T", err), err.Error()
		var me *ModelError
		if errors.As(err, &me) {
			msg = me.Message
			if me.Type != "" {
				typ = me.Type
			}
		}
		log.Error().Err(err).Str("model", req.Model).Msg("Inference failed")
		writeInferenceJSON(w, http.StatusUnprocessableEntity, remoteResponse{Error: msg, ErrorType: typ})
		return
	}

	log.Debug().
		Str("model", req.Model).
		Dur("latency", time.Since(start)).
		Str("prediction", label.String()).
		Msg("Inference served")

	writeInferenceJSON(w, http.StatusOK, remoteResponse{Prediction: &label})
}

func handleInferenceHealth(reg *Registry, w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("model"); name != "" {
		if _, ok := reg.Get(name); !ok {
			writeInferenceJSON(w, http.StatusNotFound, remoteResponse{Error: fmt.Sprintf("unknown model %q", name), ErrorType: "NotFound"})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"healthy": true, "models": reg.Len()})
}

func writeInferenceJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
