// Package web is the presentation layer: HTML forms generated from the
// disease catalog, a JSON API and a WebSocket prediction channel. Every
// submission goes through the diagnosis dispatcher and comes back as a
// Notification.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"

	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/metrics"
	"diseasepredict/internal/ml"
)

// Options configures a Server.
type Options struct {
	Addr string
	// Metrics receives submission outcomes; nil disables recording.
	Metrics metrics.Recorder
	// MetricsHandler is mounted on /metrics when set.
	MetricsHandler http.Handler
	// Models is reported on /health.
	Models *ml.Registry
}

// Server serves the prediction UI and API.
type Server struct {
	dispatcher *diagnosis.Dispatcher
	recorder   metrics.Recorder
	models     *ml.Registry
	pages      *pages
	sanitizer  *bluemonday.Policy
	upgrader   websocket.Upgrader
	router     *mux.Router
	server     *http.Server

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex
}

// NewServer wires routes for the dispatcher's catalog.
func NewServer(dispatcher *diagnosis.Dispatcher, opts Options) (*Server, error) {
	pg, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	recorder := opts.Metrics
	if recorder == nil {
		recorder = (*metrics.MetricsWrapper)(nil)
	}

	s := &Server{
		dispatcher: dispatcher,
		recorder:   recorder,
		models:     opts.Models,
		pages:      pg,
		sanitizer:  bluemonday.UGCPolicy(),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:    make(map[*websocket.Conn]struct{}),
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, loggingMiddleware, recoveryMiddleware)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/predict/{disease}", s.handleFormPage).Methods(http.MethodGet)
	r.HandleFunc("/predict/{disease}", s.handleFormSubmit).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/forms", s.handleListForms).Methods(http.MethodGet)
	api.HandleFunc("/forms/{disease}", s.handleGetForm).Methods(http.MethodGet)
	api.HandleFunc("/predict/{disease}", s.handleAPIPredict).Methods(http.MethodPost)

	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler).Methods(http.MethodGet)
	}
	s.router = r

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background. Listen errors other than a clean shutdown
// are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.server.Addr).Msg("Starting prediction server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Prediction server failed")
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Stop closes WebSocket sessions and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown prediction server")
		return err
	}
	log.Info().Msg("Prediction server stopped")
	return nil
}

// submit runs one prediction and reports it. Values take precedence over
// fields when both are given.
func (s *Server) submit(ctx context.Context, channel, disease string, values []string, fields map[string]string) Notification {
	requestID := RequestIDFrom(ctx)
	s.recorder.Submission(channel)

	var (
		out diagnosis.Outcome
		err error
	)
	if values != nil {
		out, err = s.dispatcher.Predict(ctx, disease, values)
	} else {
		out, err = s.dispatcher.PredictForm(ctx, disease, fields)
	}

	if err != nil {
		kind := diagnosis.KindOf(err)
		s.recorder.PredictionFailed(s.metricLabel(disease), kind.String())
		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("channel", channel).
			Str("disease", disease).
			Str("kind", kind.String()).
			Msg("Prediction failed")
		return errorNotification(err, disease, requestID)
	}

	s.recorder.PredictionSucceeded(disease, out.Positive, out.Latency)
	log.Info().
		Str("request_id", requestID).
		Str("channel", channel).
		Str("disease", disease).
		Bool("positive", out.Positive).
		Dur("latency", out.Latency).
		Msg("Prediction completed")
	return successNotification(out, requestID)
}

// unknownDisease is the metric label for any ID outside the catalog.
const unknownDisease = "unknown"

func (s *Server) metricLabel(disease string) string {
	if _, ok := s.dispatcher.Catalog().Get(disease); ok {
		return disease
	}
	return unknownDisease
}
