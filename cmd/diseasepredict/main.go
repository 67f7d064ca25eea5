package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"diseasepredict/internal/cfg"
	"diseasepredict/internal/diagnosis"
	"diseasepredict/internal/metrics"
	"diseasepredict/internal/ml"
	"diseasepredict/internal/storage"
	"diseasepredict/internal/web"
)

func main() {
	checkOnly := flag.Bool("check", false, "Load every model, record the artifact manifest and exit")
	inferenceAddr := flag.String("inference-addr", "", "Also serve the loaded models for remote-backend clients on this address")
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	catalog, err := diagnosis.LoadCatalog(c.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("catalog", c.CatalogPath).Msg("catalog load failed")
	}
	for _, f := range catalog.Forms() {
		if f.Provisional {
			log.Warn().Str("disease", f.ID).Int("expected_features", f.ExpectedFeatures).
				Msg("Form feature list is provisional; verify it against the model's training schema")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	registry, err := ml.LoadRegistry(ctx, registryConfig(c, catalog))
	if err != nil {
		log.Fatal().Err(err).Str("model_dir", c.ModelDir).Msg("model loading failed")
	}
	mw.SetModelsLoaded(registry.Len())
	log.Info().Int("models", registry.Len()).Str("backend", c.Backend).Msg("Models loaded")

	if store := initializeStorage(c); store != nil {
		recordManifest(store, registry, mw)
		store.Close()
	}

	if *checkOnly {
		log.Info().Msg("check complete")
		return
	}

	server, err := web.NewServer(diagnosis.NewDispatcher(catalog, registry), web.Options{
		Addr:           c.ListenAddr,
		Metrics:        mw,
		MetricsHandler: promhttp.Handler(),
		Models:         registry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("server setup failed")
	}
	serveErr := server.Start()

	var inference *http.Server
	if *inferenceAddr != "" {
		inference = startInferenceServer(*inferenceAddr, registry)
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err, ok := <-serveErr:
		if ok && err != nil {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer stop()
	if inference != nil {
		if err := inference.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shutdown inference server")
		}
	}
	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
		os.Exit(1)
	}
}

// startInferenceServer exposes the registry over the remote backend's
// protocol, so another instance can run with MODEL_BACKEND=remote.
func startInferenceServer(addr string, registry *ml.Registry) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ml.InferenceHandler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("address", addr).Msg("Starting inference server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Inference server failed")
		}
	}()
	return srv
}

func setupLogging(c cfg.Settings) {
	zerolog.SetGlobalLevel(c.ZerologLevel())
	zerolog.TimeFieldFormat = time.RFC3339
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// registryConfig maps every catalog form to an artifact in the model
// directory. The linear and lightgbm backends read exports with the same base
// name and a .json or .txt extension.
func registryConfig(c cfg.Settings, catalog *diagnosis.Catalog) ml.RegistryConfig {
	backend := ml.Backend(c.Backend)
	forms := catalog.Forms()
	artifacts := make([]ml.Artifact, 0, len(forms))
	for _, f := range forms {
		file := f.Artifact
		switch backend {
		case ml.BackendLinear:
			file = strings.TrimSuffix(file, filepath.Ext(file)) + ".json"
		case ml.BackendLightGBM:
			file = strings.TrimSuffix(file, filepath.Ext(file)) + ".txt"
		}
		artifacts = append(artifacts, ml.Artifact{
			ID:               f.ID,
			File:             c.ArtifactFile(f.ID, file),
			ExpectedFeatures: f.ExpectedFeatures,
		})
	}

	return ml.RegistryConfig{
		Dir:       c.ModelDir,
		Backend:   backend,
		Artifacts: artifacts,
		Script: ml.ScriptConfig{
			PythonPath: c.PythonPath,
			WorkDir:    c.ScriptDir,
			Timeout:    c.ModelTimeout,
		},
		Remote: ml.RemoteConfig{
			BaseURL: c.RemoteURL,
			Timeout: c.ModelTimeout,
		},
		VerifyOnStart: c.VerifyOnStart,
	}
}

func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without artifact manifest")
			return nil
		}
		return store
	}
	return nil
}

// recordManifest fingerprints every local artifact and warns when one was
// replaced since the previous run.
func recordManifest(store *storage.Store, registry *ml.Registry, mw *metrics.MetricsWrapper) {
	now := time.Now()
	for _, e := range registry.Entries() {
		if e.Backend == ml.BackendRemote || e.Path == "" {
			continue
		}
		rec, err := storage.Fingerprint(e.ID, e.Path)
		if err != nil {
			log.Warn().Err(err).Str("disease", e.ID).Msg("Failed to fingerprint model artifact")
			continue
		}
		change, err := store.Record(rec, now)
		if err != nil {
			log.Warn().Err(err).Str("disease", e.ID).Msg("Failed to record model artifact")
			continue
		}
		switch {
		case change.Changed():
			mw.ArtifactChanged()
			log.Warn().
				Str("disease", e.ID).
				Str("model_path", e.Path).
				Str("previous_sha256", change.Previous.SHA256).
				Str("sha256", rec.SHA256).
				Time("previous_first_seen", change.Previous.FirstSeen).
				Msg("Model artifact changed since last run")
		case change.New():
			log.Info().Str("disease", e.ID).Str("sha256", rec.SHA256).Msg("Model artifact recorded")
		}
	}
}
