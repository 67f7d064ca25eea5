package ml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Backend selects how artifacts are turned into models.
type Backend string

const (
	BackendScript Backend = "script"
	BackendRemote Backend = "remote"
	BackendLinear Backend = "linear"
	// BackendLightGBM loads LightGBM text dumps in-process.
	BackendLightGBM Backend = "lightgbm"
)

// Valid reports whether b names a supported backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendScript, BackendRemote, BackendLinear, BackendLightGBM:
		return true
	}
	return false
}

// Artifact names the model file serving one disease.
type Artifact struct {
	ID               string
	File             string
	ExpectedFeatures int
}

// RegistryConfig describes where the artifacts live and how to load them.
type RegistryConfig struct {
	Dir           string
	Backend       Backend
	Artifacts     []Artifact
	Script        ScriptConfig
	Remote        RemoteConfig
	VerifyOnStart bool
}

// ModelMetadata is the optional sidecar written next to an artifact
// (<artifact>.meta.json) by the training pipeline.
type ModelMetadata struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
	Features  []string  `json:"features"`
	Accuracy  float64   `json:"accuracy"`
}

// Entry describes a loaded model.
type Entry struct {
	ID             string         `json:"id"`
	Path           string         `json:"path"`
	Backend        Backend        `json:"backend"`
	Size           int64          `json:"size"`
	ModTime        time.Time      `json:"mod_time"`
	FittedFeatures int            `json:"fitted_features,omitempty"`
	Metadata       *ModelMetadata `json:"metadata,omitempty"`
	SchemaMismatch bool           `json:"schema_mismatch"`
}

// Registry owns one model per disease. It is built once and is read-only
// afterwards.
type Registry struct {
	models  map[string]Model
	entries map[string]Entry
}

// NewRegistry wraps already constructed models. Intended for tests and for
// callers that build models themselves.
func NewRegistry(models map[string]Model) *Registry {
	r := &Registry{
		models:  make(map[string]Model, len(models)),
		entries: make(map[string]Entry, len(models)),
	}
	for id, m := range models {
		r.models[id] = m
		r.entries[id] = Entry{ID: id}
	}
	return r
}

// LoadRegistry loads every configured artifact. Any missing or unreadable
// artifact fails the whole load; the caller is expected to stop.
func LoadRegistry(ctx context.Context, cfg RegistryConfig) (*Registry, error) {
	if !cfg.Backend.Valid() {
		return nil, fmt.Errorf("unsupported model backend %q", cfg.Backend)
	}

	r := &Registry{
		models:  make(map[string]Model, len(cfg.Artifacts)),
		entries: make(map[string]Entry, len(cfg.Artifacts)),
	}

	var (
		rt    scriptRuntime
		rtErr error
		rtSet bool
		errs  []error
	)

	for _, a := range cfg.Artifacts {
		path := filepath.Join(cfg.Dir, a.File)
		entry := Entry{ID: a.ID, Path: path, Backend: cfg.Backend}

		if cfg.Backend != BackendRemote {
			info, err := os.Stat(path)
			if err != nil {
				if os.IsNotExist(err) {
					errs = append(errs, fmt.Errorf("model file not found: %s", path))
				} else {
					errs = append(errs, fmt.Errorf("model file %s: %w", path, err))
				}
				continue
			}
			entry.Size = info.Size()
			entry.ModTime = info.ModTime()
		}

		var model Model
		switch cfg.Backend {
		case BackendScript:
			if !rtSet {
				rt, rtErr = newScriptRuntime(cfg.Script)
				rtSet = true
			}
			if rtErr != nil {
				errs = append(errs, fmt.Errorf("load %s: %w", a.ID, rtErr))
				continue
			}
			sm, err := newScriptModel(path, rt)
			if err != nil {
				errs = append(errs, fmt.Errorf("could not load model file: %w", err))
				continue
			}
			if cfg.VerifyOnStart {
				n, err := sm.Verify(ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("could not load model file %s: %w", path, err))
					continue
				}
				entry.FittedFeatures = n
			}
			model = sm

		case BackendLinear:
			lm, err := LoadLinearModel(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("could not load model file: %w", err))
				continue
			}
			entry.FittedFeatures = lm.NFeatures()
			model = lm

		case BackendLightGBM:
			bm, err := LoadBoostedModel(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("could not load model file: %w", err))
				continue
			}
			entry.FittedFeatures = bm.NFeatures()
			model = bm

		case BackendRemote:
			rm := NewRemoteModel(a.ID, cfg.Remote)
			if cfg.VerifyOnStart {
				if err := rm.Ping(ctx); err != nil {
					errs = append(errs, fmt.Errorf("load %s: %w", a.ID, err))
					continue
				}
			}
			entry.Path = cfg.Remote.BaseURL
			model = rm
		}

		if md, err := loadModelMetadata(path); err == nil {
			entry.Metadata = md
		} else if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("model_path", path).Msg("Failed to read model metadata")
		}

		entry.SchemaMismatch = schemaMismatch(entry, a.ExpectedFeatures)
		if entry.SchemaMismatch {
			log.Warn().
				Str("disease", a.ID).
				Str("model_path", path).
				Int("expected_features", a.ExpectedFeatures).
				Int("fitted_features", entry.FittedFeatures).
				Msg("Model feature count differs from the form definition")
		}

		r.models[a.ID] = model
		r.entries[a.ID] = entry
		log.Info().Str("disease", a.ID).Str("model_path", entry.Path).Str("backend", string(cfg.Backend)).Msg("Model loaded")
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Get returns the model for a disease.
func (r *Registry) Get(id string) (Model, bool) {
	if r == nil {
		return nil, false
	}
	m, ok := r.models[id]
	return m, ok
}

// Len returns the number of loaded models.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.models)
}

// Entries lists loaded models ordered by ID.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func schemaMismatch(e Entry, expected int) bool {
	if expected <= 0 {
		return false
	}
	if e.FittedFeatures > 0 && e.FittedFeatures != expected {
		return true
	}
	return e.Metadata != nil && len(e.Metadata.Features) > 0 && len(e.Metadata.Features) != expected
}

func loadModelMetadata(modelPath string) (*ModelMetadata, error) {
	file, err := os.Open(modelPath + ".meta.json")
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &md, nil
}
