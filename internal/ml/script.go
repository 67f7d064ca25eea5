package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const inferenceScriptName = "diseasepredict_infer.py"

// ScriptConfig controls the Python inference helper used for pickled
// scikit-learn artifacts.
type ScriptConfig struct {
	PythonPath string        // interpreter; discovered when empty
	ScriptPath string        // helper script; written to WorkDir when empty
	WorkDir    string        // where the embedded helper is written; os.TempDir() when empty
	Timeout    time.Duration // per invocation
}

// scriptRuntime is the resolved interpreter and helper shared by all script models.
type scriptRuntime struct {
	pythonPath string
	scriptPath string
	timeout    time.Duration
}

type scriptRequest struct {
	Features FeatureVector `json:"features"`
}

type scriptResponse struct {
	Prediction *RawLabel `json:"prediction,omitempty"`
	OK         bool      `json:"ok,omitempty"`
	NFeatures  *int      `json:"n_features,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
}

// ScriptModel runs predictions through a Python helper that unpickles the
// artifact and calls its predict method. Each call is a separate process, so
// the model holds no mutable state.
type ScriptModel struct {
	modelPath string
	rt        scriptRuntime
}

func newScriptRuntime(cfg ScriptConfig) (scriptRuntime, error) {
	rt := scriptRuntime{timeout: cfg.Timeout}
	if rt.timeout <= 0 {
		rt.timeout = 10 * time.Second
	}

	rt.pythonPath = cfg.PythonPath
	if rt.pythonPath == "" {
		p, err := findPython()
		if err != nil {
			return rt, err
		}
		rt.pythonPath = p
	}

	rt.scriptPath = cfg.ScriptPath
	if rt.scriptPath == "" {
		dir := cfg.WorkDir
		if dir == "" {
			dir = os.TempDir()
		}
		rt.scriptPath = filepath.Join(dir, inferenceScriptName)
		if err := createInferenceScript(rt.scriptPath); err != nil {
			return rt, fmt.Errorf("write inference helper: %w", err)
		}
	} else if _, err := os.Stat(rt.scriptPath); err != nil {
		return rt, fmt.Errorf("inference helper %s: %w", rt.scriptPath, err)
	}

	return rt, nil
}

func newScriptModel(modelPath string, rt scriptRuntime) (*ScriptModel, error) {
	if err := checkPickleHeader(modelPath); err != nil {
		return nil, err
	}
	return &ScriptModel{modelPath: modelPath, rt: rt}, nil
}

// Predict implements Model.
func (m *ScriptModel) Predict(ctx context.Context, features FeatureVector) (RawLabel, error) {
	resp, err := m.run(ctx, "predict", features)
	if err != nil {
		return RawLabel{}, err
	}
	if resp.Prediction == nil {
		return RawLabel{}, newModelError("ScriptError", "helper returned no prediction")
	}

	log.Debug().
		Str("model_path", m.modelPath).
		Int("n_features", len(features)).
		Str("prediction", resp.Prediction.String()).
		Msg("Prediction successful")

	return *resp.Prediction, nil
}

// Verify fully deserializes the artifact in the helper. It returns the
// feature count the estimator was fitted with, or 0 when unknown.
func (m *ScriptModel) Verify(ctx context.Context) (int, error) {
	resp, err := m.run(ctx, "check", nil)
	if err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, newModelError("ScriptError", "helper did not confirm the artifact")
	}
	if resp.NFeatures != nil {
		return *resp.NFeatures, nil
	}
	return 0, nil
}

func (m *ScriptModel) run(ctx context.Context, mode string, features FeatureVector) (*scriptResponse, error) {
	reqJSON, err := json.Marshal(scriptRequest{Features: features})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.rt.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.rt.pythonPath, m.rt.scriptPath, mode, m.modelPath)
	cmd.Stdin = bytes.NewReader(reqJSON)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, newModelError("Timeout", "prediction timeout after %v", m.rt.timeout)
	}

	var resp scriptResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		log.Error().
			Err(err).
			AnErr("run_error", runErr).
			Str("model_path", m.modelPath).
			Str("stdout", stdout.String()).
			Str("stderr", stderr.String()).
			Msg("Failed to parse inference helper output")
		if runErr != nil {
			return nil, newModelError("ScriptError", "python inference failed: %v, stderr: %s", runErr, stderr.String())
		}
		return nil, newModelError("ScriptError", "unreadable helper output: %v", err)
	}

	if resp.Error != "" {
		log.Error().
			Str("python_error", resp.Error).
			Str("error_type", resp.ErrorType).
			Str("model_path", m.modelPath).
			Str("mode", mode).
			Msg("Python inference returned error")
		typ := resp.ErrorType
		if typ == "" {
			typ = "PythonError"
		}
		return nil, &ModelError{Type: typ, Message: resp.Error}
	}

	if runErr != nil {
		return nil, newModelError("ScriptError", "python inference failed: %v, stderr: %s", runErr, stderr.String())
	}

	return &resp, nil
}

// checkPickleHeader rejects artifacts that cannot be a binary pickle stream.
// Protocol 2 and later start with 0x80 followed by the protocol number; newer
// protocols are left for the helper's pickle.load to accept or refuse.
func checkPickleHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 2)
	if _, err := io.ReadFull(f, head); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("model file %s is empty or truncated", path)
		}
		return fmt.Errorf("failed to read model file %s: %w", path, err)
	}
	if head[0] != 0x80 || head[1] < 2 {
		return fmt.Errorf("model file %s is not a pickle artifact (header % x)", path, head)
	}
	return nil
}

func findPython() (string, error) {
	var candidates []string

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		cmd := exec.Command(candidate, "-c", "import sys, sklearn; print('Python', sys.version)")
		if output, err := cmd.Output(); err == nil && strings.Contains(string(output), "Python 3") {
			log.Info().Str("python_path", candidate).Msg("Using Python with scikit-learn")
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no Python 3 interpreter with scikit-learn found; set ml.pythonPath")
}

func createInferenceScript(scriptPath string) error {
	script := `#!/usr/bin/env python3
"""Inference helper for diseasepredict: unpickles a scikit-learn model and predicts."""
import json
import pickle
import sys
import warnings

warnings.filterwarnings("ignore")


def emit(payload, code=0):
    print(json.dumps(payload))
    sys.exit(code)


def fail(exc):
    emit({"error": str(exc), "error_type": type(exc).__name__}, 1)


def main():
    if len(sys.argv) != 3 or sys.argv[1] not in ("predict", "check"):
        emit({"error": "usage: infer.py predict|check <model_path>", "error_type": "UsageError"}, 2)

    mode, model_path = sys.argv[1], sys.argv[2]
    try:
        with open(model_path, "rb") as fh:
            model = pickle.load(fh)
    except Exception as exc:
        fail(exc)

    if mode == "check":
        n = getattr(model, "n_features_in_", None)
        emit({"ok": True, "n_features": int(n) if n is not None else None})

    try:
        import numpy as np

        request = json.load(sys.stdin)
        features = np.asarray([request["features"]], dtype=float)
        value = model.predict(features)[0]
        if hasattr(value, "item"):
            value = value.item()
        if isinstance(value, bytes):
            value = value.decode()
        emit({"prediction": value})
    except Exception as exc:
        fail(exc)


if __name__ == "__main__":
    main()
`

	return os.WriteFile(scriptPath, []byte(script), 0o755)
}
