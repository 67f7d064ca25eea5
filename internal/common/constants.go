package common

import "time"

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvListenAddr      = "LISTEN_ADDR"
	EnvModelDir        = "MODEL_DIR"
	EnvModelBackend    = "MODEL_BACKEND"
	EnvPythonPath      = "PYTHON_PATH"
	EnvScriptDir       = "SCRIPT_DIR"
	EnvModelTimeout    = "MODEL_TIMEOUT"
	EnvRemoteURL       = "REMOTE_MODEL_URL"
	EnvVerifyOnStart   = "VERIFY_MODELS_ON_START"
	EnvCatalogPath     = "CATALOG_PATH"
	EnvDataPath        = "DATA_PATH"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogPretty       = "LOG_PRETTY"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)

// Configuration defaults
const (
	DefaultListenAddr      = ":8080"
	DefaultModelDir        = "Models"
	DefaultModelBackend    = "script"
	DefaultModelTimeout    = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
)

// Validation constants
const (
	MinModelTimeout    = 100 * time.Millisecond
	MaxModelTimeout    = 2 * time.Minute
	MinShutdownTimeout = time.Second
	MaxShutdownTimeout = time.Minute
)

// Common error messages
const (
	ErrMsgModelDirRequired  = "model directory is required"
	ErrMsgRemoteURLRequired = "remote model URL is required for the remote backend"
)
