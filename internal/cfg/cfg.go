package cfg

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"diseasepredict/internal/common"
)

type Settings struct {
	ListenAddr      string
	ModelDir        string
	Backend         string
	Artifacts       map[string]string // disease ID -> artifact file name override
	PythonPath      string
	ScriptDir       string
	ModelTimeout    time.Duration
	RemoteURL       string
	VerifyOnStart   bool
	CatalogPath     string
	DataPath        string // manifest is disabled when empty
	LogLevel        string
	LogPretty       bool
	ShutdownTimeout time.Duration
}

type ConfigFile struct {
	Server struct {
		ListenAddr      string `yaml:"listenAddr"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	ML struct {
		ModelDir      string            `yaml:"modelDir"`
		Backend       string            `yaml:"backend"`
		Artifacts     map[string]string `yaml:"artifacts"`
		PythonPath    string            `yaml:"pythonPath"`
		ScriptDir     string            `yaml:"scriptDir"`
		Timeout       string            `yaml:"timeout"`
		RemoteURL     string            `yaml:"remoteURL"`
		VerifyOnStart bool              `yaml:"verifyOnStart"`
	} `yaml:"ml"`

	Catalog struct {
		Path string `yaml:"path"`
	} `yaml:"catalog"`

	Data struct {
		Path string `yaml:"path"`
	} `yaml:"data"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone. A .env file in the working directory is loaded first
// when present; variables already set are not overwritten.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := parseDurationOr(config.ML.Timeout, common.DefaultModelTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("ml.timeout: %w", err)
	}
	shutdown, err := parseDurationOr(config.Server.ShutdownTimeout, common.DefaultShutdownTimeout)
	if err != nil {
		return Settings{}, fmt.Errorf("server.shutdownTimeout: %w", err)
	}

	settings := Settings{
		ListenAddr:      getEnvOrDefault(common.EnvListenAddr, orDefault(config.Server.ListenAddr, common.DefaultListenAddr)),
		ModelDir:        getEnvOrDefault(common.EnvModelDir, orDefault(config.ML.ModelDir, common.DefaultModelDir)),
		Backend:         getEnvOrDefault(common.EnvModelBackend, orDefault(config.ML.Backend, common.DefaultModelBackend)),
		Artifacts:       config.ML.Artifacts,
		PythonPath:      getEnvOrDefault(common.EnvPythonPath, config.ML.PythonPath),
		ScriptDir:       getEnvOrDefault(common.EnvScriptDir, config.ML.ScriptDir),
		ModelTimeout:    getDurationOrDefault(common.EnvModelTimeout, timeout),
		RemoteURL:       getEnvOrDefault(common.EnvRemoteURL, config.ML.RemoteURL),
		VerifyOnStart:   getBoolOrDefault(common.EnvVerifyOnStart, config.ML.VerifyOnStart),
		CatalogPath:     getEnvOrDefault(common.EnvCatalogPath, config.Catalog.Path),
		DataPath:        getEnvOrDefault(common.EnvDataPath, config.Data.Path),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, orDefault(config.Log.Level, common.DefaultLogLevel)),
		LogPretty:       getBoolOrDefault(common.EnvLogPretty, config.Log.Pretty),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, shutdown),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ListenAddr:      getEnvOrDefault(common.EnvListenAddr, common.DefaultListenAddr),
		ModelDir:        getEnvOrDefault(common.EnvModelDir, common.DefaultModelDir),
		Backend:         getEnvOrDefault(common.EnvModelBackend, common.DefaultModelBackend),
		PythonPath:      os.Getenv(common.EnvPythonPath),
		ScriptDir:       os.Getenv(common.EnvScriptDir),
		ModelTimeout:    getDurationOrDefault(common.EnvModelTimeout, common.DefaultModelTimeout),
		RemoteURL:       os.Getenv(common.EnvRemoteURL),
		VerifyOnStart:   getBoolOrDefault(common.EnvVerifyOnStart, false),
		CatalogPath:     os.Getenv(common.EnvCatalogPath),
		DataPath:        os.Getenv(common.EnvDataPath), // optional
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogPretty:       getBoolOrDefault(common.EnvLogPretty, false),
		ShutdownTimeout: getDurationOrDefault(common.EnvShutdownTimeout, common.DefaultShutdownTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// ArtifactFile returns the configured file name for a disease, or def.
func (s *Settings) ArtifactFile(disease, def string) string {
	if f, ok := s.Artifacts[disease]; ok && f != "" {
		return f
	}
	return def
}

// ZerologLevel parses LogLevel; validation guarantees it is well-formed.
func (s *Settings) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func parseDurationOr(v string, defaultValue time.Duration) (time.Duration, error) {
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// validateSettings checks every field that can be wrong at startup.
func validateSettings(settings *Settings) error {
	if _, _, err := net.SplitHostPort(settings.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", settings.ListenAddr, err)
	}

	if settings.ModelDir == "" {
		return fmt.Errorf(common.ErrMsgModelDirRequired)
	}

	switch settings.Backend {
	case "script", "linear", "lightgbm":
	case "remote":
		if settings.RemoteURL == "" {
			return fmt.Errorf(common.ErrMsgRemoteURLRequired)
		}
		u, err := url.Parse(settings.RemoteURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid remote model URL %q", settings.RemoteURL)
		}
	default:
		return fmt.Errorf("model backend must be one of script, remote, linear, lightgbm; got %q", settings.Backend)
	}

	if settings.ModelTimeout < common.MinModelTimeout || settings.ModelTimeout > common.MaxModelTimeout {
		return fmt.Errorf("model timeout must be between %v and %v, got %v",
			common.MinModelTimeout, common.MaxModelTimeout, settings.ModelTimeout)
	}
	if settings.ShutdownTimeout < common.MinShutdownTimeout || settings.ShutdownTimeout > common.MaxShutdownTimeout {
		return fmt.Errorf("shutdown timeout must be between %v and %v, got %v",
			common.MinShutdownTimeout, common.MaxShutdownTimeout, settings.ShutdownTimeout)
	}

	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	for disease, file := range settings.Artifacts {
		if file == "" {
			return fmt.Errorf("artifact override for %s is empty", disease)
		}
	}
	return nil
}
