package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ListenAddr:      ":8080",
		ModelDir:        "Models",
		Backend:         "script",
		ModelTimeout:    10 * time.Second,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{
			name:    "listen address without port",
			mutate:  func(s *Settings) { s.ListenAddr = "localhost" },
			wantErr: "invalid listen address",
		},
		{
			name:    "empty model dir",
			mutate:  func(s *Settings) { s.ModelDir = "" },
			wantErr: "model directory is required",
		},
		{
			name:    "unknown backend",
			mutate:  func(s *Settings) { s.Backend = "tensorflow" },
			wantErr: "model backend must be one of",
		},
		{
			name:    "remote without URL",
			mutate:  func(s *Settings) { s.Backend = "remote" },
			wantErr: "remote model URL is required",
		},
		{
			name: "remote with relative URL",
			mutate: func(s *Settings) {
				s.Backend = "remote"
				s.RemoteURL = "inference/predict"
			},
			wantErr: "invalid remote model URL",
		},
		{
			name:    "model timeout too short",
			mutate:  func(s *Settings) { s.ModelTimeout = time.Millisecond },
			wantErr: "model timeout must be between",
		},
		{
			name:    "model timeout too long",
			mutate:  func(s *Settings) { s.ModelTimeout = time.Hour },
			wantErr: "model timeout must be between",
		},
		{
			name:    "shutdown timeout too short",
			mutate:  func(s *Settings) { s.ShutdownTimeout = 0 },
			wantErr: "shutdown timeout must be between",
		},
		{
			name:    "bad log level",
			mutate:  func(s *Settings) { s.LogLevel = "loud" },
			wantErr: "invalid log level",
		},
		{
			name:    "empty artifact override",
			mutate:  func(s *Settings) { s.Artifacts = map[string]string{"thyroid": ""} },
			wantErr: "artifact override for thyroid is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSettings_Boundaries(t *testing.T) {
	settings := createValidSettings()
	settings.ModelTimeout = 100 * time.Millisecond
	settings.ShutdownTimeout = time.Minute
	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected boundary values to pass, got error: %v", err)
	}

	settings.Backend = "lightgbm"
	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected lightgbm backend to pass, got error: %v", err)
	}

	settings.Backend = "remote"
	settings.RemoteURL = "https://models.internal:8443"
	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected remote config to pass, got error: %v", err)
	}
}
