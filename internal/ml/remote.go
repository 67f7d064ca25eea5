package ml

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteConfig points the remote backend at an inference server.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

type remoteRequest struct {
	Model    string        `json:"model"`
	Features FeatureVector `json:"features"`
}

type remoteResponse struct {
	Prediction *RawLabel `json:"prediction"`
	Error      string    `json:"error,omitempty"`
	ErrorType  string    `json:"error_type,omitempty"`
}

// RemoteModel delegates inference to an HTTP server exposing
// POST {base}/predict. The server owns the deserialized artifact.
type RemoteModel struct {
	name string
	base string
	rest *resty.Client
}

// NewRemoteModel creates a model bound to the named artifact on the server.
func NewRemoteModel(name string, cfg RemoteConfig) *RemoteModel {
	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	return &RemoteModel{name: name, base: strings.TrimRight(cfg.BaseURL, "/"), rest: r}
}

// Predict implements Model.
func (m *RemoteModel) Predict(ctx context.Context, features FeatureVector) (RawLabel, error) {
	resp := &remoteResponse{}
	httpResp, err := m.rest.R().
		SetContext(ctx).
		SetBody(remoteRequest{Model: m.name, Features: features}).
		SetResult(resp).
		SetError(resp).
		Post(m.base + "/predict")
	if err != nil {
		return RawLabel{}, newModelError("TransportError", "%v", err)
	}

	if resp.Error != "" {
		typ := resp.ErrorType
		if typ == "" {
			typ = "RemoteError"
		}
		return RawLabel{}, &ModelError{Type: typ, Message: resp.Error}
	}
	if httpResp.IsError() {
		return RawLabel{}, newModelError("RemoteError", "inference server returned %s", httpResp.Status())
	}
	if resp.Prediction == nil {
		return RawLabel{}, newModelError("RemoteError", "inference server returned no prediction")
	}
	return *resp.Prediction, nil
}

// Ping checks that the inference server knows the model.
func (m *RemoteModel) Ping(ctx context.Context) error {
	httpResp, err := m.rest.R().
		SetContext(ctx).
		SetQueryParam("model", m.name).
		Get(m.base + "/health")
	if err != nil {
		return fmt.Errorf("inference server unreachable: %w", err)
	}
	if httpResp.IsError() {
		return fmt.Errorf("inference server rejected model %s: %s", m.name, httpResp.Status())
	}
	return nil
}
