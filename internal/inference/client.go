// Package inference implements a client for the hosted Roboflow-style image
// classification API used for plant disease diagnosis.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/logging"
)

// Package-level logger specific to the inference service
var (
	serviceLogger *slog.Logger
	closeLogger   func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "inference.log")

	serviceLogger, closeLogger, err = logging.NewFileLogger(logFilePath, "inference", slog.LevelDebug)
	if err != nil {
		// Fallback: disable file logging rather than panicking at startup
		log.Printf("Failed to initialize inference file logger at %s: %v. Service logging disabled.", logFilePath, err)
		serviceLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		closeLogger = func() error { return nil }
	}
}

// Endpoint selects which hosted classification model an upload targets.
type Endpoint string

const (
	EndpointPlant Endpoint = "plant" // general plant disease model
	EndpointRice  Endpoint = "rice"  // rice-specific disease model
)

// Prediction is a single (label, confidence) pair returned by the API.
type Prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// PredictionSet is the ordered sequence of predictions as returned by the
// API. Order is API-defined and not guaranteed sorted.
type PredictionSet []Prediction

// classifyResponse mirrors the JSON body of the hosted detection endpoint.
// A missing or empty predictions list is a valid result, not an error.
type classifyResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Result carries the decoded prediction set together with the verbatim
// response body, which is persisted for audit and debugging.
type Result struct {
	Predictions PredictionSet
	Raw         json.RawMessage
}

// Client submits image payloads to the hosted classification endpoints.
type Client struct {
	Settings   *conf.Settings
	HTTPClient *http.Client
}

// New creates a new inference client. The HTTP client timeout comes from
// configuration so a stalled inference call cannot hang a request forever.
func New(settings *conf.Settings) *Client {
	timeout := settings.Inference.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		Settings:   settings,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// modelPath returns the configured model path for an endpoint.
func (c *Client) modelPath(endpoint Endpoint) string {
	if endpoint == EndpointRice {
		return c.Settings.Inference.RiceModel
	}
	return c.Settings.Inference.PlantModel
}

// Classify uploads raw image bytes to the endpoint's model and returns the
// raw prediction set. Transport failures, non-2xx statuses and malformed
// response bodies all wrap errors.ErrInferenceUnavailable so callers receive
// a recoverable signal instead of a silently empty result. The call is never
// retried; duplicating a metered API call must stay a caller decision.
func (c *Client) Classify(ctx context.Context, imageData []byte, endpoint Endpoint) (*Result, error) {
	if len(imageData) == 0 {
		return nil, errors.Newf("image data is empty").
			Component("inference").
			Category(errors.CategoryValidation).
			Build()
	}

	model := c.modelPath(endpoint)
	requestURL := fmt.Sprintf("%s/%s?%s", c.Settings.Inference.BaseURL, model,
		url.Values{"api_key": {c.Settings.Inference.APIKey}}.Encode())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating multipart form: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("writing image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		category := errors.CategoryNetwork
		if errors.Is(err, context.DeadlineExceeded) {
			category = errors.CategoryTimeout
		}
		serviceLogger.Error("Inference request failed", "endpoint", endpoint, "model", model, "error", err)
		return nil, errors.New(fmt.Errorf("%w: %w", errors.ErrInferenceUnavailable, err)).
			Component("inference").
			Category(category).
			Context("endpoint", string(endpoint)).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			serviceLogger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serviceLogger.Error("Inference request returned non-2xx status",
			"endpoint", endpoint, "model", model, "status", resp.StatusCode)
		return nil, errors.New(fmt.Errorf("%w: unexpected status %d", errors.ErrInferenceUnavailable, resp.StatusCode)).
			Component("inference").
			Category(errors.CategoryInferenceAPI).
			Context("endpoint", string(endpoint)).
			Context("status_code", resp.StatusCode).
			Build()
	}

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		serviceLogger.Error("Failed to read inference response", "endpoint", endpoint, "error", err)
		return nil, errors.New(fmt.Errorf("%w: reading response: %w", errors.ErrInferenceUnavailable, err)).
			Component("inference").
			Category(errors.CategoryNetwork).
			Context("endpoint", string(endpoint)).
			Build()
	}

	var decoded classifyResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		serviceLogger.Error("Failed to decode inference response", "endpoint", endpoint, "error", err)
		return nil, errors.New(fmt.Errorf("%w: decoding response: %w", errors.ErrInferenceUnavailable, err)).
			Component("inference").
			Category(errors.CategoryInferenceAPI).
			Context("endpoint", string(endpoint)).
			Build()
	}

	serviceLogger.Debug("Inference request completed",
		"endpoint", endpoint,
		"model", model,
		"predictions", len(decoded.Predictions),
		"duration_ms", time.Since(start).Milliseconds())

	return &Result{Predictions: decoded.Predictions, Raw: rawBody}, nil
}

// Close releases resources held by the client. The inference log file is a
// package-level singleton shared by all clients, so Close must only be called
// at process shutdown; after it, no client logs to the file anymore.
func (c *Client) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Failed to close inference log file: %v", err)
		}
	}
}
