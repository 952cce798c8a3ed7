package inference

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
)

// mockSettings creates settings pointing at a fake inference host.
func mockSettings() *conf.Settings {
	settings := &conf.Settings{}
	settings.Inference.BaseURL = "https://inference.test"
	settings.Inference.APIKey = "test-key-123"
	settings.Inference.PlantModel = "plantvillage-dataset/1"
	settings.Inference.RiceModel = "rice-diseases-qzjka/3"
	settings.Inference.Timeout = 5 * time.Second
	return settings
}

func setupClient(t *testing.T) *Client {
	t.Helper()
	client := New(mockSettings())
	httpmock.ActivateNonDefault(client.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestNew(t *testing.T) {
	settings := mockSettings()
	client := New(settings)

	require.NotNil(t, client)
	require.NotNil(t, client.HTTPClient)
	assert.Equal(t, 5*time.Second, client.HTTPClient.Timeout)
}

func TestNewDefaultTimeout(t *testing.T) {
	settings := mockSettings()
	settings.Inference.Timeout = 0
	client := New(settings)

	assert.Equal(t, 10*time.Second, client.HTTPClient.Timeout)
}

func TestClassifySuccess(t *testing.T) {
	client := setupClient(t)

	body := `{"predictions":[{"class":"rice blast disease","confidence":0.92},{"class":"brown spot disease","confidence":0.35}]}`
	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/rice-diseases-qzjka/3",
		httpmock.NewStringResponder(http.StatusOK, body))

	result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointRice)
	require.NoError(t, err)
	require.Len(t, result.Predictions, 2)

	assert.Equal(t, "rice blast disease", result.Predictions[0].Class)
	assert.InDelta(t, 0.92, result.Predictions[0].Confidence, 1e-9)
	// The raw body is preserved verbatim for persistence.
	assert.JSONEq(t, body, string(result.Raw))
}

func TestClassifySendsCredentialAsQueryParam(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "test-key-123", req.URL.Query().Get("api_key"))
			assert.Contains(t, req.Header.Get("Content-Type"), "multipart/form-data")
			return httpmock.NewStringResponse(http.StatusOK, `{"predictions":[]}`), nil
		})

	_, err := client.Classify(context.Background(), []byte("fake-image"), EndpointPlant)
	require.NoError(t, err)
}

// An empty prediction list is a valid result, not an error.
func TestClassifyEmptyPredictions(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewStringResponder(http.StatusOK, `{"predictions":[]}`))

	result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointPlant)
	require.NoError(t, err)
	assert.Empty(t, result.Predictions)
}

func TestClassifyMissingPredictionsField(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointPlant)
	require.NoError(t, err)
	assert.Empty(t, result.Predictions)
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"bad_request", http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized},
		{"internal_server_error", http.StatusInternalServerError},
		{"service_unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClient(t)
			httpmock.RegisterResponder(http.MethodPost, "https://inference.test/rice-diseases-qzjka/3",
				httpmock.NewStringResponder(tt.statusCode, `{"message":"nope"}`))

			result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointRice)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, errors.ErrInferenceUnavailable)
		})
	}
}

func TestClassifyMalformedBody(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewStringResponder(http.StatusOK, `{invalid json`))

	result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointPlant)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errors.ErrInferenceUnavailable)
}

func TestClassifyTransportError(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewErrorResponder(errors.NewStd("connection refused")))

	result, err := client.Classify(context.Background(), []byte("fake-image"), EndpointPlant)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, errors.ErrInferenceUnavailable)
}

func TestClassifyEmptyImage(t *testing.T) {
	client := setupClient(t)

	result, err := client.Classify(context.Background(), nil, EndpointPlant)
	require.Error(t, err)
	assert.Nil(t, result)
	// Empty input is a validation failure, not an availability problem.
	assert.NotErrorIs(t, err, errors.ErrInferenceUnavailable)
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewStringResponder(http.StatusOK, `{"predictions":[]}`))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := client.Classify(ctx, []byte("fake-image"), EndpointPlant)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInferenceUnavailable)
	assert.Equal(t, errors.CategoryTimeout, errors.GetCategory(err))
}

func TestClassifyContextCancelled(t *testing.T) {
	client := setupClient(t)

	httpmock.RegisterResponder(http.MethodPost, "https://inference.test/plantvillage-dataset/1",
		httpmock.NewStringResponder(http.StatusOK, `{"predictions":[]}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Classify(ctx, []byte("fake-image"), EndpointPlant)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInferenceUnavailable)
}
