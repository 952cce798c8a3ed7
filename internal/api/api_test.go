package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/datastore"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/inference"
)

const (
	testBaseURL   = "https://inference.test"
	plantModelURL = testBaseURL + "/plant-model/1"
	riceModelURL  = testBaseURL + "/rice-model/3"
)

// setupTestAPI creates a controller backed by an in-memory SQLite store and
// an inference client whose transport is intercepted by httpmock.
func setupTestAPI(t *testing.T) (*Controller, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{Version: "1.0.0"}
	settings.WebServer.Port = "8000"
	settings.Inference.BaseURL = testBaseURL
	settings.Inference.APIKey = "test-key"
	settings.Inference.PlantModel = "plant-model/1"
	settings.Inference.RiceModel = "rice-model/3"
	settings.Inference.MaxUploadSize = 1 << 20
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := datastore.New(settings, nil)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	client := inference.New(settings)
	httpmock.ActivateNonDefault(client.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return New(settings, store, client, nil), store
}

// newImageUpload builds a multipart body with a single "file" part.
func newImageUpload(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="leaf.jpg"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func doRequest(c *Controller, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestGetRoot(t *testing.T) {
	c, _ := setupTestAPI(t)

	rec := doRequest(c, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[RootResponse](t, rec)
	assert.Equal(t, "Plant Disease Detection API", resp.Message)
	assert.Equal(t, "1.0.0", resp.Version)
}

func TestGetHealth(t *testing.T) {
	c, _ := setupTestAPI(t)

	rec := doRequest(c, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeJSON[map[string]string](t, rec)["status"])
}

func TestPredictRice(t *testing.T) {
	c, _ := setupTestAPI(t)

	httpmock.RegisterResponder(http.MethodPost, riceModelURL,
		httpmock.NewStringResponder(http.StatusOK,
			`{"predictions":[{"class":"brown spot disease","confidence":0.31},{"class":"rice_blast_disease","confidence":0.92}]}`))

	// Prime the stats cache so the flush on save is exercised below.
	rec := doRequest(c, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decodeJSON[StatsResponse](t, rec).TotalDiagnoses)

	body, contentType := newImageUpload(t, "image/jpeg", []byte("fake image bytes"))
	rec = doRequest(c, http.MethodPost, "/predict/rice", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[PredictResponse](t, rec)
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.DiagnosisID)
	assert.Equal(t, "rice_blast_disease", resp.Disease)
	assert.Equal(t, "Bệnh đạo ôn", resp.DiseaseVietnamese)
	assert.InDelta(t, 0.92, resp.Confidence, 1e-9)
	assert.Equal(t, "rice", resp.Type)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "rice_blast_disease", resp.Predictions[0].Disease)
	assert.Equal(t, "brown spot disease", resp.Predictions[1].Disease)
	assert.Equal(t, "Bệnh đốm nâu", resp.Predictions[1].DiseaseVietnamese)

	_, err := time.Parse(time.RFC3339, resp.Timestamp)
	assert.NoError(t, err)

	// The record is visible in history and counted in stats.
	rec = doRequest(c, http.MethodGet, "/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[HistoryResponse](t, rec)
	require.Equal(t, 1, history.Total)
	assert.Equal(t, resp.DiagnosisID, history.History[0].ID)
	assert.Equal(t, "rice", history.History[0].Type)
	assert.Equal(t, "Bệnh đạo ôn", history.History[0].DiseaseVietnamese)
	assert.True(t, history.History[0].Success)

	rec = doRequest(c, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeJSON[StatsResponse](t, rec)
	assert.Equal(t, int64(1), stats.TotalDiagnoses)
	assert.Equal(t, int64(1), stats.SuccessfulDiagnoses)
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
	assert.Equal(t, int64(1), stats.ByType["rice"])
	require.Len(t, stats.TopDiseases, 1)
	assert.Equal(t, "Bệnh đạo ôn", stats.TopDiseases[0].Disease)
}

func TestPredictPlantTakesFirstPrediction(t *testing.T) {
	c, _ := setupTestAPI(t)

	httpmock.RegisterResponder(http.MethodPost, plantModelURL,
		httpmock.NewStringResponder(http.StatusOK,
			`{"predictions":[{"class":"Apple scab","confidence":0.55},{"class":"Apple rust","confidence":0.90}]}`))

	body, contentType := newImageUpload(t, "image/png", []byte("fake image bytes"))
	rec := doRequest(c, http.MethodPost, "/predict/plant", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[PredictResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "Apple scab", resp.Disease)
	assert.Empty(t, resp.DiseaseVietnamese)
	assert.InDelta(t, 0.55, resp.Confidence, 1e-9)
	assert.Equal(t, "plant", resp.Type)
	assert.Empty(t, resp.Predictions)
}

func TestPredictEmptyPredictions(t *testing.T) {
	c, _ := setupTestAPI(t)

	httpmock.RegisterResponder(http.MethodPost, plantModelURL,
		httpmock.NewStringResponder(http.StatusOK, `{"predictions":[]}`))

	body, contentType := newImageUpload(t, "image/jpeg", []byte("fake image bytes"))
	rec := doRequest(c, http.MethodPost, "/predict/plant", contentType, body)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeJSON[PredictResponse](t, rec)
	assert.False(t, resp.Success)
	assert.NotZero(t, resp.DiagnosisID)
	assert.Equal(t, "No disease detected", resp.Message)
	assert.Empty(t, resp.Disease)

	// A failed diagnosis is still recorded.
	rec = doRequest(c, http.MethodGet, "/history", "", nil)
	history := decodeJSON[HistoryResponse](t, rec)
	require.Equal(t, 1, history.Total)
	assert.False(t, history.History[0].Success)
	assert.Empty(t, history.History[0].Disease)
}

func TestPredictInferenceUnavailable(t *testing.T) {
	c, _ := setupTestAPI(t)

	httpmock.RegisterResponder(http.MethodPost, riceModelURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream error"))

	body, contentType := newImageUpload(t, "image/jpeg", []byte("fake image bytes"))
	rec := doRequest(c, http.MethodPost, "/predict/rice", contentType, body)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeJSON[ErrorResponse](t, rec)
	assert.Equal(t, "Inference service unavailable", resp.Message)
	assert.NotEmpty(t, resp.CorrelationID)

	// The attempt never reached the classifier, so nothing is persisted.
	rec = doRequest(c, http.MethodGet, "/history", "", nil)
	assert.Zero(t, decodeJSON[HistoryResponse](t, rec).Total)
}

func TestPredictRejectsNonImageUpload(t *testing.T) {
	c, _ := setupTestAPI(t)

	body, contentType := newImageUpload(t, "text/plain", []byte("not an image"))
	rec := doRequest(c, http.MethodPost, "/predict/plant", contentType, body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	// Exactly one error body: the handler must stop after the validation
	// response instead of appending a second one.
	require.True(t, json.Valid(rec.Body.Bytes()))
	assert.Equal(t, "File must be an image", decodeJSON[ErrorResponse](t, rec).Message)

	// Rejected uploads produce no inference call and no record.
	assert.Zero(t, httpmock.GetTotalCallCount())
	rec = doRequest(c, http.MethodGet, "/history", "", nil)
	assert.Zero(t, decodeJSON[HistoryResponse](t, rec).Total)
}

func TestPredictMissingFile(t *testing.T) {
	c, _ := setupTestAPI(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.Close())

	rec := doRequest(c, http.MethodPost, "/predict/plant", writer.FormDataContentType(), body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.True(t, json.Valid(rec.Body.Bytes()))
	assert.Equal(t, "Missing file upload", decodeJSON[ErrorResponse](t, rec).Message)
}

func TestPredictRejectsOversizedUpload(t *testing.T) {
	c, _ := setupTestAPI(t)
	c.Settings.Inference.MaxUploadSize = 16

	body, contentType := newImageUpload(t, "image/jpeg", bytes.Repeat([]byte("x"), 64))
	rec := doRequest(c, http.MethodPost, "/predict/plant", contentType, body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.True(t, json.Valid(rec.Body.Bytes()))
	assert.Equal(t, "Image too large", decodeJSON[ErrorResponse](t, rec).Message)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestGetHistoryLimit(t *testing.T) {
	c, store := setupTestAPI(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.SaveDiagnosis(&datastore.Diagnosis{
			Category:  "plant",
			Disease:   "Apple scab",
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	rec := doRequest(c, http.MethodGet, "/history?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	history := decodeJSON[HistoryResponse](t, rec)
	require.Equal(t, 2, history.Total)
	assert.Greater(t, history.History[0].ID, history.History[1].ID)
}

func TestReadEndpointsDegradeWhenStoreFails(t *testing.T) {
	c, store := setupTestAPI(t)

	// Closing the store makes every subsequent query fail.
	require.NoError(t, store.Close())

	rec := doRequest(c, http.MethodGet, "/history", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeJSON[HistoryResponse](t, rec)
	assert.Zero(t, history.Total)
	assert.NotNil(t, history.History)

	rec = doRequest(c, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeJSON[StatsResponse](t, rec)
	assert.Zero(t, stats.TotalDiagnoses)
	assert.Zero(t, stats.SuccessRate)
}

func TestHandleErrorLogsCategory(t *testing.T) {
	c, _ := setupTestAPI(t)

	var buf bytes.Buffer
	c.apiLogger = slog.New(slog.NewJSONHandler(&buf, nil))

	req := httptest.NewRequest(http.MethodPost, "/predict/rice", nil)
	rec := httptest.NewRecorder()
	ectx := c.Echo.NewContext(req, rec)

	enhanced := errors.Newf("log file is not open").
		Component("datastore").
		Category(errors.CategoryFileIO).
		Build()
	require.NoError(t, c.HandleError(ectx, enhanced, "Failed to save diagnosis", http.StatusInternalServerError))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, decodeJSON[ErrorResponse](t, rec).CorrelationID)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "datastore", entry["component"])
	assert.Equal(t, string(errors.CategoryFileIO), entry["category"])

	// Plain errors fall back to the generic category.
	buf.Reset()
	rec = httptest.NewRecorder()
	ectx = c.Echo.NewContext(req, rec)
	require.NoError(t, c.HandleError(ectx, errors.NewStd("boom"), "Failed", http.StatusInternalServerError))
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, string(errors.CategoryGeneric), entry["category"])
}

func TestPlantsCRUD(t *testing.T) {
	c, _ := setupTestAPI(t)

	rec := doRequest(c, http.MethodGet, "/plants", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	seeded := decodeJSON[[]PlantResponse](t, rec)
	require.NotEmpty(t, seeded)

	create := func(name string) *httptest.ResponseRecorder {
		payload, err := json.Marshal(PlantRequest{Name: name, ScientificName: "Psidium guajava"})
		require.NoError(t, err)
		return doRequest(c, http.MethodPost, "/plants", "application/json", bytes.NewBuffer(payload))
	}

	rec = create("Ổi")
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[PlantResponse](t, rec)
	assert.Equal(t, "Ổi", created.Name)
	require.NotZero(t, created.ID)

	// Duplicate name is rejected.
	rec = create("Ổi")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Plant name already exists", decodeJSON[ErrorResponse](t, rec).Message)

	// Name is required.
	rec = create("")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(c, http.MethodGet, "/plants/"+itoa(created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Psidium guajava", decodeJSON[PlantResponse](t, rec).ScientificName)

	rec = doRequest(c, http.MethodGet, "/plants/99999", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(c, http.MethodGet, "/plants/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(c, http.MethodDelete, "/plants/"+itoa(created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodDelete, "/plants/"+itoa(created.ID), "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
