// internal/api/predict.go
package api

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Phusssss/plant-disease-detection/internal/datastore"
	"github.com/Phusssss/plant-disease-detection/internal/diagnosis"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/inference"
)

// PredictionEntry is one element of the ranked prediction list returned on
// the rice endpoint.
type PredictionEntry struct {
	Disease           string  `json:"disease"`
	DiseaseVietnamese string  `json:"disease_vietnamese,omitempty"`
	Confidence        float64 `json:"confidence"`
}

// PredictResponse is the body of a completed prediction request. Message is
// set only when no disease was detected.
type PredictResponse struct {
	Success           bool              `json:"success"`
	DiagnosisID       uint              `json:"diagnosis_id"`
	Disease           string            `json:"disease,omitempty"`
	DiseaseVietnamese string            `json:"disease_vietnamese,omitempty"`
	Confidence        float64           `json:"confidence,omitempty"`
	Type              string            `json:"type,omitempty"`
	Timestamp         string            `json:"timestamp,omitempty"`
	Predictions       []PredictionEntry `json:"predictions,omitempty"`
	Message           string            `json:"message,omitempty"`
}

// PredictPlant handles image uploads for the general plant disease model.
func (c *Controller) PredictPlant(ctx echo.Context) error {
	return c.predict(ctx, diagnosis.CategoryPlant)
}

// PredictRice handles image uploads for the rice-specific disease model.
func (c *Controller) PredictRice(ctx echo.Context) error {
	return c.predict(ctx, diagnosis.CategoryRice)
}

// predict orchestrates one diagnosis attempt: validate the upload, call the
// inference API, select the best prediction per category policy, persist the
// outcome and build the response.
func (c *Controller) predict(ctx echo.Context, category diagnosis.Category) error {
	imageData, ok, err := c.readImageUpload(ctx)
	if !ok {
		return err // readImageUpload already wrote the error response
	}

	start := time.Now()
	result, err := c.InferenceClient.Classify(ctx.Request().Context(), imageData, diagnosis.EndpointFor(category))
	if c.metrics != nil {
		c.metrics.Inference.RecordRequestDuration(string(category), time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.Inference.RecordRequest(string(category), "error")
		}
		if errors.Is(err, errors.ErrInferenceUnavailable) {
			// Not persisted: the attempt never reached the classifier.
			return c.HandleError(ctx, err, "Inference service unavailable", http.StatusServiceUnavailable)
		}
		return c.HandleError(ctx, err, "Failed to classify image", http.StatusInternalServerError)
	}

	selected := diagnosis.Select(result.Predictions, diagnosis.PolicyFor(category))

	record := &datastore.Diagnosis{
		Category:  string(category),
		Success:   selected != nil,
		RawResult: string(result.Raw),
	}
	if selected != nil {
		record.Disease = selected.Class
		record.Confidence = selected.Confidence
		if category == diagnosis.CategoryRice {
			record.DiseaseLocalized = diagnosis.LocalizeDisease(selected.Class)
		} else {
			record.DiseaseLocalized = selected.Class
		}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := c.DS.SaveDiagnosis(record); err != nil {
		return c.HandleError(ctx, err, "Failed to save diagnosis", http.StatusInternalServerError)
	}
	c.statsCache.Flush()

	if c.metrics != nil {
		c.metrics.Diagnosis.RecordDiagnosis(string(category), record.Success)
		status := "success"
		if !record.Success {
			status = "empty"
		}
		c.metrics.Inference.RecordRequest(string(category), status)
	}

	if selected == nil {
		message := "No disease detected"
		if category == diagnosis.CategoryRice {
			message = "No rice disease detected"
		}
		c.logAPIRequest(ctx, "Diagnosis completed without prediction", "category", category, "diagnosis_id", record.ID)
		return ctx.JSON(http.StatusOK, PredictResponse{
			Success:     false,
			DiagnosisID: record.ID,
			Message:     message,
		})
	}

	response := PredictResponse{
		Success:     true,
		DiagnosisID: record.ID,
		Disease:     record.Disease,
		Confidence:  record.Confidence,
		Type:        string(category),
		Timestamp:   record.CreatedAt.Format(time.RFC3339),
	}
	if category == diagnosis.CategoryRice {
		response.DiseaseVietnamese = record.DiseaseLocalized
		response.Predictions = rankedPredictions(result.Predictions)
	}

	c.logAPIRequest(ctx, "Diagnosis completed",
		"category", category,
		"diagnosis_id", record.ID,
		"disease", record.Disease,
		"confidence", record.Confidence)

	return ctx.JSON(http.StatusOK, response)
}

// readImageUpload validates and reads the uploaded image into memory. When ok
// is false the error response has already been written and the returned error
// is the response writer's; it is nil on a successful write, so callers must
// branch on ok rather than on the error.
func (c *Controller) readImageUpload(ctx echo.Context) (imageData []byte, ok bool, err error) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return nil, false, c.HandleError(ctx, err, "Missing file upload", http.StatusBadRequest)
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, false, c.HandleError(ctx, errors.NewStd("file must be an image"),
			"File must be an image", http.StatusBadRequest)
	}

	maxSize := c.Settings.Inference.MaxUploadSize
	if maxSize > 0 && fileHeader.Size > maxSize {
		return nil, false, c.HandleError(ctx, errors.Newf("upload of %d bytes exceeds limit of %d", fileHeader.Size, maxSize).Build(),
			"Image too large", http.StatusRequestEntityTooLarge)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, false, c.HandleError(ctx, err, "Failed to open upload", http.StatusBadRequest)
	}
	defer file.Close()

	reader := io.Reader(file)
	if maxSize > 0 {
		reader = io.LimitReader(file, maxSize+1)
	}
	imageData, err = io.ReadAll(reader)
	if err != nil {
		return nil, false, c.HandleError(ctx, err, "Failed to read upload", http.StatusBadRequest)
	}
	if maxSize > 0 && int64(len(imageData)) > maxSize {
		return nil, false, c.HandleError(ctx, errors.NewStd("upload exceeds size limit"),
			"Image too large", http.StatusRequestEntityTooLarge)
	}

	return imageData, true, nil
}

// rankedPredictions converts a prediction set to response entries sorted by
// confidence descending.
func rankedPredictions(predictions inference.PredictionSet) []PredictionEntry {
	entries := make([]PredictionEntry, 0, len(predictions))
	for _, p := range predictions {
		entries = append(entries, PredictionEntry{
			Disease:           p.Class,
			DiseaseVietnamese: diagnosis.LocalizeDisease(p.Class),
			Confidence:        p.Confidence,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Confidence > entries[j].Confidence
	})
	return entries
}

// logAPIRequest logs an info-level message with common request context.
func (c *Controller) logAPIRequest(ctx echo.Context, msg string, args ...any) {
	baseAttrs := []any{
		"path", ctx.Request().URL.Path,
		"ip", ctx.RealIP(),
	}
	baseAttrs = append(baseAttrs, args...)
	c.apiLogger.Info(msg, baseAttrs...)
}
