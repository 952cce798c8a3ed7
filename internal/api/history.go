// internal/api/history.go
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Phusssss/plant-disease-detection/internal/datastore"
)

const statsCacheKey = "stats"

// HistoryEntry represents one diagnosis in the history response.
type HistoryEntry struct {
	ID                uint    `json:"id"`
	Timestamp         string  `json:"timestamp"`
	Type              string  `json:"type"`
	Disease           string  `json:"disease,omitempty"`
	DiseaseVietnamese string  `json:"disease_vietnamese,omitempty"`
	Confidence        float64 `json:"confidence"`
	Success           bool    `json:"success"`
}

// HistoryResponse is the body of the history endpoint.
type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
	Total   int            `json:"total"`
}

// GetHistory returns the most recent diagnoses, newest first. Storage
// failures degrade to an empty list: history must stay available even when
// the store is not, at the cost of callers being unable to tell "no data"
// from "store unreachable". The fallback is counted and logged so operators
// still can.
func (c *Controller) GetHistory(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	diagnoses, err := c.DS.GetHistory(limit)
	if err != nil {
		c.apiLogger.Warn("History read failed, returning empty result",
			"error", err.Error(),
			"path", ctx.Request().URL.Path)
		if c.metrics != nil {
			c.metrics.Datastore.RecordReadFallback("history")
		}
		diagnoses = nil
	}

	entries := make([]HistoryEntry, 0, len(diagnoses))
	for i := range diagnoses {
		entries = append(entries, historyEntry(&diagnoses[i]))
	}

	return ctx.JSON(http.StatusOK, HistoryResponse{
		History: entries,
		Total:   len(entries),
	})
}

func historyEntry(d *datastore.Diagnosis) HistoryEntry {
	return HistoryEntry{
		ID:                d.ID,
		Timestamp:         d.CreatedAt.Format(time.RFC3339),
		Type:              d.Category,
		Disease:           d.Disease,
		DiseaseVietnamese: d.DiseaseLocalized,
		Confidence:        d.Confidence,
		Success:           d.Success,
	}
}

// StatsResponse is the body of the stats endpoint.
type StatsResponse struct {
	TotalDiagnoses      int64                  `json:"total_diagnoses"`
	SuccessfulDiagnoses int64                  `json:"successful_diagnoses"`
	SuccessRate         float64                `json:"success_rate"`
	ByType              map[string]int64       `json:"by_type"`
	TopDiseases         []datastore.TopDisease `json:"top_diseases"`
}

// GetStats returns aggregate diagnosis statistics. Responses are cached
// briefly since the aggregate queries touch every record; the cache is
// flushed on every new diagnosis. Storage failures degrade to zeroed stats
// with the same fallback accounting as GetHistory.
func (c *Controller) GetStats(ctx echo.Context) error {
	if cached, found := c.statsCache.Get(statsCacheKey); found {
		return ctx.JSON(http.StatusOK, cached.(*StatsResponse))
	}

	stats, err := c.DS.GetStats()
	if err != nil {
		c.apiLogger.Warn("Stats read failed, returning zeroed result",
			"error", err.Error(),
			"path", ctx.Request().URL.Path)
		if c.metrics != nil {
			c.metrics.Datastore.RecordReadFallback("stats")
		}
		stats = &datastore.Stats{ByCategory: make(map[string]int64)}
	}

	response := &StatsResponse{
		TotalDiagnoses:      stats.TotalDiagnoses,
		SuccessfulDiagnoses: stats.SuccessfulDiagnoses,
		SuccessRate:         stats.SuccessRate,
		ByType:              stats.ByCategory,
		TopDiseases:         stats.TopDiseases,
	}
	if err == nil {
		c.statsCache.SetDefault(statsCacheKey, response)
	}

	return ctx.JSON(http.StatusOK, response)
}
