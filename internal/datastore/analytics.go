// internal/datastore/analytics.go
package datastore

import (
	"fmt"
	"time"
)

// TopDisease is one entry of the most-frequent-diseases list.
type TopDisease struct {
	Disease string `json:"disease"`
	Count   int    `json:"count"`
}

// Stats contains aggregate statistics over all diagnosis records.
type Stats struct {
	TotalDiagnoses      int64            `json:"total_diagnoses"`
	SuccessfulDiagnoses int64            `json:"successful_diagnoses"`
	SuccessRate         float64          `json:"success_rate"`
	ByCategory          map[string]int64 `json:"by_type"`
	TopDiseases         []TopDisease     `json:"top_diseases"`
}

// GetStats computes aggregate statistics over all diagnosis records. The
// success rate is 0 when no records exist. Top diseases are the most frequent
// localized labels among successful records, descending by count with stable
// ordering on ties.
func (ds *DataStore) GetStats() (stats *Stats, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("stats", start, err) }()

	stats = &Stats{ByCategory: make(map[string]int64)}

	if err = ds.DB.Model(&Diagnosis{}).Count(&stats.TotalDiagnoses).Error; err != nil {
		return nil, fmt.Errorf("counting diagnoses: %w", err)
	}

	if err = ds.DB.Model(&Diagnosis{}).Where("success = ?", true).
		Count(&stats.SuccessfulDiagnoses).Error; err != nil {
		return nil, fmt.Errorf("counting successful diagnoses: %w", err)
	}

	if stats.TotalDiagnoses > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDiagnoses) / float64(stats.TotalDiagnoses)
	}

	rows, err := ds.DB.Model(&Diagnosis{}).
		Select("category, COUNT(*) as count").
		Group("category").Rows()
	if err != nil {
		return nil, fmt.Errorf("counting diagnoses by category: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int64
		if err = rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		stats.ByCategory[category] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category counts: %w", err)
	}

	topQuery := `
		SELECT disease_localized, COUNT(*) as count
		FROM diagnoses
		WHERE success = ? AND disease_localized != ''
		GROUP BY disease_localized
		ORDER BY count DESC, disease_localized
		LIMIT ?
	`
	topRows, err := ds.DB.Raw(topQuery, true, TopDiseaseCount).Rows()
	if err != nil {
		return nil, fmt.Errorf("getting top diseases: %w", err)
	}
	defer topRows.Close()

	for topRows.Next() {
		var entry TopDisease
		if err = topRows.Scan(&entry.Disease, &entry.Count); err != nil {
			return nil, fmt.Errorf("scanning top disease: %w", err)
		}
		stats.TopDiseases = append(stats.TopDiseases, entry)
	}
	if err = topRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating top diseases: %w", err)
	}

	return stats, nil
}
