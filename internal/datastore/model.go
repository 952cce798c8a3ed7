// model.go this code defines the data model for the application
package datastore

import "time"

// Diagnosis represents one classification attempt, successful or not.
// Records are immutable after creation.
type Diagnosis struct {
	ID               uint      `gorm:"primaryKey"`
	CreatedAt        time.Time `gorm:"index:idx_diagnoses_created_at"`
	Category         string    `gorm:"index:idx_diagnoses_category"` // "plant" or "rice"
	Disease          string    // raw classifier label, empty when no prediction
	DiseaseLocalized string    // Vietnamese display string, empty when no prediction
	Confidence       float64   // fraction in [0,1], 0 when no prediction
	Success          bool      `gorm:"index:idx_diagnoses_success"`
	RawResult        string    `gorm:"type:text"` // full inference response, stored verbatim

	// PlantID is declared in the schema but never populated by any code
	// path. Kept to match the persisted schema of earlier deployments.
	PlantID *uint `gorm:"index"`
}

// Plant represents a plant catalog entry with an independent lifecycle from
// diagnoses.
type Plant struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"uniqueIndex;not null"`
	ScientificName   string
	Description      string `gorm:"type:text"`
	CareInstructions string `gorm:"type:text"`
	CreatedAt        time.Time
}
