// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"strings"
	"time"

	"github.com/Phusssss/plant-disease-detection/internal/conf"
	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/observability/metrics"
	"gorm.io/gorm"
)

const (
	// DefaultHistoryLimit applies when a caller does not supply a limit.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps caller-supplied limits to bound response size.
	MaxHistoryLimit = 500
	// TopDiseaseCount is the number of entries in the stats top-disease list.
	TopDiseaseCount = 10
)

// Interface abstracts the underlying storage implementation and defines the
// operations the service needs: create-only diagnosis records, newest-first
// history, aggregate statistics and the plant catalog.
type Interface interface {
	Open() error
	Close() error

	SaveDiagnosis(diagnosis *Diagnosis) error
	GetHistory(limit int) ([]Diagnosis, error)
	GetStats() (*Stats, error)

	SavePlant(plant *Plant) error
	GetPlant(id uint) (Plant, error)
	GetAllPlants() ([]Plant, error)
	DeletePlant(id uint) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics
}

// New creates a new datastore instance based on the enabled output backend.
func New(settings *conf.Settings, dsMetrics *metrics.DatastoreMetrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{metrics: dsMetrics},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{metrics: dsMetrics},
			Settings:  settings,
		}
	case settings.Output.File.Enabled:
		return &FileStore{
			Path:    settings.Output.File.Path,
			metrics: dsMetrics,
		}
	default:
		return nil
	}
}

// recordOperation reports a datastore operation outcome to metrics.
func (ds *DataStore) recordOperation(operation string, start time.Time, err error) {
	if ds.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	ds.metrics.RecordOperation(operation, status)
	ds.metrics.RecordOperationDuration(operation, time.Since(start).Seconds())
}

// SaveDiagnosis stores a diagnosis record as a single transaction. Write
// failures propagate to the caller; a failed diagnosis write must never be
// silently dropped.
func (ds *DataStore) SaveDiagnosis(diagnosis *Diagnosis) (err error) {
	start := time.Now()
	defer func() { ds.recordOperation("save", start, err) }()

	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err = tx.Create(diagnosis).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("saving diagnosis: %w", err)
	}

	if err = tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetHistory retrieves diagnosis records newest first. A non-positive limit
// falls back to DefaultHistoryLimit and limits above MaxHistoryLimit are
// clamped.
func (ds *DataStore) GetHistory(limit int) (diagnoses []Diagnosis, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("history", start, err) }()

	limit = clampHistoryLimit(limit)

	err = ds.DB.Order("created_at DESC, id DESC").Limit(limit).Find(&diagnoses).Error
	if err != nil {
		return nil, fmt.Errorf("getting diagnosis history: %w", err)
	}
	return diagnoses, nil
}

// clampHistoryLimit normalizes a caller-supplied history limit.
func clampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// SavePlant inserts a new plant catalog entry. A unique name violation is
// reported as errors.ErrDuplicateName.
func (ds *DataStore) SavePlant(plant *Plant) (err error) {
	start := time.Now()
	defer func() { ds.recordOperation("plant_save", start, err) }()

	if err = ds.DB.Create(plant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("saving plant %q: %w", plant.Name, errors.ErrDuplicateName)
		}
		return fmt.Errorf("saving plant: %w", err)
	}
	return nil
}

// GetPlant retrieves a plant catalog entry by its ID.
func (ds *DataStore) GetPlant(id uint) (plant Plant, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("plant_get", start, err) }()

	if err = ds.DB.First(&plant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Plant{}, fmt.Errorf("getting plant with ID %d: %w", id, errors.ErrNotFound)
		}
		return Plant{}, fmt.Errorf("getting plant with ID %d: %w", id, err)
	}
	return plant, nil
}

// GetAllPlants retrieves all plant catalog entries ordered by name.
func (ds *DataStore) GetAllPlants() (plants []Plant, err error) {
	start := time.Now()
	defer func() { ds.recordOperation("plant_list", start, err) }()

	if err = ds.DB.Order("name").Find(&plants).Error; err != nil {
		return nil, fmt.Errorf("getting plants: %w", err)
	}
	return plants, nil
}

// DeletePlant removes a plant catalog entry by its ID.
func (ds *DataStore) DeletePlant(id uint) (err error) {
	start := time.Now()
	defer func() { ds.recordOperation("plant_delete", start, err) }()

	result := ds.DB.Delete(&Plant{}, id)
	if result.Error != nil {
		return fmt.Errorf("deleting plant with ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("deleting plant with ID %d: %w", id, errors.ErrNotFound)
	}
	return nil
}

// isUniqueConstraintError reports whether an error originates from a unique
// constraint violation on either SQLite or MySQL.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique failed") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate entry")
}
