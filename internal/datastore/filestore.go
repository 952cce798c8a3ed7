package datastore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Phusssss/plant-disease-detection/internal/errors"
	"github.com/Phusssss/plant-disease-detection/internal/observability/metrics"
)

// FileStore implements Interface with an append-only JSON lines file for
// diagnosis records. The plant catalog is held in memory only and reseeded at
// every startup; the file backend exists for deployments without a database.
type FileStore struct {
	Path    string
	metrics *metrics.DatastoreMetrics

	mu        sync.Mutex
	file      *os.File
	diagnoses []Diagnosis
	plants    map[uint]Plant
	nextDiag  uint
	nextPlant uint
}

// Open loads existing diagnosis records from the log file and seeds the
// in-memory plant catalog.
func (fs *FileStore) Open() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := filepath.Dir(fs.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.OpenFile(fs.Path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open diagnosis log file: %w", err)
	}
	fs.file = file
	fs.nextDiag = 1

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var d Diagnosis
		if err := json.Unmarshal(line, &d); err != nil {
			// A torn trailing line from an interrupted write is skipped
			// rather than failing startup.
			continue
		}
		fs.diagnoses = append(fs.diagnoses, d)
		if d.ID >= fs.nextDiag {
			fs.nextDiag = d.ID + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read diagnosis log file: %w", err)
	}

	fs.plants = make(map[uint]Plant, len(defaultPlants))
	fs.nextPlant = 1
	for i := range defaultPlants {
		plant := defaultPlants[i]
		plant.ID = fs.nextPlant
		plant.CreatedAt = time.Now()
		fs.plants[plant.ID] = plant
		fs.nextPlant++
	}

	return nil
}

// Close closes the underlying log file.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}

func (fs *FileStore) recordOperation(operation string, start time.Time, err error) {
	if fs.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	fs.metrics.RecordOperation(operation, status)
	fs.metrics.RecordOperationDuration(operation, time.Since(start).Seconds())
}

// SaveDiagnosis appends a diagnosis record to the log file. The record is
// fully written and synced before it becomes visible to readers, so no
// partial write is ever observable.
func (fs *FileStore) SaveDiagnosis(diagnosis *Diagnosis) (err error) {
	start := time.Now()
	defer func() { fs.recordOperation("save", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.file == nil {
		return errors.Newf("diagnosis log file is not open").
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}

	diagnosis.ID = fs.nextDiag
	if diagnosis.CreatedAt.IsZero() {
		diagnosis.CreatedAt = time.Now()
	}

	line, err := json.Marshal(diagnosis)
	if err != nil {
		return fmt.Errorf("marshaling diagnosis: %w", err)
	}
	if _, err = fs.file.Write(append(line, '\n')); err != nil {
		return errors.New(fmt.Errorf("writing diagnosis: %w", err)).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err = fs.file.Sync(); err != nil {
		return errors.New(fmt.Errorf("syncing diagnosis log file: %w", err)).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Build()
	}

	fs.nextDiag++
	fs.diagnoses = append(fs.diagnoses, *diagnosis)
	return nil
}

// GetHistory returns diagnosis records newest first.
func (fs *FileStore) GetHistory(limit int) (result []Diagnosis, err error) {
	start := time.Now()
	defer func() { fs.recordOperation("history", start, err) }()

	limit = clampHistoryLimit(limit)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	sorted := make([]Diagnosis, len(fs.diagnoses))
	copy(sorted, fs.diagnoses)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// GetStats computes aggregate statistics over the in-memory records.
func (fs *FileStore) GetStats() (stats *Stats, err error) {
	start := time.Now()
	defer func() { fs.recordOperation("stats", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	stats = &Stats{ByCategory: make(map[string]int64)}
	diseaseCounts := make(map[string]int)
	var diseaseOrder []string

	for i := range fs.diagnoses {
		d := &fs.diagnoses[i]
		stats.TotalDiagnoses++
		stats.ByCategory[d.Category]++
		if d.Success {
			stats.SuccessfulDiagnoses++
			if d.DiseaseLocalized != "" {
				if _, seen := diseaseCounts[d.DiseaseLocalized]; !seen {
					diseaseOrder = append(diseaseOrder, d.DiseaseLocalized)
				}
				diseaseCounts[d.DiseaseLocalized]++
			}
		}
	}

	if stats.TotalDiagnoses > 0 {
		stats.SuccessRate = float64(stats.SuccessfulDiagnoses) / float64(stats.TotalDiagnoses)
	}

	// Descending by count, first-seen order on ties.
	sort.SliceStable(diseaseOrder, func(i, j int) bool {
		return diseaseCounts[diseaseOrder[i]] > diseaseCounts[diseaseOrder[j]]
	})
	for _, disease := range diseaseOrder {
		if len(stats.TopDiseases) == TopDiseaseCount {
			break
		}
		stats.TopDiseases = append(stats.TopDiseases, TopDisease{
			Disease: disease,
			Count:   diseaseCounts[disease],
		})
	}

	return stats, nil
}

// SavePlant inserts a plant catalog entry into the in-memory catalog.
func (fs *FileStore) SavePlant(plant *Plant) (err error) {
	start := time.Now()
	defer func() { fs.recordOperation("plant_save", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for _, existing := range fs.plants {
		if existing.Name == plant.Name {
			return fmt.Errorf("saving plant %q: %w", plant.Name, errors.ErrDuplicateName)
		}
	}

	plant.ID = fs.nextPlant
	if plant.CreatedAt.IsZero() {
		plant.CreatedAt = time.Now()
	}
	fs.plants[plant.ID] = *plant
	fs.nextPlant++
	return nil
}

// GetPlant retrieves a plant catalog entry by its ID.
func (fs *FileStore) GetPlant(id uint) (plant Plant, err error) {
	start := time.Now()
	defer func() { fs.recordOperation("plant_get", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	plant, ok := fs.plants[id]
	if !ok {
		return Plant{}, fmt.Errorf("getting plant with ID %d: %w", id, errors.ErrNotFound)
	}
	return plant, nil
}

// GetAllPlants retrieves all plant catalog entries ordered by name.
func (fs *FileStore) GetAllPlants() (plants []Plant, err error) {
	start := time.Now()
	defer func() { fs.recordOperation("plant_list", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	plants = make([]Plant, 0, len(fs.plants))
	for _, plant := range fs.plants {
		plants = append(plants, plant)
	}
	sort.Slice(plants, func(i, j int) bool { return plants[i].Name < plants[j].Name })
	return plants, nil
}

// DeletePlant removes a plant catalog entry by its ID.
func (fs *FileStore) DeletePlant(id uint) (err error) {
	start := time.Now()
	defer func() { fs.recordOperation("plant_delete", start, err) }()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.plants[id]; !ok {
		return fmt.Errorf("deleting plant with ID %d: %w", id, errors.ErrNotFound)
	}
	delete(fs.plants, id)
	return nil
}
