package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		slogWriter{},
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogWriter adapts gorm's printf-style logger to slog.
type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Default().Info(fmt.Sprintf(format, args...), "service", "datastore")
}

// defaultPlants is the catalog seeded on first startup.
var defaultPlants = []Plant{
	{Name: "Táo", ScientificName: "Malus domestica", Description: "Cây ăn quả phổ biến", CareInstructions: "Tưới nước đều đặn, cần ánh sáng"},
	{Name: "Cà chua", ScientificName: "Solanum lycopersicum", Description: "Cây rau quả dễ trồng", CareInstructions: "Cần nhiều nước và ánh sáng"},
	{Name: "Lúa", ScientificName: "Oryza sativa", Description: "Cây lương thực chính", CareInstructions: "Trồng trong môi trường ẩm ướt"},
	{Name: "Ngô", ScientificName: "Zea mays", Description: "Cây ngũ cốc quan trọng", CareInstructions: "Cần đất tơi xốp và phân bón"},
	{Name: "Khoai tây", ScientificName: "Solanum tuberosum", Description: "Cây củ dinh dưỡng", CareInstructions: "Trồng trong đất thoát nước tốt"},
}

// performAutoMigration runs schema migration and seeds the default plant
// catalog. Store connectivity problems here are fatal startup conditions.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Plant{}, &Diagnosis{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		slog.Debug("Database connection established", "type", dbType, "connection", connectionInfo)
	}

	return seedDefaultPlants(db)
}

// seedDefaultPlants inserts the default catalog entries, skipping names that
// already exist.
func seedDefaultPlants(db *gorm.DB) error {
	for i := range defaultPlants {
		plant := defaultPlants[i]
		var count int64
		if err := db.Model(&Plant{}).Where("name = ?", plant.Name).Count(&count).Error; err != nil {
			return fmt.Errorf("checking for existing plant %q: %w", plant.Name, err)
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&plant).Error; err != nil {
			return fmt.Errorf("seeding plant %q: %w", plant.Name, err)
		}
	}
	return nil
}
