package db

import (
	"planogram/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.ProductPerformance{},
		&models.Device{},
		&models.Experiment{},
		&models.ExperimentAssignment{},
		&models.MetricObservation{},
	)
}
