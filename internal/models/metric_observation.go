package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MetricObservation is one appended measurement from one device. Rows are
// immutable; aggregation happens at analysis time, never at write time.
type MetricObservation struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ExperimentID uint64 `gorm:"not null;index:idx_observations_exp_metric"`
	DeviceID     string `gorm:"type:varchar(100);not null;index"`
	Metric       string `gorm:"type:varchar(100);not null;index:idx_observations_exp_metric"`

	Value      decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	RecordedAt time.Time       `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (MetricObservation) TableName() string {
	return "metric_observations"
}
