package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ExperimentStatusDraft     = "draft"
	ExperimentStatusRunning   = "running"
	ExperimentStatusCompleted = "completed"
	ExperimentStatusStopped   = "stopped"
)

const (
	GroupControl   = "control"
	GroupTreatment = "treatment"
)

// Experiment holds an A/B test's config and lifecycle state. Config fields
// are written at creation and never changed afterwards; only Status,
// StartedAt and EndedAt move.
type Experiment struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	ExternalID string `gorm:"type:varchar(36);uniqueIndex;not null"`
	Name       string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Feature    string `gorm:"type:varchar(100)"`
	Hypothesis string `gorm:"type:text"`

	PrimaryMetric    string         `gorm:"type:varchar(100);not null"`
	SecondaryMetrics datatypes.JSON `gorm:"type:jsonb"`

	SampleSize              int     `gorm:"default:0"`
	DurationDays            int     `gorm:"not null"`
	ConfidenceLevel         float64 `gorm:"not null;default:0.95"`
	MinimumDetectableEffect float64 `gorm:"not null;default:0.05"`
	AllocationRatio         float64 `gorm:"not null;default:0.5"`

	Status    string     `gorm:"type:varchar(20);not null;index;default:draft"`
	StartedAt *time.Time `gorm:"type:timestamptz"`
	EndedAt   *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Experiment) TableName() string {
	return "experiments"
}
