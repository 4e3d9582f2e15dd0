package models

import "time"

// ExperimentAssignment pins one device to one group for the lifetime of an
// experiment. Rows are written once, in the same transaction as the
// experiment, and never updated: stable assignment avoids contamination.
type ExperimentAssignment struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	ExperimentID uint64 `gorm:"not null;uniqueIndex:idx_assignments_exp_device"`
	DeviceID     string `gorm:"type:varchar(100);not null;uniqueIndex:idx_assignments_exp_device"`
	Group        string `gorm:"column:group_name;type:varchar(20);not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ExperimentAssignment) TableName() string {
	return "experiment_assignments"
}
