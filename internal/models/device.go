package models

import (
	"time"

	"gorm.io/datatypes"
)

// Device is one vending cabinet in the fleet. Only eligible devices enter
// new experiment assignments.
type Device struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	DeviceID string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Location string `gorm:"type:varchar(200)"`
	Eligible bool   `gorm:"default:true;index"`

	Metadata datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Device) TableName() string {
	return "devices"
}
