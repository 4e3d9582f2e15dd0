package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductPerformance is one row of the historical performance store:
// per-product daily sales averages and the observation window backing them.
type ProductPerformance struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement"`
	ProductID string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name      string `gorm:"type:varchar(200)"`
	Category  string `gorm:"type:varchar(50);index"`

	AvgDailyRevenue decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	AvgDailyUnits   decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	DaysOfData      int             `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ProductPerformance) TableName() string {
	return "product_performance"
}
