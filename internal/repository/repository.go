package repository

import (
	"context"

	"gorm.io/gorm"

	"planogram/internal/models"
)

// Store is the persistence surface shared by the predictor, the experiment
// services and the HTTP handlers. The predictor side is read-only; the
// experiment side adds transactional creation, status transitions and
// append-only observation writes.
type Store interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Historical performance.
	GetProductPerformance(ctx context.Context, productID string) (*models.ProductPerformance, error)
	ListProductPerformanceByIDs(ctx context.Context, productIDs []string) ([]models.ProductPerformance, error)
	ListProductPerformance(ctx context.Context, params ListProductPerformanceParams) ([]models.ProductPerformance, error)
	CountProductPerformance(ctx context.Context, params ListProductPerformanceParams) (int64, error)
	UpsertProductPerformance(ctx context.Context, items []models.ProductPerformance) error

	// Device fleet.
	ListEligibleDeviceIDs(ctx context.Context) ([]string, error)
	ListDevices(ctx context.Context, params ListDevicesParams) ([]models.Device, error)
	CountDevices(ctx context.Context, params ListDevicesParams) (int64, error)
	UpsertDevices(ctx context.Context, items []models.Device) error

	// Experiments. Creation persists the experiment and its assignments in
	// one transaction; TransitionExperimentStatus is a compare-and-swap on
	// the status column.
	CreateExperimentWithAssignments(ctx context.Context, exp *models.Experiment, assignments []models.ExperimentAssignment) error
	GetExperimentByName(ctx context.Context, name string) (*models.Experiment, error)
	ListExperiments(ctx context.Context, params ListExperimentsParams) ([]models.Experiment, error)
	CountExperiments(ctx context.Context, params ListExperimentsParams) (int64, error)
	ListExperimentsByStatus(ctx context.Context, status string) ([]models.Experiment, error)
	TransitionExperimentStatus(ctx context.Context, id uint64, from, to string, updates map[string]any) (bool, error)

	// Assignments.
	ListAssignments(ctx context.Context, experimentID uint64, group *string) ([]models.ExperimentAssignment, error)
	GetAssignment(ctx context.Context, experimentID uint64, deviceID string) (*models.ExperimentAssignment, error)
	CountAssignmentsByGroup(ctx context.Context, experimentID uint64) (map[string]int64, error)

	// Observations, append-only.
	InsertMetricObservation(ctx context.Context, item *models.MetricObservation) error
	CountObservationsByMetric(ctx context.Context, experimentID uint64) (map[string]int64, error)
	ListObservationGroupValues(ctx context.Context, experimentID uint64) ([]ObservationGroupRow, error)
}

// ObservationGroupRow is one observation joined to its device's group, the
// unit the statistical analyzer aggregates over.
type ObservationGroupRow struct {
	Metric string  `gorm:"column:metric"`
	Group  string  `gorm:"column:group_name"`
	Value  float64 `gorm:"column:value"`
}

type ListProductPerformanceParams struct {
	Limit    int
	Offset   int
	Category *string
	MinDays  *int
	OrderBy  string
	Asc      *bool
}

type ListDevicesParams struct {
	Limit    int
	Offset   int
	Eligible *bool
	Location *string
	OrderBy  string
	Asc      *bool
}

type ListExperimentsParams struct {
	Limit   int
	Offset  int
	Status  *string
	Feature *string
	OrderBy string
	Asc     *bool
}
