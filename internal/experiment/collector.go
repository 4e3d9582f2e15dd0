package experiment

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"planogram/internal/models"
	"planogram/internal/repository"
)

// Collector appends metric observations for running experiments. Writes are
// append-only; aggregation happens at analysis time.
type Collector struct {
	repo   repository.Store
	logger *zap.Logger
}

func NewCollector(repo repository.Store, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{repo: repo, logger: logger}
}

// Track records one measurement from one device. It returns
// ErrExperimentNotFound for an unknown experiment, and (false, nil) when the
// experiment is not running or the device carries no assignment, so callers
// can fire-and-forget from live traffic.
func (c *Collector) Track(ctx context.Context, experimentName, deviceID, metric string, value float64) (bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	metric = strings.TrimSpace(metric)
	if deviceID == "" || metric == "" {
		return false, nil
	}

	exp, err := c.repo.GetExperimentByName(ctx, experimentName)
	if err != nil {
		return false, err
	}
	if exp == nil {
		return false, ErrExperimentNotFound
	}
	if exp.Status != models.ExperimentStatusRunning {
		return false, nil
	}

	assignment, err := c.repo.GetAssignment(ctx, exp.ID, deviceID)
	if err != nil {
		return false, err
	}
	if assignment == nil {
		return false, nil
	}

	obs := &models.MetricObservation{
		ExperimentID: exp.ID,
		DeviceID:     assignment.DeviceID,
		Metric:       metric,
		Value:        decimal.NewFromFloat(value),
		RecordedAt:   time.Now().UTC(),
	}
	if err := c.repo.InsertMetricObservation(ctx, obs); err != nil {
		return false, err
	}

	c.logger.Debug("observation tracked",
		zap.String("experiment", exp.Name),
		zap.String("device_id", deviceID),
		zap.String("metric", metric),
		zap.Float64("value", value),
	)
	return true, nil
}
