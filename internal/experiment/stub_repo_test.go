package experiment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"planogram/internal/models"
	"planogram/internal/repository"
)

// stubStore is a test-only in-memory repository.Store. The experiment paths
// carry real behavior, including the unique-name constraint and the CAS on
// status; the rest of the interface returns zero values.
type stubStore struct {
	mu           sync.Mutex
	nextID       uint64
	experiments  map[string]*models.Experiment
	assignments  map[uint64][]models.ExperimentAssignment
	observations map[uint64][]models.MetricObservation
	devices      []string
}

func newStubStore(deviceIDs ...string) *stubStore {
	return &stubStore{
		nextID:       1,
		experiments:  map[string]*models.Experiment{},
		assignments:  map[uint64][]models.ExperimentAssignment{},
		observations: map[uint64][]models.MetricObservation{},
		devices:      deviceIDs,
	}
}

func (s *stubStore) byIDLocked(id uint64) *models.Experiment {
	for _, e := range s.experiments {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *stubStore) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (s *stubStore) GetProductPerformance(ctx context.Context, productID string) (*models.ProductPerformance, error) {
	return nil, nil
}
func (s *stubStore) ListProductPerformanceByIDs(ctx context.Context, productIDs []string) ([]models.ProductPerformance, error) {
	return nil, nil
}
func (s *stubStore) ListProductPerformance(ctx context.Context, params repository.ListProductPerformanceParams) ([]models.ProductPerformance, error) {
	return nil, nil
}
func (s *stubStore) CountProductPerformance(ctx context.Context, params repository.ListProductPerformanceParams) (int64, error) {
	return 0, nil
}
func (s *stubStore) UpsertProductPerformance(ctx context.Context, items []models.ProductPerformance) error {
	return nil
}

func (s *stubStore) ListEligibleDeviceIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.devices...), nil
}
func (s *stubStore) ListDevices(ctx context.Context, params repository.ListDevicesParams) ([]models.Device, error) {
	return nil, nil
}
func (s *stubStore) CountDevices(ctx context.Context, params repository.ListDevicesParams) (int64, error) {
	return 0, nil
}
func (s *stubStore) UpsertDevices(ctx context.Context, items []models.Device) error { return nil }

func (s *stubStore) CreateExperimentWithAssignments(ctx context.Context, exp *models.Experiment, assignments []models.ExperimentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.experiments[exp.Name]; ok {
		return errors.New("duplicate key value violates unique constraint")
	}
	exp.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	exp.CreatedAt = now
	exp.UpdatedAt = now
	cp := *exp
	s.experiments[exp.Name] = &cp

	rows := append([]models.ExperimentAssignment(nil), assignments...)
	for i := range rows {
		rows[i].ID = uint64(i + 1)
		rows[i].ExperimentID = exp.ID
		rows[i].CreatedAt = now
	}
	s.assignments[exp.ID] = rows
	return nil
}

func (s *stubStore) GetExperimentByName(ctx context.Context, name string) (*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.experiments[strings.TrimSpace(name)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *stubStore) ListExperiments(ctx context.Context, params repository.ListExperimentsParams) ([]models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Experiment, 0, len(s.experiments))
	for _, e := range s.experiments {
		if params.Status != nil && *params.Status != "" && e.Status != *params.Status {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *stubStore) CountExperiments(ctx context.Context, params repository.ListExperimentsParams) (int64, error) {
	items, _ := s.ListExperiments(ctx, params)
	return int64(len(items)), nil
}

func (s *stubStore) ListExperimentsByStatus(ctx context.Context, status string) ([]models.Experiment, error) {
	return s.ListExperiments(ctx, repository.ListExperimentsParams{Status: &status})
}

func (s *stubStore) TransitionExperimentStatus(ctx context.Context, id uint64, from, to string, updates map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byIDLocked(id)
	if e == nil || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = time.Now().UTC()
	if v, ok := updates["started_at"].(time.Time); ok {
		e.StartedAt = &v
	}
	if v, ok := updates["ended_at"].(time.Time); ok {
		e.EndedAt = &v
	}
	return true, nil
}

func (s *stubStore) ListAssignments(ctx context.Context, experimentID uint64, group *string) ([]models.ExperimentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ExperimentAssignment
	for _, a := range s.assignments[experimentID] {
		if group != nil && *group != "" && a.Group != *group {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubStore) GetAssignment(ctx context.Context, experimentID uint64, deviceID string) (*models.ExperimentAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments[experimentID] {
		if a.DeviceID == deviceID {
			cp := a
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *stubStore) CountAssignmentsByGroup(ctx context.Context, experimentID uint64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{}
	for _, a := range s.assignments[experimentID] {
		out[a.Group]++
	}
	return out, nil
}

func (s *stubStore) InsertMetricObservation(ctx context.Context, item *models.MetricObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	cp.ID = uint64(len(s.observations[item.ExperimentID]) + 1)
	s.observations[item.ExperimentID] = append(s.observations[item.ExperimentID], cp)
	return nil
}

func (s *stubStore) CountObservationsByMetric(ctx context.Context, experimentID uint64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]int64{}
	for _, o := range s.observations[experimentID] {
		out[o.Metric]++
	}
	return out, nil
}

func (s *stubStore) ListObservationGroupValues(ctx context.Context, experimentID uint64) ([]repository.ObservationGroupRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := map[string]string{}
	for _, a := range s.assignments[experimentID] {
		groups[a.DeviceID] = a.Group
	}
	var out []repository.ObservationGroupRow
	for _, o := range s.observations[experimentID] {
		group, ok := groups[o.DeviceID]
		if !ok {
			continue
		}
		out = append(out, repository.ObservationGroupRow{
			Metric: o.Metric,
			Group:  group,
			Value:  o.Value.InexactFloat64(),
		})
	}
	return out, nil
}
