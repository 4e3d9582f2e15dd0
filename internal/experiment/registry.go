package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planogram/internal/config"
	"planogram/internal/models"
	"planogram/internal/repository"
)

// Config describes a new experiment. Zero values fall back to the registry
// defaults at creation; after creation the stored copy never changes.
type Config struct {
	Name                    string   `json:"name"`
	Feature                 string   `json:"feature"`
	Hypothesis              string   `json:"hypothesis"`
	PrimaryMetric           string   `json:"primary_metric"`
	SecondaryMetrics        []string `json:"secondary_metrics"`
	SampleSize              int      `json:"sample_size"`
	DurationDays            int      `json:"duration_days"`
	ConfidenceLevel         float64  `json:"confidence_level"`
	MinimumDetectableEffect float64  `json:"minimum_detectable_effect"`
	AllocationRatio         float64  `json:"allocation_ratio"`
}

// StatusReport is the live view of one experiment's lifecycle.
type StatusReport struct {
	Name               string           `json:"name"`
	Status             string           `json:"status"`
	DaysRunning        float64          `json:"days_running"`
	ProgressPercentage float64          `json:"progress_percentage"`
	GroupSizes         map[string]int64 `json:"group_sizes"`
	ObservationCounts  map[string]int64 `json:"observation_counts"`
}

// Registry owns the experiment lifecycle: creation with randomized device
// assignment, the draft/running/completed/stopped transitions, and status
// reporting.
type Registry struct {
	repo     repository.Store
	defaults config.ExperimentConfig
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRegistry builds a registry. A nil rng is seeded from the clock; tests
// inject a seeded source to make assignment reproducible.
func NewRegistry(repo repository.Store, defaults config.ExperimentConfig, rng *rand.Rand, logger *zap.Logger) *Registry {
	if defaults.ConfidenceLevel <= 0 || defaults.ConfidenceLevel >= 1 {
		defaults.ConfidenceLevel = 0.95
	}
	if defaults.MinimumDetectableEffect <= 0 {
		defaults.MinimumDetectableEffect = 0.05
	}
	if defaults.AllocationRatio <= 0 || defaults.AllocationRatio >= 1 {
		defaults.AllocationRatio = 0.5
	}
	if defaults.DefaultDurationDays <= 0 {
		defaults.DefaultDurationDays = 14
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{repo: repo, defaults: defaults, rng: rng, logger: logger}
}

// Create registers an experiment and assigns the eligible fleet to groups in
// the same transaction, so a partially assigned experiment is never
// observable.
func (r *Registry) Create(ctx context.Context, cfg Config) (*models.Experiment, error) {
	cfg, err := r.normalize(cfg)
	if err != nil {
		return nil, err
	}

	existing, err := r.repo.GetExperimentByName(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateExperiment
	}

	deviceIDs, err := r.repo.ListEligibleDeviceIDs(ctx)
	if err != nil {
		return nil, err
	}
	assignments := r.assign(deviceIDs, cfg.SampleSize, cfg.AllocationRatio)

	secondary, err := json.Marshal(cfg.SecondaryMetrics)
	if err != nil {
		return nil, err
	}

	exp := &models.Experiment{
		ExternalID:              uuid.NewString(),
		Name:                    cfg.Name,
		Feature:                 cfg.Feature,
		Hypothesis:              cfg.Hypothesis,
		PrimaryMetric:           cfg.PrimaryMetric,
		SecondaryMetrics:        secondary,
		SampleSize:              cfg.SampleSize,
		DurationDays:            cfg.DurationDays,
		ConfidenceLevel:         cfg.ConfidenceLevel,
		MinimumDetectableEffect: cfg.MinimumDetectableEffect,
		AllocationRatio:         cfg.AllocationRatio,
		Status:                  models.ExperimentStatusDraft,
	}

	if err := r.repo.CreateExperimentWithAssignments(ctx, exp, assignments); err != nil {
		// A concurrent Create for the same name loses the race at the unique
		// index rather than at the pre-check.
		if dup, lookupErr := r.repo.GetExperimentByName(ctx, cfg.Name); lookupErr == nil && dup != nil {
			return nil, ErrDuplicateExperiment
		}
		return nil, err
	}

	r.logger.Info("experiment created",
		zap.String("name", exp.Name),
		zap.String("external_id", exp.ExternalID),
		zap.Int("devices", len(assignments)),
		zap.Float64("allocation_ratio", exp.AllocationRatio),
	)
	return exp, nil
}

func (r *Registry) normalize(cfg Config) (Config, error) {
	cfg.Name = strings.TrimSpace(cfg.Name)
	cfg.Feature = strings.TrimSpace(cfg.Feature)
	cfg.PrimaryMetric = strings.TrimSpace(cfg.PrimaryMetric)
	if cfg.Name == "" {
		return cfg, fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if cfg.PrimaryMetric == "" {
		return cfg, fmt.Errorf("%w: primary metric is required", ErrInvalidConfig)
	}
	if cfg.SampleSize < 0 {
		return cfg, fmt.Errorf("%w: sample size cannot be negative", ErrInvalidConfig)
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = r.defaults.ConfidenceLevel
	}
	if cfg.ConfidenceLevel <= 0 || cfg.ConfidenceLevel >= 1 {
		return cfg, fmt.Errorf("%w: confidence level must be in (0,1)", ErrInvalidConfig)
	}
	if cfg.MinimumDetectableEffect == 0 {
		cfg.MinimumDetectableEffect = r.defaults.MinimumDetectableEffect
	}
	if cfg.MinimumDetectableEffect <= 0 {
		return cfg, fmt.Errorf("%w: minimum detectable effect must be positive", ErrInvalidConfig)
	}
	if cfg.AllocationRatio == 0 {
		cfg.AllocationRatio = r.defaults.AllocationRatio
	}
	if cfg.AllocationRatio <= 0 || cfg.AllocationRatio >= 1 {
		return cfg, fmt.Errorf("%w: allocation ratio must be in (0,1)", ErrInvalidConfig)
	}
	if cfg.DurationDays == 0 {
		cfg.DurationDays = r.defaults.DefaultDurationDays
	}
	if cfg.DurationDays < 0 {
		return cfg, fmt.Errorf("%w: duration must be positive", ErrInvalidConfig)
	}
	cleaned := make([]string, 0, len(cfg.SecondaryMetrics))
	for _, m := range cfg.SecondaryMetrics {
		if m = strings.TrimSpace(m); m != "" {
			cleaned = append(cleaned, m)
		}
	}
	cfg.SecondaryMetrics = cleaned
	return cfg, nil
}

// assign shuffles the fleet, optionally caps it at the requested sample size,
// and splits it so treatment = round(N x ratio). The realized split is always
// within one device of the requested ratio.
func (r *Registry) assign(deviceIDs []string, sampleSize int, ratio float64) []models.ExperimentAssignment {
	ids := append([]string(nil), deviceIDs...)

	r.mu.Lock()
	r.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	r.mu.Unlock()

	if sampleSize > 0 && sampleSize < len(ids) {
		ids = ids[:sampleSize]
	}

	treatment := int(math.Round(float64(len(ids)) * ratio))
	out := make([]models.ExperimentAssignment, 0, len(ids))
	for i, id := range ids {
		group := models.GroupControl
		if i < treatment {
			group = models.GroupTreatment
		}
		out = append(out, models.ExperimentAssignment{DeviceID: id, Group: group})
	}
	return out
}

// Get resolves an experiment by name, mapping absence to
// ErrExperimentNotFound.
func (r *Registry) Get(ctx context.Context, name string) (*models.Experiment, error) {
	exp, err := r.repo.GetExperimentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperimentNotFound
	}
	return exp, nil
}

// Start moves draft -> running and stamps started_at. Any other current
// status leaves the experiment untouched and reports false.
func (r *Registry) Start(ctx context.Context, name string) (bool, error) {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return false, err
	}
	changed, err := r.repo.TransitionExperimentStatus(ctx, exp.ID,
		models.ExperimentStatusDraft, models.ExperimentStatusRunning,
		map[string]any{"started_at": time.Now().UTC()})
	if err != nil {
		return false, err
	}
	if changed {
		r.logger.Info("experiment started", zap.String("name", exp.Name))
	}
	return changed, nil
}

// Stop moves running -> stopped and stamps ended_at; false outside running.
func (r *Registry) Stop(ctx context.Context, name string) (bool, error) {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return false, err
	}
	changed, err := r.repo.TransitionExperimentStatus(ctx, exp.ID,
		models.ExperimentStatusRunning, models.ExperimentStatusStopped,
		map[string]any{"ended_at": time.Now().UTC()})
	if err != nil {
		return false, err
	}
	if changed {
		r.logger.Info("experiment stopped", zap.String("name", exp.Name))
	}
	return changed, nil
}

// Status reports lifecycle progress plus group sizes and per-metric
// observation counts.
func (r *Registry) Status(ctx context.Context, name string) (StatusReport, error) {
	exp, err := r.Get(ctx, name)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		Name:              exp.Name,
		Status:            exp.Status,
		GroupSizes:        map[string]int64{},
		ObservationCounts: map[string]int64{},
	}
	if exp.StartedAt != nil {
		end := time.Now().UTC()
		if exp.EndedAt != nil {
			end = *exp.EndedAt
		}
		if days := end.Sub(*exp.StartedAt).Hours() / 24; days > 0 {
			report.DaysRunning = days
		}
		if exp.DurationDays > 0 {
			progress := report.DaysRunning / float64(exp.DurationDays) * 100
			if progress > 100 {
				progress = 100
			}
			report.ProgressPercentage = progress
		}
	}

	groups, err := r.repo.CountAssignmentsByGroup(ctx, exp.ID)
	if err != nil {
		return StatusReport{}, err
	}
	if groups != nil {
		report.GroupSizes = groups
	}
	counts, err := r.repo.CountObservationsByMetric(ctx, exp.ID)
	if err != nil {
		return StatusReport{}, err
	}
	if counts != nil {
		report.ObservationCounts = counts
	}
	return report, nil
}

// CompleteDue sweeps running experiments whose duration has elapsed into
// completed, stamping ended_at at the end of the window. Returns how many
// experiments it moved.
func (r *Registry) CompleteDue(ctx context.Context, now time.Time) (int, error) {
	running, err := r.repo.ListExperimentsByStatus(ctx, models.ExperimentStatusRunning)
	if err != nil {
		return 0, err
	}
	completed := 0
	for i := range running {
		exp := &running[i]
		if exp.StartedAt == nil {
			continue
		}
		due := exp.StartedAt.AddDate(0, 0, exp.DurationDays)
		if due.After(now) {
			continue
		}
		changed, err := r.repo.TransitionExperimentStatus(ctx, exp.ID,
			models.ExperimentStatusRunning, models.ExperimentStatusCompleted,
			map[string]any{"ended_at": due})
		if err != nil {
			return completed, err
		}
		if changed {
			completed++
			r.logger.Info("experiment completed",
				zap.String("name", exp.Name),
				zap.Time("ended_at", due),
			)
		}
	}
	return completed, nil
}
