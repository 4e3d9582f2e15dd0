package experiment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"planogram/internal/models"
	"planogram/internal/repository"
	"planogram/internal/stats"
)

// Interval is a two-sided confidence interval for a mean difference.
type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// AnalysisResult is the per-metric outcome of comparing treatment against
// control.
type AnalysisResult struct {
	Metric             string   `json:"metric"`
	ControlMean        float64  `json:"control_mean"`
	TreatmentMean      float64  `json:"treatment_mean"`
	ControlStdDev      float64  `json:"control_std_dev"`
	TreatmentStdDev    float64  `json:"treatment_std_dev"`
	ControlN           int      `json:"control_n"`
	TreatmentN         int      `json:"treatment_n"`
	EffectSize         float64  `json:"effect_size"`
	AbsoluteDifference float64  `json:"absolute_difference"`
	TStatistic         float64  `json:"t_statistic"`
	PValue             float64  `json:"p_value"`
	DegreesOfFreedom   float64  `json:"degrees_of_freedom"`
	ConfidenceLevel    float64  `json:"confidence_level"`
	ConfidenceInterval Interval `json:"confidence_interval"`
	Significant        bool     `json:"significant"`
}

// PowerReport is the per-metric post-hoc power readout.
type PowerReport struct {
	Metric              string  `json:"metric"`
	ObservedPower       float64 `json:"observed_power"`
	IsAdequatelyPowered bool    `json:"is_adequately_powered"`
	SampleSize          int     `json:"sample_size"`
	EffectSize          float64 `json:"effect_size"`
}

// Analyzer reads an experiment's observations and runs the statistical
// comparison. Every call takes a fresh snapshot, so results are idempotent
// for a finished experiment.
type Analyzer struct {
	repo   repository.Store
	logger *zap.Logger
}

func NewAnalyzer(repo repository.Store, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{repo: repo, logger: logger}
}

type groupSamples struct {
	control   []float64
	treatment []float64
}

func (a *Analyzer) collect(ctx context.Context, experimentID uint64) (map[string]*groupSamples, error) {
	rows, err := a.repo.ListObservationGroupValues(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	byMetric := map[string]*groupSamples{}
	for _, row := range rows {
		g := byMetric[row.Metric]
		if g == nil {
			g = &groupSamples{}
			byMetric[row.Metric] = g
		}
		switch row.Group {
		case models.GroupControl:
			g.control = append(g.control, row.Value)
		case models.GroupTreatment:
			g.treatment = append(g.treatment, row.Value)
		}
	}
	return byMetric, nil
}

// Analyze compares treatment to control for every metric observed in both
// groups. confidenceLevel overrides the experiment's configured level when
// non-nil. Metrics missing a group are skipped, not errored: a metric only
// the treatment fleet emitted has no comparison to run.
func (a *Analyzer) Analyze(ctx context.Context, name string, confidenceLevel *float64) (map[string]AnalysisResult, error) {
	exp, err := a.get(ctx, name)
	if err != nil {
		return nil, err
	}
	level := exp.ConfidenceLevel
	if confidenceLevel != nil {
		level = *confidenceLevel
	}
	if level <= 0 || level >= 1 {
		return nil, fmt.Errorf("%w: confidence level must be in (0,1)", ErrInvalidConfig)
	}

	byMetric, err := a.collect(ctx, exp.ID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]AnalysisResult, len(byMetric))
	for metric, g := range byMetric {
		if len(g.control) == 0 || len(g.treatment) == 0 {
			continue
		}
		control := stats.Describe(g.control)
		treatment := stats.Describe(g.treatment)
		test := stats.Welch(treatment, control)
		low, high := stats.DiffCI(treatment, control, level)

		diff := treatment.Mean - control.Mean
		effect := 0.0
		if control.Mean != 0 {
			effect = diff / control.Mean
		}

		out[metric] = AnalysisResult{
			Metric:             metric,
			ControlMean:        control.Mean,
			TreatmentMean:      treatment.Mean,
			ControlStdDev:      control.StdDev,
			TreatmentStdDev:    treatment.StdDev,
			ControlN:           control.N,
			TreatmentN:         treatment.N,
			EffectSize:         effect,
			AbsoluteDifference: diff,
			TStatistic:         test.T,
			PValue:             test.P,
			DegreesOfFreedom:   test.DF,
			ConfidenceLevel:    level,
			ConfidenceInterval: Interval{Low: low, High: high},
			Significant:        test.P < 1-level,
		}
	}

	a.logger.Debug("experiment analyzed",
		zap.String("name", exp.Name),
		zap.Int("metrics", len(out)),
		zap.Float64("confidence_level", level),
	)
	return out, nil
}

// PowerAnalysis reports, per metric, whether the collected sample was large
// enough to trust a negative result.
func (a *Analyzer) PowerAnalysis(ctx context.Context, name string) (map[string]PowerReport, error) {
	exp, err := a.get(ctx, name)
	if err != nil {
		return nil, err
	}

	byMetric, err := a.collect(ctx, exp.ID)
	if err != nil {
		return nil, err
	}

	alpha := 1 - exp.ConfidenceLevel
	out := make(map[string]PowerReport, len(byMetric))
	for metric, g := range byMetric {
		if len(g.control) == 0 || len(g.treatment) == 0 {
			continue
		}
		control := stats.Describe(g.control)
		treatment := stats.Describe(g.treatment)
		test := stats.Welch(treatment, control)
		power := stats.ObservedPower(test.T, test.DF, alpha)

		out[metric] = PowerReport{
			Metric:              metric,
			ObservedPower:       power,
			IsAdequatelyPowered: power >= 0.8,
			SampleSize:          control.N + treatment.N,
			EffectSize:          stats.CohensD(treatment, control),
		}
	}
	return out, nil
}

// RequiredSampleSize is the planning-time counterpart of PowerAnalysis: the
// per-group n needed to see a relative lift of mde over baselineRate.
func (a *Analyzer) RequiredSampleSize(baselineRate, mde, power, alpha float64) int {
	return stats.RequiredSampleSize(baselineRate, mde, power, alpha)
}

func (a *Analyzer) get(ctx context.Context, name string) (*models.Experiment, error) {
	exp, err := a.repo.GetExperimentByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, ErrExperimentNotFound
	}
	return exp, nil
}
