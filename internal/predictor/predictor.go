package predictor

import (
	"context"

	"go.uber.org/zap"

	"planogram/internal/config"
	"planogram/internal/planogram"
)

// History resolves product ids to a point-in-time performance snapshot. Each
// predictor call takes exactly one snapshot, so a prediction never mixes two
// generations of the store.
type History interface {
	Snapshot(ctx context.Context, productIDs []string) (planogram.HistorySnapshot, error)
}

// Predictions are projected over a fixed 30-day window.
const horizonDays = 30.0

type Interval struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type Result struct {
	BaselineRevenue    float64  `json:"baseline_revenue"`
	PredictedRevenue   float64  `json:"predicted_revenue"`
	LiftPercentage     float64  `json:"lift_percentage"`
	Confidence         float64  `json:"confidence"`
	ConfidenceInterval Interval `json:"confidence_interval"`
	ChangeCost         float64  `json:"change_cost"`
	BreakEvenDays      *float64 `json:"break_even_days"`
}

type Predictor struct {
	history  History
	affinity *planogram.AffinityTable
	cfg      config.PredictorConfig
	logger   *zap.Logger
}

func New(history History, affinity *planogram.AffinityTable, cfg config.PredictorConfig, logger *zap.Logger) *Predictor {
	if affinity == nil {
		affinity = planogram.DefaultAffinityTable()
	}
	if cfg.DefaultDailyRevenue <= 0 {
		cfg.DefaultDailyRevenue = 3.0
	}
	if cfg.ChangeCostPerSlot <= 0 {
		cfg.ChangeCostPerSlot = 25.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Predictor{history: history, affinity: affinity, cfg: cfg, logger: logger}
}

func (p *Predictor) snapshotFor(ctx context.Context, layouts ...planogram.Layout) (planogram.HistorySnapshot, error) {
	if p.history == nil {
		return planogram.HistorySnapshot{}, nil
	}
	var ids []string
	for _, layout := range layouts {
		ids = append(ids, layout.ProductIDs()...)
	}
	return p.history.Snapshot(ctx, ids)
}

// Baseline values the current layout on recorded performance only. Products
// without history and vacant slots contribute nothing.
func (p *Predictor) Baseline(ctx context.Context, current planogram.Layout) (float64, error) {
	snap, err := p.snapshotFor(ctx, current)
	if err != nil {
		return 0, err
	}
	return baselineRevenue(snap, current), nil
}

// Simulate values a proposed layout. Unknown products get the configured
// conservative default daily revenue, and every contribution carries its
// affinity uplift.
func (p *Predictor) Simulate(ctx context.Context, proposed planogram.Layout) (float64, error) {
	snap, err := p.snapshotFor(ctx, proposed)
	if err != nil {
		return 0, err
	}
	return p.simulatedRevenue(snap, proposed), nil
}

// PredictImpact compares a proposed layout against the current one over one
// shared snapshot.
func (p *Predictor) PredictImpact(ctx context.Context, current, proposed planogram.Layout) (Result, error) {
	snap, err := p.snapshotFor(ctx, current, proposed)
	if err != nil {
		return Result{}, err
	}

	baseline := baselineRevenue(snap, current)
	predicted := p.simulatedRevenue(snap, proposed)

	lift := 0.0
	if baseline > 0 {
		lift = (predicted - baseline) / baseline * 100
	}

	confidence := ConfidenceScore(snap, proposed)
	margin := intervalMargin(confidence)

	cost := float64(planogram.DiffCount(current, proposed)) * p.cfg.ChangeCostPerSlot

	var breakEven *float64
	if dailyLift := (predicted - baseline) / horizonDays; dailyLift > 0 {
		days := cost / dailyLift
		breakEven = &days
	}

	result := Result{
		BaselineRevenue:  baseline,
		PredictedRevenue: predicted,
		LiftPercentage:   lift,
		Confidence:       confidence,
		ConfidenceInterval: Interval{
			Low:  predicted * (1 - margin),
			High: predicted * (1 + margin),
		},
		ChangeCost:    cost,
		BreakEvenDays: breakEven,
	}

	p.logger.Debug("impact predicted",
		zap.Float64("baseline", baseline),
		zap.Float64("predicted", predicted),
		zap.Float64("lift_pct", lift),
		zap.Float64("confidence", confidence),
		zap.Float64("change_cost", cost),
	)
	return result, nil
}

func baselineRevenue(snap planogram.HistorySnapshot, layout planogram.Layout) float64 {
	total := 0.0
	for _, slot := range layout.Occupied() {
		rev, ok := snap.DailyRevenue(slot.ProductID)
		if !ok {
			continue
		}
		total += rev * planogram.PositionMultiplier(slot.Position)
	}
	return total * horizonDays
}

func (p *Predictor) simulatedRevenue(snap planogram.HistorySnapshot, layout planogram.Layout) float64 {
	total := 0.0
	for _, slot := range layout.Occupied() {
		rev, ok := snap.DailyRevenue(slot.ProductID)
		if !ok {
			rev = p.cfg.DefaultDailyRevenue
		}
		bonus := p.affinity.Bonus(slot.ProductID, layout)
		total += rev * (1 + bonus) * planogram.PositionMultiplier(slot.Position)
	}
	return total * horizonDays
}
