package predictor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"planogram/internal/config"
	"planogram/internal/planogram"
)

type stubHistory struct {
	records planogram.HistorySnapshot
	err     error
}

func (s stubHistory) Snapshot(ctx context.Context, productIDs []string) (planogram.HistorySnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := planogram.HistorySnapshot{}
	for _, id := range productIDs {
		if h, ok := s.records[id]; ok {
			out[id] = h
		}
	}
	return out, nil
}

func record(id string, revenue float64, days int) planogram.ProductHistory {
	return planogram.ProductHistory{ProductID: id, AvgDailyRevenue: revenue, DaysOfData: days}
}

func layoutOf(t *testing.T, slots map[string]string) planogram.Layout {
	t.Helper()
	items := make([]planogram.LayoutSlot, 0, len(slots))
	for label, productID := range slots {
		items = append(items, planogram.LayoutSlot{
			Position:  planogram.MustParsePosition(label),
			ProductID: productID,
			Quantity:  1,
		})
	}
	layout, err := planogram.NewLayout(items)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return layout
}

func newTestPredictor(history History) *Predictor {
	return New(history, nil, config.PredictorConfig{
		DefaultDailyRevenue: 3.0,
		ChangeCostPerSlot:   25.0,
	}, nil)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBaselineCountsOnlyKnownProducts(t *testing.T) {
	history := stubHistory{records: planogram.HistorySnapshot{
		"prodx": record("prodx", 10.0, 45),
	}}
	p := newTestPredictor(history)

	// prodx at D2: row 1.00 x col 1.00. mystery has no history.
	layout := layoutOf(t, map[string]string{"D2": "prodx", "D3": "mystery"})
	got, err := p.Baseline(context.Background(), layout)
	if err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	want := 10.0 * 1.0 * 30
	if !almostEqual(got, want) {
		t.Fatalf("Baseline = %v, want %v", got, want)
	}
}

func TestBaselineEmptyLayoutIsZero(t *testing.T) {
	p := newTestPredictor(stubHistory{})
	layout, err := planogram.NewLayout(nil)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	got, err := p.Baseline(context.Background(), layout)
	if err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	if got != 0 {
		t.Fatalf("Baseline = %v, want 0", got)
	}
}

func TestSimulateUnknownProductUsesDefaultRevenue(t *testing.T) {
	p := newTestPredictor(stubHistory{})

	layout := layoutOf(t, map[string]string{"D2": "mystery"})
	got, err := p.Simulate(context.Background(), layout)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	want := 3.0 * 1.0 * 30
	if !almostEqual(got, want) {
		t.Fatalf("Simulate = %v, want %v", got, want)
	}
}

func TestSimulateAppliesAffinityBonus(t *testing.T) {
	history := stubHistory{records: planogram.HistorySnapshot{
		"chips": record("chips", 10.0, 45),
		"soda":  record("soda", 8.0, 45),
	}}
	p := newTestPredictor(history)

	// B4 and B5 are both 1.25 x 1.15; chips+soda carry a 0.15 pair bonus.
	layout := layoutOf(t, map[string]string{"B4": "chips", "B5": "soda"})
	got, err := p.Simulate(context.Background(), layout)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	mult := 1.25 * 1.15
	want := (10.0*1.15*mult + 8.0*1.15*mult) * 30
	if !almostEqual(got, want) {
		t.Fatalf("Simulate = %v, want %v", got, want)
	}
}

func TestPredictImpactIdenticalLayouts(t *testing.T) {
	history := stubHistory{records: planogram.HistorySnapshot{
		"prodx": record("prodx", 10.0, 45),
	}}
	p := newTestPredictor(history)

	layout := layoutOf(t, map[string]string{"C3": "prodx"})
	res, err := p.PredictImpact(context.Background(), layout, layout)
	if err != nil {
		t.Fatalf("PredictImpact: %v", err)
	}
	if res.ChangeCost != 0 {
		t.Fatalf("ChangeCost = %v, want 0", res.ChangeCost)
	}
	if !almostEqual(res.LiftPercentage, 0) {
		t.Fatalf("LiftPercentage = %v, want 0", res.LiftPercentage)
	}
	if !almostEqual(res.BaselineRevenue, res.PredictedRevenue) {
		t.Fatalf("baseline %v != predicted %v", res.BaselineRevenue, res.PredictedRevenue)
	}
}

func TestPredictImpactPromotionFromFloorCorner(t *testing.T) {
	history := stubHistory{records: planogram.HistorySnapshot{
		"prody": record("prody", 5.0, 45),
	}}
	p := newTestPredictor(history)

	// E8 scores 0.90 x 0.90 = 0.81; A1 scores 1.10 x 0.90 = 0.99.
	current := layoutOf(t, map[string]string{"E8": "prody"})
	proposed := layoutOf(t, map[string]string{"A1": "prody"})

	res, err := p.PredictImpact(context.Background(), current, proposed)
	if err != nil {
		t.Fatalf("PredictImpact: %v", err)
	}
	if !almostEqual(res.BaselineRevenue, 5.0*0.81*30) {
		t.Fatalf("baseline = %v, want %v", res.BaselineRevenue, 5.0*0.81*30)
	}
	if !almostEqual(res.PredictedRevenue, 5.0*0.99*30) {
		t.Fatalf("predicted = %v, want %v", res.PredictedRevenue, 5.0*0.99*30)
	}
	if res.PredictedRevenue <= res.BaselineRevenue {
		t.Fatal("promotion to a better slot should raise predicted revenue")
	}
	if !almostEqual(res.ChangeCost, 50.0) {
		t.Fatalf("ChangeCost = %v, want 50 (two touched positions)", res.ChangeCost)
	}
	if res.Confidence != ConfidenceHigh {
		t.Fatalf("Confidence = %v, want %v", res.Confidence, ConfidenceHigh)
	}
	wantLow := res.PredictedRevenue * 0.9
	wantHigh := res.PredictedRevenue * 1.1
	if !almostEqual(res.ConfidenceInterval.Low, wantLow) || !almostEqual(res.ConfidenceInterval.High, wantHigh) {
		t.Fatalf("CI = %+v, want [%v, %v]", res.ConfidenceInterval, wantLow, wantHigh)
	}
	if res.BreakEvenDays == nil {
		t.Fatal("BreakEvenDays = nil, want a value for a positive lift")
	}
	dailyLift := (res.PredictedRevenue - res.BaselineRevenue) / 30
	if !almostEqual(*res.BreakEvenDays, 50.0/dailyLift) {
		t.Fatalf("BreakEvenDays = %v, want %v", *res.BreakEvenDays, 50.0/dailyLift)
	}
}

func TestPredictImpactBreakEvenNilWhenNoLift(t *testing.T) {
	history := stubHistory{records: planogram.HistorySnapshot{
		"prody": record("prody", 5.0, 45),
	}}
	p := newTestPredictor(history)

	current := layoutOf(t, map[string]string{"A1": "prody"})
	proposed := layoutOf(t, map[string]string{"E8": "prody"})

	res, err := p.PredictImpact(context.Background(), current, proposed)
	if err != nil {
		t.Fatalf("PredictImpact: %v", err)
	}
	if res.BreakEvenDays != nil {
		t.Fatalf("BreakEvenDays = %v, want nil for a demotion", *res.BreakEvenDays)
	}
	if res.LiftPercentage >= 0 {
		t.Fatalf("LiftPercentage = %v, want negative", res.LiftPercentage)
	}
}

func TestPredictImpactZeroBaselineZeroLift(t *testing.T) {
	p := newTestPredictor(stubHistory{})

	current := layoutOf(t, map[string]string{"D2": "mystery"})
	proposed := layoutOf(t, map[string]string{"D3": "mystery"})

	res, err := p.PredictImpact(context.Background(), current, proposed)
	if err != nil {
		t.Fatalf("PredictImpact: %v", err)
	}
	if res.BaselineRevenue != 0 {
		t.Fatalf("baseline = %v, want 0", res.BaselineRevenue)
	}
	if res.LiftPercentage != 0 {
		t.Fatalf("LiftPercentage = %v, want 0 when baseline is 0", res.LiftPercentage)
	}
}

func TestPredictImpactPropagatesHistoryError(t *testing.T) {
	p := newTestPredictor(stubHistory{err: errors.New("store down")})
	layout := layoutOf(t, map[string]string{"A1": "prodx"})
	if _, err := p.PredictImpact(context.Background(), layout, layout); err == nil {
		t.Fatal("expected error from history source")
	}
}

func TestConfidenceScoreTiers(t *testing.T) {
	layout4 := func(ids [4]string) planogram.Layout {
		return layoutOf(t, map[string]string{
			"A1": ids[0], "A2": ids[1], "A3": ids[2], "A4": ids[3],
		})
	}
	deep := record("deep", 5, 60)
	mid := record("mid", 5, 10)

	// all deep
	got := ConfidenceScore(planogram.HistorySnapshot{"deep": deep}, layout4([4]string{"deep", "deep", "deep", "deep"}))
	if got != ConfidenceHigh {
		t.Fatalf("all deep: score = %v, want %v", got, ConfidenceHigh)
	}
	// two deep, two unknown: ratio 0.5 lands in the medium tier
	got = ConfidenceScore(planogram.HistorySnapshot{"deep": deep}, layout4([4]string{"deep", "deep", "x", "y"}))
	if got != ConfidenceMedium {
		t.Fatalf("half deep: score = %v, want %v", got, ConfidenceMedium)
	}
	// all mid history: weights 0.5 each, ratio 0.5 -> medium
	got = ConfidenceScore(planogram.HistorySnapshot{"mid": mid}, layout4([4]string{"mid", "mid", "mid", "mid"}))
	if got != ConfidenceMedium {
		t.Fatalf("all mid: score = %v, want %v", got, ConfidenceMedium)
	}
	// all unknown -> low
	got = ConfidenceScore(planogram.HistorySnapshot{}, layout4([4]string{"a", "b", "c", "d"}))
	if got != ConfidenceLow {
		t.Fatalf("all unknown: score = %v, want %v", got, ConfidenceLow)
	}
	// empty layout -> neutral
	empty, err := planogram.NewLayout(nil)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if got := ConfidenceScore(planogram.HistorySnapshot{}, empty); got != ConfidenceNeutral {
		t.Fatalf("empty layout: score = %v, want %v", got, ConfidenceNeutral)
	}
}

func TestProperty_BaselineNeverNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	rows := []string{"A", "B", "C", "D", "E", "F"}

	properties.Property("baseline is non-negative for any layout and history", prop.ForAll(
		func(rowIdx, col int, revenue float64, days int) bool {
			id := "p1"
			history := stubHistory{records: planogram.HistorySnapshot{
				id: record(id, revenue, days),
			}}
			p := newTestPredictor(history)
			layout, err := planogram.NewLayout([]planogram.LayoutSlot{{
				Position:  planogram.SlotPosition{Row: rows[rowIdx], Column: col},
				ProductID: id,
				Quantity:  1,
			}})
			if err != nil {
				return false
			}
			got, err := p.Baseline(context.Background(), layout)
			return err == nil && got >= 0
		},
		gen.IntRange(0, len(rows)-1),
		gen.IntRange(1, 8),
		gen.Float64Range(0, 500),
		gen.IntRange(0, 365),
	))

	properties.TestingRun(t)
}

func TestProperty_ConfidenceMonotoneInHistoryDepth(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	const size = 8

	scoreWithDeep := func(t *testing.T, deep int) float64 {
		slots := make([]planogram.LayoutSlot, 0, size)
		snap := planogram.HistorySnapshot{}
		for i := 0; i < size; i++ {
			id := "p" + string(rune('a'+i))
			slots = append(slots, planogram.LayoutSlot{
				Position:  planogram.SlotPosition{Row: "B", Column: i + 1},
				ProductID: id,
				Quantity:  1,
			})
			if i < deep {
				snap[id] = record(id, 5, 60)
			}
		}
		layout, err := planogram.NewLayout(slots)
		if err != nil {
			t.Fatalf("NewLayout: %v", err)
		}
		return ConfidenceScore(snap, layout)
	}

	properties.Property("more deep-history slots never lowers confidence", prop.ForAll(
		func(a, b int) bool {
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			return scoreWithDeep(t, lo) <= scoreWithDeep(t, hi)
		},
		gen.IntRange(0, size),
		gen.IntRange(0, size),
	))

	properties.TestingRun(t)
}
