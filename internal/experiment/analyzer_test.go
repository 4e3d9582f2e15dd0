package experiment

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"planogram/internal/models"
)

// two small groups with mean 11 vs 14 and equal spread; Welch gives t = 3 on
// df = 8 with se exactly 1.
func seedComparison(t *testing.T, store *stubStore) *models.Experiment {
	t.Helper()
	exp := seedExperiment(t, store, "cmp",
		[]string{"c1", "c2", "c3", "c4", "c5"},
		[]string{"t1", "t2", "t3", "t4", "t5"})
	startExperiment(t, store, exp)

	controlValues := []float64{10, 12, 11, 13, 9}
	treatmentValues := []float64{14, 15, 13, 16, 12}
	for i, v := range controlValues {
		observe(t, store, exp.ID, []string{"c1", "c2", "c3", "c4", "c5"}[i], "daily_revenue", v)
	}
	for i, v := range treatmentValues {
		observe(t, store, exp.ID, []string{"t1", "t2", "t3", "t4", "t5"}[i], "daily_revenue", v)
	}
	return exp
}

func TestAnalyzeComputesWelchComparison(t *testing.T) {
	store := newStubStore()
	seedComparison(t, store)
	a := NewAnalyzer(store, nil)

	results, err := a.Analyze(context.Background(), "cmp", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	res, ok := results["daily_revenue"]
	if !ok {
		t.Fatalf("daily_revenue missing from results: %+v", results)
	}

	if res.ControlMean != 11 || res.TreatmentMean != 14 {
		t.Fatalf("means = %v / %v, want 11 / 14", res.ControlMean, res.TreatmentMean)
	}
	if res.ControlN != 5 || res.TreatmentN != 5 {
		t.Fatalf("ns = %d / %d, want 5 / 5", res.ControlN, res.TreatmentN)
	}
	if math.Abs(res.AbsoluteDifference-3) > 1e-9 {
		t.Fatalf("difference = %v, want 3", res.AbsoluteDifference)
	}
	if math.Abs(res.EffectSize-3.0/11.0) > 1e-9 {
		t.Fatalf("effect = %v, want %v", res.EffectSize, 3.0/11.0)
	}
	if math.Abs(res.TStatistic-3) > 1e-9 {
		t.Fatalf("t = %v, want 3", res.TStatistic)
	}
	if math.Abs(res.DegreesOfFreedom-8) > 1e-6 {
		t.Fatalf("df = %v, want 8", res.DegreesOfFreedom)
	}
	if res.PValue <= 0.01 || res.PValue >= 0.03 {
		t.Fatalf("p = %v, want ~0.02", res.PValue)
	}
	if !res.Significant {
		t.Fatal("t=3 on df=8 should be significant at 95%")
	}
	// t-critical at df=8 and 95% is 2.306 with se = 1
	if math.Abs(res.ConfidenceInterval.Low-(3-2.306)) > 1e-6 ||
		math.Abs(res.ConfidenceInterval.High-(3+2.306)) > 1e-6 {
		t.Fatalf("CI = %+v, want [0.694, 5.306]", res.ConfidenceInterval)
	}
	if res.ConfidenceLevel != 0.95 {
		t.Fatalf("level = %v, want experiment default 0.95", res.ConfidenceLevel)
	}
}

func TestAnalyzeLevelOverride(t *testing.T) {
	store := newStubStore()
	seedComparison(t, store)
	a := NewAnalyzer(store, nil)

	level := 0.99
	results, err := a.Analyze(context.Background(), "cmp", &level)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	res := results["daily_revenue"]
	if res.ConfidenceLevel != 0.99 {
		t.Fatalf("level = %v, want 0.99", res.ConfidenceLevel)
	}
	if res.Significant {
		t.Fatalf("p = %v should not clear the 1%% bar", res.PValue)
	}
	if res.ConfidenceInterval.High-res.ConfidenceInterval.Low <= 2*2.306 {
		t.Fatal("99% interval should be wider than the 95% one")
	}
}

func TestAnalyzeInvalidLevel(t *testing.T) {
	store := newStubStore()
	seedComparison(t, store)
	a := NewAnalyzer(store, nil)

	level := 1.5
	if _, err := a.Analyze(context.Background(), "cmp", &level); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestAnalyzeSkipsMetricMissingAGroup(t *testing.T) {
	store := newStubStore()
	exp := seedExperiment(t, store, "partial", []string{"c1", "c2"}, []string{"t1", "t2"})
	startExperiment(t, store, exp)

	observe(t, store, exp.ID, "c1", "control_only", 10)
	observe(t, store, exp.ID, "c2", "control_only", 11)
	observe(t, store, exp.ID, "c1", "shared", 10)
	observe(t, store, exp.ID, "c2", "shared", 11)
	observe(t, store, exp.ID, "t1", "shared", 12)
	observe(t, store, exp.ID, "t2", "shared", 13)

	a := NewAnalyzer(store, nil)
	results, err := a.Analyze(context.Background(), "partial", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, ok := results["control_only"]; ok {
		t.Fatal("metric with no treatment observations must be skipped")
	}
	if _, ok := results["shared"]; !ok {
		t.Fatalf("shared metric missing: %+v", results)
	}
}

func TestAnalyzeUnknownExperiment(t *testing.T) {
	a := NewAnalyzer(newStubStore(), nil)
	if _, err := a.Analyze(context.Background(), "ghost", nil); !errors.Is(err, ErrExperimentNotFound) {
		t.Fatalf("err = %v, want ErrExperimentNotFound", err)
	}
	if _, err := a.PowerAnalysis(context.Background(), "ghost"); !errors.Is(err, ErrExperimentNotFound) {
		t.Fatalf("power err = %v, want ErrExperimentNotFound", err)
	}
}

func TestPowerAnalysisSmallSample(t *testing.T) {
	store := newStubStore()
	seedComparison(t, store)
	a := NewAnalyzer(store, nil)

	reports, err := a.PowerAnalysis(context.Background(), "cmp")
	if err != nil {
		t.Fatalf("PowerAnalysis: %v", err)
	}
	rep, ok := reports["daily_revenue"]
	if !ok {
		t.Fatalf("daily_revenue missing: %+v", reports)
	}
	if rep.SampleSize != 10 {
		t.Fatalf("sample size = %d, want 10", rep.SampleSize)
	}
	// pooled sd = sqrt(2.5), d = 3/sqrt(2.5)
	wantD := 3 / math.Sqrt(2.5)
	if math.Abs(rep.EffectSize-wantD) > 1e-9 {
		t.Fatalf("effect size = %v, want %v", rep.EffectSize, wantD)
	}
	if rep.ObservedPower <= 0.7 || rep.ObservedPower >= 0.8 {
		t.Fatalf("power = %v, want ~0.756", rep.ObservedPower)
	}
	if rep.IsAdequatelyPowered {
		t.Fatal("ten observations should not be adequately powered")
	}
}

func TestRequiredSampleSizeDelegation(t *testing.T) {
	a := NewAnalyzer(newStubStore(), nil)
	n := a.RequiredSampleSize(0.10, 0.05, 0.8, 0.05)
	if n <= 0 {
		t.Fatalf("n = %d, want positive", n)
	}
	larger := a.RequiredSampleSize(0.10, 0.02, 0.8, 0.05)
	if larger <= n {
		t.Fatalf("smaller effect must need more samples: %d vs %d", larger, n)
	}
}

// End-to-end: 100 devices, a 50/50 split and thirty days of simulated
// observations with a true 12% lift must come out significant at 95%.
func TestTwelvePercentLiftDetectedEndToEnd(t *testing.T) {
	store := newStubStore(fleet(100)...)
	reg := newTestRegistry(store, 7)
	collector := NewCollector(store, nil)
	analyzer := NewAnalyzer(store, nil)
	ctx := context.Background()

	exp, err := reg.Create(ctx, Config{
		Name:          "lift-sim",
		PrimaryMetric: "daily_revenue",
		DurationDays:  30,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := reg.Start(ctx, "lift-sim"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	assignments, _ := store.ListAssignments(ctx, exp.ID, nil)
	if len(assignments) != 100 {
		t.Fatalf("assigned %d devices, want 100", len(assignments))
	}

	rng := rand.New(rand.NewSource(12345))
	const days = 30
	for day := 0; day < days; day++ {
		for _, a := range assignments {
			mean := 50.0
			if a.Group == models.GroupTreatment {
				mean = 56.0 // 12% above control
			}
			value := mean + rng.NormFloat64()*5.0
			accepted, err := collector.Track(ctx, "lift-sim", a.DeviceID, "daily_revenue", value)
			if err != nil || !accepted {
				t.Fatalf("Track day %d device %s = (%v, %v)", day, a.DeviceID, accepted, err)
			}
		}
	}

	results, err := analyzer.Analyze(ctx, "lift-sim", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	res, ok := results["daily_revenue"]
	if !ok {
		t.Fatalf("daily_revenue missing: %+v", results)
	}
	if res.ControlN != 1500 || res.TreatmentN != 1500 {
		t.Fatalf("ns = %d / %d, want 1500 / 1500", res.ControlN, res.TreatmentN)
	}
	if !res.Significant {
		t.Fatalf("a true 12%% lift over 3000 observations must be significant, p = %v", res.PValue)
	}
	if res.PValue >= 0.05 {
		t.Fatalf("p = %v, want < 0.05", res.PValue)
	}
	if res.EffectSize < 0.08 || res.EffectSize > 0.16 {
		t.Fatalf("effect = %v, want ~0.12", res.EffectSize)
	}

	power, err := analyzer.PowerAnalysis(ctx, "lift-sim")
	if err != nil {
		t.Fatalf("PowerAnalysis: %v", err)
	}
	if !power["daily_revenue"].IsAdequatelyPowered {
		t.Fatalf("power = %v, want adequately powered", power["daily_revenue"].ObservedPower)
	}
}
