package risk

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"planogram/internal/config"
	"planogram/internal/planogram"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	FactorRemovingHighPerformer = "removing_high_performer"
	FactorExcessNewProducts     = "excess_new_products"
	FactorPoorPlacement         = "poor_placement"
)

// Finding is one concrete risk in a proposed layout change. Findings are
// advisory; they never block a prediction.
type Finding struct {
	Factor       string  `json:"factor"`
	Severity     string  `json:"severity"`
	ProductID    string  `json:"product_id,omitempty"`
	Position     string  `json:"position,omitempty"`
	DailyRevenue float64 `json:"daily_revenue,omitempty"`
	Detail       string  `json:"detail"`
	Mitigation   string  `json:"mitigation"`
}

type Analyzer struct {
	cfg    config.RiskConfig
	logger *zap.Logger
}

func New(cfg config.RiskConfig, logger *zap.Logger) *Analyzer {
	if cfg.HighPerformerThreshold <= 0 {
		cfg.HighPerformerThreshold = 10.0
	}
	if cfg.PoorPlacementThreshold <= 0 {
		cfg.PoorPlacementThreshold = 8.0
	}
	if cfg.NewProductLimit <= 0 {
		cfg.NewProductLimit = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

// Identify checks a proposed layout against the current one over a fixed
// history snapshot. Zero findings is a valid outcome.
func (a *Analyzer) Identify(snap planogram.HistorySnapshot, current, proposed planogram.Layout) []Finding {
	findings := make([]Finding, 0, 4)
	findings = append(findings, a.removedHighPerformers(snap, current, proposed)...)
	if f := a.excessNewProducts(snap, proposed); f != nil {
		findings = append(findings, *f)
	}
	findings = append(findings, a.poorPlacements(snap, proposed)...)

	a.logger.Debug("risk analysis done", zap.Int("findings", len(findings)))
	return findings
}

func (a *Analyzer) removedHighPerformers(snap planogram.HistorySnapshot, current, proposed planogram.Layout) []Finding {
	var out []Finding
	for _, id := range current.ProductIDs() {
		rev, ok := snap.DailyRevenue(id)
		if !ok || rev <= a.cfg.HighPerformerThreshold {
			continue
		}
		if proposed.Contains(id) {
			continue
		}
		out = append(out, Finding{
			Factor:       FactorRemovingHighPerformer,
			Severity:     SeverityHigh,
			ProductID:    id,
			DailyRevenue: rev,
			Detail:       fmt.Sprintf("%s earns %.2f/day and is missing from the proposed layout", id, rev),
			Mitigation:   "keep the product on the planogram, or stage its removal behind an experiment",
		})
	}
	return out
}

func (a *Analyzer) excessNewProducts(snap planogram.HistorySnapshot, proposed planogram.Layout) *Finding {
	var unknown []string
	for _, id := range proposed.ProductIDs() {
		if !snap.Has(id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) <= a.cfg.NewProductLimit {
		return nil
	}
	return &Finding{
		Factor:   FactorExcessNewProducts,
		Severity: SeverityMedium,
		Detail: fmt.Sprintf("%d products without sales history exceed the limit of %d: %s",
			len(unknown), a.cfg.NewProductLimit, strings.Join(unknown, ", ")),
		Mitigation: "introduce unproven products a few at a time so their impact stays attributable",
	}
}

func (a *Analyzer) poorPlacements(snap planogram.HistorySnapshot, proposed planogram.Layout) []Finding {
	var out []Finding
	for _, slot := range proposed.Occupied() {
		rev, ok := snap.DailyRevenue(slot.ProductID)
		if !ok || rev <= a.cfg.PoorPlacementThreshold {
			continue
		}
		if !planogram.LowVisibility(slot.Position) {
			continue
		}
		out = append(out, Finding{
			Factor:       FactorPoorPlacement,
			Severity:     SeverityMedium,
			ProductID:    slot.ProductID,
			Position:     slot.Position.Label(),
			DailyRevenue: rev,
			Detail: fmt.Sprintf("%s earns %.2f/day but sits in low-visibility slot %s",
				slot.ProductID, rev, slot.Position.Label()),
			Mitigation: "move the product to an eye-level or center slot",
		})
	}
	return out
}
