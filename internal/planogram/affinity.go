package planogram

// AffinityTable holds cross-sell bonuses for unordered product pairs.
// Placing two paired products in the same layout lifts the simulated
// revenue of each by its best pair bonus.
type AffinityTable struct {
	bonuses map[pairKey]float64
}

type pairKey struct {
	a, b string
}

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// NewAffinityTable builds an empty table.
func NewAffinityTable() *AffinityTable {
	return &AffinityTable{bonuses: make(map[pairKey]float64)}
}

// Add registers a pair bonus. Order of a and b does not matter; the last
// value written for a pair wins. Self pairs and non-positive bonuses are
// ignored.
func (t *AffinityTable) Add(a, b string, bonus float64) *AffinityTable {
	if a == "" || b == "" || a == b || bonus <= 0 {
		return t
	}
	t.bonuses[newPairKey(a, b)] = bonus
	return t
}

// PairBonus returns the bonus for a pair, 0 when unknown.
func (t *AffinityTable) PairBonus(a, b string) float64 {
	if t == nil || a == b {
		return 0
	}
	return t.bonuses[newPairKey(a, b)]
}

// Bonus returns the highest pair bonus between productID and any other
// product present in the layout, 0 when none pairs.
func (t *AffinityTable) Bonus(productID string, layout Layout) float64 {
	if t == nil || productID == "" {
		return 0
	}
	best := 0.0
	for _, other := range layout.ProductIDs() {
		if other == productID {
			continue
		}
		if b := t.PairBonus(productID, other); b > best {
			best = b
		}
	}
	return best
}

// DefaultAffinityTable ships the cross-sell pairs observed across the
// vending fleet. Category-level SKUs; per-site tables can be injected.
func DefaultAffinityTable() *AffinityTable {
	t := NewAffinityTable()
	t.Add("chips", "soda", 0.15)
	t.Add("candy", "soda", 0.10)
	t.Add("cookies", "milk", 0.12)
	t.Add("coffee", "pastry", 0.12)
	t.Add("energy_drink", "protein_bar", 0.10)
	t.Add("water", "granola_bar", 0.08)
	return t
}
