package planogram

// ProductHistory is one product's observed sales record, flattened to plain
// floats for scoring math.
type ProductHistory struct {
	ProductID       string
	Name            string
	Category        string
	AvgDailyRevenue float64
	AvgDailyUnits   float64
	DaysOfData      int
}

// HistorySnapshot is a point-in-time view of the performance store keyed by
// product ID. A nil snapshot behaves as all-miss, so callers never need to
// special-case an empty store.
type HistorySnapshot map[string]ProductHistory

func (s HistorySnapshot) Get(productID string) (ProductHistory, bool) {
	if s == nil {
		return ProductHistory{}, false
	}
	h, ok := s[productID]
	return h, ok
}

func (s HistorySnapshot) Has(productID string) bool {
	_, ok := s.Get(productID)
	return ok
}

// DailyRevenue returns the recorded average daily revenue and whether the
// product has any history at all.
func (s HistorySnapshot) DailyRevenue(productID string) (float64, bool) {
	h, ok := s.Get(productID)
	if !ok {
		return 0, false
	}
	return h.AvgDailyRevenue, true
}

// Days returns the length of the product's record in days, 0 when unknown.
func (s HistorySnapshot) Days(productID string) int {
	h, ok := s.Get(productID)
	if !ok {
		return 0
	}
	return h.DaysOfData
}
