package planogram

// The standard cabinet grid is rows A-F top to bottom, columns 1-8 left to
// right. Eye-level rows and center columns sell best; the combined slot
// multiplier is the product of the two axis weights. Positions off the
// grid score 1.0 per unknown axis so any placement stays scoreable.
const (
	BottomRow   = "F"
	GridColumns = 8
)

var rowMultipliers = map[string]float64{
	"A": 1.10,
	"B": 1.25,
	"C": 1.20,
	"D": 1.00,
	"E": 0.90,
	"F": 0.80,
}

var columnMultipliers = map[int]float64{
	1: 0.90,
	2: 1.00,
	3: 1.10,
	4: 1.15,
	5: 1.15,
	6: 1.10,
	7: 1.00,
	8: 0.90,
}

// RowMultiplier returns the visibility weight for a row, 1.0 when unknown.
func RowMultiplier(row string) float64 {
	if m, ok := rowMultipliers[row]; ok {
		return m
	}
	return 1.0
}

// ColumnMultiplier returns the reach weight for a column, 1.0 when unknown.
func ColumnMultiplier(col int) float64 {
	if m, ok := columnMultipliers[col]; ok {
		return m
	}
	return 1.0
}

// PositionMultiplier scores a slot position. Always > 0.
func PositionMultiplier(pos SlotPosition) float64 {
	return RowMultiplier(pos.Row) * ColumnMultiplier(pos.Column)
}

// LowVisibility reports whether a position sits in the bottom row or on the
// left/right edge of the grid, where shoppers rarely look first.
func LowVisibility(pos SlotPosition) bool {
	return pos.Row >= BottomRow || pos.Column <= 1 || pos.Column >= GridColumns
}
