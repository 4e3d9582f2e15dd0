package planogram

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SlotPosition addresses one slot in a cabinet grid: row letter (A at the
// top) plus 1-based column number.
type SlotPosition struct {
	Row    string `json:"row"`
	Column int    `json:"column"`
}

// Label renders the position in the compact "A1" form used by planogram
// documents and the API.
func (p SlotPosition) Label() string {
	return p.Row + strconv.Itoa(p.Column)
}

// ParsePosition parses labels like "A1" or "F8". The row is a single
// letter; the column is the remaining digits.
func ParsePosition(label string) (SlotPosition, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	if len(s) < 2 {
		return SlotPosition{}, fmt.Errorf("invalid slot position %q", label)
	}
	row := s[:1]
	if row[0] < 'A' || row[0] > 'Z' {
		return SlotPosition{}, fmt.Errorf("invalid slot position %q", label)
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil || col < 1 {
		return SlotPosition{}, fmt.Errorf("invalid slot position %q", label)
	}
	return SlotPosition{Row: row, Column: col}, nil
}

// MustParsePosition is ParsePosition for literals; panics on bad input.
func MustParsePosition(label string) SlotPosition {
	p, err := ParsePosition(label)
	if err != nil {
		panic(err)
	}
	return p
}

// LayoutSlot binds a product to a position. An empty ProductID marks a
// vacant slot; vacant slots never contribute revenue.
type LayoutSlot struct {
	Position  SlotPosition `json:"position"`
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
}

func (s LayoutSlot) Occupied() bool { return s.ProductID != "" }

// Layout is a set of slots unique by position within one cabinet.
type Layout struct {
	slots map[SlotPosition]LayoutSlot
}

// NewLayout validates and builds a layout. Duplicate positions and
// negative quantities are construction errors.
func NewLayout(slots []LayoutSlot) (Layout, error) {
	m := make(map[SlotPosition]LayoutSlot, len(slots))
	for _, s := range slots {
		if s.Position.Row == "" || s.Position.Column < 1 {
			return Layout{}, fmt.Errorf("slot %q: invalid position", s.Position.Label())
		}
		if s.Quantity < 0 {
			return Layout{}, fmt.Errorf("slot %s: negative quantity %d", s.Position.Label(), s.Quantity)
		}
		if _, dup := m[s.Position]; dup {
			return Layout{}, fmt.Errorf("duplicate slot position %s", s.Position.Label())
		}
		s.Position.Row = strings.ToUpper(s.Position.Row)
		s.ProductID = strings.TrimSpace(s.ProductID)
		m[s.Position] = s
	}
	return Layout{slots: m}, nil
}

// Slots returns every slot ordered by row then column, so aggregation over
// a layout is deterministic.
func (l Layout) Slots() []LayoutSlot {
	out := make([]LayoutSlot, 0, len(l.slots))
	for _, s := range l.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.Row != out[j].Position.Row {
			return out[i].Position.Row < out[j].Position.Row
		}
		return out[i].Position.Column < out[j].Position.Column
	})
	return out
}

// Occupied returns the slots that hold a product, in slot order.
func (l Layout) Occupied() []LayoutSlot {
	out := make([]LayoutSlot, 0, len(l.slots))
	for _, s := range l.Slots() {
		if s.Occupied() {
			out = append(out, s)
		}
	}
	return out
}

// At reports the slot at pos, if any.
func (l Layout) At(pos SlotPosition) (LayoutSlot, bool) {
	s, ok := l.slots[pos]
	return s, ok
}

// ProductAt returns the product id at pos, "" when vacant or absent.
func (l Layout) ProductAt(pos SlotPosition) string {
	return l.slots[pos].ProductID
}

// Positions returns every position present in the layout, sorted.
func (l Layout) Positions() []SlotPosition {
	out := make([]SlotPosition, 0, len(l.slots))
	for _, s := range l.Slots() {
		out = append(out, s.Position)
	}
	return out
}

// ProductIDs returns the distinct occupied product ids, sorted.
func (l Layout) ProductIDs() []string {
	seen := make(map[string]struct{}, len(l.slots))
	for _, s := range l.slots {
		if s.Occupied() {
			seen[s.ProductID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether productID occupies any slot.
func (l Layout) Contains(productID string) bool {
	for _, s := range l.slots {
		if s.ProductID == productID {
			return true
		}
	}
	return false
}

func (l Layout) Len() int { return len(l.slots) }

// DiffCount counts positions whose product differs between two layouts,
// over the union of their positions. Vacant and absent both read as "".
func DiffCount(a, b Layout) int {
	union := make(map[SlotPosition]struct{}, len(a.slots)+len(b.slots))
	for p := range a.slots {
		union[p] = struct{}{}
	}
	for p := range b.slots {
		union[p] = struct{}{}
	}
	n := 0
	for p := range union {
		if a.ProductAt(p) != b.ProductAt(p) {
			n++
		}
	}
	return n
}
