package policy

import (
	"math"

	"github.com/quietgrid/gridopt/internal/rngx"
	"github.com/quietgrid/gridopt/internal/weights"
)

// MaxActionCount caps how many extra actions a single year may draw.
const MaxActionCount = 20

// countDecayRate shapes the initial count distribution: weight for count k
// is proportional to exp(-countDecayRate*k), biasing every year toward
// taking fewer actions.
const countDecayRate = 0.4

// CountTable holds, per year, a probability distribution over "how many
// extra actions to take this year". Rows always sum to 1.
type CountTable struct {
	rows map[int][]float64
}

// NewCountTable returns a table covering every simulated year, each row
// initialized with exponential decay over counts 0..MaxActionCount and
// normalized.
func NewCountTable() *CountTable {
	t := &CountTable{rows: make(map[int][]float64, weights.EndYear-weights.StartYear+1)}
	for year := weights.StartYear; year <= weights.EndYear; year++ {
		row := make([]float64, MaxActionCount+1)
		var total float64
		for k := 0; k <= MaxActionCount; k++ {
			row[k] = math.Exp(-countDecayRate * float64(k))
			total += row[k]
		}
		for k := range row {
			row[k] /= total
		}
		t.rows[year] = row
	}
	return t
}

// WeightsForYear returns the count distribution for year, or nil when the
// year has no row (callers then fall back to the epsilon-scaled heuristic).
func (t *CountTable) WeightsForYear(year int) map[int]float64 {
	if t == nil {
		return nil
	}
	row, ok := t.rows[year]
	if !ok {
		return nil
	}
	out := make(map[int]float64, len(row))
	for k, w := range row {
		out[k] = w
	}
	return out
}

// RowSum returns the total probability mass stored for year.
func (t *CountTable) RowSum(year int) float64 {
	var total float64
	for _, w := range t.rows[year] {
		total += w
	}
	return total
}

// Draw samples a count from year's distribution. Returns ok=false when the
// year has no row.
func (t *CountTable) Draw(year int, rng *rngx.Source) (int, bool) {
	if t == nil {
		return 0, false
	}
	row, ok := t.rows[year]
	if !ok || len(row) == 0 {
		return 0, false
	}
	idx := rng.WeightedIndex(row)
	if idx < 0 || idx > MaxActionCount {
		idx = 0
	}
	return idx, true
}
