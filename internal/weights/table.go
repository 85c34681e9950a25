// Package weights implements the per-year mapping from grid action to a
// clamped reinforcement weight, with lazy defaults, introspection, and an
// exponential-moving-average deep merge used both by checkpoint
// continuation and by the coordinator's write-back path.
package weights

import (
	"sort"
	"sync"

	"github.com/quietgrid/gridopt/internal/action"
)

const (
	MinWeight    = 1e-4
	MaxWeight    = 0.999
	DefaultWeight = 0.5

	StartYear = 2025
	EndYear   = 2050

	// MergeAlpha is the EMA coefficient used by deep-merge: alpha weight
	// on the incoming table, (1-alpha) on the receiver.
	MergeAlpha = 0.3
)

// Table is a Year -> (Action -> weight) map. The zero value is not usable;
// construct with New.
type Table struct {
	mu   sync.RWMutex
	rows map[int]map[action.Action]float64
}

// New returns an empty WeightTable.
func New() *Table {
	return &Table{rows: make(map[int]map[action.Action]float64)}
}

// Get returns the stored weight for (year, a), or DefaultWeight if
// absent. It does not write the default back — unknown pairs read as the
// default without materializing an entry.
func (t *Table) Get(year int, a action.Action) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if row, ok := t.rows[year]; ok {
		if w, ok := row[a]; ok {
			return w
		}
	}
	return DefaultWeight
}

// Set stores an absolute weight for (year, a), clamping to
// [MinWeight, MaxWeight].
func (t *Table) Set(year int, a action.Action, w float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(year, a, w)
}

func (t *Table) setLocked(year int, a action.Action, w float64) {
	row, ok := t.rows[year]
	if !ok {
		row = make(map[action.Action]float64)
		t.rows[year] = row
	}
	row[a] = clamp(w, MinWeight, MaxWeight)
}

// Update applies a relative multiplicative adjustment: mul should already
// encode the full (1 +/- eta*combined) factor computed by the caller
// (internal/learning owns that math); Update only clamps and stores.
func (t *Table) Update(year int, a action.Action, mul float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.getLocked(year, a)
	next := clamp(cur*mul, MinWeight, MaxWeight)
	t.setLocked(year, a, next)
	return next
}

func (t *Table) getLocked(year int, a action.Action) float64 {
	if row, ok := t.rows[year]; ok {
		if w, ok := row[a]; ok {
			return w
		}
	}
	return DefaultWeight
}

// Actions returns the actions with a stored weight for year, in
// unspecified order. Callers that need determinism should sort by
// a.String().
func (t *Table) Actions(year int) []action.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row := t.rows[year]
	out := make([]action.Action, 0, len(row))
	for a := range row {
		out = append(out, a)
	}
	return out
}

// Weights returns a snapshot copy of the (action, weight) pairs for year.
func (t *Table) Weights(year int) map[action.Action]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[action.Action]float64, len(t.rows[year]))
	for a, w := range t.rows[year] {
		out[a] = w
	}
	return out
}

// Normalize rescales year's weights so they sum to 1, in place. The
// reinforcement update path never calls it; it exists for callers holding
// genuine probability rows rather than clamped-independent weights.
func (t *Table) Normalize(year int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[year]
	if !ok || len(row) == 0 {
		return
	}
	var total float64
	for _, w := range row {
		total += w
	}
	if total <= 0 {
		return
	}
	for a, w := range row {
		row[a] = w / total
	}
}

// TopK returns the k highest-weighted actions for year, descending, for
// introspection/debugging.
func (t *Table) TopK(year int, k int) []action.Action {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row := t.rows[year]
	type pair struct {
		a action.Action
		w float64
	}
	pairs := make([]pair, 0, len(row))
	for a, w := range row {
		pairs = append(pairs, pair{a, w})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].w > pairs[j].w })
	if k > len(pairs) {
		k = len(pairs)
	}
	out := make([]action.Action, k)
	for i := 0; i < k; i++ {
		out[i] = pairs[i].a
	}
	return out
}

// Clone returns a deep, independent copy of t, suitable for a
// per-iteration snapshot that is merged back under the coordinator lock.
func (t *Table) Clone() *Table {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := New()
	for year, row := range t.rows {
		newRow := make(map[action.Action]float64, len(row))
		for a, w := range row {
			newRow[a] = w
		}
		out.rows[year] = newRow
	}
	return out
}

// MergeFrom deep-merges other into t via an exponential moving average
// with alpha=MergeAlpha per (year, action): t' = alpha*other + (1-alpha)*t.
// Entries present only in other are copied verbatim. The result is
// order-dependent; merge order is the caller's to fix and document — see
// internal/coordinator.
func (t *Table) MergeFrom(other *Table) {
	other.mu.RLock()
	snapshot := make(map[int]map[action.Action]float64, len(other.rows))
	for year, row := range other.rows {
		copyRow := make(map[action.Action]float64, len(row))
		for a, w := range row {
			copyRow[a] = w
		}
		snapshot[year] = copyRow
	}
	other.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for year, otherRow := range snapshot {
		row, ok := t.rows[year]
		if !ok {
			row = make(map[action.Action]float64, len(otherRow))
			t.rows[year] = row
		}
		for a, ow := range otherRow {
			if existing, ok := row[a]; ok {
				row[a] = clamp(existing*(1-MergeAlpha)+ow*MergeAlpha, MinWeight, MaxWeight)
			} else {
				row[a] = clamp(ow, MinWeight, MaxWeight)
			}
		}
	}
}

// Years returns the years that have at least one stored weight, sorted.
func (t *Table) Years() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int, 0, len(t.rows))
	for y := range t.rows {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
