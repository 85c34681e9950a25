package weights

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quietgrid/gridopt/internal/action"
)

// entry is the on-disk [SerializableAction, weight] pair.
type entry struct {
	Action action.Serializable
	Weight float64
}

func (e entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.Action, e.Weight})
}

func (e *entry) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode weight entry: %w", err)
	}
	if err := json.Unmarshal(raw[0], &e.Action); err != nil {
		return fmt.Errorf("decode weight entry action: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Weight); err != nil {
		return fmt.Errorf("decode weight entry weight: %w", err)
	}
	return nil
}

// MarshalJSON renders the table as
// { "year": [[SerializableAction, w], ...] }.
func (t *Table) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string][]entry, len(t.rows))
	for year, row := range t.rows {
		entries := make([]entry, 0, len(row))
		for a, w := range row {
			entries = append(entries, entry{Action: a.ToSerializable(), Weight: w})
		}
		out[strconv.Itoa(year)] = entries
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the persisted form. Entries with an unrecognized
// or legacy action are skipped, never treated as a load failure; an
// unknown action type is logged as a warning, a legacy record is dropped
// without one.
func (t *Table) UnmarshalJSON(data []byte) error {
	var raw map[string][]entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode weight table: %w", err)
	}
	rows := make(map[int]map[action.Action]float64, len(raw))
	for yearStr, entries := range raw {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			return fmt.Errorf("decode weight table year %q: %w", yearStr, err)
		}
		row := make(map[action.Action]float64, len(entries))
		for _, e := range entries {
			a, ok := action.FromSerializable(e.Action)
			if !ok {
				continue
			}
			row[a] = e.Weight
		}
		rows[year] = row
	}
	t.mu.Lock()
	t.rows = rows
	t.mu.Unlock()
	return nil
}
