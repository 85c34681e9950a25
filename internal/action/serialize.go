package action

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Serializable is the flat, backward-compatible persisted form of an
// Action. Unknown ActionType values and legacy records with an empty
// target id (where one is required) are skipped on load, never treated
// as fatal.
type Serializable struct {
	ActionType       string   `json:"action_type"`
	GeneratorType    *string  `json:"generator_type,omitempty"`
	GeneratorID      *string  `json:"generator_id,omitempty"`
	OperationPercent *float64 `json:"operation_percentage,omitempty"`
	OffsetType       *string  `json:"offset_type,omitempty"`
	CostMultiplier   *float64 `json:"cost_multiplier,omitempty"`
}

// ToSerializable converts a in-memory Action to its persisted form.
func (a Action) ToSerializable() Serializable {
	s := Serializable{ActionType: string(a.Kind)}
	switch a.Kind {
	case KindAddGenerator:
		gt := string(a.GeneratorType)
		s.GeneratorType = &gt
		cm := a.CostMultiplier
		s.CostMultiplier = &cm
	case KindAddCarbonOffset:
		ot := string(a.GeneratorType)
		s.OffsetType = &ot
		cm := a.CostMultiplier
		s.CostMultiplier = &cm
	case KindUpgradeEfficiency, KindCloseGenerator:
		id := a.TargetID
		s.GeneratorID = &id
	case KindAdjustOperation:
		id := a.TargetID
		s.GeneratorID = &id
		op := a.OperationPercent
		s.OperationPercent = &op
	case KindDoNothing:
		// no payload
	}
	return s
}

// FromSerializable reconstructs an Action from its persisted form. It
// returns ok=false (never an error) when the record should be skipped:
// an unknown action_type (logged as a warning), or a record missing its
// mandatory payload, such as a legacy record with no TargetID (dropped
// without a log line).
func FromSerializable(s Serializable) (Action, bool) {
	switch Kind(s.ActionType) {
	case KindAddGenerator:
		if s.GeneratorType == nil {
			return Action{}, false
		}
		cm := 100.0
		if s.CostMultiplier != nil {
			cm = *s.CostMultiplier
		}
		return NewAddGenerator(GeneratorType(*s.GeneratorType), cm), true
	case KindAddCarbonOffset:
		if s.OffsetType == nil {
			return Action{}, false
		}
		cm := 100.0
		if s.CostMultiplier != nil {
			cm = *s.CostMultiplier
		}
		return NewAddCarbonOffset(GeneratorType(*s.OffsetType), cm), true
	case KindUpgradeEfficiency:
		if s.GeneratorID == nil || *s.GeneratorID == "" {
			return Action{}, false // legacy record with no usable target, dropped
		}
		return NewUpgradeEfficiency(*s.GeneratorID), true
	case KindCloseGenerator:
		if s.GeneratorID == nil || *s.GeneratorID == "" {
			return Action{}, false
		}
		return NewCloseGenerator(*s.GeneratorID), true
	case KindAdjustOperation:
		if s.GeneratorID == nil || *s.GeneratorID == "" {
			return Action{}, false
		}
		op := 100.0
		if s.OperationPercent != nil {
			op = *s.OperationPercent
		}
		return NewAdjustOperation(*s.GeneratorID, op), true
	case KindDoNothing:
		return DoNothing(), true
	default:
		log.Warn().Str("action_type", s.ActionType).Msg("skipping unknown action type on load")
		return Action{}, false
	}
}

// MarshalJSON round-trips through Serializable.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToSerializable())
}

// UnmarshalJSON parses a flat Serializable record. Unlike FromSerializable
// it returns an error both for malformed JSON and for a record
// FromSerializable would skip (unknown tag or legacy record) — callers
// that need skip-on-unknown semantics should decode into Serializable
// directly and call FromSerializable.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s Serializable
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode action: %w", err)
	}
	got, ok := FromSerializable(s)
	if !ok {
		return fmt.Errorf("unrecognized or legacy action record: %q", s.ActionType)
	}
	*a = got
	return nil
}
