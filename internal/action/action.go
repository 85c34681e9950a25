// Package action defines the tagged-variant grid action space and its
// serializable form.
package action

import "fmt"

// Kind discriminates the GridAction variant.
type Kind string

const (
	KindAddGenerator     Kind = "add_generator"
	KindUpgradeEfficiency Kind = "upgrade_efficiency"
	KindAdjustOperation   Kind = "adjust_operation"
	KindAddCarbonOffset   Kind = "add_carbon_offset"
	KindCloseGenerator    Kind = "close_generator"
	KindDoNothing         Kind = "do_nothing"
)

// GeneratorType enumerates the generator/offset kinds AddGenerator and
// AddCarbonOffset can reference.
type GeneratorType string

const (
	GenOnshoreWind     GeneratorType = "onshore_wind"
	GenOffshoreWind    GeneratorType = "offshore_wind"
	GenUtilitySolar    GeneratorType = "utility_solar"
	GenBatteryStorage  GeneratorType = "battery_storage"
	GenGasPeaker       GeneratorType = "gas_peaker"
	GenGasCombinedCycle GeneratorType = "gas_combined_cycle"

	OffsetForest        GeneratorType = "forest"
	OffsetActiveCapture  GeneratorType = "active_capture"
)

// Action is a single GridAction. Only the fields relevant to Kind are
// populated; the rest are zero-valued. Equality is structural (Action is
// comparable).
type Action struct {
	Kind             Kind
	GeneratorType    GeneratorType // AddGenerator, AddCarbonOffset
	CostMultiplier   float64       // AddGenerator, AddCarbonOffset — percent, [100,500]
	TargetID         string        // UpgradeEfficiency, AdjustOperation, CloseGenerator
	OperationPercent float64       // AdjustOperation — [0,100]
}

// IsStorage reports whether this is an AddGenerator(BatteryStorage, ...).
func (a Action) IsStorage() bool {
	return a.Kind == KindAddGenerator && a.GeneratorType == GenBatteryStorage
}

// IsAddGenerator reports whether a is any AddGenerator variant.
func (a Action) IsAddGenerator() bool {
	return a.Kind == KindAddGenerator
}

// String renders a compact human-readable form, used for logs and as a
// stable map/cache key component alongside the struct itself.
func (a Action) String() string {
	switch a.Kind {
	case KindAddGenerator:
		return fmt.Sprintf("AddGenerator(%s,%.0f%%)", a.GeneratorType, a.CostMultiplier)
	case KindUpgradeEfficiency:
		return fmt.Sprintf("UpgradeEfficiency(%s)", a.TargetID)
	case KindAdjustOperation:
		return fmt.Sprintf("AdjustOperation(%s,%.0f%%)", a.TargetID, a.OperationPercent)
	case KindAddCarbonOffset:
		return fmt.Sprintf("AddCarbonOffset(%s,%.0f%%)", a.GeneratorType, a.CostMultiplier)
	case KindCloseGenerator:
		return fmt.Sprintf("CloseGenerator(%s)", a.TargetID)
	case KindDoNothing:
		return "DoNothing"
	default:
		return fmt.Sprintf("Unknown(%s)", a.Kind)
	}
}

// DoNothing is the zero-cost no-op action.
func DoNothing() Action { return Action{Kind: KindDoNothing} }

// NewAddGenerator builds an AddGenerator action, clamping the cost
// multiplier to the documented [100,500] percent range.
func NewAddGenerator(kind GeneratorType, costMultiplierPct float64) Action {
	return Action{Kind: KindAddGenerator, GeneratorType: kind, CostMultiplier: clampPct(costMultiplierPct, 100, 500)}
}

// NewAddCarbonOffset builds an AddCarbonOffset action.
func NewAddCarbonOffset(kind GeneratorType, costMultiplierPct float64) Action {
	return Action{Kind: KindAddCarbonOffset, GeneratorType: kind, CostMultiplier: clampPct(costMultiplierPct, 100, 500)}
}

// NewUpgradeEfficiency builds an UpgradeEfficiency action against targetID.
func NewUpgradeEfficiency(targetID string) Action {
	return Action{Kind: KindUpgradeEfficiency, TargetID: targetID}
}

// NewAdjustOperation builds an AdjustOperation action against targetID.
func NewAdjustOperation(targetID string, percent float64) Action {
	return Action{Kind: KindAdjustOperation, TargetID: targetID, OperationPercent: clampPct(percent, 0, 100)}
}

// NewCloseGenerator builds a CloseGenerator action against targetID.
func NewCloseGenerator(targetID string) Action {
	return Action{Kind: KindCloseGenerator, TargetID: targetID}
}

func clampPct(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
