package world

import (
	"fmt"
	"math"

	"github.com/quietgrid/gridopt/internal/action"
)

// baseCapacityMW is the nameplate capacity of a single AddGenerator
// capacity block. Blocks are sized so a regional deficit is closable in
// a handful of additions rather than hundreds; real siting/sizing
// belongs to a production World implementation.
const baseCapacityMW = 200.0

// upgradeCostFraction and closureCostFraction price UpgradeEfficiency and
// CloseGenerator actions relative to the target's build cost.
const (
	upgradeCostFraction = 0.10
	closureCostFraction = 0.05
)

// baseCostPerMW and baseEmissionFactor (t CO2 per MWh generated) are
// reference constants for the out-of-scope grid-physics model this
// package stands in for.
var baseCostPerMW = map[action.GeneratorType]float64{
	action.GenOnshoreWind:      1_200_000,
	action.GenOffshoreWind:     2_600_000,
	action.GenUtilitySolar:     900_000,
	action.GenBatteryStorage:   1_500_000,
	action.GenGasPeaker:        700_000,
	action.GenGasCombinedCycle: 1_000_000,
}

var emissionFactor = map[action.GeneratorType]float64{
	action.GenOnshoreWind:      0,
	action.GenOffshoreWind:     0,
	action.GenUtilitySolar:     0,
	action.GenBatteryStorage:   0,
	action.GenGasPeaker:        0.55,
	action.GenGasCombinedCycle: 0.35,
}

// capacityFactor is the average output fraction of nameplate capacity per
// generator kind (wind/solar are intermittent; thermal is dispatchable).
var capacityFactor = map[action.GeneratorType]float64{
	action.GenOnshoreWind:      0.35,
	action.GenOffshoreWind:     0.45,
	action.GenUtilitySolar:     0.22,
	action.GenBatteryStorage:   0.0, // dispatched on demand, not baseload
	action.GenGasPeaker:        0.15,
	action.GenGasCombinedCycle: 0.55,
}

// offsetTCO2PerUnit is the annual sequestration/capture capacity a single
// AddCarbonOffset unit provides.
var offsetTCO2PerUnit = map[action.GeneratorType]float64{
	action.OffsetForest:       20_000,
	action.OffsetActiveCapture: 80_000,
}

type generator struct {
	ID               string
	Kind             action.GeneratorType
	CapacityMW       float64
	Efficiency       float64 // [0,1], 1.0 at construction
	OperationPercent float64 // [0,100]
	CostMultiplier   float64
	BuiltYear        int
	Active           bool
}

type offset struct {
	ID      string
	Kind    action.GeneratorType
	TCO2Cap float64
	Active  bool
}

// simWorld is the reference World implementation.
type simWorld struct {
	static            StaticData
	enableEnergySales bool
	mode              Mode

	generators []generator
	offsets    []offset

	population float64
	demandMW   float64

	// dispatchedMW is storage output committed for the current year; it
	// counts toward generation until the next year-clock tick.
	dispatchedMW float64

	accumCapex     float64
	accumCreditRev float64
	accumSalesRev  float64
	accumTotal     float64

	yearCapex       float64
	yearUpgradeCost float64
	yearClosureCost float64

	nextID int
}

func newSimWorld(s StaticData, enableEnergySales bool) *simWorld {
	w := &simWorld{static: s, enableEnergySales: enableEnergySales}
	for _, settlement := range s.Settlements {
		w.population += settlement.Population
	}
	w.recomputeDemand()
	return w
}

func (w *simWorld) recomputeDemand() {
	var demand float64
	for _, settlement := range w.static.Settlements {
		share := settlement.Population / math.Max(w.population, 1)
		demand += share * w.population * settlement.PerCapitaDemandKW / 1000
	}
	w.demandMW = demand
}

// UpdateYearClock opens a new simulated year: committed storage dispatch
// expires and the per-year cost buckets reset.
func (w *simWorld) UpdateYearClock(year int) {
	w.dispatchedMW = 0
	w.yearCapex = 0
	w.yearUpgradeCost = 0
	w.yearClosureCost = 0
}

func (w *simWorld) UpdatePopulationAndDemand(year int) {
	w.population *= 1.01
	w.recomputeDemand()
}

func (w *simWorld) TotalGeneration(year int) float64 {
	var total float64
	for _, g := range w.generators {
		if !g.Active || g.Kind == action.GenBatteryStorage {
			continue
		}
		cf := capacityFactor[g.Kind]
		total += g.CapacityMW * cf * g.Efficiency * (g.OperationPercent / 100)
	}
	return total + w.dispatchedMW
}

func (w *simWorld) TotalDemand(year int) float64 { return w.demandMW }

func (w *simWorld) NetEmissions(year int) float64 {
	net := w.grossEmissions() - w.totalOffsetCO2()
	if net < 0 {
		return 0
	}
	return net
}

func (w *simWorld) AverageOpinion(year int) float64 {
	renewable := 0
	thermal := 0
	for _, g := range w.generators {
		if !g.Active {
			continue
		}
		if emissionFactor[g.Kind] > 0 {
			thermal++
		} else {
			renewable++
		}
	}
	total := renewable + thermal
	if total == 0 {
		return 0.5
	}
	opinion := 0.5 + 0.4*(float64(renewable)/float64(total)) - 0.3*(float64(thermal)/float64(total))
	if opinion < 0 {
		opinion = 0
	}
	if opinion > 1 {
		opinion = 1
	}
	return opinion
}

func (w *simWorld) TotalCapitalCost(year int) float64 { return w.accumCapex }

// Apply mutates world state for action a. It never panics: an action
// targeting a generator is resolved by resolveGenerator (exact target id,
// then the first active generator of the implied type tag, then the
// first active generator of any type), and is dropped as a no-op only
// when no generator is active.
func (w *simWorld) Apply(a action.Action, year int) error {
	switch a.Kind {
	case action.KindAddGenerator:
		w.addGenerator(a, year)
	case action.KindAddCarbonOffset:
		w.addOffset(a, year)
	case action.KindUpgradeEfficiency:
		if g := w.resolveGenerator(a.TargetID); g != nil {
			g.Efficiency = math.Min(g.Efficiency*1.1, 1.0)
			cost := baseCostPerMW[g.Kind] * g.CapacityMW * upgradeCostFraction
			w.yearUpgradeCost += cost
			w.accumTotal += cost
		}
	case action.KindAdjustOperation:
		if g := w.resolveGenerator(a.TargetID); g != nil {
			g.OperationPercent = a.OperationPercent
		}
	case action.KindCloseGenerator:
		if g := w.resolveGenerator(a.TargetID); g != nil {
			g.Active = false
			cost := baseCostPerMW[g.Kind] * g.CapacityMW * closureCostFraction
			w.yearClosureCost += cost
			w.accumTotal += cost
		}
	case action.KindDoNothing:
		// no-op by definition
	default:
		return fmt.Errorf("world: unknown action kind %q, treated as no-op", a.Kind)
	}
	return nil
}

func (w *simWorld) addGenerator(a action.Action, year int) {
	w.nextID++
	cost := baseCostPerMW[a.GeneratorType] * baseCapacityMW * (a.CostMultiplier / 100)
	w.accumCapex += cost
	w.accumTotal += cost
	w.yearCapex += cost
	w.generators = append(w.generators, generator{
		ID:               fmt.Sprintf("gen-%d", w.nextID),
		Kind:             a.GeneratorType,
		CapacityMW:       baseCapacityMW,
		Efficiency:       1.0,
		OperationPercent: 100,
		CostMultiplier:   a.CostMultiplier,
		BuiltYear:        year,
		Active:           true,
	})
}

func (w *simWorld) addOffset(a action.Action, year int) {
	w.nextID++
	cost := baseCostPerMW[action.GenGasPeaker] * 10 * (a.CostMultiplier / 100)
	w.accumCapex += cost
	w.accumTotal += cost
	w.yearCapex += cost
	w.offsets = append(w.offsets, offset{
		ID:      fmt.Sprintf("offset-%d", w.nextID),
		Kind:    a.GeneratorType,
		TCO2Cap: offsetTCO2PerUnit[a.GeneratorType],
		Active:  true,
	})
}

// resolveGenerator implements the documented fallback: exact ID match
// first, then the first active generator whose ID-as-type-tag matches
// (i.e. target_id itself names a GeneratorType), then the first active
// generator of any type, else nil.
func (w *simWorld) resolveGenerator(targetID string) *generator {
	for i := range w.generators {
		if w.generators[i].ID == targetID && w.generators[i].Active {
			return &w.generators[i]
		}
	}
	for i := range w.generators {
		if string(w.generators[i].Kind) == targetID && w.generators[i].Active {
			return &w.generators[i]
		}
	}
	for i := range w.generators {
		if w.generators[i].Active {
			return &w.generators[i]
		}
	}
	return nil
}

// HandleStorageDispatch draws on battery-storage headroom — nameplate
// capacity not already committed this year — to absorb deficitMW,
// returning the MW still unmet. Repeated calls within a year never
// dispatch the same capacity twice, but batteries built mid-year add
// fresh headroom.
func (w *simWorld) HandleStorageDispatch(deficitMW float64) float64 {
	if deficitMW <= 0 {
		return 0
	}
	var capacity float64
	for _, g := range w.generators {
		if g.Active && g.Kind == action.GenBatteryStorage {
			capacity += g.CapacityMW * g.Efficiency * (g.OperationPercent / 100)
		}
	}
	headroom := capacity - w.dispatchedMW
	if headroom < 0 {
		headroom = 0
	}
	dispatched := math.Min(headroom, deficitMW)
	w.dispatchedMW += dispatched
	return deficitMW - dispatched
}

func (w *simWorld) Clone() World {
	out := &simWorld{
		static:            w.static,
		enableEnergySales: w.enableEnergySales,
		mode:              w.mode,
		population:        w.population,
		demandMW:          w.demandMW,
		dispatchedMW:      w.dispatchedMW,
		accumCapex:        w.accumCapex,
		accumCreditRev:    w.accumCreditRev,
		accumSalesRev:     w.accumSalesRev,
		accumTotal:        w.accumTotal,
		yearCapex:         w.yearCapex,
		yearUpgradeCost:   w.yearUpgradeCost,
		yearClosureCost:   w.yearClosureCost,
		nextID:            w.nextID,
	}
	out.generators = append(out.generators, w.generators...)
	out.offsets = append(out.offsets, w.offsets...)
	return out
}

func (w *simWorld) StaticData() StaticData { return w.static }

func (w *simWorld) SetSimulationMode(m Mode) { w.mode = m }

func (w *simWorld) YearlyMetrics(year int) YearlyMetrics {
	generation := w.TotalGeneration(year)
	demand := w.TotalDemand(year)
	emit := w.grossEmissions()
	offsetCO2 := w.totalOffsetCO2()
	net := emit - offsetCO2
	if net < 0 {
		net = 0
	}

	var salesRev float64
	if w.enableEnergySales && generation > demand {
		salesRev = (generation - demand) * 8760 * 20 // €20/MWh merchant sale
	}
	w.accumSalesRev += salesRev

	var creditRev float64
	if net <= 0 {
		creditRev = offsetCO2 * 5 // €5/t credit value once net-zero
	}
	w.accumCreditRev += creditRev

	active := 0
	for _, g := range w.generators {
		if g.Active {
			active++
		}
	}

	return YearlyMetrics{
		Year:              year,
		Population:        w.population,
		DemandMW:          demand,
		GenerationMW:      generation,
		BalanceMW:         generation - demand,
		Opinion:           w.AverageOpinion(year),
		YearlyCapex:       w.yearCapex,
		AccumCapex:        w.accumCapex,
		Inflation:         1.0,
		CO2Emit:           emit,
		CO2Offset:         offsetCO2,
		NetCO2:            net,
		YearlyCreditRev:   creditRev,
		AccumCreditRev:    w.accumCreditRev,
		YearlySalesRev:    salesRev,
		AccumSalesRev:     w.accumSalesRev,
		ActiveCount:       active,
		YearlyUpgradeCost: w.yearUpgradeCost,
		YearlyClosureCost: w.yearClosureCost,
		YearlyTotal:       w.yearCapex + w.yearUpgradeCost + w.yearClosureCost,
		AccumTotal:        w.accumTotal,
	}
}

func (w *simWorld) grossEmissions() float64 {
	var emitted float64
	for _, g := range w.generators {
		if !g.Active {
			continue
		}
		cf := capacityFactor[g.Kind]
		output := g.CapacityMW * cf * g.Efficiency * (g.OperationPercent / 100) * 8760
		emitted += output * emissionFactor[g.Kind]
	}
	return emitted
}

func (w *simWorld) totalOffsetCO2() float64 {
	var total float64
	for _, o := range w.offsets {
		if o.Active {
			total += o.TCO2Cap
		}
	}
	return total
}
