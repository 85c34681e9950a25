// Package world defines the World contract the yearly driver operates
// against and ships a self-contained reference implementation. The core
// optimizer only depends on the interface — grid physics, siting, and
// cost modeling live behind it — so any production deployment can supply
// a richer World behind the same seams.
package world

import "github.com/quietgrid/gridopt/internal/action"

// Mode selects between the fast, cache-backed siting analysis and the
// exhaustive one.
type Mode int

const (
	ModeFast Mode = iota
	ModeFull
)

// World is the mutable grid model the optimizer drives. Implementations
// must never panic on an infeasible action — Apply falls back to a
// compatible action type instead.
type World interface {
	UpdateYearClock(year int)
	UpdatePopulationAndDemand(year int)

	TotalGeneration(year int) float64
	TotalDemand(year int) float64
	NetEmissions(year int) float64
	AverageOpinion(year int) float64
	TotalCapitalCost(year int) float64

	Apply(a action.Action, year int) error

	// HandleStorageDispatch draws deficitMW from available storage and
	// returns the MW still unmet.
	HandleStorageDispatch(deficitMW float64) float64

	Clone() World

	StaticData() StaticData

	SetSimulationMode(m Mode)

	// YearlyMetrics snapshots the full per-year record after the year's
	// actions have been applied.
	YearlyMetrics(year int) YearlyMetrics
}

// StaticData is the read-only geography/settlement data shared across
// clones without copying.
type StaticData struct {
	Settlements []Settlement
}

// Settlement is a population center with its own demand curve.
type Settlement struct {
	ID               string
	Population       float64
	PerCapitaDemandKW float64
}

// YearlyMetrics is the per-year accounting record the driver snapshots
// once the year's actions have settled.
type YearlyMetrics struct {
	Year              int     `json:"year"`
	Population        float64 `json:"population"`
	DemandMW          float64 `json:"demand_MW"`
	GenerationMW      float64 `json:"generation_MW"`
	BalanceMW         float64 `json:"balance_MW"`
	Opinion           float64 `json:"opinion"`
	YearlyCapex       float64 `json:"yearly_capex"`
	AccumCapex        float64 `json:"accum_capex"`
	Inflation         float64 `json:"inflation"`
	CO2Emit           float64 `json:"co2_emit"`
	CO2Offset         float64 `json:"co2_offset"`
	NetCO2            float64 `json:"net_co2"`
	YearlyCreditRev    float64 `json:"yearly_credit_rev"`
	AccumCreditRev     float64 `json:"accum_credit_rev"`
	YearlySalesRev     float64 `json:"yearly_sales_rev"`
	AccumSalesRev      float64 `json:"accum_sales_rev"`
	ActiveCount        int     `json:"active_count"`
	YearlyUpgradeCost  float64 `json:"yearly_upgrade_cost"`
	YearlyClosureCost  float64 `json:"yearly_closure_cost"`
	YearlyTotal        float64 `json:"yearly_total"`
	AccumTotal         float64 `json:"accum_total"`
}

// NewWithStaticData constructs a fresh World sharing s without copying
// its settlements.
func NewWithStaticData(s StaticData, enableEnergySales bool) World {
	return newSimWorld(s, enableEnergySales)
}

// DefaultStaticData returns a small representative settlement dataset for
// cmd/gridopt's default run: the World contract is swappable, but the CLI
// still needs something runnable out of the box rather than requiring a
// geography file on first use.
func DefaultStaticData() StaticData {
	return StaticData{Settlements: []Settlement{
		{ID: "metro-north", Population: 3_200_000, PerCapitaDemandKW: 1.4},
		{ID: "metro-south", Population: 2_600_000, PerCapitaDemandKW: 1.3},
		{ID: "coastal-industrial", Population: 1_100_000, PerCapitaDemandKW: 2.1},
		{ID: "rural-belt", Population: 900_000, PerCapitaDemandKW: 0.9},
		{ID: "tech-corridor", Population: 1_500_000, PerCapitaDemandKW: 1.6},
	}}
}
