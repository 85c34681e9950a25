// Package scoring implements the scalar total order over SimulationMetrics
// that the rest of the engine treats as the sole arbiter of "better".
package scoring

import "math"

// Mode selects which scoring regime is active.
type Mode int

const (
	ModeDefault Mode = iota
	ModeCostOnly
)

// Budget and emissions ceiling constants anchor the log-normalized cost
// score and the default-mode emissions phase.
const (
	Budget       = 50_000_000_000.0 // €50B reference budget
	MaxEmissions = 50_000_000.0     // t CO2 reference ceiling
)

// Metrics is the tuple the kernel scores.
type Metrics struct {
	FinalNetEmissions    float64 `json:"final_net_emissions"`
	AveragePublicOpinion float64 `json:"average_public_opinion"` // [0,1]
	TotalCost            float64 `json:"total_cost"`
	PowerReliability     float64 `json:"power_reliability"` // [0,1]
}

// Score returns the scalar total order for m under mode. Smaller
// emissions and larger opinion never decrease it; smaller cost never
// decreases it on either side of the 8x-budget point where the net-zero
// branch raises the cost weight from 0.5 to 0.8, but moving past that
// point can raise the score when opinion is below the cost score there.
// The two phases of the default mode never overlap in range ([0,1)
// while net emissions are positive, [1,2] once zeroed).
func Score(m Metrics, mode Mode) float64 {
	if mode == ModeCostOnly {
		return costOnlyScore(m.TotalCost)
	}
	if m.FinalNetEmissions > 0 {
		return 1 - math.Min(m.FinalNetEmissions/MaxEmissions, 1)
	}
	return 1 + weightedCostOpinion(m.TotalCost, m.AveragePublicOpinion)
}

// costOnlyScore is 2 - min(L,1) with L = ln(n)/ln(100) and
// n = max(cost/Budget, 1): a log-normalized inverse cost in [1,2].
func costOnlyScore(cost float64) float64 {
	n := math.Max(cost/Budget, 1)
	l := math.Log(n) / math.Log(100)
	return 2 - math.Min(l, 1)
}

// weightedCostOpinion scores the net-zero branch of default mode:
// w_c*cost_score + w_o*opinion, where cost_score is the log-normalized
// inverse cost rescaled to [0,1] so it stays commensurate with opinion.
// Cost gets the larger weight (0.8) once the spend passes 8x budget and
// reining it in dominates the remaining headroom.
func weightedCostOpinion(cost, opinion float64) float64 {
	n := math.Max(cost/Budget, 1)
	l := math.Log(n) / math.Log(100)
	costScore := 1 - math.Min(l, 1)

	wc := 0.5
	if n > 8 {
		wc = 0.8
	}
	wo := 1 - wc
	return wc*costScore + wo*opinion
}

// Better reports whether a strictly outscores b under mode.
func Better(a, b Metrics, mode Mode) bool {
	return Score(a, mode) > Score(b, mode)
}

// State is the instantaneous snapshot EvaluateActionImpact compares
// before/after an action. It carries only the quantities the two-phase
// scoring logic actually reads, so the driver can capture it cheaply
// between every applied action.
type State struct {
	Emissions float64
	Opinion   float64
	Cost      float64
}

// StateScore applies the same two-phase logic as Score against an
// instantaneous State rather than end-of-run Metrics.
func StateScore(s State, mode Mode) float64 {
	if mode == ModeCostOnly {
		return costOnlyScore(s.Cost)
	}
	if s.Emissions > 0 {
		return 1 - math.Min(s.Emissions/MaxEmissions, 1)
	}
	return 1 + weightedCostOpinion(s.Cost, s.Opinion)
}

// EvaluateActionImpact returns the signed relative improvement of moving
// from before to after, under mode. Positive means the action helped.
func EvaluateActionImpact(before, after State, mode Mode) float64 {
	bScore := StateScore(before, mode)
	aScore := StateScore(after, mode)
	if bScore == 0 {
		return aScore - bScore
	}
	return (aScore - bScore) / math.Abs(bScore)
}
