package policy

import (
	"math"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/rngx"
)

// MinExtraActions and MaxExtraActions bound the epsilon-scaled heuristic
// used when a year has no count distribution: k_min = round(2/sqrt(eps)),
// k_max = round(12/sqrt(eps)), uniform between them.
const (
	MinExtraActions = 2
	MaxExtraActions = 12
)

// CountReplaySource is the slice of engine state SampleExtraActionCount
// needs to force the replay count to match the recorded best run.
type CountReplaySource interface {
	ForceReplay() bool
	BestActionsForYear(year int) []action.Action
	ReplayIndex(year int) int
}

// SampleExtraActionCount returns how many extra actions to take in year.
// During replay the count is forced to the number of recorded best actions
// not yet replayed this year, so the year replays exactly its recorded
// sequence even when the deficit loop already consumed a prefix of it.
// Otherwise the year's count distribution is drawn from when present, and
// the epsilon-scaled heuristic applies when it is not.
func SampleExtraActionCount(year int, eps float64, replay CountReplaySource, counts *CountTable, rng *rngx.Source) int {
	if replay.ForceReplay() {
		remaining := len(replay.BestActionsForYear(year)) - replay.ReplayIndex(year)
		if remaining < 0 {
			remaining = 0
		}
		return remaining
	}

	if k, ok := counts.Draw(year, rng); ok {
		return k
	}

	return heuristicCount(eps, rng)
}

func heuristicCount(eps float64, rng *rngx.Source) int {
	if eps <= 0 {
		eps = 1e-4
	}
	kMin := int(math.Round(MinExtraActions / math.Sqrt(eps)))
	kMax := int(math.Round(MaxExtraActions / math.Sqrt(eps)))
	if kMin < 0 {
		kMin = 0
	}
	if kMax < kMin {
		kMax = kMin
	}
	if kMax > MaxActionCount {
		kMax = MaxActionCount
	}
	if kMin > MaxActionCount {
		kMin = MaxActionCount
	}
	if kMax == kMin {
		return kMin
	}
	return kMin + rng.Intn(kMax-kMin+1)
}
