package learning

import (
	"encoding/json"
	"fmt"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/weights"
)

// document is the single-JSON-document checkpoint shape.
type document struct {
	Weights          *weights.Table              `json:"weights"`
	DeficitWeights   *weights.Table              `json:"deficit_weights"`
	BestWeights      *weights.Table              `json:"best_weights,omitempty"`
	BestActions      map[string][]action.Serializable `json:"best_actions,omitempty"`
	BestDeficitActions map[string][]action.Serializable `json:"best_deficit_actions,omitempty"`
	BestMetrics      *scoring.Metrics            `json:"best_metrics,omitempty"`

	LearningRate                 float64 `json:"learning_rate"`
	ExplorationRate              float64 `json:"exploration_rate"`
	IterationCount                int     `json:"iteration_count"`
	IterationsWithoutImprovement int     `json:"iterations_without_improvement"`

	OptimizationMode *string `json:"optimization_mode"`
}

const optimizationModeCostOnly = "cost_only"

// MarshalJSON renders the engine into its checkpoint document form.
func (e *Engine) MarshalJSON() ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc := document{
		Weights:                       e.normalWeights,
		DeficitWeights:                e.deficitWeights,
		BestWeights:                   e.bestWeights,
		BestMetrics:                   e.bestMetrics,
		LearningRate:                  e.learningRate,
		ExplorationRate:               e.explorationRate,
		IterationCount:                e.iterationCount,
		IterationsWithoutImprovement:  e.iterationsWithoutImprovement,
	}
	if e.optimizationMode == scoring.ModeCostOnly {
		m := optimizationModeCostOnly
		doc.OptimizationMode = &m
	}
	if e.bestActions != nil {
		doc.BestActions = serializeActionMap(e.bestActions)
	}
	if e.bestDeficitActions != nil {
		doc.BestDeficitActions = serializeActionMap(e.bestDeficitActions)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores an engine from its checkpoint document form.
// Invalid entries (unknown action type, legacy empty target id) are
// skipped, never treated as a load failure.
func (e *Engine) UnmarshalJSON(data []byte) error {
	var doc document
	doc.Weights = weights.New()
	doc.DeficitWeights = weights.New()
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode learning engine checkpoint: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.normalWeights = doc.Weights
	e.deficitWeights = doc.DeficitWeights
	e.bestWeights = doc.BestWeights
	e.bestMetrics = doc.BestMetrics
	e.learningRate = doc.LearningRate
	e.explorationRate = doc.ExplorationRate
	e.iterationCount = doc.IterationCount
	e.iterationsWithoutImprovement = doc.IterationsWithoutImprovement
	e.optimizationMode = scoring.ModeDefault
	if doc.OptimizationMode != nil && *doc.OptimizationMode == optimizationModeCostOnly {
		e.optimizationMode = scoring.ModeCostOnly
	}
	e.bestActions = deserializeActionMap(doc.BestActions)
	e.bestDeficitActions = deserializeActionMap(doc.BestDeficitActions)
	if e.bestActions == nil {
		e.bestActions = make(map[int][]action.Action)
	}
	if e.bestDeficitActions == nil {
		e.bestDeficitActions = make(map[int][]action.Action)
	}
	if e.currentActions == nil {
		e.currentActions = make(map[int][]action.Action)
	}
	if e.currentDeficitActions == nil {
		e.currentDeficitActions = make(map[int][]action.Action)
	}
	if e.replayIdx == nil {
		e.replayIdx = make(map[int]int)
	}
	return nil
}

func serializeActionMap(m map[int][]action.Action) map[string][]action.Serializable {
	out := make(map[string][]action.Serializable, len(m))
	for year, actions := range m {
		serial := make([]action.Serializable, len(actions))
		for i, a := range actions {
			serial[i] = a.ToSerializable()
		}
		out[fmt.Sprintf("%d", year)] = serial
	}
	return out
}

func deserializeActionMap(m map[string][]action.Serializable) map[int][]action.Action {
	if m == nil {
		return nil
	}
	out := make(map[int][]action.Action, len(m))
	for yearStr, serial := range m {
		var year int
		if _, err := fmt.Sscanf(yearStr, "%d", &year); err != nil {
			continue
		}
		actions := make([]action.Action, 0, len(serial))
		for _, s := range serial {
			a, ok := action.FromSerializable(s)
			if !ok {
				continue
			}
			actions = append(actions, a)
		}
		out[year] = actions
	}
	return out
}
