package coordinator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/internal/learning"
)

// resolveEngine builds the coordinator's starting shared engine: a fresh
// one, or — when ContinueFromCheckpoint is set — the latest run's
// latest_weights.json deep-merged with every thread_*_weights.json found
// alongside it, in sorted filename order, preserving whichever best_*
// snapshot scores highest.
func (c *Coordinator) resolveEngine() error {
	eng := learning.New()
	eng.SetOptimizationMode(c.cfg.OptimizationMode)

	if !c.cfg.ContinueFromCheckpoint {
		c.engine = eng
		return nil
	}

	latest, err := c.store.LatestRunDir(c.cfg.CheckpointRoot)
	if err != nil {
		return fmt.Errorf("find latest run dir: %w", err)
	}
	if latest == "" {
		log.Info().Msg("coordinator: no prior checkpoint found, starting fresh")
		c.engine = eng
		return nil
	}

	latestWeightsPath := filepath.Join(latest, "latest_weights.json")
	var raw json.RawMessage
	if err := c.store.ReadJSON(latestWeightsPath, &raw); err != nil {
		log.Warn().Err(err).Str("path", latestWeightsPath).Msg("coordinator: could not read latest_weights.json, starting fresh")
		c.engine = eng
		return nil
	}
	if err := json.Unmarshal(raw, eng); err != nil {
		log.Warn().Err(err).Msg("coordinator: could not decode latest_weights.json, starting fresh")
		c.engine = learning.New()
		c.engine.SetOptimizationMode(c.cfg.OptimizationMode)
		return nil
	}

	threadFiles, err := c.store.ThreadWeightFiles(latest)
	if err != nil {
		return fmt.Errorf("list thread weight files: %w", err)
	}
	for _, path := range threadFiles {
		threadEngine := learning.New()
		var threadRaw json.RawMessage
		if err := c.store.ReadJSON(path, &threadRaw); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("coordinator: skipping unreadable thread checkpoint")
			continue
		}
		if err := json.Unmarshal(threadRaw, threadEngine); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("coordinator: skipping malformed thread checkpoint")
			continue
		}
		eng.MergeWeightsFrom(threadEngine)
		eng.AdoptBestFrom(threadEngine)
	}

	c.engine = eng
	log.Info().Str("resumed_from", latest).Int("thread_files", len(threadFiles)).Msg("coordinator: resumed from checkpoint")
	return nil
}

// writeCheckpoint persists the shared engine's state to
// latest_weights.json (and best_weights.json once a best exists) plus the
// current iteration count to checkpoint_iteration.txt. The whole write
// sequence runs through checkpointBreaker so a broken checkpoint
// directory (disk full, permission loss) trips the breaker instead of
// every periodic interval retrying the same failing write.
func (c *Coordinator) writeCheckpoint() error {
	_, err := c.checkpointBreaker.Execute(func() (any, error) {
		if err := c.store.WriteJSON(filepath.Join(c.runDir, "latest_weights.json"), c.engine); err != nil {
			return nil, fmt.Errorf("write latest_weights.json: %w", err)
		}
		if best := c.engine.BestMetrics(); best != nil {
			if err := c.store.WriteJSON(filepath.Join(c.runDir, "best_weights.json"), c.engine); err != nil {
				return nil, fmt.Errorf("write best_weights.json: %w", err)
			}
		}
		completed := int(atomic.LoadInt64(&c.completed))
		if err := c.store.WriteIterationMarker(c.runDir, completed); err != nil {
			return nil, fmt.Errorf("write checkpoint_iteration.txt: %w", err)
		}
		return nil, nil
	})
	return err
}
