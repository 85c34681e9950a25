package coordinator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/world"
)

func testWorld() world.World {
	return world.NewWithStaticData(world.StaticData{Settlements: []world.Settlement{
		{ID: "city-1", Population: 500_000, PerCapitaDemandKW: 1.0},
	}}, false)
}

func TestRunCompletesAllIterationsAndRecordsBest(t *testing.T) {
	root := t.TempDir()
	store := persistence.NewFileStore()

	c := New(store, testWorld(), Config{
		Iterations:         6,
		Parallelism:        2,
		CheckpointRoot:     root,
		CheckpointInterval: 2,
		ProgressInterval:   1,
		Seed:               123,
		OptimizationMode:   scoring.ModeDefault,
	})

	summary, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, summary.Completed)
	require.NotNil(t, summary.BestMetrics)
	require.DirExists(t, summary.RunDir)
	require.NotEmpty(t, c.BestActions())
}

func TestRunReportsProgressCallback(t *testing.T) {
	root := t.TempDir()
	store := persistence.NewFileStore()

	c := New(store, testWorld(), Config{
		Iterations:         4,
		Parallelism:        1,
		CheckpointRoot:     root,
		CheckpointInterval: 100,
		ProgressInterval:   1,
		Seed:               7,
	})

	collector := &progressCollector{}
	c.OnProgress(collector.add)

	_, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, collector.snapshot())
}

func TestRunContinuesFromCheckpoint(t *testing.T) {
	root := t.TempDir()
	store := persistence.NewFileStore()

	first := New(store, testWorld(), Config{
		Iterations:         3,
		Parallelism:        1,
		CheckpointRoot:     root,
		CheckpointInterval: 1,
		ProgressInterval:   1,
		Seed:               9,
	})
	firstSummary, err := first.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, firstSummary.BestMetrics)

	second := New(store, testWorld(), Config{
		Iterations:             3,
		Parallelism:            1,
		ContinueFromCheckpoint: true,
		CheckpointRoot:         root,
		CheckpointInterval:     1,
		ProgressInterval:       1,
		Seed:                   10,
	})
	secondSummary, err := second.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, secondSummary.BestMetrics)
}

// progressCollector guards a progress slice across the coordinator's
// concurrent worker goroutines, which may all invoke the callback.
type progressCollector struct {
	mu   sync.Mutex
	data []Progress
}

func (c *progressCollector) add(p Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, p)
}

func (c *progressCollector) snapshot() []Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Progress, len(c.data))
	copy(out, c.data)
	return out
}
