package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/scoring"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsNonPositiveIterations(t *testing.T) {
	cfg := Default()
	cfg.Iterations = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Monitor.Port = 70000
	require.Error(t, cfg.Validate())
}

func TestScoringModeReflectsCostOnly(t *testing.T) {
	cfg := Default()
	require.Equal(t, scoring.ModeDefault, cfg.ScoringMode())
	cfg.CostOnly = true
	require.Equal(t, scoring.ModeCostOnly, cfg.ScoringMode())
}

func TestLoadOverridesDefaultsFromPartialYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iterations: 5000\ncost_only: true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Iterations)
	require.True(t, cfg.CostOnly)
	require.Equal(t, Default().CheckpointDir, cfg.CheckpointDir)
}
