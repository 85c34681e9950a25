package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quietgrid/gridopt/internal/learning"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/scoring"
)

// newCheckpointCmd inspects the on-disk checkpoint tree directly, without
// starting a coordinator.
func newCheckpointCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect gridopt's on-disk checkpoint tree",
	}
	cmd.AddCommand(newCheckpointListCmd())
	cmd.AddCommand(newCheckpointShowCmd())
	return cmd
}

func newCheckpointListCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run directories under the checkpoint root, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := os.ReadDir(root)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("(no checkpoint root found)")
					return nil
				}
				return fmt.Errorf("read checkpoint root %q: %w", root, err)
			}
			var dirs []string
			for _, e := range entries {
				if e.IsDir() {
					dirs = append(dirs, e.Name())
				}
			}
			sort.Strings(dirs)
			for _, d := range dirs {
				fmt.Println(d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "checkpoint-dir", "./checkpoints", "Checkpoint root directory")
	return cmd
}

func newCheckpointShowCmd() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "show [run-dir]",
		Short: "Print the best-known strategy from a run directory (defaults to the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := persistence.NewFileStore()

			runDir := ""
			if len(args) == 1 {
				runDir = filepath.Join(root, args[0])
			} else {
				latest, err := store.LatestRunDir(root)
				if err != nil {
					return fmt.Errorf("find latest run dir: %w", err)
				}
				if latest == "" {
					fmt.Println("(no checkpoints found)")
					return nil
				}
				runDir = latest
			}

			path := filepath.Join(runDir, "best_weights.json")
			eng := learning.New()
			if err := store.ReadJSON(path, eng); err != nil {
				return fmt.Errorf("read %q: %w", path, err)
			}

			best := eng.BestMetrics()
			if best == nil {
				fmt.Println("(this run has no recorded best strategy)")
				return nil
			}
			fmt.Printf("run:                 %s\n", runDir)
			fmt.Printf("best score:          %.4f\n", scoring.Score(*best, eng.OptimizationMode()))
			fmt.Printf("final_net_emissions: %.2f\n", best.FinalNetEmissions)
			fmt.Printf("total_cost:          %.2f\n", best.TotalCost)
			fmt.Printf("average_opinion:     %.4f\n", best.AveragePublicOpinion)
			fmt.Printf("power_reliability:   %.4f\n", best.PowerReliability)
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "checkpoint-dir", "./checkpoints", "Checkpoint root directory")
	return cmd
}
