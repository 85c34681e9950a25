package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quietgrid/gridopt/internal/coordinator"
	"github.com/quietgrid/gridopt/internal/httpmon"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/world"
)

// newMonitorCmd starts a monitoring server attached to a no-op coordinator
// for operators who only want to poll an already-running checkpoint
// directory's /best and /progress endpoints without driving a run
// themselves.
func newMonitorCmd() *cobra.Command {
	var host string
	var port int
	var checkpointDir string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Start a read-only monitoring HTTP server against a checkpoint directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := persistence.NewFileStore()
			baseWorld := world.NewWithStaticData(world.DefaultStaticData(), false)
			coord := coordinator.New(store, baseWorld, coordinator.Config{
				Iterations:             0,
				ContinueFromCheckpoint: true,
				CheckpointRoot:         checkpointDir,
				CheckpointInterval:     1,
				ProgressInterval:       1,
			})
			if err := coord.LoadForMonitoring(); err != nil {
				return fmt.Errorf("load checkpoint for monitoring: %w", err)
			}

			cfg := httpmon.DefaultConfig()
			cfg.Host = host
			cfg.Port = port
			srv, err := httpmon.New(cfg, coord)
			if err != nil {
				return fmt.Errorf("start monitor server: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Info().Str("host", host).Int("port", port).Msg("gridopt: monitor server listening")
			return srv.Start()
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host to bind the monitoring server to")
	cmd.Flags().IntVar(&port, "port", 8080, "Port to bind the monitoring server to")
	cmd.Flags().StringVar(&checkpointDir, "checkpoint-dir", "./checkpoints", "Checkpoint root directory to report on")
	return cmd
}
