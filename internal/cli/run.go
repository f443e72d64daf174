package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maxdollinger/fireside/pkg/specfile"
)

var readyTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run <spec.yaml>",
	Short: "Start and boot a microVM from a spec file",
	Long: `Loads the spec, starts the firecracker process, waits for the API
to answer, boots the guest and blocks until SIGINT/SIGTERM, then stops the
microVM and removes its host artifacts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		machine, err := specfile.Load(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if err := machine.Start(ctx); err != nil {
			return err
		}
		if machine.SocketPath() != "" {
			if err := machine.WaitReady(ctx, readyTimeout); err != nil {
				_ = machine.Stop(ctx)
				return fmt.Errorf("api not ready: %w", err)
			}
		}
		for _, re := range machine.Errors() {
			logger.Warn("resource not applied", "resource", re.Resource, "error", re.Err)
		}
		if err := machine.Boot(ctx); err != nil {
			_ = machine.Stop(ctx)
			return err
		}
		logger.Info("microvm running", "id", machine.ID(), "pid", machine.PID(), "socket", machine.SocketPath())

		sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-sigCtx.Done()

		logger.Info("stopping microvm", "id", machine.ID())
		return machine.Stop(context.Background())
	},
}

func init() {
	runCmd.Flags().DurationVar(&readyTimeout, "ready-timeout", 5*time.Second, "how long to wait for the API socket to answer")
}
