// cmd/monitor.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var monitorPrintEvery time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Stream sensors continuously and print the latest snapshot",
	Long: `Starts streaming on every enabled sensor and refreshes the snapshot on the
manifest's interval until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.aggregator.StartContinuous(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		headerColor.Fprintf(out, "--- Monitoring %d sensor(s), Ctrl-C to stop ---\n", len(a.spec.Enabled))

		return printLoop(ctx, monitorPrintEvery, func() {
			if snap := a.aggregator.Last(); snap != nil {
				fmt.Fprintf(out, "[%s] %s\n", snap.CapturedAt.Local().Format("15:04:05"), snap.Summary())
			}
		})
	},
}

// printLoop calls fn every interval until ctx is done.
func printLoop(ctx context.Context, interval time.Duration, fn func()) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n--- Monitoring stopped ---")
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorPrintEvery, "print-every", 5*time.Second, "How often to print the latest snapshot")
	rootCmd.AddCommand(monitorCmd)
}
