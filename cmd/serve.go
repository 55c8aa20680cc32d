// cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aceteam-ai/guardian/internal/status"
	"github.com/aceteam-ai/guardian/internal/usage"
)

var (
	servePort      int
	serveNoMonitor bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status server, sensor monitoring and usage sync",
	Long: `Runs until interrupted:
  - an HTTP server exposing /health, /snapshot, /usage and /sources
  - continuous sensor monitoring (unless --no-monitor)
  - a usage syncer publishing the ledger to Redis (when both are configured)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port := cfg.StatusPort
		if servePort != 0 {
			port = servePort
		}

		serverCfg := status.ServerConfig{
			Port:    port,
			Version: Version,
			Spec:    a.spec,
			Sources: cfg.Descriptors(),
		}
		if a.store != nil {
			serverCfg.Totals = a.store
		}
		server := status.NewServer(serverCfg, a.aggregator, a.counter)

		if !serveNoMonitor {
			if err := a.aggregator.StartContinuous(ctx); err != nil {
				return err
			}
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return server.Start(gctx)
		})

		if a.store != nil {
			pub, err := newPublisher(ctx)
			if err != nil {
				logger.Warn("usage sync disabled", "error", err)
			} else if pub != nil {
				defer pub.Close()
				syncer := usage.NewSyncer(usage.SyncerConfig{
					Store:       a.store,
					PublishFn:   pub.Publish,
					Interval:    time.Duration(cfg.Usage.SyncIntervalSeconds) * time.Second,
					SettleAfter: 30 * time.Second,
					LogFn:       logger.LogFn("component", "usage-sync"),
				})
				g.Go(func() error {
					if err := syncer.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}
		}

		headerColor.Printf("--- Guardian %s serving on :%d ---\n", Version, port)
		fmt.Printf("   - Archetypes: %v\n", a.registry.Names())
		fmt.Printf("   - Monitoring: %v\n", !serveNoMonitor)

		err = g.Wait()
		a.aggregator.Stop()
		fmt.Println("--- Guardian shutdown complete ---")
		return err
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from manifest)")
	serveCmd.Flags().BoolVar(&serveNoMonitor, "no-monitor", false, "Do not run continuous sensor monitoring")
	rootCmd.AddCommand(serveCmd)
}
