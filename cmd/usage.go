// cmd/usage.go
package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usageRemote int64

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show per-provider success counts",
	Long: `Prints how many completions each provider has served, from the local usage
ledger (usage.db_path). With --remote, also lists the newest attempt records
published to Redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		headerColor.Fprintln(w, "--- Provider usage ---")
		if a.store == nil {
			fmt.Fprintf(w, "  %s\n", warnColor.Sprint("No usage ledger configured (set usage.db_path or GUARDIAN_USAGE_DB)"))
		} else {
			totals, err := a.store.Totals()
			if err != nil {
				return err
			}
			if len(totals) == 0 {
				fmt.Fprintf(w, "  (no completions recorded)\n")
			}
			for _, name := range sortedKeys(totals) {
				fmt.Fprintf(w, "  %s:\t%d\n", labelColor.Sprint(name), totals[name])
			}
		}

		if usageRemote <= 0 {
			return nil
		}

		pub, err := newPublisher(cmd.Context())
		if err != nil {
			return err
		}
		if pub == nil {
			return errors.New("--remote: redis.url is not configured")
		}
		defer pub.Close()

		records, err := pub.Recent(cmd.Context(), usageRemote)
		if err != nil {
			return err
		}
		headerColor.Fprintf(w, "\n--- Recent attempts (%s) ---\n", pub.Stream())
		for _, r := range records {
			status := goodColor.Sprint(r.Status)
			if r.ErrorMessage != "" {
				status = badColor.Sprint(r.Status)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%dms\t%s\n",
				r.StartedAt.Local().Format("01-02 15:04:05"), labelColor.Sprint(r.Source), r.Archetype, r.DurationMs, status)
		}
		return nil
	},
}

func init() {
	usageCmd.Flags().Int64Var(&usageRemote, "remote", 0, "Also show the N newest attempts published to Redis")
	rootCmd.AddCommand(usageCmd)
}
