// cmd/sources.go
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aceteam-ai/guardian/internal/status"
)

var (
	sourcesJSON    bool
	sourcesNoCheck bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured completion sources and check local runtimes",
	RunE: func(cmd *cobra.Command, args []string) error {
		descs := cfg.Descriptors()
		infos := make([]status.SourceInfo, 0, len(descs))

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		inspector := status.NewInspector()
		for _, d := range descs {
			if sourcesNoCheck {
				infos = append(infos, status.SourceInfo{
					Name: d.Name, Kind: string(d.Kind), Position: d.Position,
					Endpoint: d.Endpoint, Model: d.Model, Health: status.HealthStatusUnknown,
				})
				continue
			}
			infos = append(infos, inspector.Inspect(ctx, d))
		}

		if sourcesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()
		headerColor.Fprintln(w, "--- Sources ---")
		fmt.Fprintln(w, "  #\tNAME\tKIND\tHEALTH\tMODEL\tENDPOINT")
		for _, info := range infos {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\n",
				info.Position, info.Name, info.Kind, healthColor(info.Health).Sprint(info.Health),
				dash(info.Model), dash(info.Endpoint))
			if len(info.Models) > 0 {
				fmt.Fprintf(w, "  \t\t\tloaded:\t%s\t\n", strings.Join(info.Models, ", "))
			}
		}
		return nil
	},
}

func healthColor(health string) *color.Color {
	switch health {
	case status.HealthStatusOK:
		return goodColor
	case status.HealthStatusDegraded:
		return warnColor
	case status.HealthStatusUnhealthy:
		return badColor
	default:
		return labelColor
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "Output as JSON")
	sourcesCmd.Flags().BoolVar(&sourcesNoCheck, "no-check", false, "Skip checking local runtimes")
	rootCmd.AddCommand(sourcesCmd)
}
