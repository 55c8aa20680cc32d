// cmd/snapshot.go
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aceteam-ai/guardian/internal/sensors"
)

var (
	snapshotSensors  string
	snapshotDeadline time.Duration
	snapshotJSON     bool
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Collect one reading from each enabled sensor",
	Long: `Fetches every enabled sensor in parallel and prints whatever came back before
the deadline. A sensor that fails or is too slow is reported as absent; the
command itself never fails because of one.`,
	Example: `  # Sensors from the manifest
  guardian snapshot

  # Only location and device state, with a tight deadline
  guardian snapshot --sensors location,device --deadline 500ms`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		spec := a.spec
		if snapshotSensors != "" {
			kinds, err := parseKinds(snapshotSensors)
			if err != nil {
				return err
			}
			spec.Enabled = kinds
		}
		if snapshotDeadline > 0 {
			spec.Deadline = snapshotDeadline
		}

		snap := a.aggregator.Collect(cmd.Context(), spec)

		if snapshotJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		printSnapshot(cmd.OutOrStdout(), snap)
		return nil
	},
}

// printSnapshot renders a snapshot as a table, one row per kind.
func printSnapshot(out io.Writer, snap *sensors.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "--- Snapshot (%s) ---\n", snap.CapturedAt.Local().Format("2006-01-02 15:04:05"))
	for _, k := range sensors.AllKinds() {
		label := labelColor.Sprint(string(k))
		if absence, ok := snap.Absent[k]; ok {
			fmt.Fprintf(w, "  %s:\t%s\n", label, absenceLabel(absence))
			continue
		}
		fmt.Fprintf(w, "  %s:\t%s\n", label, goodColor.Sprint(describeReading(snap, k)))
	}
	fmt.Fprintf(w, "\n  %s:\t%s\n", labelColor.Sprint("Summary"), snap.Summary())
}

// describeReading renders the present field for k.
func describeReading(snap *sensors.Snapshot, k sensors.Kind) string {
	switch k {
	case sensors.KindLocation:
		l := snap.Location
		return fmt.Sprintf("%.5f, %.5f (±%.0fm)", l.Latitude, l.Longitude, l.AccuracyMeters)
	case sensors.KindActivity:
		return snap.Activity.Type
	case sensors.KindHealth:
		h := snap.Health
		return fmt.Sprintf("%.0f bpm, %d steps", h.HeartRateBPM, h.StepsToday)
	case sensors.KindDeviceState:
		d := snap.DeviceState
		return fmt.Sprintf("cpu %.1f%%, mem %.1f/%.1f GB, disk %.0f%%", d.CPUPercent, d.MemoryUsedGB, d.MemoryTotalGB, d.DiskPercent)
	}
	return ""
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotSensors, "sensors", "", "Comma separated kinds to collect, or 'all' (default from manifest)")
	snapshotCmd.Flags().DurationVar(&snapshotDeadline, "deadline", 0, "Overall deadline (default from manifest)")
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
	rootCmd.AddCommand(snapshotCmd)
}
