package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayplanner-app/dayplanner/internal/daemon"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one detector pass now",
	Long: `Run one pass of the missed-task detector: generate today's recurring
instances, send reminders, flag tasks that just ended, and finalize and
reschedule tasks overdue past the grace period.`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	rep := d.Sweep(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(),
		"notified %d, missed %d, rescheduled %d, reminded %d, generated %d, failed %d\n",
		rep.Notified, rep.Missed, rep.Rescheduled, rep.Reminded, rep.Generated, rep.Failed)
	return nil
}
