package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
	"github.com/dayplanner-app/dayplanner/internal/app/scoring"
	"github.com/dayplanner-app/dayplanner/internal/daemon"
)

func init() {
	rescheduleCmd.Flags().StringVarP(&rescheduleStrategy, "strategy", "s", "",
		"Scoring strategy: heuristic or weighted (default from config)")
	rootCmd.AddCommand(rescheduleCmd)
}

var rescheduleStrategy string

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule TASK_ID...",
	Short: "Move tasks into the best free slot of the coming days",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReschedule,
}

func runReschedule(cmd *cobra.Command, args []string) error {
	var strategy scoring.Strategy
	if rescheduleStrategy != "" {
		st, err := scoring.Lookup(rescheduleStrategy)
		if err != nil {
			return err
		}
		strategy = st
	}

	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	loc, _ := d.Config.Location()
	out := cmd.OutOrStdout()
	for _, id := range args {
		var res reschedule.Result
		task, err := d.Tasks.Get(cmd.Context(), userFlag, id)
		if err != nil {
			res = reschedule.Result{TaskID: id, Message: err.Error(), Reason: reschedule.ReasonNotFound}
		} else {
			res = d.Reschedule.RescheduleWith(cmd.Context(), task, strategy)
		}
		fmt.Fprintln(out, formatResult(res, loc))
	}
	return nil
}
