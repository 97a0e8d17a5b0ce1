package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayplanner-app/dayplanner/internal/app/tasks"
	"github.com/dayplanner-app/dayplanner/internal/daemon"
	"github.com/dayplanner-app/dayplanner/internal/domain"
)

func init() {
	taskAddCmd.Flags().StringVar(&addStart, "start", "", `Start time, "YYYY-MM-DD HH:MM" (required)`)
	taskAddCmd.Flags().DurationVarP(&addDuration, "duration", "d", time.Hour, "Task length")
	taskAddCmd.Flags().StringVarP(&addCategory, "category", "c", "", "Health, Academics, Fun, Chores or Other")
	taskAddCmd.Flags().StringVarP(&addPriority, "priority", "p", "Medium", "Low, Medium or High")
	taskAddCmd.Flags().StringVar(&addRepeat, "repeat", "", "Make a recurring template on these weekdays, e.g. mon,wed,fri")
	taskAddCmd.Flags().StringVar(&addDescription, "description", "", "Free-form notes")
	_ = taskAddCmd.MarkFlagRequired("start")

	taskListCmd.Flags().StringVar(&listStatus, "status", "", "Only tasks with this status")
	taskListCmd.Flags().StringVar(&listDay, "day", "", "Only tasks dated YYYY-MM-DD")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskDoneCmd, taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}

var (
	addStart       string
	addDuration    time.Duration
	addCategory    string
	addPriority    string
	addRepeat      string
	addDescription string

	listStatus string
	listDay    string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Add, list and complete tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	RunE:    runTaskList,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done TASK_ID",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var taskRmCmd = &cobra.Command{
	Use:     "rm TASK_ID",
	Aliases: []string{"delete"},
	Short:   "Delete a task and its notifications",
	Args:    cobra.ExactArgs(1),
	RunE:    runTaskRm,
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	loc, _ := d.Config.Location()
	start, err := parseLocalTime(addStart, loc)
	if err != nil {
		return err
	}
	task := domain.Task{
		Name:        args[0],
		Description: addDescription,
		StartTime:   start,
		EndTime:     start.Add(addDuration),
		Type:        domain.TaskOneTime,
		Category:    domain.Category(addCategory),
		Priority:    domain.Priority(addPriority),
	}
	if addRepeat != "" {
		days, err := parseWeekdays(addRepeat)
		if err != nil {
			return err
		}
		task.Type = domain.TaskRecurring
		task.RecurrenceRule = days
	}

	created, err := d.Tasks.Create(cmd.Context(), userFlag, task)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s %q at %s\n",
		created.ID, created.Name, created.StartTime.In(loc).Format("Mon Jan 2 15:04"))
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	loc, _ := d.Config.Location()
	opts := tasks.ListOptions{Status: domain.TaskStatus(listStatus)}
	if listDay != "" {
		day, err := time.ParseInLocation(time.DateOnly, listDay, loc)
		if err != nil {
			return fmt.Errorf("invalid --day: %w", err)
		}
		opts.From, opts.To = day, day.AddDate(0, 0, 1)
	}

	list, err := d.Tasks.List(cmd.Context(), userFlag, opts)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks. Run 'dayplanner task add' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTART\tEND\tSTATUS\tPRIORITY\tCATEGORY")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Name,
			formatClock(t.StartTime, loc, "2006-01-02 15:04"),
			formatClock(t.EndTime, loc, "15:04"),
			t.Status, t.Priority, t.Category,
		)
	}
	return w.Flush()
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	t, err := d.Tasks.Complete(cmd.Context(), userFlag, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %q\n", t.Name)
	return nil
}

func runTaskRm(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(cmd.Context())
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Tasks.Delete(cmd.Context(), userFlag, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
