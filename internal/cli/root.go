// Package cli implements the dayplanner command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dayplanner",
	Short: "dayplanner: a task planner that reschedules what you miss",
	Long: `dayplanner keeps your task list and finds a new slot for every task
you miss, scoring free time by priority, category and your own history.

Run 'dayplanner serve' for the HTTP API and background sweeps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var userFlag string

func init() {
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", envOr("DAYPLANNER_USER", "local"),
		"User id the command acts for")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
