package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/classwatch/internal/state"
)

func init() {
	rootCmd.AddCommand(timetableCmd)
	timetableCmd.AddCommand(timetableAddCmd, timetableListCmd, timetableRemoveCmd, timetableEnableCmd, timetableDisableCmd)

	timetableAddCmd.Flags().String("name", "", "window name (required)")
	timetableAddCmd.Flags().String("course", "", "course id (required)")
	timetableAddCmd.Flags().String("schedule", "", "cron schedule expression (required)")
	timetableAddCmd.Flags().Int("duration", 60, "window duration in minutes")
	_ = timetableAddCmd.MarkFlagRequired("name")
	_ = timetableAddCmd.MarkFlagRequired("course")
	_ = timetableAddCmd.MarkFlagRequired("schedule")
}

func timetableStore() *state.TimetableStore {
	cfg := loadConfig()
	return state.NewTimetableStore(filepath.Join(cfg.DataDir, "timetable.json"))
}

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Manage scheduled class windows",
}

var timetableAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a class window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		course, _ := cmd.Flags().GetString("course")
		scheduleExpr, _ := cmd.Flags().GetString("schedule")
		duration, _ := cmd.Flags().GetInt("duration")

		store := timetableStore()
		window := &state.ClassWindow{
			Name:            name,
			CourseID:        course,
			Schedule:        scheduleExpr,
			DurationMinutes: duration,
			Enabled:         true,
		}
		if err := store.Add(window); err != nil {
			return fmt.Errorf("add class window: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Class window %q added.\n", name)
		return nil
	},
}

var timetableListCmd = &cobra.Command{
	Use:   "list",
	Short: "List class windows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := timetableStore()
		windows, err := store.List()
		if err != nil {
			return fmt.Errorf("list class windows: %w", err)
		}
		if len(windows) == 0 {
			fmt.Println("No class windows found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCOURSE\tSCHEDULE\tDURATION\tENABLED")
		for _, win := range windows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%dm\t%t\n",
				win.Name, win.CourseID, win.Schedule, win.DurationMinutes, win.Enabled)
		}
		return w.Flush()
	},
}

var timetableRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a class window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := timetableStore().Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Class window %q removed.\n", args[0])
		return nil
	},
}

var timetableEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a class window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := timetableStore().SetEnabled(args[0], true); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Class window %q enabled.\n", args[0])
		return nil
	},
}

var timetableDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a class window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := timetableStore().SetEnabled(args[0], false); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Class window %q disabled.\n", args[0])
		return nil
	},
}
