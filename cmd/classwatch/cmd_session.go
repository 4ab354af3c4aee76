package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/classwatch/internal/state"
	"github.com/user/classwatch/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionTailCmd)
	sessionTailCmd.Flags().Int("limit", 20, "number of entries to show")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect journaled sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		journal := state.NewJournal(cfg.DataDir)

		ids, err := journal.Sessions()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tEVENTS")
		for _, id := range ids {
			count, err := journal.Count(id)
			if err != nil {
				count = 0
			}
			fmt.Fprintf(w, "%s\t%d\n", id, count)
		}
		return w.Flush()
	},
}

var sessionTailCmd = &cobra.Command{
	Use:   "tail <session-id>",
	Short: "Show the most recent events of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		journal := state.NewJournal(cfg.DataDir)
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := journal.Tail(types.SessionID(args[0]), limit)
		if err != nil {
			return fmt.Errorf("tail session: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No events found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tAT\tKIND\tSTATE\tSTUDENT")
		for _, e := range entries {
			kind := e.Event.Type
			if kind == "" {
				kind = "inference"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.Seq, e.At.Format("15:04:05"), kind, e.Event.State, e.Event.StudentID)
		}
		return w.Flush()
	},
}
