package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List all sessions",
	Long:  "Prints a table of all sessions with their status and origin.",
	RunE:  runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	infos, err := newWorkspace(cfg, logger).List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list sessions: %v\n", err)
		os.Exit(1)
	}
	if len(infos) == 0 {
		fmt.Printf("No sessions in %s\n", cfg.Sessions.Root)
		return nil
	}

	fmt.Printf("%-16s %-12s %-7s %-15s %6s  %s\n", "Session", "Status", "Origin", "Workflow", "Jobs", "Search")
	fmt.Println(strings.Repeat("─", 80))

	counts := map[string]int{}
	for _, s := range infos {
		search := s.Query
		if s.Location != "" {
			search += " @ " + s.Location
		}
		fmt.Printf("%-16s %-12s %-7s %-15s %6d  %s\n", s.ID, s.Status, s.Origin, s.Workflow, s.Items, search)
		counts[string(s.Status)]++
	}

	fmt.Printf("\nTotal: %d sessions (%d completed, %d in progress, %d pending)\n",
		len(infos), counts["completed"], counts["in_progress"], counts["pending"])
	return nil
}
