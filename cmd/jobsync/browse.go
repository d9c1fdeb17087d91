package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/audit"
	"github.com/amishk599/jobsync/internal/session"
)

var browseCmd = &cobra.Command{
	Use:   "browse [session-id]",
	Short: "Browse sessions interactively (TUI)",
	Long:  "Shows the session picker, then the split-pane view of all and matched jobs.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBrowse,
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	// Log output before the alt-screen starts corrupts the display.
	ws := newWorkspace(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if len(args) == 1 {
		sess, err := loadSession(ws, args[0])
		if err != nil {
			fatal(logger, "failed to load session", err)
		}
		if _, err := browseSession(ws, sess.ID); err != nil {
			fatal(logger, "browse failed", err)
		}
		return nil
	}

	for {
		infos, err := ws.List()
		if err != nil {
			fatal(logger, "failed to list sessions", err)
		}
		if len(infos) == 0 {
			fmt.Printf("No sessions in %s\n", cfg.Sessions.Root)
			return nil
		}

		id, err := audit.RunSessionPicker(infos)
		if err != nil {
			fmt.Printf("Picker error: %v\n", err)
			return nil
		}
		if id == "" {
			return nil
		}

		quit, err := browseSession(ws, id)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

func browseSession(ws *session.Workspace, id string) (bool, error) {
	var data audit.Data
	err := audit.RunLoader("Loading session "+id, func(ctx context.Context) error {
		var err error
		data, err = audit.LoadSession(ws, id)
		return err
	})
	if err != nil {
		return false, err
	}
	return audit.RunBrowseTUI(data)
}
