package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/dedup"
	"github.com/amishk599/jobsync/internal/model"
)

var (
	mergeOutput  string
	mergeVerbose bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge-sessions <session-id>...",
	Short: "Merge the snapshots of several sessions into one record file",
	Long: `Combines the input snapshots of the given sessions, deduplicated by record
id. Sessions are processed in argument order and a later session's copy of a
record wins. The output can be classified with "jobsync classify --input".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged_jobs.json", "output JSON file")
	mergeCmd.Flags().BoolVarP(&mergeVerbose, "verbose", "v", false, "report duplicates per session")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	ws := newWorkspace(cfg, logger)
	sources := make([]dedup.Source[model.JobRecord], 0, len(args))
	for _, id := range args {
		sess, err := loadSession(ws, id)
		if err != nil {
			fatal(logger, "failed to load session", err)
		}
		sources = append(sources, dedup.Source[model.JobRecord]{Name: sess.ID, Items: sess.Snapshot()})
	}

	res := dedup.Merge(sources, dedup.Options{Verbose: mergeVerbose, Logger: logger})
	if len(res.Items) == 0 {
		fatal(logger, "merge failed", errors.New("no job records in any session"))
	}

	if err := atomicfile.WriteJSON(mergeOutput, res.Items); err != nil {
		fatal(logger, "failed to write merged records", err)
	}

	if mergeVerbose {
		for _, s := range res.Sources {
			fmt.Printf("  %-16s %5d jobs  %5d duplicates\n", s.Name, s.Items, s.Duplicates)
		}
	}
	fmt.Fprintf(os.Stdout, "Merged %d sessions: %d unique jobs, %d duplicates removed -> %s\n",
		len(res.Sources), len(res.Items), res.Duplicates, mergeOutput)
	return nil
}
