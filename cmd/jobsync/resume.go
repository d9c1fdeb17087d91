package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/pipeline"
)

var resumeOpts runFlags

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue classifying an existing session",
	Long: `Continues an interrupted classification from its last completed batch.
With --no-resume the checkpoint is discarded and the whole session is
classified again. Use "latest" for the most recent session.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	addClassifyFlags(resumeCmd, &resumeOpts)
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	sess, err := loadSession(newWorkspace(cfg, logger), args[0])
	if err != nil {
		fatal(logger, "failed to load session", err)
	}

	// Resume against the session's own workflow unless told otherwise.
	if wf := sess.Meta().Workflow; wf != "" && resumeOpts.workflow == "" {
		cfg.Classification.Workflow = wf
	}
	resumeOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid options", err)
	}

	ctx, stop := signalContext()
	defer stop()

	r, err := newRunner(ctx, cfg, &resumeOpts, false, true)
	if err != nil {
		fatal(logger, "setup failed", err)
	}

	res, err := r.Resume(ctx, sess.ID, resumeOpts.options(cfg))
	r.cleanup(err)
	if err != nil {
		reportBatchFailure(err)
		var mismatch *model.ResumeMismatchError
		switch {
		case errors.Is(err, pipeline.ErrSessionCompleted):
			fmt.Fprintf(os.Stderr, "Session %s is already classified. Use --no-resume to classify it again.\n", sess.ID)
		case errors.As(err, &mismatch):
			fmt.Fprintln(os.Stderr, mismatch.Error())
		}
		logger.Error("resume failed", "session", sess.ID, "error", err)
		os.Exit(1)
	}
	printResult(res)
	return nil
}
