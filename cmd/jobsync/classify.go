package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	classifyOpts  runFlags
	classifyInput string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify job records from a JSON file into a new session",
	Long: `Reads a JSON array of job records (or a session directory, using its
snapshot) and classifies it in a new session without touching the store.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyInput, "input", "i", "", "JSON file of job records or a session directory")
	classifyCmd.MarkFlagRequired("input")
	addClassifyFlags(classifyCmd, &classifyOpts)
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	classifyOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid options", err)
	}

	ctx, stop := signalContext()
	defer stop()

	r, err := newRunner(ctx, cfg, &classifyOpts, false, true)
	if err != nil {
		fatal(logger, "setup failed", err)
	}

	res, err := r.ClassifyOnly(ctx, classifyInput, classifyOpts.options(cfg))
	r.cleanup(err)
	if err != nil {
		reportBatchFailure(err)
		logger.Error("classify failed", "input", classifyInput, "error", err)
		os.Exit(1)
	}
	printResult(res)
	return nil
}
