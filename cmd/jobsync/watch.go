package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/scheduler"
)

var (
	watchOpts     runFlags
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the sync on an interval",
	Long:  "Runs one sync immediately, then every watch.interval; blocks until SIGINT/SIGTERM.",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.DurationVar(&watchInterval, "interval", 0, "time between syncs (default: watch.interval)")
	f.StringVar(&watchOpts.was, "was", "", "job title or keywords (default: search.was)")
	f.StringVar(&watchOpts.wo, "wo", "", "location (default: search.wo)")
	f.BoolVar(&watchOpts.includeTraining, "include-training", false, "keep Weiterbildung/Ausbildung listings")
	f.BoolVar(&watchOpts.noClassify, "no-classify", false, "only keep the store in sync")
	addClassifyFlags(watchCmd, &watchOpts)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	watchOpts.apply(cfg)
	if watchInterval > 0 {
		cfg.Watch.Interval = watchInterval
	}
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid options", err)
	}

	ctx, stop := signalContext()
	defer stop()

	r, err := newRunner(ctx, cfg, &watchOpts, true, !watchOpts.noClassify)
	if err != nil {
		fatal(logger, "setup failed", err)
	}

	task := scheduler.Task{
		Name: fmt.Sprintf("sync %q", cfg.Search.Was),
		Run: func(ctx context.Context) error {
			res, err := r.Run(ctx, watchOpts.options(cfg))
			r.metrics.RunFinished(err)
			if werr := r.metrics.WriteFile(cfg.Telemetry.MetricsFile); werr != nil {
				logger.Warn("writing metrics file failed", "error", werr)
			}
			if err != nil {
				reportBatchFailure(err)
				return err
			}
			printResult(res)
			return nil
		},
	}

	sched := scheduler.NewScheduler([]scheduler.Task{task}, cfg.Watch.Interval, logger)
	err = sched.Run(ctx)
	r.cleanup(err)
	if err != nil {
		fatal(logger, "scheduler error", err)
	}

	logger.Info("goodbye")
	return nil
}
