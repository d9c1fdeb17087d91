package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/store"
)

const defaultDisableReason = "Job description too large (likely scraped entire webpage)"

var disableReason string

var disableCmd = &cobra.Command{
	Use:   "disable <record-id>",
	Short: "Mark a stored record as failed so it is not classified again",
	Long: `Replaces the record's scraped text with the reason and marks the scrape as
failed with EXCESSIVE_CONTENT. The record stays in the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisable,
}

func init() {
	disableCmd.Flags().StringVar(&disableReason, "reason", defaultDisableReason, "why the record is disabled")
	rootCmd.AddCommand(disableCmd)
}

func runDisable(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	backend, release, err := openStore(cfg)
	if err != nil {
		fatal(logger, "failed to open store", err)
	}
	defer release()

	ctx := context.Background()
	st, err := store.Load(ctx, backend, logger)
	if err != nil {
		fatal(logger, "failed to load store", err)
	}

	id := args[0]
	rec, ok := st.Get(id)
	if !ok {
		fatal(logger, "cannot disable record", &model.UnknownRecordError{ID: id})
	}

	before := 0
	d := model.Details{}
	if rec.Details != nil {
		before = len([]rune(rec.Details.Text))
		d.URL = rec.Details.URL
	}
	d.Text = disableReason
	d.Success = false
	d.Warning = model.WarningExcessiveContent
	d.Error = disableReason
	d.ScrapedAt = time.Now().UTC()

	if err := st.ApplyEnrichment(id, d); err != nil {
		fatal(logger, "cannot disable record", err)
	}
	if err := st.Save(ctx); err != nil {
		fatal(logger, "failed to save store", err)
	}

	fmt.Printf("Disabled [%s] %s\n", id, rec.Title)
	fmt.Printf("  Original text length: %d chars\n", before)
	fmt.Printf("  Reason: %s\n", disableReason)
	fmt.Printf("  Total jobs in store: %d (unchanged)\n", st.Len())
	return nil
}
