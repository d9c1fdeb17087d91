package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/classify"
)

var brainstormOpts struct {
	cv         string
	motivation string
	output     string
	model      string
	provider   string
}

var brainstormCmd = &cobra.Command{
	Use:   "brainstorm",
	Short: "Suggest job titles to search for, based on a CV",
	Long: `Asks the LLM for job titles (Berufsbezeichnungen) that match a CV and an
optional description of what motivates you. Use the suggestions with
jobsync run --was. Nothing is fetched or classified.`,
	RunE: runBrainstorm,
}

func init() {
	f := brainstormCmd.Flags()
	f.StringVar(&brainstormOpts.cv, "cv", "", "CV text file (default: classification.cv_file)")
	f.StringVar(&brainstormOpts.motivation, "motivation", "", "what motivates you, inline or a file path")
	f.StringVarP(&brainstormOpts.output, "output", "o", "", "also write the suggestions as markdown to this file")
	f.StringVar(&brainstormOpts.model, "model", "", "LLM model")
	f.StringVar(&brainstormOpts.provider, "provider", "", "openrouter, openai or gemini")
	rootCmd.AddCommand(brainstormCmd)
}

func runBrainstorm(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(logger)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	setIf(&cfg.Classification.CVFile, brainstormOpts.cv)
	setIf(&cfg.LLM.Model, brainstormOpts.model)
	setIf(&cfg.LLM.Provider, brainstormOpts.provider)
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid options", err)
	}

	var cv string
	if path := cfg.Classification.CVFile; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			fatal(logger, "reading cv", err)
		}
		cv = string(data)
	}
	var motivation string
	if brainstormOpts.motivation != "" {
		motivation = classify.ReadTextArg(brainstormOpts.motivation)
	}

	ctx, stop := signalContext()
	defer stop()

	provider, closeFn, err := buildProvider(ctx, cfg.LLM, logger)
	if err != nil {
		fatal(logger, "setup failed", err)
	}
	defer closeFn()

	logger.Info("brainstorming job titles",
		"cv_chars", len(cv),
		"motivation_chars", len(motivation),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)
	suggestions, err := classify.Brainstorm(ctx, provider, cv, motivation)
	if err != nil {
		fatal(logger, "brainstorm failed", err)
	}

	report := formatSuggestions(suggestions)
	fmt.Print(report)
	if brainstormOpts.output != "" {
		if err := atomicfile.WriteFile(brainstormOpts.output, []byte(report), 0o644); err != nil {
			fatal(logger, "writing suggestions", err)
		}
		logger.Info("suggestions written", "path", brainstormOpts.output)
	}
	return nil
}

// formatSuggestions renders suggestions as markdown with a usage hint.
func formatSuggestions(suggestions []classify.Suggestion) string {
	var sb strings.Builder
	sb.WriteString("# Job Title Suggestions\n\n")
	sb.WriteString("Listings are written by employers, who name the same role in many ways.\n")
	sb.WriteString("Treat these as starting points and try several.\n\n")

	for i, s := range suggestions {
		fmt.Fprintf(&sb, "%d. **%s**", i+1, s.Title)
		if s.Confidence != "" {
			fmt.Fprintf(&sb, " (%s)", s.Confidence)
		}
		sb.WriteString("\n")
		if s.Why != "" {
			fmt.Fprintf(&sb, "   %s\n", s.Why)
		}
		if len(s.Variations) > 0 {
			fmt.Fprintf(&sb, "   Also: %s\n", strings.Join(s.Variations, ", "))
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(&sb, "\nSearch with:\n\n    jobsync run --was %q\n", suggestions[0].Title)
	}
	return sb.String()
}
