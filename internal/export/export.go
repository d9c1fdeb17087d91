// Package export renders a finished session into files a person reads:
// CSV and XLSX spreadsheets and a plain text summary.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/atomicfile"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/scrape"
)

var csvHeader = []string{"Titel", "Ort", "Arbeitgeber", "Categories", "Veröffentlicht", "URL"}

// WriteCSV writes one row per classified job.
func WriteCSV(path string, jobs []model.ClassifiedJob) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, j := range jobs {
		row := []string{j.Title, j.Location, j.Employer, strings.Join(j.Categories, ", "), j.PublicationDate, j.ViewURL()}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", j.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

// WriteFailedCSV lists records whose scrape failed, with the warning code.
// It writes nothing and returns false when no record failed.
func WriteFailedCSV(path string, recs []model.JobRecord) (bool, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Titel", "Ort", "Arbeitgeber", "URL", "Error_Type"})

	n := 0
	for _, r := range recs {
		if r.Details == nil || r.Details.Success {
			continue
		}
		warning := r.Details.Warning
		if warning == "" {
			warning = "UNKNOWN"
		}
		_ = w.Write([]string{r.Title, r.Location, r.Employer, r.ViewURL(), warning})
		n++
	}
	if n == 0 {
		return false, nil
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return false, fmt.Errorf("flush csv: %w", err)
	}
	return true, atomicfile.WriteFile(path, buf.Bytes(), 0o644)
}

// Summary is what SUMMARY.txt reports about a session.
type Summary struct {
	SessionID         string
	Created           time.Time
	Mode              string
	Model             string
	Workflow          string
	Query             string
	Location          string
	RadiusKM          int
	ReturnOnlyMatches bool
	Classified        int // records that went through classification
	Batches           int
	Scrape            scrape.Stats
}

// LabelCount is one line of the per-label breakdown.
type LabelCount struct {
	Label string
	Count int
}

// CountLabels tallies the labels of jobs, most frequent first.
func CountLabels(jobs []model.ClassifiedJob) []LabelCount {
	counts := map[string]int{}
	for _, j := range jobs {
		for _, c := range j.Categories {
			counts[c]++
		}
	}
	out := make([]LabelCount, 0, len(counts))
	for l, c := range counts {
		out = append(out, LabelCount{Label: l, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

const rule = "===================================================================="

// RenderSummary formats the summary text.
func RenderSummary(s Summary, jobs []model.ClassifiedJob) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line(rule)
	line("JOB SEARCH SUMMARY")
	line(rule)
	line("Session:     %s (%s)", s.SessionID, s.Created.Format("2006-01-02 15:04:05"))
	if s.Mode != "" {
		line("Mode:        %s", s.Mode)
	}
	if s.Model != "" {
		line("Model:       %s", s.Model)
	}
	if s.Workflow != "" {
		line("Workflow:    %s", s.Workflow)
	}
	if s.ReturnOnlyMatches {
		line("Filter:      Return only Good/Excellent matches")
	}
	if s.Query != "" {
		line("Search:      %s", s.Query)
	}
	if s.Location != "" {
		line("Location:    %s", s.Location)
	}
	if s.RadiusKM > 0 {
		line("Radius:      %d km", s.RadiusKM)
	}

	line("")
	line(rule)
	line("RESULTS")
	line(rule)
	line("Total Jobs:           %d", s.Classified)
	if s.Scrape.Total > 0 {
		line("Successfully Scraped: %d (%s)", s.Scrape.Succeeded, percent(s.Scrape.Succeeded, s.Scrape.Total))
	}
	if s.ReturnOnlyMatches {
		line("Matches Returned:     %d (%s)", len(jobs), percent(len(jobs), s.Classified))
	} else {
		line("Classified:           %d", len(jobs))
	}
	if s.Batches > 0 {
		line("Batches:              %d", s.Batches)
	}

	if labels := CountLabels(jobs); len(labels) > 0 {
		line("")
		for _, lc := range labels {
			line("  - %-24s %3d (%s of results)", lc.Label, lc.Count, percent(lc.Count, len(jobs)))
		}
	}

	if failed := s.Scrape.Total - s.Scrape.Succeeded; failed > 0 {
		line("")
		line("Scrape failures:      %d", failed)
		warnings := make([]string, 0, len(s.Scrape.ByWarning))
		for w := range s.Scrape.ByWarning {
			warnings = append(warnings, w)
		}
		sort.Strings(warnings)
		for _, w := range warnings {
			line("  - %-24s %3d", w, s.Scrape.ByWarning[w])
		}
	}

	line("")
	line(rule)
	line("FILES")
	line(rule)
	line("classified.json   - Full data with classifications")
	line("jobs.csv          - Spreadsheet view")
	line("jobs.xlsx         - Workbook, one sheet per label")
	line("llm_log.md        - Prompts and responses")
	line(rule)
	return b.String()
}

// WriteSummary renders the summary and writes it to path.
func WriteSummary(path string, s Summary, jobs []model.ClassifiedJob) error {
	return atomicfile.WriteFile(path, []byte(RenderSummary(s, jobs)), 0o644)
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(n)/float64(total)*100)
}
