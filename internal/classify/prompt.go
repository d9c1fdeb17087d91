package classify

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/amishk599/jobsync/internal/model"
)

//go:embed prompts/batch.tmpl
var batchPromptRaw string

var batchTemplate = template.Must(template.New("batch").Funcs(template.FuncMap{
	"quoteJoin": quoteJoin,
}).Parse(batchPromptRaw))

func quoteJoin(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = `"` + l + `"`
	}
	return strings.Join(quoted, ", ")
}

// JobKey is the in-prompt identifier for position i of a batch.
func JobKey(i int) string {
	return fmt.Sprintf("JOB_%03d", i)
}

type promptJob struct {
	Key   string
	Title string
	Text  string
}

// Prompt is a rendered batch prompt plus what was cut to fit.
type Prompt struct {
	Text string
	// Truncated maps batch position to original text length, for jobs whose
	// text was cut to the limit.
	Truncated map[int]int
}

// BuildPrompt renders the batch prompt. Job text longer than maxChars runes
// is cut; maxChars <= 0 disables the limit.
func BuildPrompt(c Criteria, batch []model.JobRecord, maxChars int) (Prompt, error) {
	p := Prompt{Truncated: map[int]int{}}
	jobs := make([]promptJob, len(batch))
	for i, rec := range batch {
		text := jobText(rec)
		runes := []rune(text)
		if maxChars > 0 && len(runes) > maxChars {
			p.Truncated[i] = len(runes)
			text = string(runes[:maxChars])
		}
		title := rec.Title
		if title == "" {
			title = "N/A"
		}
		jobs[i] = promptJob{Key: JobKey(i), Title: title, Text: text}
	}

	var sb strings.Builder
	err := batchTemplate.Execute(&sb, struct {
		Labels   []string
		Guidance []string
		Fallback string
		Jobs     []promptJob
	}{c.Labels, c.Guidance, c.Fallback, jobs})
	if err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	p.Text = sb.String()
	return p, nil
}

// jobText is the scraped description, or the listing fields when scraping
// never succeeded.
func jobText(rec model.JobRecord) string {
	if rec.Scraped() {
		return rec.Details.Text
	}
	var parts []string
	for _, s := range []string{rec.Employer, rec.Location} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "(no description available) " + strings.Join(parts, ", ")
}
