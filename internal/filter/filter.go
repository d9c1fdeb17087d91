package filter

import (
	"strings"

	"github.com/amishk599/jobsync/internal/model"
)

// DefaultExcludeKeywords drops training positions unless asked for.
var DefaultExcludeKeywords = []string{"weiterbildung", "ausbildung"}

// TitleAndLocationFilter matches jobs whose title contains any of the title
// keywords and whose location contains any of the location keywords.
// Matching is case-insensitive. Empty keyword lists are treated as "match all".
type TitleAndLocationFilter struct {
	titleKeywords []string
	locations     []string
}

// NewTitleAndLocationFilter returns a filter that requires both a title keyword
// match and a location keyword match (case-insensitive substring).
func NewTitleAndLocationFilter(titleKeywords []string, locations []string) *TitleAndLocationFilter {
	return &TitleAndLocationFilter{
		titleKeywords: titleKeywords,
		locations:     locations,
	}
}

// Match returns true if the job's title contains any title keyword and the
// job's location contains any location keyword. Empty keyword lists pass all.
func (f *TitleAndLocationFilter) Match(job model.JobRecord) bool {
	if len(f.titleKeywords) > 0 && !containsAny(job.Title, f.titleKeywords) {
		return false
	}
	if len(f.locations) > 0 && !containsAny(job.Location, f.locations) {
		return false
	}
	return true
}

// ExcludeFilter drops jobs whose title contains any of the keywords.
type ExcludeFilter struct {
	keywords []string
}

func NewExcludeFilter(keywords []string) *ExcludeFilter {
	return &ExcludeFilter{keywords: keywords}
}

func (f *ExcludeFilter) Match(job model.JobRecord) bool {
	return len(f.keywords) == 0 || !containsAny(job.Title, f.keywords)
}

// All matches when every filter matches.
type All []model.ListingFilter

func (a All) Match(job model.JobRecord) bool {
	for _, f := range a {
		if !f.Match(job) {
			return false
		}
	}
	return true
}

// Apply returns the jobs f matches, in order, and how many were dropped.
func Apply(f model.ListingFilter, jobs []model.JobRecord) ([]model.JobRecord, int) {
	out := make([]model.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		if f.Match(j) {
			out = append(out, j)
		}
	}
	return out, len(jobs) - len(out)
}

func containsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
