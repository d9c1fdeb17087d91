package model

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// JobRecord is a job posting as kept in the record store. ID is the identity
// key; ModificationToken is only ever compared for equality.
type JobRecord struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Employer          string      `json:"employer"`
	Location          string      `json:"location"`
	ModificationToken string      `json:"modification_token,omitempty"`
	PublicationDate   string      `json:"publication_date,omitempty"`
	ExternalURL       string      `json:"external_url,omitempty"`
	Source            string      `json:"source,omitempty"`
	Details           *Details    `json:"details,omitempty"`
	Provenance        []SearchRef `json:"provenance,omitempty"`
	FirstSeen         time.Time   `json:"first_seen"`
	LastSeen          time.Time   `json:"last_seen"`
}

// Scrape warning codes stored in Details.Warning.
const (
	WarningJSRequired       = "JS_REQUIRED"
	WarningTooShort         = "TOO_SHORT"
	WarningTimeout          = "TIMEOUT"
	WarningNoContent        = "NO_CONTENT"
	WarningException        = "EXCEPTION"
	WarningExcessiveContent = "EXCESSIVE_CONTENT"
)

// Details is the enrichment payload attached after scraping. A failed scrape
// still produces Details, with Success false and Warning set.
type Details struct {
	Text      string    `json:"text"`
	URL       string    `json:"url,omitempty"`
	Success   bool      `json:"success"`
	Warning   string    `json:"warning,omitempty"`
	Error     string    `json:"error,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// ArbeitsagenturDetailURL is the public detail page of a listing without an
// external URL.
const ArbeitsagenturDetailURL = "https://www.arbeitsagentur.de/jobsuche/jobdetail/%s"

// ViewURL is the page a reader should open for the record: the employer's
// page when known, else the Arbeitsagentur detail page.
func (r JobRecord) ViewURL() string {
	if r.ExternalURL != "" {
		return r.ExternalURL
	}
	if r.Details != nil && r.Details.URL != "" {
		return r.Details.URL
	}
	return fmt.Sprintf(ArbeitsagenturDetailURL, url.PathEscape(r.ID))
}

// Identity returns the identity key.
func (r JobRecord) Identity() string { return r.ID }

// Scraped reports whether the record has ever been successfully enriched.
func (r JobRecord) Scraped() bool {
	return r.Details != nil && r.Details.Success && r.Details.Text != ""
}

// SearchRef identifies a search query that produced a record.
type SearchRef struct {
	Query      string    `json:"query"`
	Location   string    `json:"location,omitempty"`
	FirstMatch time.Time `json:"first_match"`
}

// Key is the provenance identity of the ref.
func (s SearchRef) Key() string {
	return s.Query + "\x00" + s.Location
}

// HasProvenance reports whether ref's query is already recorded.
func (r JobRecord) HasProvenance(ref SearchRef) bool {
	for _, p := range r.Provenance {
		if p.Key() == ref.Key() {
			return true
		}
	}
	return false
}

// AddProvenance merges refs into the record's provenance set, keeping the
// earliest FirstMatch for refs already present.
func (r *JobRecord) AddProvenance(refs ...SearchRef) {
	for _, ref := range refs {
		found := false
		for i, p := range r.Provenance {
			if p.Key() != ref.Key() {
				continue
			}
			found = true
			if !ref.FirstMatch.IsZero() && (p.FirstMatch.IsZero() || ref.FirstMatch.Before(p.FirstMatch)) {
				r.Provenance[i].FirstMatch = ref.FirstMatch
			}
			break
		}
		if !found {
			r.Provenance = append(r.Provenance, ref)
		}
	}
}

// Clone returns a deep copy of the record.
func (r JobRecord) Clone() JobRecord {
	c := r
	if r.Details != nil {
		d := *r.Details
		c.Details = &d
	}
	if r.Provenance != nil {
		c.Provenance = append([]SearchRef(nil), r.Provenance...)
	}
	return c
}

// ClassifiedJob is a record together with the labels the classifier assigned.
type ClassifiedJob struct {
	JobRecord
	Categories     []string `json:"categories"`
	WasTruncated   bool     `json:"was_truncated,omitempty"`
	OriginalLength int      `json:"original_length,omitempty"`
}

// HasCategory reports whether any of labels was assigned.
func (c ClassifiedJob) HasCategory(labels ...string) bool {
	for _, have := range c.Categories {
		for _, want := range labels {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ListingFetcher supplies raw listings for a query. WindowDays of zero means
// no publication window.
type ListingFetcher interface {
	FetchListings(ctx context.Context, q Query) ([]JobRecord, error)
}

// DetailScraper enriches a record. Failures are reported inside Details, so a
// non-nil error means the scrape could not even be attempted.
type DetailScraper interface {
	Scrape(ctx context.Context, rec JobRecord) (Details, error)
}

// BatchClassifier classifies one batch. The result has exactly one entry per
// input record, in input order, or the call fails.
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, batch []JobRecord) ([]ClassifiedJob, error)
}

// Notifier delivers the matched jobs of a finished run.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, jobs []ClassifiedJob) error
}

// ListingFilter decides whether a fetched listing is kept.
type ListingFilter interface {
	Match(rec JobRecord) bool
}
