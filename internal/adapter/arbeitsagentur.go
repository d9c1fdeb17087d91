package adapter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

const (
	DefaultArbeitsagenturURL = "https://rest.arbeitsagentur.de/jobboerse/jobsuche-service"
	DefaultArbeitsagenturKey = "jobboerse-jobsuche"

	SourceArbeitsagentur = "arbeitsagentur"
)

type aaListing struct {
	Refnr       string `json:"refnr"`
	Beruf       string `json:"beruf"`
	Titel       string `json:"titel"`
	Arbeitgeber string `json:"arbeitgeber"`
	Arbeitsort  struct {
		Ort    string `json:"ort"`
		PLZ    string `json:"plz"`
		Region string `json:"region"`
	} `json:"arbeitsort"`
	ModifikationsTimestamp          string `json:"modifikationsTimestamp"`
	AktuelleVeroeffentlichungsdatum string `json:"aktuelleVeroeffentlichungsdatum"`
	ExterneURL                      string `json:"externeUrl"`
}

type aaResponse struct {
	Stellenangebote []aaListing `json:"stellenangebote"`
	MaxErgebnisse   flexInt     `json:"maxErgebnisse"`
}

// flexInt accepts both 150 and "150"; the API has sent either.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("maxErgebnisse: %w", err)
	}
	*n = flexInt(v)
	return nil
}

// Arbeitsagentur fetches listings from the Bundesagentur für Arbeit job search
// API, page by page.
type Arbeitsagentur struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewArbeitsagentur creates the listings client. Empty baseURL or apiKey fall
// back to the public defaults.
func NewArbeitsagentur(baseURL, apiKey string, client *http.Client, logger *slog.Logger) *Arbeitsagentur {
	if baseURL == "" {
		baseURL = DefaultArbeitsagenturURL
	}
	if apiKey == "" {
		apiKey = DefaultArbeitsagenturKey
	}
	return &Arbeitsagentur{baseURL: baseURL, apiKey: apiKey, client: client, logger: logger}
}

func (a *Arbeitsagentur) Name() string { return SourceArbeitsagentur }

// FetchListings pages through the search until a page comes back empty,
// maxErgebnisse is reached or q.MaxPages pages were read.
func (a *Arbeitsagentur) FetchListings(ctx context.Context, q model.Query) ([]model.JobRecord, error) {
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	header := http.Header{"X-API-Key": {a.apiKey}}
	ref := q.Ref()

	var out []model.JobRecord
	fetched := 0
	for page := 1; page <= maxPages; page++ {
		var resp aaResponse
		if err := getJSON(ctx, a.client, a.pageURL(q, page), header, &resp); err != nil {
			return nil, fmt.Errorf("arbeitsagentur page %d for %q: %w", page, q.Was, err)
		}
		if len(resp.Stellenangebote) == 0 {
			break
		}
		for _, l := range resp.Stellenangebote {
			if l.Refnr == "" {
				a.logger.Warn("skipping listing without refnr", "title", l.Beruf)
				continue
			}
			out = append(out, toRecord(l, ref))
		}
		fetched += len(resp.Stellenangebote)

		a.logger.Debug("fetched listings page",
			"page", page,
			"listings", len(resp.Stellenangebote),
			"total", int(resp.MaxErgebnisse),
		)
		if fetched >= int(resp.MaxErgebnisse) {
			break
		}
	}
	return out, nil
}

func (a *Arbeitsagentur) pageURL(q model.Query, page int) string {
	v := url.Values{}
	v.Set("angebotsart", "1")
	v.Set("page", strconv.Itoa(page))
	v.Set("pav", "false")
	if q.PageSize > 0 {
		v.Set("size", strconv.Itoa(q.PageSize))
	}
	if q.RadiusKM > 0 {
		v.Set("umkreis", strconv.Itoa(q.RadiusKM))
	}
	v.Set("was", q.Was)
	v.Set("wo", q.Wo)
	v.Set("zeitarbeit", strconv.FormatBool(q.TempAgency))
	if q.WorkTime != "" {
		v.Set("arbeitszeit", q.WorkTime)
	}
	if q.WindowDays > 0 {
		v.Set("veroeffentlichtseit", strconv.Itoa(q.WindowDays))
	}
	return a.baseURL + "/pc/v4/jobs?" + v.Encode()
}

func toRecord(l aaListing, ref model.SearchRef) model.JobRecord {
	title := l.Beruf
	if title == "" {
		title = l.Titel
	}
	return model.JobRecord{
		ID:                l.Refnr,
		Title:             title,
		Employer:          l.Arbeitgeber,
		Location:          l.Arbeitsort.Ort,
		ModificationToken: l.ModifikationsTimestamp,
		PublicationDate:   l.AktuelleVeroeffentlichungsdatum,
		ExternalURL:       l.ExterneURL,
		Source:            SourceArbeitsagentur,
		Provenance:        []model.SearchRef{ref},
	}
}

// parseDate understands the date shapes the sources use.
func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
