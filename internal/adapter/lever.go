package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

const (
	leverBaseURL = "https://api.lever.co/v0/postings"

	SourceLever = "lever"
)

type leverCategories struct {
	Team         string   `json:"team"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Commitment   string   `json:"commitment"`
	AllLocations []string `json:"allLocations"`
}

type leverJob struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	Description      string          `json:"description"`
	DescriptionPlain string          `json:"descriptionPlain"`
	Lists            []leverList     `json:"lists"`
	Additional       string          `json:"additionalPlain"`
	Categories       leverCategories `json:"categories"`
	CreatedAt        int64           `json:"createdAt"`
	HostedURL        string          `json:"hostedUrl"`
	ApplyURL         string          `json:"applyUrl"`
}

type leverList struct {
	Text    string `json:"text"`
	Content string `json:"content"`
}

// LeverBoard reads a company's public Lever postings. Like GreenhouseBoard it
// is its own detail source.
type LeverBoard struct {
	companySlug string
	companyName string
	client      *http.Client
	now         func() time.Time
}

// NewLeverBoard creates a source for one Lever company.
func NewLeverBoard(companySlug, companyName string, client *http.Client) *LeverBoard {
	return &LeverBoard{
		companySlug: companySlug,
		companyName: companyName,
		client:      client,
		now:         time.Now,
	}
}

// Prefix starts the id of every record from this board.
func (a *LeverBoard) Prefix() string { return a.Name() + ":" }

func (a *LeverBoard) Name() string { return SourceLever + ":" + a.companySlug }

// FetchListings returns the company's postings inside the query window.
// Lever exposes no modification time, so createdAt serves as the token.
func (a *LeverBoard) FetchListings(ctx context.Context, q model.Query) ([]model.JobRecord, error) {
	url := fmt.Sprintf("%s/%s?mode=json", leverBaseURL, a.companySlug)

	var leverJobs []leverJob
	if err := getJSON(ctx, a.client, url, nil, &leverJobs); err != nil {
		return nil, fmt.Errorf("lever fetch for %s: %w", a.companySlug, err)
	}

	ref := model.SearchRef{Query: a.Name(), Location: q.Wo}
	now := a.now()
	jobs := make([]model.JobRecord, 0, len(leverJobs))
	for _, lj := range leverJobs {
		location := lj.Categories.Location
		if len(lj.Categories.AllLocations) > 0 {
			location = strings.Join(lj.Categories.AllLocations, ", ")
		}

		var created time.Time
		var token, published string
		if lj.CreatedAt > 0 {
			created = time.UnixMilli(lj.CreatedAt).UTC()
			token = strconv.FormatInt(lj.CreatedAt, 10)
			published = created.Format(time.RFC3339)
		}
		if !withinWindow(created, now, q.WindowDays) {
			continue
		}

		jobs = append(jobs, model.JobRecord{
			ID:                a.Prefix() + lj.ID,
			Title:             lj.Text,
			Employer:          a.companyName,
			Location:          location,
			ModificationToken: token,
			PublicationDate:   published,
			ExternalURL:       lj.HostedURL,
			Source:            SourceLever,
			Provenance:        []model.SearchRef{ref},
		})
	}
	return jobs, nil
}

// Scrape fetches one posting and joins its plain description, lists and
// closing text.
func (a *LeverBoard) Scrape(ctx context.Context, rec model.JobRecord) (model.Details, error) {
	raw, ok := strings.CutPrefix(rec.ID, a.Prefix())
	if !ok {
		return model.Details{}, fmt.Errorf("record %s is not a lever posting", rec.ID)
	}
	url := fmt.Sprintf("%s/%s/%s?mode=json", leverBaseURL, a.companySlug, raw)
	d := model.Details{URL: rec.ExternalURL, ScrapedAt: a.now().UTC()}

	var lj leverJob
	if err := getJSON(ctx, a.client, url, nil, &lj); err != nil {
		return failed(ctx, d, rec.ID, err), nil
	}

	parts := []string{strings.TrimSpace(lj.DescriptionPlain)}
	for _, l := range lj.Lists {
		parts = append(parts, l.Text+"\n"+extractText(l.Content))
	}
	parts = append(parts, strings.TrimSpace(lj.Additional))
	var b strings.Builder
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}

	d.Text = b.String()
	if d.Text == "" {
		d.Warning = model.WarningNoContent
		return d, nil
	}
	d.Success = true
	return d, nil
}
