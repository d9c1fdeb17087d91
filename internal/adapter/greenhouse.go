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
	greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

	SourceGreenhouse = "greenhouse"
)

type greenhouseJob struct {
	ID             int64              `json:"id"`
	Title          string             `json:"title"`
	Location       greenhouseLocation `json:"location"`
	AbsoluteURL    string             `json:"absolute_url"`
	UpdatedAt      string             `json:"updated_at"`
	FirstPublished string             `json:"first_published"`
	Content        string             `json:"content"`
}

type greenhouseLocation struct {
	Name string `json:"name"`
}

type greenhouseResponse struct {
	Jobs []greenhouseJob `json:"jobs"`
}

// GreenhouseBoard reads a company's public Greenhouse job board. It serves
// both as a listing source and as the detail source for its own records,
// since the board API returns the description directly.
type GreenhouseBoard struct {
	boardToken  string
	companyName string
	client      *http.Client
	now         func() time.Time
}

// NewGreenhouseBoard creates a source for one Greenhouse board.
func NewGreenhouseBoard(boardToken, companyName string, client *http.Client) *GreenhouseBoard {
	return &GreenhouseBoard{
		boardToken:  boardToken,
		companyName: companyName,
		client:      client,
		now:         time.Now,
	}
}

// Prefix starts the id of every record from this board.
func (a *GreenhouseBoard) Prefix() string { return a.Name() + ":" }

func (a *GreenhouseBoard) Name() string { return SourceGreenhouse + ":" + a.boardToken }

// FetchListings returns the board's postings. The board API cannot filter by
// date, so the query window is applied on the publication date here.
func (a *GreenhouseBoard) FetchListings(ctx context.Context, q model.Query) ([]model.JobRecord, error) {
	url := fmt.Sprintf("%s/%s/jobs", greenhouseBaseURL, a.boardToken)

	var ghResp greenhouseResponse
	if err := getJSON(ctx, a.client, url, nil, &ghResp); err != nil {
		return nil, fmt.Errorf("greenhouse fetch for %s: %w", a.boardToken, err)
	}

	ref := model.SearchRef{Query: a.Name(), Location: q.Wo}
	now := a.now()
	jobs := make([]model.JobRecord, 0, len(ghResp.Jobs))
	for _, gj := range ghResp.Jobs {
		published := gj.FirstPublished
		if published == "" {
			published = gj.UpdatedAt
		}
		if !withinWindow(parseDate(published), now, q.WindowDays) {
			continue
		}
		jobs = append(jobs, model.JobRecord{
			ID:                a.Prefix() + strconv.FormatInt(gj.ID, 10),
			Title:             gj.Title,
			Employer:          a.companyName,
			Location:          gj.Location.Name,
			ModificationToken: gj.UpdatedAt,
			PublicationDate:   published,
			ExternalURL:       gj.AbsoluteURL,
			Source:            SourceGreenhouse,
			Provenance:        []model.SearchRef{ref},
		})
	}
	return jobs, nil
}

// Scrape fetches the posting's content from the board API. Failures are
// returned inside Details like any other scrape.
func (a *GreenhouseBoard) Scrape(ctx context.Context, rec model.JobRecord) (model.Details, error) {
	raw, ok := strings.CutPrefix(rec.ID, a.Prefix())
	if !ok {
		return model.Details{}, fmt.Errorf("record %s is not a greenhouse posting", rec.ID)
	}
	url := fmt.Sprintf("%s/%s/jobs/%s", greenhouseBaseURL, a.boardToken, raw)
	d := model.Details{URL: rec.ExternalURL, ScrapedAt: a.now().UTC()}

	var gj greenhouseJob
	if err := getJSON(ctx, a.client, url, nil, &gj); err != nil {
		return failed(ctx, d, rec.ID, err), nil
	}
	d.Text = extractText(gj.Content)
	if d.Text == "" {
		d.Warning = model.WarningNoContent
		return d, nil
	}
	d.Success = true
	return d, nil
}

// failed records err in d with the warning the scrape layer would use.
func failed(ctx context.Context, d model.Details, id string, err error) model.Details {
	warning := model.WarningException
	if ctx.Err() != nil {
		warning = model.WarningTimeout
	}
	f := &model.EnrichmentFailure{ID: id, Warning: warning, Err: err}
	return f.Details(d.URL, d.ScrapedAt)
}
