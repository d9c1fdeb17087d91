package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

func TestLeverFetchListings(t *testing.T) {
	payload := `[
		{
			"id": "ff7ef527-b0d3-4c44-836a-8d6b58ac321e",
			"text": "Software Engineer",
			"descriptionPlain": "Plain text job description",
			"categories": {
				"location": "Berlin",
				"allLocations": ["Berlin", "Remote"]
			},
			"createdAt": 1769784074110,
			"hostedUrl": "https://jobs.lever.co/acme/ff7ef527-b0d3-4c44-836a-8d6b58ac321e"
		},
		{
			"id": "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
			"text": "Backend Engineer",
			"categories": {"location": "Remote"},
			"createdAt": 1759870474110,
			"hostedUrl": "https://jobs.lever.co/acme/a1b2c3d4-e5f6-7890-abcd-ef1234567890"
		}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme" || r.URL.Query().Get("mode") != "json" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	a := newLeverTestAdapter(srv, "acme", "Acme Corp")
	a.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }

	jobs, err := a.FetchListings(context.Background(), model.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ID != "lever:acme:ff7ef527-b0d3-4c44-836a-8d6b58ac321e" {
		t.Errorf("unexpected ID %s", j.ID)
	}
	if j.Location != "Berlin, Remote" {
		t.Errorf("expected joined locations, got %s", j.Location)
	}
	if j.ModificationToken != "1769784074110" {
		t.Errorf("expected createdAt as token, got %s", j.ModificationToken)
	}
	if j.Details != nil {
		t.Error("listings must not carry details")
	}

	recent, err := a.FetchListings(context.Background(), model.Query{WindowDays: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recent) != 1 || recent[0].Title != "Software Engineer" {
		t.Fatalf("expected only the recent posting, got %+v", recent)
	}
}

func TestLeverFetchListings_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newLeverTestAdapter(srv, "acme", "Acme").FetchListings(context.Background(), model.Query{}); err == nil {
		t.Fatal("expected error for HTTP 502, got nil")
	}
}

func TestLeverScrape(t *testing.T) {
	payload := `{
		"id": "abc",
		"text": "Go Engineer",
		"descriptionPlain": "You will build services.",
		"lists": [{"text": "Requirements", "content": "<li>Go</li><li>SQL</li>"}],
		"additionalPlain": "We offer snacks."
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v0/postings/acme/abc" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	d, err := newLeverTestAdapter(srv, "acme", "Acme").Scrape(context.Background(), model.JobRecord{ID: "lever:acme:abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "You will build services.\n\nRequirements\nGo\nSQL\n\nWe offer snacks."
	if !d.Success || d.Text != want {
		t.Errorf("unexpected details %+v", d)
	}
}

func TestLeverScrape_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "abc"}`))
	}))
	defer srv.Close()

	d, err := newLeverTestAdapter(srv, "acme", "Acme").Scrape(context.Background(), model.JobRecord{ID: "lever:acme:abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Success || d.Warning != model.WarningNoContent {
		t.Errorf("expected NO_CONTENT, got %+v", d)
	}
}

func newLeverTestAdapter(srv *httptest.Server, slug, company string) *LeverBoard {
	return NewLeverBoard(slug, company, redirectClient(srv))
}
