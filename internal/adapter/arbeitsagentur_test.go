package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amishk599/jobsync/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestArbeitsagenturFetchListings(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pc/v4/jobs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "secret" {
			t.Errorf("expected api key header, got %q", got)
		}
		q := r.URL.Query()
		for k, want := range map[string]string{
			"angebotsart": "1", "pav": "false", "size": "2", "umkreis": "25",
			"was": "Softwareentwickler", "wo": "Köln", "zeitarbeit": "false",
			"arbeitszeit": "vz", "veroeffentlichtseit": "7",
		} {
			if got := q.Get(k); got != want {
				t.Errorf("param %s = %q, want %q", k, got, want)
			}
		}
		page := q.Get("page")
		pages = append(pages, page)

		switch page {
		case "1":
			fmt.Fprint(w, `{"maxErgebnisse": "3", "stellenangebote": [
				{"refnr": "10000-1", "beruf": "Softwareentwickler/in", "titel": "Java Entwickler (m/w/d)",
				 "arbeitgeber": "ACME GmbH", "arbeitsort": {"ort": "Köln", "plz": "50667"},
				 "modifikationsTimestamp": "2026-02-10T08:00:00.123",
				 "aktuelleVeroeffentlichungsdatum": "2026-02-09"},
				{"refnr": "10000-2", "titel": "Go Entwickler", "arbeitgeber": "Beta AG",
				 "arbeitsort": {"ort": "Bonn"}, "externeUrl": "https://beta.example/jobs/2"}
			]}`)
		case "2":
			fmt.Fprint(w, `{"maxErgebnisse": 3, "stellenangebote": [
				{"refnr": "10000-3", "beruf": "Informatiker/in"}
			]}`)
		default:
			t.Errorf("unexpected page %s", page)
		}
	}))
	defer srv.Close()

	a := NewArbeitsagentur(srv.URL, "secret", srv.Client(), discard)
	q := model.Query{
		Was: "Softwareentwickler", Wo: "Köln", RadiusKM: 25, PageSize: 2, MaxPages: 5,
		WorkTime: "vz", WindowDays: 7,
	}

	jobs, err := a.FetchListings(context.Background(), q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("expected to stop after maxErgebnisse, fetched pages %v", pages)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}

	j := jobs[0]
	if j.ID != "10000-1" || j.Title != "Softwareentwickler/in" || j.Employer != "ACME GmbH" || j.Location != "Köln" {
		t.Errorf("unexpected mapping: %+v", j)
	}
	if j.ModificationToken != "2026-02-10T08:00:00.123" || j.PublicationDate != "2026-02-09" {
		t.Errorf("unexpected token/date: %+v", j)
	}
	if j.Source != SourceArbeitsagentur {
		t.Errorf("unexpected source %q", j.Source)
	}
	if len(j.Provenance) != 1 || j.Provenance[0] != (model.SearchRef{Query: "Softwareentwickler", Location: "Köln"}) {
		t.Errorf("unexpected provenance %+v", j.Provenance)
	}
	if jobs[1].Title != "Go Entwickler" || jobs[1].ExternalURL != "https://beta.example/jobs/2" {
		t.Errorf("expected titel fallback and external url, got %+v", jobs[1])
	}
}

func TestArbeitsagenturFetchListings_StopsOnEmptyPage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"maxErgebnisse": "500", "stellenangebote": [{"refnr": "a"}, {"beruf": "no refnr"}]}`)
			return
		}
		fmt.Fprint(w, `{"maxErgebnisse": "500", "stellenangebote": []}`)
	}))
	defer srv.Close()

	jobs, err := NewArbeitsagentur(srv.URL, "", srv.Client(), discard).FetchListings(context.Background(), model.Query{MaxPages: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
	if len(jobs) != 1 {
		t.Errorf("expected listing without refnr to be skipped, got %d jobs", len(jobs))
	}
}

func TestArbeitsagenturFetchListings_NoWindowParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("veroeffentlichtseit") || q.Has("arbeitszeit") {
			t.Errorf("unexpected optional params in %s", r.URL.RawQuery)
		}
		if r.Header.Get("X-API-Key") != DefaultArbeitsagenturKey {
			t.Errorf("expected default api key")
		}
		fmt.Fprint(w, `{"stellenangebote": []}`)
	}))
	defer srv.Close()

	if _, err := NewArbeitsagentur(srv.URL, "", srv.Client(), discard).FetchListings(context.Background(), model.Query{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestArbeitsagenturFetchListings_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewArbeitsagentur(srv.URL, "", srv.Client(), discard).FetchListings(context.Background(), model.Query{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPError 503, got %v", err)
	}
}
