package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var longPage = `<html><body><main><h1>Go Engineer</h1><p>` + strings.Repeat("We build reliable services. ", 10) + `</p></main></body></html>`

func newTestScraper(t *testing.T, srv *httptest.Server, opts Options) *WebScraper {
	t.Helper()
	if opts.MinChars == 0 {
		opts.MinChars = 100
	}
	s := NewWebScraper(srv.Client(), opts, discard)
	s.internalURL = srv.URL + "/jobdetail/%s"
	s.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestScrape_InternalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobdetail/10000-123-S" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `<body><div id="detail-beschreibung-beschreibung">Wir suchen Verstärkung.</div></body>`)
	}))
	defer srv.Close()

	d, err := newTestScraper(t, srv, Options{}).Scrape(context.Background(), model.JobRecord{ID: "10000-123-S"})
	require.NoError(t, err)
	assert.True(t, d.Success)
	assert.Equal(t, "Wir suchen Verstärkung.", d.Text)
	assert.Equal(t, srv.URL+"/jobdetail/10000-123-S", d.URL)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), d.ScrapedAt)
}

func TestScrape_ExternalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, longPage)
	}))
	defer srv.Close()

	rec := model.JobRecord{ID: "x", ExternalURL: srv.URL + "/careers/42"}
	d, err := newTestScraper(t, srv, Options{}).Scrape(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, d.Success)
	assert.True(t, strings.HasPrefix(d.Text, "Go Engineer\nWe build reliable services."))
	assert.Equal(t, rec.ExternalURL, d.URL)
}

func TestScrape_HTTPErrorIsException(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d, err := newTestScraper(t, srv, Options{}).Scrape(context.Background(), model.JobRecord{ID: "x", ExternalURL: srv.URL})
	require.NoError(t, err)
	assert.False(t, d.Success)
	assert.Equal(t, model.WarningException, d.Warning)
	assert.Contains(t, d.Error, "404")
	assert.Empty(t, d.Text)
}

func TestScrape_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	d, err := newTestScraper(t, srv, Options{Timeout: 20 * time.Millisecond}).Scrape(context.Background(), model.JobRecord{ID: "x", ExternalURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, model.WarningTimeout, d.Warning)
	assert.False(t, d.Success)
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestScrape_BrowserFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<body><main>You need to enable JavaScript to run this app.</main></body>`)
	}))
	defer srv.Close()
	rec := model.JobRecord{ID: "x", ExternalURL: srv.URL}

	d, err := newTestScraper(t, srv, Options{}).Scrape(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.WarningJSRequired, d.Warning)
	assert.Empty(t, d.Text)

	r := &fakeRenderer{html: longPage}
	d, err = newTestScraper(t, srv, Options{Renderer: r}).Scrape(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, d.Success)
	assert.Equal(t, 1, r.calls)

	broken := &fakeRenderer{err: errors.New("no chrome")}
	d, err = newTestScraper(t, srv, Options{Renderer: broken}).Scrape(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.WarningJSRequired, d.Warning)
}

func TestScrape_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestScraper(t, srv, Options{}).Scrape(ctx, model.JobRecord{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

type funcScraper func(ctx context.Context, rec model.JobRecord) (model.Details, error)

func (f funcScraper) Scrape(ctx context.Context, rec model.JobRecord) (model.Details, error) {
	return f(ctx, rec)
}

func TestAll_PreservesOrderAndIsolatesFailures(t *testing.T) {
	var inFlight, peak atomic.Int32
	s := funcScraper(func(_ context.Context, rec model.JobRecord) (model.Details, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if rec.ID == "bad" {
			return model.Details{}, errors.New("cannot attempt")
		}
		return model.Details{Text: "text " + rec.ID, Success: true}, nil
	})

	recs := []model.JobRecord{{ID: "a"}, {ID: "bad"}, {ID: "c"}, {ID: "d"}, {ID: "e"}}
	var reported []int
	out, err := All(context.Background(), s, recs, 2, func(p Progress) {
		reported = append(reported, p.Done)
	})
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, "text a", out[0].Text)
	assert.Equal(t, model.WarningException, out[1].Warning)
	assert.Equal(t, "cannot attempt", out[1].Error)
	assert.Equal(t, "text e", out[4].Text)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, reported)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := funcScraper(func(ctx context.Context, _ model.JobRecord) (model.Details, error) {
		cancel()
		return model.Details{}, ctx.Err()
	})
	_, err := All(ctx, s, []model.JobRecord{{ID: "a"}}, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRouter(t *testing.T) {
	named := func(name string) funcScraper {
		return func(_ context.Context, _ model.JobRecord) (model.Details, error) {
			return model.Details{Text: name}, nil
		}
	}
	r := NewRouter(named("web"))
	r.Handle("greenhouse:acme:", named("acme"))
	r.Handle("lever:", named("lever"))

	for id, want := range map[string]string{
		"greenhouse:acme:1": "acme",
		"lever:beta:2":      "lever",
		"10000-123-S":       "web",
	} {
		d, err := r.Scrape(context.Background(), model.JobRecord{ID: id})
		require.NoError(t, err)
		assert.Equal(t, want, d.Text, id)
	}
}

func TestSummarize(t *testing.T) {
	st := Summarize([]model.Details{
		{Success: true},
		{Warning: model.WarningTooShort},
		{Warning: model.WarningTooShort},
		{Warning: model.WarningTimeout},
	})
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Succeeded)
	assert.Equal(t, map[string]int{model.WarningTooShort: 2, model.WarningTimeout: 1}, st.ByWarning)
}
