// Package scrape fetches job detail pages and extracts their description.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/ratelimit"
)

const (
	InternalDetailURL = model.ArbeitsagenturDetailURL

	DefaultMinChars = 1000
	DefaultTimeout  = 15 * time.Second

	maxPageBytes = 5 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Options tune a WebScraper.
type Options struct {
	Timeout  time.Duration // per page
	MinChars int           // below this an external page is TOO_SHORT
	Limiter  *ratelimit.HostLimiter
	Renderer Renderer // nil disables the headless browser fallback
}

// WebScraper implements model.DetailScraper for Arbeitsagentur detail pages
// and external employer pages.
type WebScraper struct {
	client      *http.Client
	opts        Options
	internalURL string
	logger      *slog.Logger
	now         func() time.Time
}

// NewWebScraper creates a scraper. Zero options get defaults.
func NewWebScraper(client *http.Client, opts Options, logger *slog.Logger) *WebScraper {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.NewHostLimiter(0)
	}
	return &WebScraper{
		client:      client,
		opts:        opts,
		internalURL: InternalDetailURL,
		logger:      logger,
		now:         time.Now,
	}
}

// Scrape fetches and parses the record's page. Records without an external
// URL are read from the Arbeitsagentur detail page. Every failure is
// reported in the returned Details; the error is only set when ctx is done.
func (s *WebScraper) Scrape(ctx context.Context, rec model.JobRecord) (model.Details, error) {
	if err := ctx.Err(); err != nil {
		return model.Details{}, err
	}

	internal := rec.ExternalURL == ""
	pageURL := rec.ExternalURL
	if internal {
		pageURL = fmt.Sprintf(s.internalURL, url.PathEscape(rec.ID))
	}
	at := s.now().UTC()

	ext, err := s.fetchAndParse(ctx, pageURL, internal)
	if err != nil {
		if ctx.Err() != nil {
			return model.Details{}, ctx.Err()
		}
		return s.failure(rec.ID, pageURL, at, err), nil
	}

	if ext.Warning == model.WarningJSRequired && s.opts.Renderer != nil {
		s.logger.Debug("page needs javascript, rendering in browser", "id", rec.ID, "url", pageURL)
		rendered, rerr := s.render(ctx, pageURL, internal)
		switch {
		case rerr != nil:
			s.logger.Warn("browser fallback failed", "id", rec.ID, "url", pageURL, "error", rerr)
		default:
			ext = rendered
		}
	}

	if !ext.OK() {
		f := &model.EnrichmentFailure{ID: rec.ID, Warning: ext.Warning, Err: warningError(ext)}
		return f.Details(pageURL, at), nil
	}
	return model.Details{Text: ext.Text, URL: pageURL, Success: true, ScrapedAt: at}, nil
}

func (s *WebScraper) fetchAndParse(ctx context.Context, pageURL string, internal bool) (Extraction, error) {
	html, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Extraction{}, err
	}
	return s.parse(html, internal)
}

func (s *WebScraper) render(ctx context.Context, pageURL string, internal bool) (Extraction, error) {
	html, err := s.opts.Renderer.Render(ctx, pageURL)
	if err != nil {
		return Extraction{}, err
	}
	return s.parse(html, internal)
}

func (s *WebScraper) parse(html string, internal bool) (Extraction, error) {
	if internal {
		return ParseInternal(html)
	}
	return ParseExternal(html, s.opts.MinChars)
}

func (s *WebScraper) fetch(ctx context.Context, pageURL string) (string, error) {
	if err := s.opts.Limiter.WaitURL(ctx, pageURL); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{StatusCode: resp.StatusCode, Err: fmt.Errorf("fetching %s", pageURL)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (s *WebScraper) failure(id, pageURL string, at time.Time, err error) model.Details {
	warning := model.WarningException
	if isTimeout(err) {
		warning = model.WarningTimeout
	}
	f := &model.EnrichmentFailure{ID: id, Warning: warning, Err: err}
	return f.Details(pageURL, at)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func warningError(ext Extraction) error {
	switch ext.Warning {
	case model.WarningJSRequired:
		return errors.New("page requires javascript")
	case model.WarningTooShort:
		return fmt.Errorf("insufficient content (%d chars)", runeLen(ext.Text))
	case model.WarningNoContent:
		return errors.New("no description found")
	default:
		return errors.New("extraction failed")
	}
}
