package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/amishk599/jobsync/internal/model"
	"golang.org/x/sync/errgroup"
)

// Progress is reported after each record.
type Progress struct {
	Done    int
	Total   int
	ID      string
	Details model.Details
}

// All scrapes recs with at most concurrency requests in flight and returns
// the details in input order. A failing record never stops the others; only
// cancellation of ctx does.
func All(ctx context.Context, s model.DetailScraper, recs []model.JobRecord, concurrency int, onDone func(Progress)) ([]model.Details, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	out := make([]model.Details, len(recs))

	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			d, err := s.Scrape(gctx, rec)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				f := &model.EnrichmentFailure{ID: rec.ID, Warning: model.WarningException, Err: err}
				d = f.Details(rec.ExternalURL, time.Now().UTC())
			}
			out[i] = d

			mu.Lock()
			done++
			p := Progress{Done: done, Total: len(recs), ID: rec.ID, Details: d}
			if onDone != nil {
				onDone(p)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts scrape outcomes by warning.
type Stats struct {
	Total     int
	Succeeded int
	ByWarning map[string]int
}

// Summarize tallies a set of details.
func Summarize(ds []model.Details) Stats {
	st := Stats{Total: len(ds), ByWarning: map[string]int{}}
	for _, d := range ds {
		if d.Success {
			st.Succeeded++
			continue
		}
		st.ByWarning[d.Warning]++
	}
	return st
}
