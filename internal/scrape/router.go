package scrape

import (
	"context"
	"strings"

	"github.com/amishk599/jobsync/internal/model"
)

// Router sends each record to the scraper registered for the longest
// matching id prefix, or to the fallback.
type Router struct {
	routes   map[string]model.DetailScraper
	fallback model.DetailScraper
}

func NewRouter(fallback model.DetailScraper) *Router {
	return &Router{routes: make(map[string]model.DetailScraper), fallback: fallback}
}

// Handle registers s for record ids starting with prefix.
func (r *Router) Handle(prefix string, s model.DetailScraper) {
	r.routes[prefix] = s
}

func (r *Router) Scrape(ctx context.Context, rec model.JobRecord) (model.Details, error) {
	var best string
	for prefix := range r.routes {
		if strings.HasPrefix(rec.ID, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return r.routes[best].Scrape(ctx, rec)
	}
	return r.fallback.Scrape(ctx, rec)
}
