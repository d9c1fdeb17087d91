package model

import "fmt"

// Incremental window bounds in days.
const (
	MinWindowDays = 1
	MaxWindowDays = 100
)

// Query describes one listings search.
type Query struct {
	Was        string // job title or keywords
	Wo         string // location
	RadiusKM   int
	PageSize   int
	MaxPages   int
	WorkTime   string // vz, tz, ho, snw; empty for all
	TempAgency bool
	WindowDays int // 0 = unbounded
}

// Ref returns the provenance entry for records produced by q.
func (q Query) Ref() SearchRef {
	return SearchRef{Query: q.Was, Location: q.Wo}
}

// ValidateWindow checks an incremental window override.
func ValidateWindow(days int) error {
	if days < MinWindowDays || days > MaxWindowDays {
		return fmt.Errorf("window must be between %d and %d days, got %d", MinWindowDays, MaxWindowDays, days)
	}
	return nil
}
