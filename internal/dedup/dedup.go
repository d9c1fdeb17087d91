// Package dedup merges the record sets of several sessions into one set keyed
// by identity.
package dedup

import "log/slog"

// Keyed is anything with an identity key, such as model.JobRecord or
// model.ClassifiedJob.
type Keyed interface {
	Identity() string
}

// Source is one named input set, usually a session.
type Source[T Keyed] struct {
	Name  string
	Items []T
}

// SourceStats counts what happened to one source's items.
type SourceStats struct {
	Name       string
	Items      int
	Duplicates int // ids this source saw that an earlier source already had
}

// Result is the merged set.
type Result[T Keyed] struct {
	Items      []T
	Duplicates int
	Sources    []SourceStats
}

// Options controls reporting only; it never changes the merged output.
type Options struct {
	Verbose bool
	Logger  *slog.Logger
}

// Merge deduplicates sources by identity. Sources are processed in the order
// given and the last occurrence of an id wins. Each id keeps the position of
// its first occurrence. Inputs are not modified.
func Merge[T Keyed](sources []Source[T], opts Options) Result[T] {
	var res Result[T]
	index := make(map[string]int)

	for _, src := range sources {
		st := SourceStats{Name: src.Name, Items: len(src.Items)}
		for _, it := range src.Items {
			key := it.Identity()
			if pos, ok := index[key]; ok {
				res.Items[pos] = it
				st.Duplicates++
				continue
			}
			index[key] = len(res.Items)
			res.Items = append(res.Items, it)
		}
		res.Duplicates += st.Duplicates
		res.Sources = append(res.Sources, st)

		if opts.Verbose && opts.Logger != nil {
			opts.Logger.Info("merged source",
				"source", st.Name,
				"items", st.Items,
				"duplicates", st.Duplicates,
			)
		}
	}

	if opts.Verbose && opts.Logger != nil {
		opts.Logger.Info("merge complete",
			"sources", len(sources),
			"unique", len(res.Items),
			"duplicates_removed", res.Duplicates,
		)
	}
	return res
}
