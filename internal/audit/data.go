// Package audit is the terminal browser over session workspaces: a session
// picker, a loading spinner and a split-pane record viewer.
package audit

import (
	"fmt"
	"slices"
	"sort"

	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/session"
)

// Data is what the viewer shows for one session.
type Data struct {
	Info     session.Info
	All      []model.ClassifiedJob
	Matched  []model.ClassifiedJob
	Failures []model.ClassifiedJob // records whose scrape did not succeed
}

// nonMatchLabels are the fallback labels of every workflow.
var nonMatchLabels = []string{classify.LabelOther, classify.LabelPoor}

// IsMatch reports whether the job carries at least one label that is not a
// workflow fallback.
func IsMatch(j model.ClassifiedJob) bool {
	for _, c := range j.Categories {
		if !slices.Contains(nonMatchLabels, c) {
			return true
		}
	}
	return false
}

// LoadSession reads a session's output. An unclassified session shows its
// snapshot without labels.
func LoadSession(ws *session.Workspace, id string) (Data, error) {
	sess, err := ws.Load(id)
	if err != nil {
		return Data{}, err
	}

	jobs, err := sess.LoadClassified()
	if err != nil {
		return Data{}, err
	}
	if jobs == nil {
		for _, rec := range sess.Snapshot() {
			jobs = append(jobs, model.ClassifiedJob{JobRecord: rec})
		}
	}

	d := Data{
		Info: session.Info{Meta: sess.Meta(), Status: sess.Status()},
		All:  jobs,
	}
	d.Info.ID = sess.ID
	for _, j := range jobs {
		if IsMatch(j) {
			d.Matched = append(d.Matched, j)
		}
		if j.Details != nil && !j.Details.Success {
			d.Failures = append(d.Failures, j)
		}
	}
	sortByPublished(d.All)
	sortByPublished(d.Matched)
	sortByPublished(d.Failures)
	return d, nil
}

// sortByPublished orders newest publication first; undated records go last.
func sortByPublished(jobs []model.ClassifiedJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i].PublicationDate, jobs[j].PublicationDate
		if a == "" || b == "" {
			return a != "" && b == ""
		}
		return a > b
	})
}

func describe(info session.Info) string {
	label := fmt.Sprintf("%s  %-11s %-6s %4d jobs", info.ID, info.Status, info.Origin, info.Items)
	if info.Query != "" {
		label += "  " + info.Query
		if info.Location != "" {
			label += " @ " + info.Location
		}
	}
	return label
}
