package audit

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/session"
)

func newWorkspace(t *testing.T) *session.Workspace {
	t.Helper()
	ws := session.NewWorkspace(filepath.Join(t.TempDir(), "searches"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ws.SetClock(func() time.Time { return time.Date(2025, 5, 1, 8, 0, 0, 0, time.Local) })
	return ws
}

func job(id, published string, labels ...string) model.ClassifiedJob {
	return model.ClassifiedJob{
		JobRecord:  model.JobRecord{ID: id, Title: "Job " + id, Employer: "ACME", PublicationDate: published},
		Categories: labels,
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestIsMatch(t *testing.T) {
	tests := []struct {
		labels []string
		want   bool
	}{
		{nil, false},
		{[]string{classify.LabelOther}, false},
		{[]string{classify.LabelPoor}, false},
		{[]string{classify.LabelGood}, true},
		{[]string{"Java", classify.LabelOther}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMatch(job("x", "", tt.labels...)), "labels %v", tt.labels)
	}
}

func TestLoadSession_Classified(t *testing.T) {
	ws := newWorkspace(t)
	sess, err := ws.Create([]model.JobRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}}, session.Meta{Origin: "fetch", Query: "Go"})
	require.NoError(t, err)

	a := job("a", "2025-04-01", "Java")
	a.Details = &model.Details{Success: false, Warning: model.WarningTimeout}
	require.NoError(t, sess.SaveClassified([]model.ClassifiedJob{
		a,
		job("b", "2025-04-20", classify.LabelOther),
		job("c", "", "Python"),
	}))

	data, err := LoadSession(ws, sess.ID)
	require.NoError(t, err)

	assert.Equal(t, sess.ID, data.Info.ID)
	assert.Equal(t, session.StatusCompleted, data.Info.Status)
	require.Len(t, data.Failures, 1)
	assert.Equal(t, "a", data.Failures[0].ID)

	var all, matched []string
	for _, j := range data.All {
		all = append(all, j.ID)
	}
	for _, j := range data.Matched {
		matched = append(matched, j.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, all, "newest first, undated last")
	assert.Equal(t, []string{"a", "c"}, matched)
}

func TestLoadSession_Unclassified(t *testing.T) {
	ws := newWorkspace(t)
	sess, err := ws.Create([]model.JobRecord{{ID: "a", Title: "Dev"}}, session.Meta{Origin: "store"})
	require.NoError(t, err)

	data, err := LoadSession(ws, sess.ID)
	require.NoError(t, err)
	require.Len(t, data.All, 1)
	assert.Empty(t, data.All[0].Categories)
	assert.Empty(t, data.Matched)
	assert.Equal(t, session.StatusPending, data.Info.Status)
}

func TestLoadSession_Unknown(t *testing.T) {
	_, err := LoadSession(newWorkspace(t), "20200101_000000")
	require.Error(t, err)
}

func TestBrowseModel_NavigateAndOpen(t *testing.T) {
	first := job("a", "2025-04-02", "Java")
	second := job("b", "2025-04-01", classify.LabelOther)
	second.ExternalURL = "https://example.com/b"
	second.Details = &model.Details{Text: "Build things", Success: true}

	var opened string
	m := newBrowseModel(Data{All: []model.ClassifiedJob{first, second}, Matched: []model.ClassifiedJob{first}})
	m.opener = func(url string) { opened = url }

	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = next.(browseModel)
	require.True(t, m.ready)
	assert.Contains(t, m.View(), "All Jobs (2)")
	assert.Contains(t, m.View(), "Matched Jobs (1)")

	next, _ = m.Update(key("down"))
	m = next.(browseModel)
	assert.Equal(t, 1, m.panes[0].cursor)

	next, _ = m.Update(key("enter"))
	m = next.(browseModel)
	require.Equal(t, viewDetail, m.view)
	assert.Equal(t, "b", m.detail.ID)
	assert.Contains(t, m.renderDetail(), "press r to read job description")

	next, _ = m.Update(key("r"))
	m = next.(browseModel)
	assert.True(t, m.showText)
	assert.Contains(t, m.renderDetail(), "Build things")

	m.Update(key("o"))
	assert.Equal(t, "https://example.com/b", opened)

	next, _ = m.Update(key("esc"))
	m = next.(browseModel)
	assert.Equal(t, viewList, m.view)
}

func TestBrowseModel_SwitchPane(t *testing.T) {
	m := newBrowseModel(Data{All: []model.ClassifiedJob{job("a", "")}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(browseModel)

	next, _ = m.Update(key("tab"))
	m = next.(browseModel)
	assert.Equal(t, 1, m.active)

	// Enter on an empty pane stays in the list.
	next, _ = m.Update(key("enter"))
	m = next.(browseModel)
	assert.Equal(t, viewList, m.view)
}

func TestBrowseModel_FailuresPane(t *testing.T) {
	failed := job("f", "2025-04-03")
	failed.Details = &model.Details{Success: false, Warning: model.WarningTooShort, Error: "412 chars"}

	m := newBrowseModel(Data{All: []model.ClassifiedJob{failed}, Failures: []model.ClassifiedJob{failed}})
	require.Len(t, m.panes, 3)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = next.(browseModel)
	assert.Contains(t, m.View(), "Scrape Failures (1)")

	// Focus wraps from the first pane to the last.
	next, _ = m.Update(key("left"))
	m = next.(browseModel)
	assert.Equal(t, 2, m.active)

	next, _ = m.Update(key("enter"))
	m = next.(browseModel)
	require.Equal(t, viewDetail, m.view)
	assert.Contains(t, m.renderDetail(), "scrape failed: "+model.WarningTooShort)
	assert.NotContains(t, m.renderDetail(), "press r")
}

func TestBrowseModel_NoFailuresPaneWhenClean(t *testing.T) {
	m := newBrowseModel(Data{All: []model.ClassifiedJob{job("a", "")}})
	assert.Len(t, m.panes, 2)
}

func TestBrowseModel_QuitKeys(t *testing.T) {
	m := newBrowseModel(Data{})
	next, cmd := m.Update(key("q"))
	assert.True(t, next.(browseModel).wantQuit)
	assert.NotNil(t, cmd)

	next, cmd = m.Update(key("b"))
	assert.False(t, next.(browseModel).wantQuit)
	assert.NotNil(t, cmd)
}

func TestPicker_NewestFirst(t *testing.T) {
	infos := []session.Info{
		{Meta: session.Meta{ID: "20250101_000000"}},
		{Meta: session.Meta{ID: "20250201_000000"}},
	}
	m := newPicker(infos)
	assert.Equal(t, "20250201_000000", m.sessions[0].ID)

	next, _ := m.Update(key("j"))
	next, _ = next.Update(key("enter"))
	final := next.(pickerModel)
	assert.Equal(t, 1, final.chosen)
	assert.Equal(t, "20250101_000000", final.sessions[final.chosen].ID)
}

func TestWordWrap(t *testing.T) {
	got := wordWrap("one two three four\n\nfive", 9)
	assert.Equal(t, "one two\nthree\nfour\n\nfive", got)
}

func TestFailureBox(t *testing.T) {
	out := FailureBox("Classification failed", "batch 2/3", "resume with: jobsync resume 20250101_000000")
	assert.Contains(t, out, "Classification failed")
	assert.Contains(t, out, "batch 2/3")
	assert.True(t, strings.Contains(out, "jobsync resume"))
}
