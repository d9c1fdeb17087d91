package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/jobsync/internal/checkpoint"
	"github.com/amishk599/jobsync/internal/classify"
	"github.com/amishk599/jobsync/internal/filter"
	"github.com/amishk599/jobsync/internal/model"
	"github.com/amishk599/jobsync/internal/session"
	"github.com/amishk599/jobsync/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- fakes ---

type fakeFetcher struct {
	recs    []model.JobRecord
	err     error
	queries []model.Query
}

func (f *fakeFetcher) FetchListings(_ context.Context, q model.Query) ([]model.JobRecord, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.JobRecord, len(f.recs))
	for i, r := range f.recs {
		out[i] = r.Clone()
		if len(out[i].Provenance) == 0 {
			out[i].Provenance = []model.SearchRef{q.Ref()}
		}
	}
	return out, nil
}

type fakeScraper struct {
	mu      sync.Mutex
	fail    map[string]string // id -> warning
	scraped []string
}

func (s *fakeScraper) Scrape(_ context.Context, rec model.JobRecord) (model.Details, error) {
	s.mu.Lock()
	s.scraped = append(s.scraped, rec.ID)
	s.mu.Unlock()
	if w, ok := s.fail[rec.ID]; ok {
		return model.Details{Warning: w, Error: "failed"}, nil
	}
	return model.Details{Text: "Beschreibung " + rec.ID, Success: true}, nil
}

func (s *fakeScraper) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.scraped...)
	sortStrings(out)
	return out
}

// fakeClassifier rates titles containing "Go" as Excellent Match and
// everything else as Poor Match.
type fakeClassifier struct {
	criteria classify.Criteria
	failCall int // 1-based call that fails, 0 for none
	calls    int
	batches  [][]string
	log      classify.InteractionLog
}

func newFakeClassifier(t *testing.T) *fakeClassifier {
	c, err := classify.CVBased("Go developer with ten years of backend experience")
	require.NoError(t, err)
	return &fakeClassifier{criteria: c}
}

func (c *fakeClassifier) Criteria() classify.Criteria { return c.criteria }

func (c *fakeClassifier) SetInteractionLog(l classify.InteractionLog) { c.log = l }

func (c *fakeClassifier) ClassifyBatch(_ context.Context, batch []model.JobRecord) ([]model.ClassifiedJob, error) {
	c.calls++
	c.batches = append(c.batches, ids(batch))
	if c.calls == c.failCall {
		return nil, &model.BatchValidationError{Kind: model.WrongCount, Expected: len(batch), Got: 0}
	}
	if c.log != nil {
		_ = c.log.AppendLLMInteraction("batch", "prompt", "response")
	}
	out := make([]model.ClassifiedJob, len(batch))
	for i, rec := range batch {
		label := classify.LabelPoor
		if strings.Contains(rec.Title, "Go") {
			label = classify.LabelExcellent
		}
		out[i] = model.ClassifiedJob{JobRecord: rec, Categories: []string{label}}
	}
	return out, nil
}

type recordingNotifier struct {
	sessions []string
	jobs     []model.ClassifiedJob
}

func (n *recordingNotifier) Notify(_ context.Context, sessionID string, jobs []model.ClassifiedJob) error {
	n.sessions = append(n.sessions, sessionID)
	n.jobs = append(n.jobs, jobs...)
	return nil
}

// --- harness ---

type env struct {
	backend *store.MemoryBackend
	ws      *session.Workspace
	fetcher *fakeFetcher
	scraper *fakeScraper
	clf     *fakeClassifier
	notes   *recordingNotifier
	runner  *Runner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		backend: store.NewMemoryBackend(nil),
		ws:      session.NewWorkspace(t.TempDir(), discard),
		fetcher: &fakeFetcher{},
		scraper: &fakeScraper{fail: map[string]string{}},
		clf:     newFakeClassifier(t),
		notes:   &recordingNotifier{},
	}
	tick := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	e.ws.SetClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	e.runner = New(Deps{
		Backend:    e.backend,
		Workspace:  e.ws,
		Sources:    []Source{{Name: "arbeitsagentur", Fetcher: e.fetcher}},
		Scraper:    e.scraper,
		Classifier: e.clf,
		Notifier:   e.notes,
		Logger:     discard,
	})
	return e
}

func baseOptions() Options {
	return Options{
		Query:             model.Query{Was: "Softwareentwickler", Wo: "Köln", RadiusKM: 25},
		DefaultWindow:     7,
		ScrapeConcurrency: 2,
		BatchSize:         2,
		Resume:            true,
		Model:             "test-model",
	}
}

func rec(id, title, token string) model.JobRecord {
	return model.JobRecord{ID: id, Title: title, Employer: "Acme", Location: "Köln", ModificationToken: token, Source: "arbeitsagentur"}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// --- tests ---

func TestWindow(t *testing.T) {
	tests := []struct {
		name     string
		override int
		first    bool
		want     int
		wantErr  bool
	}{
		{"first search is unbounded", 0, true, 0, false},
		{"repeated search uses default", 0, false, 7, false},
		{"override wins", 30, false, 30, false},
		{"override applies to first search", 3, true, 3, false},
		{"override too large", 101, false, 0, true},
		{"override negative", -1, false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Window(tt.override, 7, tt.first)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_IncrementalSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go Backend Engineer", "t1"),
		rec("b", "Java Entwickler", "t1"),
		rec("c", "Go Platform Engineer", "t1"),
	}
	e.scraper.fail["c"] = model.WarningTooShort

	res, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Window)
	assert.Equal(t, 0, e.fetcher.queries[0].WindowDays)
	assert.Len(t, res.Merge.New, 3)
	assert.Equal(t, 3, res.Scrape.Total)
	assert.Equal(t, 2, res.Scrape.Succeeded)
	assert.Equal(t, 1, e.backend.Writes())
	require.NotEmpty(t, res.SessionID)
	assert.Len(t, res.Classified, 3)
	assert.Equal(t, []string{"a", "c"}, ids(jobRecords(res.Matches)))

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status())
	assert.False(t, sess.HasCheckpoint())
	snap := sess.Snapshot()
	require.Len(t, snap, 3)
	assert.True(t, snap[0].Scraped())
	assert.Equal(t, model.WarningTooShort, snap[2].Details.Warning)
	for _, f := range []string{session.ClassifiedFile, session.CSVFile, session.XLSXFile, session.SummaryFile, session.FailedCSVFile, session.LLMLogFile} {
		assert.FileExists(t, sess.Path(f))
	}
	summary, err := os.ReadFile(sess.Path(session.SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Model:       test-model")
	assert.Contains(t, string(summary), "Successfully Scraped: 2 (66.7%)")

	assert.Equal(t, []string{res.SessionID}, e.notes.sessions)
	assert.Len(t, e.notes.jobs, 2)

	// second run: a unchanged, b updated, d new
	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go Backend Engineer", "t1"),
		rec("b", "Java Entwickler", "t2"),
		rec("d", "Go SRE", "t1"),
	}
	e.scraper.scraped = nil

	res2, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 7, res2.Window)
	assert.Equal(t, 7, e.fetcher.queries[1].WindowDays)
	assert.Equal(t, []string{"d"}, ids(res2.Merge.New))
	assert.Equal(t, []string{"b"}, ids(res2.Merge.Updated))
	assert.Equal(t, []string{"a"}, ids(res2.Merge.Unchanged))
	assert.Equal(t, []string{"b", "d"}, e.scraper.ids())
	assert.NotEqual(t, res.SessionID, res2.SessionID)
	assert.Equal(t, []string{"d", "b"}, ids(jobRecords(res2.Classified)))

	snapshot, err := e.backend.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Jobs, 4)
	assert.Equal(t, "t2", snapshot.Jobs["b"].ModificationToken)
}

func TestRun_NothingChanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go Engineer", "t1")}

	_, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	calls := e.clf.calls

	res, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, []string{"a"}, ids(res.Merge.Unchanged))
	assert.Equal(t, calls, e.clf.calls)
	assert.Equal(t, 2, e.backend.Writes(), "last_seen still moves")
}

func TestRun_InvalidWindowOverride(t *testing.T) {
	e := newEnv(t)
	opts := baseOptions()
	opts.WindowOverride = 101

	_, err := e.runner.Run(context.Background(), opts)
	require.Error(t, err)
	assert.Empty(t, e.fetcher.queries)
	assert.Equal(t, 0, e.backend.Writes())
}

func TestRun_FilterAndNoScrape(t *testing.T) {
	e := newEnv(t)
	e.runner.deps.Filter = filter.NewExcludeFilter([]string{"ausbildung"})
	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go Engineer", "t1"),
		rec("b", "Ausbildung Fachinformatiker", "t1"),
	}
	opts := baseOptions()
	opts.NoScrape = true

	res, err := e.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 1, res.Filtered)
	assert.Empty(t, e.scraper.ids())
	require.Len(t, res.Classified, 1)
	assert.Nil(t, res.Classified[0].Details)
}

func TestRun_NoClassify(t *testing.T) {
	e := newEnv(t)
	e.runner.deps.Classifier = nil
	e.fetcher.recs = []model.JobRecord{rec("a", "Go Engineer", "t1")}

	opts := baseOptions()
	_, err := e.runner.Run(context.Background(), opts)
	require.Error(t, err, "classification needs a classifier")

	opts.NoClassify = true
	res, err := e.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, res.SessionID)
	assert.Equal(t, 1, e.backend.Writes())
	infos, err := e.ws.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestRun_SourceFailures(t *testing.T) {
	e := newEnv(t)
	broken := &fakeFetcher{err: errors.New("connection refused")}
	e.runner.deps.Sources = append(e.runner.deps.Sources, Source{Name: "greenhouse:acme", Fetcher: broken})
	e.fetcher.recs = []model.JobRecord{rec("a", "Go Engineer", "t1")}

	res, err := e.runner.Run(context.Background(), baseOptions())
	require.NoError(t, err)
	assert.Len(t, res.Merge.New, 1)

	e.fetcher.err = errors.New("HTTP 503")
	_, err = e.runner.Run(context.Background(), baseOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all sources failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRun_BatchFailureThenResume(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go 1", "t"), rec("b", "Java 2", "t"), rec("c", "Go 3", "t"),
		rec("d", "Java 4", "t"), rec("e", "Go 5", "t"),
	}
	e.clf.failCall = 2

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)
	var bf *checkpoint.BatchFailedError
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, 2, bf.Position)
	var bv *model.BatchValidationError
	assert.ErrorAs(t, err, &bv)

	require.NotNil(t, res)
	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, 1, e.backend.Writes(), "store is saved before classification")
	assert.Empty(t, e.notes.sessions)

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.HasCheckpoint())
	assert.Equal(t, session.StatusInProgress, sess.Status())

	e.clf.failCall = 0
	e.clf.batches = nil
	res2, err := e.runner.Resume(ctx, res.SessionID, baseOptions())
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"c", "d"}, {"e"}}, e.clf.batches)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(jobRecords(res2.Classified)))
	assert.False(t, sess.HasCheckpoint())
	assert.Equal(t, session.StatusCompleted, sess.Status())

	saved, err := sess.LoadClassified()
	require.NoError(t, err)
	assert.Len(t, saved, 5)
	assert.Equal(t, []string{res.SessionID}, e.notes.sessions)
}

func TestRun_FinishesInterruptedSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go 1", "t"), rec("b", "Java 2", "t"), rec("c", "Go 3", "t"),
		rec("d", "Java 4", "t"), rec("e", "Go 5", "t"),
	}
	e.clf.failCall = 2

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)
	interrupted := res.SessionID

	e.clf.failCall = 0
	e.clf.batches = nil
	res2, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{interrupted}, res2.Resumed)
	assert.Len(t, res2.Merge.Unchanged, 5)
	assert.Empty(t, res2.SessionID, "nothing changed since the failed run")
	assert.Equal(t, [][]string{{"c", "d"}, {"e"}}, e.clf.batches)
	assert.Equal(t, []string{interrupted}, e.notes.sessions)

	sess, err := e.ws.Load(interrupted)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, sess.Status())
	saved, err := sess.LoadClassified()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(jobRecords(saved)))

	res3, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	assert.Empty(t, res3.Resumed)
}

func TestRun_FinishesSessionFailedOnFirstBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t"), rec("b", "Java 2", "t"), rec("c", "Go 3", "t")}
	e.clf.failCall = 1

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)
	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	require.Equal(t, session.StatusPending, sess.Status())

	e.clf.failCall = 0
	e.clf.batches = nil
	res2, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{res.SessionID}, res2.Resumed)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, e.clf.batches)
	assert.Equal(t, session.StatusCompleted, sess.Status())
}

func TestRun_NoResumeRestartsInterruptedSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{
		rec("a", "Go 1", "t"), rec("b", "Java 2", "t"), rec("c", "Go 3", "t"),
		rec("d", "Java 4", "t"), rec("e", "Go 5", "t"),
	}
	e.clf.failCall = 2

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)

	e.clf.failCall = 0
	e.clf.batches = nil
	opts := baseOptions()
	opts.Resume = false
	res2, err := e.runner.Run(ctx, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{res.SessionID}, res2.Resumed)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, e.clf.batches)
}

func TestRun_InterruptedSessionFailsAgain(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t"), rec("b", "Java 2", "t"), rec("c", "Go 3", "t")}
	e.clf.failCall = 2

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)

	e.clf.calls = 0
	e.clf.failCall = 1
	res2, err := e.runner.Run(ctx, baseOptions())
	var bf *checkpoint.BatchFailedError
	require.ErrorAs(t, err, &bf)
	assert.Equal(t, res.SessionID, bf.SessionID)
	assert.Contains(t, err.Error(), res.SessionID)
	require.NotNil(t, res2)
	assert.Empty(t, res2.Resumed)
	assert.Len(t, e.fetcher.queries, 1, "no fetch while an older session is unfinished")

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.HasCheckpoint())
}

func TestRun_LeavesInterruptedFileSessionAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "jobs.json")
	data, err := json.Marshal([]model.JobRecord{rec("x", "Go 1", ""), rec("y", "Java 2", ""), rec("z", "Go 3", "")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	e.clf.failCall = 2
	_, err = e.runner.ClassifyOnly(ctx, path, baseOptions())
	require.Error(t, err)

	e.clf.failCall = 0
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t")}
	res, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Resumed)
	assert.Equal(t, []string{"a"}, ids(jobRecords(res.Classified)))
}

func TestRun_AreaMismatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t")}

	_, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	tests := []struct {
		name     string
		wo       string
		radiusKM int
	}{
		{"other location", "Berlin", 25},
		{"other radius", "Köln", 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.Query.Wo, opts.Query.RadiusKM = tt.wo, tt.radiusKM

			_, err := e.runner.Run(ctx, opts)
			var mismatch *model.AreaMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Equal(t, "Köln", mismatch.StoreLocation)
			assert.Equal(t, 25, mismatch.StoreRadiusKM)
			assert.Len(t, e.fetcher.queries, 1, "rejected before fetching")
			assert.Equal(t, 1, e.backend.Writes())
		})
	}

	snap, err := e.backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, &store.Area{Location: "Köln", RadiusKM: 25}, snap.Metadata.Area)

	opts := baseOptions()
	opts.Query.Wo = "KÖLN"
	_, err = e.runner.Run(ctx, opts)
	assert.NoError(t, err, "locations compare case-insensitively")
}

func TestRun_NewQueryFetchesWithoutWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t")}

	windows := func() []int {
		var out []int
		for _, q := range e.fetcher.queries {
			out = append(out, q.WindowDays)
		}
		return out
	}

	_, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)
	_, err = e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	other := baseOptions()
	other.Query.Was = "Go Entwickler"
	_, err = e.runner.Run(ctx, other)
	require.NoError(t, err)
	_, err = e.runner.Run(ctx, other)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 7, 0, 7}, windows())
}

func TestResume_CompletedSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t")}

	res, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	_, err = e.runner.Resume(ctx, res.SessionID, baseOptions())
	assert.ErrorIs(t, err, ErrSessionCompleted)

	opts := baseOptions()
	opts.Resume = false
	calls := e.clf.calls
	_, err = e.runner.Resume(ctx, res.SessionID, opts)
	require.NoError(t, err)
	assert.Equal(t, calls+1, e.clf.calls)

	_, err = e.runner.Resume(ctx, "20990101_000000", baseOptions())
	var nf *model.SessionNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestResume_CriteriaChanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t"), rec("b", "Go 2", "t"), rec("c", "Go 3", "t")}
	e.clf.failCall = 2

	res, err := e.runner.Run(ctx, baseOptions())
	require.Error(t, err)

	other, err := classify.PerfectJob("Remote Go role")
	require.NoError(t, err)
	e.clf.criteria = other
	e.clf.failCall = 0

	_, err = e.runner.Resume(ctx, res.SessionID, baseOptions())
	var mismatch *model.ResumeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestRun_ReturnOnlyMatches(t *testing.T) {
	e := newEnv(t)
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t"), rec("b", "Java 2", "t")}
	opts := baseOptions()
	opts.ReturnOnlyMatches = true

	res, err := e.runner.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(jobRecords(res.Classified)))

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	saved, err := sess.LoadClassified()
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestRun_UseStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fetcher.recs = []model.JobRecord{rec("a", "Go 1", "t"), rec("b", "Java 2", "t")}
	_, err := e.runner.Run(ctx, baseOptions())
	require.NoError(t, err)

	// d reaches the store without being classified
	e.fetcher.recs = []model.JobRecord{rec("d", "Go 4", "t")}
	opts := baseOptions()
	opts.NoClassify = true
	opts.NoScrape = true
	_, err = e.runner.Run(ctx, opts)
	require.NoError(t, err)

	queries := len(e.fetcher.queries)
	e.scraper.scraped = nil
	opts = baseOptions()
	opts.UseStore = true
	res, err := e.runner.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, queries, len(e.fetcher.queries), "store runs do not fetch")
	assert.Equal(t, []string{"d"}, e.scraper.ids(), "only records without details are scraped")
	assert.Equal(t, []string{"d"}, ids(jobRecords(res.Classified)))
	require.NotNil(t, res.Classified[0].Details)
	assert.True(t, res.Classified[0].Details.Success)

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "store", sess.Meta().Origin)

	opts.IDs = []string{"b", "a"}
	res, err = e.runner.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, ids(jobRecords(res.Classified)))

	opts.IDs = []string{"zzz"}
	_, err = e.runner.Run(ctx, opts)
	var unknown *model.UnknownRecordError
	assert.ErrorAs(t, err, &unknown)
}

func TestClassifyOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	recs := []model.JobRecord{rec("x", "Go 1", ""), rec("y", "Java 2", ""), rec("x", "dup", "")}
	data, err := json.Marshal(recs)
	require.NoError(t, err)
	input := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))

	res, err := e.runner.ClassifyOnly(ctx, input, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(jobRecords(res.Classified)))
	assert.Equal(t, "Go 1", res.Classified[0].Title)
	assert.Equal(t, 0, e.backend.Writes(), "classify-only never touches the store")

	sess, err := e.ws.Load(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "file", sess.Meta().Origin)

	// a session directory is read through its snapshot
	res2, err := e.runner.ClassifyOnly(ctx, sess.Dir, baseOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ids(jobRecords(res2.Classified)))

	_, err = e.runner.ClassifyOnly(ctx, filepath.Join(t.TempDir(), "missing.json"), baseOptions())
	assert.Error(t, err)
}

func TestReadRecords_MissingID(t *testing.T) {
	input := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(input, []byte(`[{"title":"no id"}]`), 0o644))
	_, err := ReadRecords(input)
	assert.ErrorContains(t, err, "has no id")
}

func jobRecords(jobs []model.ClassifiedJob) []model.JobRecord {
	out := make([]model.JobRecord, len(jobs))
	for i, j := range jobs {
		out[i] = j.JobRecord
	}
	return out
}
