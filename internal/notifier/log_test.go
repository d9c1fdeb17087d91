package notifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/amishk599/jobsync/internal/model"
)

func TestLogNotifier_Notify_zeroJobs(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := n.Notify(context.Background(), "s1", nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if !strings.Contains(buf.String(), "count=0") {
		t.Errorf("expected a zero count summary, got %q", buf.String())
	}
}

func TestLogNotifier_Notify_multipleJobs(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewTextHandler(&buf, nil)))
	jobs := []model.ClassifiedJob{
		sampleJob("Engineer", "Acme"),
		{JobRecord: model.JobRecord{ID: "10000-1", Title: "Developer", Employer: "Beta"}, Categories: []string{"Java", "Python"}},
	}
	if err := n.Notify(context.Background(), "20260101_120000", jobs); err != nil {
		t.Fatalf("Notify(jobs) = %v, want nil", err)
	}

	out := buf.String()
	for _, want := range []string{
		"session=20260101_120000",
		"employer=Acme",
		`categories="Java, Python"`,
		"url=https://www.arbeitsagentur.de/jobsuche/jobdetail/10000-1",
		"count=2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
