package notifier

import (
	"context"
	"log/slog"
	"strings"

	"github.com/amishk599/jobsync/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes matched jobs to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each job via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each job with employer, title, location, labels and URL.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(_ context.Context, sessionID string, jobs []model.ClassifiedJob) error {
	for _, j := range jobs {
		args := []any{
			"session", sessionID,
			"employer", j.Employer,
			"title", j.Title,
			"location", j.Location,
			"categories", strings.Join(j.Categories, ", "),
			"url", j.ViewURL(),
		}
		if j.PublicationDate != "" {
			args = append(args, "published", j.PublicationDate)
		}
		n.logger.Info("matched job", args...)
	}
	n.logger.Info("run matches", "session", sessionID, "count", len(jobs))
	return nil
}
