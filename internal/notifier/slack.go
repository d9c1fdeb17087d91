package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/amishk599/jobsync/internal/model"
)

// Ensure SlackNotifier implements model.Notifier.
var _ model.Notifier = (*SlackNotifier)(nil)

// MaxSlackJobs caps the per-job messages of one run; the rest are counted in
// a closing message.
const MaxSlackJobs = 20

// SlackNotifier sends matched jobs to a Slack channel via Incoming Webhooks.
type SlackNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
	pause      time.Duration
}

// NewSlackNotifier returns a notifier that posts each job to Slack via webhook.
func NewSlackNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
		pause:      500 * time.Millisecond,
	}
}

// Notify sends each job as a separate Slack message using Block Kit.
// Returns an error only if ALL messages fail. Individual failures are logged.
func (s *SlackNotifier) Notify(ctx context.Context, sessionID string, jobs []model.ClassifiedJob) error {
	if len(jobs) == 0 {
		return nil
	}

	shown := jobs
	if len(shown) > MaxSlackJobs {
		shown = shown[:MaxSlackJobs]
	}

	failures := 0
	for i, j := range shown {
		if i > 0 {
			if err := sleep(ctx, s.pause); err != nil {
				return err
			}
		}

		if err := s.send(ctx, buildPayload(j)); err != nil {
			s.logger.Error("slack notification failed", "employer", j.Employer, "title", j.Title, "error", err)
			failures++
			continue
		}
		s.logger.Debug("slack message sent", "employer", j.Employer, "title", j.Title)
	}

	if rest := len(jobs) - len(shown); rest > 0 {
		if err := s.send(ctx, overflowPayload(sessionID, rest)); err != nil {
			s.logger.Warn("slack overflow message failed", "error", err)
		}
	}

	if failures == len(shown) {
		return fmt.Errorf("all %d slack notifications failed", failures)
	}
	s.logger.Info("slack notifications complete", "session", sessionID, "sent", len(shown)-failures, "failed", failures)
	return nil
}

func (s *SlackNotifier) send(ctx context.Context, payload slackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	status, retryAfter, err := s.post(ctx, body)
	if err != nil {
		return err
	}

	if status == http.StatusTooManyRequests {
		wait := model.ParseRetryAfter(retryAfter)
		if wait <= 0 {
			wait = time.Second
		}
		s.logger.Warn("slack rate limited, retrying", "retry_after", wait)
		if err := sleep(ctx, wait); err != nil {
			return err
		}

		status, _, err = s.post(ctx, body)
		if err != nil {
			return fmt.Errorf("post to slack (retry): %w", err)
		}
		if status != http.StatusOK {
			return fmt.Errorf("slack returned %d on retry", status)
		}
		return nil
	}

	if status != http.StatusOK {
		return fmt.Errorf("slack returned %d", status)
	}
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Block Kit payload types.

type slackPayload struct {
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string         `json:"type"`
	Text     *slackText     `json:"text,omitempty"`
	Fields   []slackText    `json:"fields,omitempty"`
	Elements []slackElement `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type slackElement struct {
	Type  string    `json:"type"`
	Text  slackText `json:"text"`
	URL   string    `json:"url"`
	Style string    `json:"style"`
}

// SendTestMessage sends a dummy job notification to verify the integration works.
func SendTestMessage(ctx context.Context, n model.Notifier) error {
	testJob := model.ClassifiedJob{
		JobRecord: model.JobRecord{
			ID:              "test-001",
			Title:           "Test Notification: Integration Verified",
			Employer:        "jobsync",
			Location:        "Berlin",
			ExternalURL:     "https://www.arbeitsagentur.de/jobsuche/",
			PublicationDate: time.Now().Format("2006-01-02"),
			Source:          "test",
		},
		Categories: []string{"Test"},
	}
	return n.Notify(ctx, "test", []model.ClassifiedJob{testJob})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func buildPayload(j model.ClassifiedJob) slackPayload {
	published := "Unknown"
	if j.PublicationDate != "" {
		published = j.PublicationDate
	}

	employer := orDash(j.Employer)
	source := capitalize(j.Source)

	blocks := []slackBlock{
		{
			Type: "header",
			Text: &slackText{Type: "plain_text", Text: employer + ": " + j.Title},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Employer:*\n" + employer},
				{Type: "mrkdwn", Text: "*Location:*\n" + orDash(j.Location)},
			},
		},
		{
			Type: "section",
			Fields: []slackText{
				{Type: "mrkdwn", Text: "*Published:*\n" + published},
				{Type: "mrkdwn", Text: "*Source:*\n" + orDash(source)},
			},
		},
		{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: "*Match:* " + strings.Join(j.Categories, ", ")},
		},
		{
			Type: "actions",
			Elements: []slackElement{
				{
					Type:  "button",
					Text:  slackText{Type: "plain_text", Text: "View Job"},
					URL:   j.ViewURL(),
					Style: "primary",
				},
			},
		},
		{Type: "divider"},
	}

	return slackPayload{Blocks: blocks}
}

func overflowPayload(sessionID string, rest int) slackPayload {
	text := fmt.Sprintf("…and %d more matches in session `%s`.", rest, sessionID)
	return slackPayload{Blocks: []slackBlock{
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}},
	}}
}
