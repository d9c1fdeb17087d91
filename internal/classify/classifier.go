package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobsync/internal/ai"
	"github.com/amishk599/jobsync/internal/model"
)

// InteractionLog records prompt/response pairs, e.g. a session's llm_log.md.
type InteractionLog interface {
	AppendLLMInteraction(label, prompt, response string) error
}

// Classifier implements model.BatchClassifier on top of an LLM provider.
type Classifier struct {
	provider ai.LLMProvider
	criteria Criteria
	maxChars int
	model    string
	log      InteractionLog
	logger   *slog.Logger
	calls    int
}

// NewClassifier creates a classifier. maxChars limits the job text sent per
// job; model is only used for log labels.
func NewClassifier(provider ai.LLMProvider, criteria Criteria, maxChars int, model string, logger *slog.Logger) *Classifier {
	return &Classifier{
		provider: provider,
		criteria: criteria,
		maxChars: maxChars,
		model:    model,
		logger:   logger,
	}
}

// SetInteractionLog makes the classifier record every prompt and response.
func (c *Classifier) SetInteractionLog(l InteractionLog) {
	c.log = l
}

// Criteria returns what the classifier classifies against.
func (c *Classifier) Criteria() Criteria { return c.criteria }

// ClassifyBatch sends one prompt for the whole batch and validates the
// response strictly. Any malformed response fails the batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, batch []model.JobRecord) ([]model.ClassifiedJob, error) {
	c.calls++
	prompt, err := BuildPrompt(c.criteria, batch, c.maxChars)
	if err != nil {
		return nil, err
	}
	if len(prompt.Truncated) > 0 {
		c.logger.Warn("job texts truncated for prompt",
			"truncated", len(prompt.Truncated),
			"batch_size", len(batch),
			"limit", c.maxChars,
		)
	}

	resp, err := c.provider.Complete(ctx, prompt.Text)
	if err != nil {
		return nil, fmt.Errorf("llm complete: %w", err)
	}

	if c.log != nil {
		label := fmt.Sprintf("Batch %d (model %s)", c.calls, c.model)
		if err := c.log.AppendLLMInteraction(label, prompt.Text, resp); err != nil {
			c.logger.Warn("failed to record llm interaction", "error", err)
		}
	}

	labels, err := ParseResponse(resp, len(batch), c.criteria)
	if err != nil {
		return nil, err
	}

	out := make([]model.ClassifiedJob, len(batch))
	for i, rec := range batch {
		out[i] = model.ClassifiedJob{JobRecord: rec, Categories: labels[i]}
		if orig, ok := prompt.Truncated[i]; ok {
			out[i].WasTruncated = true
			out[i].OriginalLength = orig
		}
	}
	return out, nil
}

// Matches keeps the jobs labeled with one of the criteria's match labels.
func Matches(jobs []model.ClassifiedJob, c Criteria) []model.ClassifiedJob {
	var out []model.ClassifiedJob
	for _, j := range jobs {
		if j.HasCategory(c.Matches...) {
			out = append(out, j)
		}
	}
	return out
}
