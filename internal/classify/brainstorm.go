package classify

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/amishk599/jobsync/internal/ai"
)

//go:embed prompts/brainstorm.tmpl
var brainstormPromptRaw string

var brainstormTemplate = template.Must(template.New("brainstorm").Parse(brainstormPromptRaw))

// ErrNoBrainstormInput is returned when neither a CV nor a motivation is given.
var ErrNoBrainstormInput = errors.New("brainstorm needs a CV or a motivation description")

// Suggestion is a job title worth searching for.
type Suggestion struct {
	Title      string
	Confidence string // High, Medium, Low or empty
	Why        string
	Variations []string
}

// BrainstormPrompt renders the title brainstorming prompt. Either input may
// be empty, not both.
func BrainstormPrompt(cv, motivation string) (string, error) {
	cv, motivation = strings.TrimSpace(cv), strings.TrimSpace(motivation)
	if cv == "" && motivation == "" {
		return "", ErrNoBrainstormInput
	}
	var sb strings.Builder
	err := brainstormTemplate.Execute(&sb, struct{ CV, Motivation string }{cv, motivation})
	if err != nil {
		return "", fmt.Errorf("rendering brainstorm prompt: %w", err)
	}
	return sb.String(), nil
}

// Brainstorm asks the provider for job titles matching a CV and motivation.
func Brainstorm(ctx context.Context, provider ai.LLMProvider, cv, motivation string) ([]Suggestion, error) {
	prompt, err := BrainstormPrompt(cv, motivation)
	if err != nil {
		return nil, err
	}
	resp, err := provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("brainstorm request: %w", err)
	}
	out := ParseSuggestions(resp)
	if len(out) == 0 {
		return nil, fmt.Errorf("no job titles in response %q", truncate(resp, 200))
	}
	return out, nil
}

// ParseSuggestions reads "TITLE: x | CONFIDENCE: y | WHY: z | VARIATIONS: a, b"
// lines. Other lines are ignored and repeated titles keep their first line.
func ParseSuggestions(text string) []Suggestion {
	var out []Suggestion
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789."))
		if !strings.HasPrefix(strings.ToUpper(line), "TITLE:") {
			continue
		}

		var s Suggestion
		for _, field := range strings.Split(line, "|") {
			key, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)
			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "TITLE":
				s.Title = strings.Trim(value, `"*`)
			case "CONFIDENCE":
				s.Confidence = confidence(value)
			case "WHY":
				s.Why = value
			case "VARIATIONS":
				for _, v := range strings.Split(value, ",") {
					if v = strings.TrimSpace(v); v != "" {
						s.Variations = append(s.Variations, v)
					}
				}
			}
		}

		key := strings.ToLower(s.Title)
		if s.Title == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func confidence(v string) string {
	for _, c := range []string{"High", "Medium", "Low"} {
		if strings.EqualFold(v, c) {
			return c
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
