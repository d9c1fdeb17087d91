package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amishk599/jobsync/internal/model"
)

var (
	resultLine = regexp.MustCompile(`^\[JOB_(\d+)\]\s*(?:→|->)\s*(.+)$`)
	idMarker   = "[JOB_"
)

// ParseResponse parses one "[JOB_NNN] → Label, Label" line per job. It
// returns the labels for positions 0..n-1 or a *model.BatchValidationError.
// Lines without a job marker are ignored.
func ParseResponse(text string, n int, c Criteria) ([][]string, error) {
	out := make([][]string, n)
	got := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if !strings.Contains(line, idMarker) {
			continue
		}

		m := resultLine.FindStringSubmatch(line)
		if m == nil {
			return nil, &model.BatchValidationError{Kind: model.UnparseableID, Detail: fmt.Sprintf("cannot parse line %q", line)}
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx >= n {
			return nil, &model.BatchValidationError{
				Kind:   model.UnparseableID,
				Detail: fmt.Sprintf("JOB_%s is outside the batch of %d", m[1], n),
			}
		}
		if out[idx] != nil {
			return nil, &model.BatchValidationError{Kind: model.DuplicateID, Detail: fmt.Sprintf("%s listed twice", JobKey(idx))}
		}

		labels, err := parseLabels(m[2], c)
		if err != nil {
			return nil, &model.BatchValidationError{Kind: model.UnknownLabel, Detail: fmt.Sprintf("%s: %v", JobKey(idx), err)}
		}
		out[idx] = labels
		got++
	}

	if got != n {
		var missing []int
		for i, labels := range out {
			if labels == nil {
				missing = append(missing, i)
			}
		}
		return nil, &model.BatchValidationError{Kind: model.WrongCount, Expected: n, Got: got, Missing: missing}
	}
	return out, nil
}

func parseLabels(s string, c Criteria) ([]string, error) {
	var labels []string
	for _, part := range strings.Split(s, ",") {
		label := strings.Trim(strings.TrimSpace(part), `"`)
		if label == "" {
			return nil, fmt.Errorf("empty label in %q", s)
		}
		if !c.Allowed(label) {
			return nil, fmt.Errorf("label %q is not one of %s", label, quoteJoin(c.Labels))
		}
		dup := false
		for _, l := range labels {
			if l == label {
				dup = true
				break
			}
		}
		if !dup {
			labels = append(labels, label)
		}
	}
	return labels, nil
}
