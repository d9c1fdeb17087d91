// Package classify turns batches of job records into labeled results using an
// LLM and a strict line protocol.
package classify

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/amishk599/jobsync/internal/checkpoint"
	"gopkg.in/yaml.v3"
)

// Workflow names.
const (
	WorkflowMultiCategory = "multi-category"
	WorkflowCVBased       = "cv-based"
	WorkflowPerfectJob    = "perfect-job"
)

// Labels shared by the matching workflows.
const (
	LabelOther     = "Andere"
	LabelExcellent = "Excellent Match"
	LabelGood      = "Good Match"
	LabelPoor      = "Poor Match"
)

// DefaultCategories is used when no categories file is configured.
var DefaultCategories = []Category{
	{Name: "Projektleitung"},
	{Name: "Agile Projektentwicklung"},
	{Name: "Java"},
	{Name: "Python"},
	{Name: "TypeScript"},
	{Name: "C#/.NET"},
	{Name: "Industrie"},
}

// Category is one entry of the categories file.
type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Criteria is what a batch is classified against.
type Criteria struct {
	Workflow string
	Labels   []string // the complete allowed label set
	Fallback string   // label to use when nothing else applies
	Guidance []string // extra instructions, each rendered once
	Matches  []string // labels counted as a match for return-only-matches
}

// Allowed reports whether label is in the label set.
func (c Criteria) Allowed(label string) bool {
	return slices.Contains(c.Labels, label)
}

// Fingerprint identifies the criteria for checkpoint resume checks.
func (c Criteria) Fingerprint() string {
	parts := []string{c.Workflow, c.Fallback}
	parts = append(parts, c.Labels...)
	parts = append(parts, c.Guidance...)
	return checkpoint.Digest(parts...)
}

// MultiCategory builds criteria for free category classification. The
// fallback label is appended if the categories do not name it.
func MultiCategory(cats []Category) (Criteria, error) {
	if len(cats) == 0 {
		return Criteria{}, errors.New("at least one category is required")
	}
	c := Criteria{Workflow: WorkflowMultiCategory, Fallback: LabelOther}
	for _, cat := range cats {
		name := strings.TrimSpace(cat.Name)
		if name == "" {
			return Criteria{}, errors.New("category with empty name")
		}
		if c.Allowed(name) {
			return Criteria{}, fmt.Errorf("duplicate category %q", name)
		}
		c.Labels = append(c.Labels, name)
		if d := strings.TrimSpace(cat.Description); d != "" {
			c.Guidance = append(c.Guidance, fmt.Sprintf("%s: %s", name, d))
		}
	}
	if !c.Allowed(LabelOther) {
		c.Labels = append(c.Labels, LabelOther)
	}
	c.Matches = slices.DeleteFunc(slices.Clone(c.Labels), func(l string) bool { return l == LabelOther })
	return c, nil
}

// CVBased builds criteria that rate each job against a CV.
func CVBased(cv string) (Criteria, error) {
	if strings.TrimSpace(cv) == "" {
		return Criteria{}, errors.New("cv content is empty")
	}
	return Criteria{
		Workflow: WorkflowCVBased,
		Labels:   []string{LabelExcellent, LabelGood, LabelPoor},
		Fallback: LabelPoor,
		Guidance: []string{fmt.Sprintf(cvProfileTemplate, cv) + "\n" + cvCriteria},
		Matches:  []string{LabelExcellent, LabelGood},
	}, nil
}

// PerfectJob builds criteria that rate each job against a description of the
// ideal role.
func PerfectJob(description string) (Criteria, error) {
	if strings.TrimSpace(description) == "" {
		return Criteria{}, errors.New("perfect job description is empty")
	}
	return Criteria{
		Workflow: WorkflowPerfectJob,
		Labels:   []string{LabelExcellent, LabelGood, LabelOther},
		Fallback: LabelOther,
		Guidance: []string{
			"Excellent Match: the job is very close to this description of the candidate's perfect job:\n" + strings.TrimSpace(description),
			"Good Match: the job aligns well with the description but not perfectly.",
		},
		Matches: []string{LabelExcellent, LabelGood},
	}, nil
}

// LoadCategories reads a categories YAML file:
//
//	categories:
//	  - name: Python
//	    description: Backend roles with Python as the main language
func LoadCategories(path string) ([]Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading categories file: %w", err)
	}
	var raw struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing categories file: %w", err)
	}
	if len(raw.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s lists no categories", path)
	}
	return raw.Categories, nil
}

// ReadTextArg returns the content of arg if it names a readable file, else
// arg itself. Used for --perfect-job, which accepts a path or inline text.
func ReadTextArg(arg string) string {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		if data, err := os.ReadFile(arg); err == nil {
			return string(data)
		}
	}
	return arg
}

const cvProfileTemplate = `You are matching jobs against this candidate's CV. Be STRICT and SELECTIVE.

============================================================
CANDIDATE PROFILE (CV)
============================================================
%s
============================================================
END OF CANDIDATE PROFILE
============================================================
`

const cvCriteria = `Match jobs against the candidate's CV using these criteria (expect most jobs to be Poor Match):

Excellent Match: the job's core requirements match the candidate's primary specialization and recent experience, at the right seniority, in a related industry.

Good Match: most core requirements align with demonstrated experience; missing skills are learnable; the domain is closely related. Mere language or tool overlap is not enough.

Poor Match: core requirements diverge from the candidate's specialization, the seniority does not fit, the domain is unrelated, or the description is too vague to judge.

Match on specialization and domain, not just programming languages. Recent experience weighs more than old experience. When in doubt between Good and Poor, choose Poor.`
