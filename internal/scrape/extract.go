package scrape

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/amishk599/jobsync/internal/model"
)

// Extraction methods, recorded for statistics.
const (
	MethodSelector  = "css_selector"
	MethodJSONLD    = "json_ld"
	MethodHeavyDiv  = "content_heavy_div"
	MethodParagraph = "paragraph_aggregation"
	MethodBody      = "body"
)

// Extraction is the outcome of parsing one page. Warning is empty on success.
type Extraction struct {
	Text    string
	Method  string
	Warning string
}

// OK reports whether usable text was extracted.
func (e Extraction) OK() bool { return e.Warning == "" && e.Text != "" }

const (
	jsRequiredMaxChars = 500
	minParagraphChars  = 20
)

var (
	internalSelectors = []string{"#detail-beschreibung-beschreibung", "jb-steadetail-beschreibung"}
	externalSelectors = []string{"main", "article", "[role=main]"}

	noiseSelector = "script, style, noscript, nav, header, footer, aside, iframe"
	noiseClass    = regexp.MustCompile(`(?i)(nav|menu|sidebar|breadcrumb|cookie|popup|consent)`)
	contentClass  = regexp.MustCompile(`(?i)(content|job|detail|description)`)
	contentID     = regexp.MustCompile(`(?i)(content|job|detail|main)`)

	blockSelector = "p, div, li, br, tr, section, article, main, ul, ol, h1, h2, h3, h4, h5, h6, dd, dt"
)

// ParseInternal extracts the description from an Arbeitsagentur detail page.
// Length is not checked: the section is the description, however short.
func ParseInternal(html string) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{}, fmt.Errorf("parsing html: %w", err)
	}
	doc.Find(noiseSelector).Remove()

	for _, sel := range internalSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text := blockText(s); text != "" {
				return Extraction{Text: text, Method: MethodSelector}, nil
			}
		}
	}

	body := blockText(doc.Find("body"))
	if isJSRequired(body) {
		return Extraction{Text: body, Method: MethodBody, Warning: model.WarningJSRequired}, nil
	}
	return Extraction{Method: MethodSelector, Warning: model.WarningNoContent}, nil
}

// ParseExternal extracts a job description from an arbitrary employer page,
// trying in order: JSON-LD JobPosting data, semantic containers, the largest
// div, and all paragraphs.
func ParseExternal(html string, minChars int) (Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Extraction{}, fmt.Errorf("parsing html: %w", err)
	}

	if text := jsonLDDescription(doc); runeLen(text) >= minChars {
		return Extraction{Text: text, Method: MethodJSONLD}, nil
	}

	removeNoise(doc)

	if main := mainContent(doc); main != nil {
		text := blockText(main)
		if runeLen(text) >= minChars {
			return Extraction{Text: text, Method: MethodSelector}, nil
		}
		if isJSRequired(text) {
			return Extraction{Text: text, Method: MethodSelector, Warning: model.WarningJSRequired}, nil
		}
	}

	if text := heaviestDiv(doc); runeLen(text) >= minChars {
		return Extraction{Text: text, Method: MethodHeavyDiv}, nil
	}

	if text := paragraphs(doc); runeLen(text) >= minChars {
		return Extraction{Text: text, Method: MethodParagraph}, nil
	}

	body := blockText(doc.Find("body"))
	switch {
	case body == "":
		return Extraction{Method: MethodBody, Warning: model.WarningNoContent}, nil
	case isJSRequired(body):
		return Extraction{Text: body, Method: MethodBody, Warning: model.WarningJSRequired}, nil
	case runeLen(body) < minChars:
		return Extraction{Text: body, Method: MethodBody, Warning: model.WarningTooShort}, nil
	default:
		return Extraction{Text: body, Method: MethodBody}, nil
	}
}

func removeNoise(doc *goquery.Document) {
	doc.Find(noiseSelector).Remove()
	doc.Find("body [class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return noiseClass.MatchString(class)
	}).Remove()
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range externalSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if s := doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return contentClass.MatchString(class)
	}).First(); s.Length() > 0 {
		return s
	}
	if s := doc.Find("div[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return contentID.MatchString(id)
	}).First(); s.Length() > 0 {
		return s
	}
	return nil
}

func heaviestDiv(doc *goquery.Document) string {
	var best string
	bestLen := 0
	doc.Find("div").Each(func(_ int, s *goquery.Selection) {
		text := blockText(s)
		if n := runeLen(text); n > bestLen {
			best, bestLen = text, n
		}
	})
	return best
}

func paragraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		text := blockText(s)
		if runeLen(text) > minParagraphChars {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

// jsonLDDescription returns the plain-text description of the first
// JobPosting found in the page's JSON-LD blocks.
func jsonLDDescription(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if desc := findJobPosting(data); desc != "" {
			found = htmlToText(desc)
			return false
		}
		return true
	})
	return found
}

func findJobPosting(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if d := findJobPosting(item); d != "" {
				return d
			}
		}
	case map[string]any:
		if isJobPostingType(t["@type"]) {
			if d, ok := t["description"].(string); ok {
				return d
			}
		}
		if graph, ok := t["@graph"]; ok {
			return findJobPosting(graph)
		}
	}
	return ""
}

func isJobPostingType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, x := range t {
			if s, ok := x.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

// htmlToText renders an HTML fragment (JSON-LD descriptions usually carry
// markup) as text.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return cleanText(fragment)
	}
	return blockText(doc.Find("body"))
}

// blockText returns the selection's text with one line per block element.
func blockText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	s = s.Clone()
	s.Find(blockSelector).AppendHtml("\n")
	return cleanText(s.Text())
}

// cleanText collapses whitespace inside lines and drops empty lines.
func cleanText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func isJSRequired(text string) bool {
	return text != "" && runeLen(text) < jsRequiredMaxChars && strings.Contains(strings.ToLower(text), "javascript")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
