package adapter

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockElements end a line in the extracted text.
const blockElements = "p, li, div, h1, h2, h3, h4, tr"

// extractText converts an HTML or HTML-encoded string to plain text, one
// block element per line. Board APIs double-encode their content, so
// entities are unescaped before parsing.
func extractText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html.UnescapeString(content)))
	if err != nil {
		return collapse(content)
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockElements).AppendHtml("\n")
	return collapse(doc.Text())
}

// collapse squeezes runs of whitespace within each line and drops blank
// lines.
func collapse(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if l := strings.Join(strings.Fields(line), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
