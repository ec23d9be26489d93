package documents

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Rendered is the stored form of an AI answer. Content is the Markdown body
// written to storage; Extra carries type specific artifacts (html, css,
// mermaid) returned to the client and kept in metadata.
type Rendered struct {
	Content string
	Extra   map[string]any
}

// FormatResponse turns the "response" field of an AI answer into text: a
// string is used as is, an object yields its content or detail field or else
// its indented JSON.
func FormatResponse(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if s, ok := t["content"].(string); ok && s != "" {
			return s
		}
		if s, ok := t["detail"].(string); ok && s != "" {
			return s
		}
		b, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func renderPlain(response any) Rendered {
	return Rendered{Content: FormatResponse(response)}
}

func renderSRS(response any) Rendered {
	doc, ok := response.(map[string]any)
	if !ok {
		return renderPlain(response)
	}
	if _, hasTitle := doc["title"]; !hasTitle {
		if _, hasReq := doc["functional_requirements"]; !hasReq {
			return renderPlain(response)
		}
	}
	return Rendered{Content: FormatSRSMarkdown(doc)}
}

func renderWireframe(response any) Rendered {
	content := FormatResponse(response)
	html, css := ExtractHTMLCSS(content)
	return Rendered{
		Content: content,
		Extra:   map[string]any{"html": html, "css": css},
	}
}

func renderDiagram(response any) Rendered {
	var content string
	if m, ok := response.(map[string]any); ok {
		for _, key := range []string{"detail", "diagram_content", "content"} {
			if s, ok := m[key].(string); ok && s != "" {
				content = s
				break
			}
		}
	}
	if content == "" {
		content = FormatResponse(response)
	}
	return Rendered{
		Content: content,
		Extra:   map[string]any{"mermaid": ExtractMermaid(content)},
	}
}

// FormatSRSMarkdown renders the structured SRS answer
// {title, detail, functional_requirements, non_functional_requirements}.
func FormatSRSMarkdown(doc map[string]any) string {
	var lines []string

	title := strings.TrimSpace(stringField(doc, "title"))
	if title == "" {
		title = "Untitled Document"
	}
	lines = append(lines, "# "+title+"\n")

	if detail := strings.TrimSpace(stringField(doc, "detail")); detail != "" {
		lines = append(lines, "## Detailed Description\n", detail, "")
	}

	sections := []struct{ field, heading string }{
		{"functional_requirements", "## Functional Requirements\n"},
		{"non_functional_requirements", "## Non-Functional Requirements\n"},
	}
	for _, sec := range sections {
		text := strings.TrimSpace(stringField(doc, sec.field))
		if text == "" {
			continue
		}
		lines = append(lines, sec.heading)
		for _, item := range SplitRequirements(text) {
			lines = append(lines, "- "+item)
		}
		lines = append(lines, "")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var numberedItem = regexp.MustCompile(`(?:^|\s)\d+\.\s`)

// SplitRequirements splits a requirement block into items: one per line when
// the text has line breaks, otherwise at each "N. " marker.
func SplitRequirements(text string) []string {
	text = strings.TrimSpace(text)
	var items []string
	if strings.Contains(text, "\n") {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
		return items
	}

	locs := numberedItem.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if text != "" {
			items = append(items, text)
		}
		return items
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if item := strings.TrimSpace(text[loc[0]:end]); item != "" {
			items = append(items, item)
		}
	}
	return items
}

var (
	fencedJSON    = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(\\{.*?\\})\\s*\\n```")
	fencedHTML    = regexp.MustCompile("(?s)```(?:html)?\\s*\\n(.*?)\\n```")
	fencedMermaid = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")
)

// ExtractHTMLCSS pulls the wireframe markup out of an AI answer. A fenced
// JSON object {html, css} wins, then a fenced HTML block, then the raw text.
// Inline <style> elements are split into css when no css was given.
func ExtractHTMLCSS(content string) (html, css string) {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		var parsed struct {
			HTML string `json:"html"`
			CSS  string `json:"css"`
		}
		if err := json.Unmarshal([]byte(m[1]), &parsed); err == nil {
			html, css = parsed.HTML, parsed.CSS
		} else {
			html = content
		}
	} else if m := fencedHTML.FindStringSubmatch(content); m != nil {
		html = m[1]
	} else {
		html = content
	}

	html = strings.TrimSpace(html)
	if html == "" {
		html = content
	}
	if css == "" && strings.Contains(strings.ToLower(html), "<style") {
		if body, styles, err := splitStyles(html); err == nil {
			html, css = body, styles
		}
	}
	return html, strings.TrimSpace(css)
}

func splitStyles(markup string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", "", err
	}

	var css []string
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			css = append(css, text)
		}
	})
	doc.Find("style").Remove()

	var body string
	if strings.Contains(strings.ToLower(markup), "<html") {
		body, err = goquery.OuterHtml(doc.Selection.Children())
	} else {
		body, err = doc.Find("body").Html()
	}
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(body), strings.Join(css, "\n"), nil
}

// ExtractMermaid returns the body of the first ```mermaid block, or "".
func ExtractMermaid(content string) string {
	m := fencedMermaid.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, "\n")
	default:
		return fmt.Sprint(v)
	}
}
