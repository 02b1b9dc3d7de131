// Package markup normalizes the annotated Markdown that grounding OCR models
// (DeepSeek-OCR, GLM-OCR) return.
//
// Model output interleaves Markdown with reference spans (<|ref|>label<|/ref|>)
// and detection spans (<|det|>[[x1,y1,x2,y2]]<|/det|>). The functions here strip
// or rewrite those spans and derive plain text or a structured view. None of
// them fail: any string, including malformed markup, yields a best-effort result.
package markup

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	refSpanRe     = regexp.MustCompile(`<\|ref\|>.*?<\|/ref\|>`)
	detSpanRe     = regexp.MustCompile(`<\|det\|>(\[\[.*?\]\])<\|/det\|>`)
	blankRunRe    = regexp.MustCompile(`\n{3,}`)
	tableRe       = regexp.MustCompile(`(?s)<table>.*?</table>`)
	headingLineRe = regexp.MustCompile(`(?m)^#+\s+.*$`)
	headingMarkRe = regexp.MustCompile(`(?m)^#+\s+`)
	headingRe     = regexp.MustCompile(`(?m)^(#+)\s+(.+)$`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// CleanOption configures Clean.
type CleanOption func(*cleanOptions)

type cleanOptions struct {
	keepCoordinates bool
}

// WithCoordinates keeps detection coordinates as inline code literals instead
// of dropping them.
func WithCoordinates() CleanOption {
	return func(o *cleanOptions) { o.keepCoordinates = true }
}

// Clean removes reference and detection spans from text, collapses runs of
// blank lines to a single blank line and trims whitespace.
//
// Spans are matched shortest-first and only when both markers are present, so
// unterminated tags are left in place. Clean is idempotent.
func Clean(text string, opts ...CleanOption) string {
	if text == "" {
		return ""
	}
	var o cleanOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Removing one span can join the halves of another; repeat until stable.
	cleaned := text
	for {
		next := stripSpans(cleaned, o.keepCoordinates)
		if next == cleaned {
			break
		}
		cleaned = next
	}

	// Trim lines before collapsing so whitespace-only lines count as blank.
	lines := strings.Split(cleaned, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	cleaned = strings.Join(lines, "\n")
	cleaned = collapseBlankLines(cleaned)

	return strings.TrimSpace(cleaned)
}

func stripSpans(text string, keepCoordinates bool) string {
	text = refSpanRe.ReplaceAllString(text, "")
	if keepCoordinates {
		return detSpanRe.ReplaceAllString(text, " `$1`")
	}
	return detSpanRe.ReplaceAllString(text, "")
}

func collapseBlankLines(text string) string {
	return blankRunRe.ReplaceAllString(text, "\n\n")
}

// ExtractTables returns every <table>...</table> block in document order,
// tags included. Blocks are not validated; each is the shortest span between
// an opening tag and the next closing tag.
func ExtractTables(text string) []string {
	return tableRe.FindAllString(text, -1)
}

// ExtractTextOnly returns the cleaned document without tables and headings.
func ExtractTextOnly(text string) string {
	cleaned := Clean(text)
	cleaned = tableRe.ReplaceAllString(cleaned, "")
	cleaned = headingLineRe.ReplaceAllString(cleaned, "")
	cleaned = collapseBlankLines(cleaned)
	return strings.TrimSpace(cleaned)
}

// ToPlainText returns the cleaned document with heading markers removed and
// each table flattened to a single " | "-separated line.
func ToPlainText(text string) string {
	cleaned := stripHeadingMarks(Clean(text))
	cleaned = tableRe.ReplaceAllStringFunc(cleaned, flattenTable)
	return strings.TrimSpace(cleaned)
}

// stripHeadingMarks removes heading markers until none start a line, so
// "# # x" loses both.
func stripHeadingMarks(text string) string {
	for {
		next := strings.TrimSpace(headingMarkRe.ReplaceAllString(text, ""))
		if next == text {
			return text
		}
		text = next
	}
}

func flattenTable(table string) string {
	table = htmlTagRe.ReplaceAllString(table, " | ")
	return whitespaceRe.ReplaceAllString(table, " ")
}

// Title is a Markdown heading.
type Title struct {
	Level int    `json:"level" yaml:"level"`
	Text  string `json:"text" yaml:"text"`
}

// Structured is a cleaned document split into headings, tables and paragraphs.
type Structured struct {
	Titles     []Title  `json:"titles" yaml:"titles"`
	Tables     []string `json:"tables" yaml:"tables"`
	Paragraphs []string `json:"paragraphs" yaml:"paragraphs"`
	FullText   string   `json:"full_text" yaml:"full_text"`
}

// FormatWithStructure decomposes text into headings, tables and paragraphs.
// Tables are taken from the raw input so their markup is preserved verbatim.
func FormatWithStructure(text string) Structured {
	cleaned := Clean(text)

	titles := []Title{}
	for _, m := range headingRe.FindAllStringSubmatch(cleaned, -1) {
		titles = append(titles, Title{Level: len(m[1]), Text: m[2]})
	}

	tables := ExtractTables(text)
	if tables == nil {
		tables = []string{}
	}

	body := headingLineRe.ReplaceAllString(cleaned, "")
	body = tableRe.ReplaceAllString(body, "")

	paragraphs := []string{}
	for _, p := range strings.Split(body, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	return Structured{
		Titles:     titles,
		Tables:     tables,
		Paragraphs: paragraphs,
		FullText:   cleaned,
	}
}
