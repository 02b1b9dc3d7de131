package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/agent-tools/modelkit/internal/api"
	"github.com/agent-tools/modelkit/internal/markup"
)

// Rendering formats accepted by --format.
const (
	formatMarkdown  = "markdown"
	formatRaw       = "raw"
	formatText      = "text"
	formatTextOnly  = "text-only"
	formatStructure = "structure"
	formatTables    = "tables"
	formatHTML      = "html"
)

var renderFormats = []string{formatMarkdown, formatRaw, formatText, formatTextOnly, formatStructure, formatTables, formatHTML}

const formatUsage = "output rendering: markdown, raw, text, text-only, structure, tables, html"

// table is the structured form of one extracted table.
type table struct {
	HTML string     `json:"html" yaml:"html"`
	Rows [][]string `json:"rows" yaml:"rows"`
}

// render converts annotated model output into the requested format.
// structure and tables are encoded with the --output format.
func render(text, format string, keepCoordinates bool) (string, error) {
	switch strings.ToLower(format) {
	case "", formatMarkdown:
		if keepCoordinates {
			return markup.Clean(text, markup.WithCoordinates()), nil
		}
		return markup.Clean(text), nil
	case formatRaw:
		return text, nil
	case formatText:
		return markup.ToPlainText(text), nil
	case formatTextOnly:
		return markup.ExtractTextOnly(text), nil
	case formatHTML:
		return markup.RenderHTML(text)
	case formatStructure:
		return encode(markup.FormatWithStructure(text))
	case formatTables:
		tables := []table{}
		for _, t := range markup.ExtractTables(text) {
			tables = append(tables, table{HTML: t, Rows: markup.TableRows(t)})
		}
		return encode(tables)
	default:
		return "", fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(renderFormats, ", "))
	}
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	if err := api.Output(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// outputExt picks a file extension for a rendering format.
func outputExt(format string) string {
	switch strings.ToLower(format) {
	case formatText, formatTextOnly:
		return ".txt"
	case formatHTML:
		return ".html"
	case formatStructure, formatTables:
		if api.GetOutputFormat() == api.OutputFormatJSON {
			return ".json"
		}
		return ".yaml"
	default:
		return ".md"
	}
}
