package ocr

import (
	"fmt"
	"sort"
	"strings"
)

// PromptType selects a preset instruction for the OCR model.
type PromptType string

const (
	PromptMarkdown    PromptType = "markdown"
	PromptOCR         PromptType = "ocr"
	PromptFreeOCR     PromptType = "free_ocr"
	PromptParseFigure PromptType = "parse_figure"
	PromptDescribe    PromptType = "describe"
)

var prompts = map[PromptType]string{
	PromptMarkdown:    "<image>\n<|grounding|>Convert the document to markdown.",
	PromptOCR:         "<image>\n<|grounding|>OCR this image.",
	PromptFreeOCR:     "<image>\nFree OCR.",
	PromptParseFigure: "<image>\nParse the figure.",
	PromptDescribe:    "<image>\nDescribe this image in detail.",
}

// Prompt returns the preset text for t. Unknown types fall back to markdown.
func Prompt(t PromptType) string {
	if p, ok := prompts[PromptType(strings.ToLower(string(t)))]; ok {
		return p
	}
	return prompts[PromptMarkdown]
}

// PromptTypes lists the preset names.
func PromptTypes() []string {
	names := make([]string, 0, len(prompts))
	for t := range prompts {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// Mode is a resolution preset bounding the longest image side.
type Mode string

const (
	ModeTiny  Mode = "tiny"
	ModeSmall Mode = "small"
	ModeBase  Mode = "base"
	ModeLarge Mode = "large"
)

var modeSizes = map[Mode]int{
	ModeTiny:  512,
	ModeSmall: 640,
	ModeBase:  1024,
	ModeLarge: 1280,
}

// ParseMode validates a mode name. Empty selects base.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeBase, nil
	}
	m := Mode(strings.ToLower(s))
	if _, ok := modeSizes[m]; !ok {
		return "", fmt.Errorf("unknown mode %q (want tiny, small, base or large)", s)
	}
	return m, nil
}

// Size returns the longest-side bound in pixels, or 0 for an unknown mode.
func (m Mode) Size() int {
	return modeSizes[m]
}
