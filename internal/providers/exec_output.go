package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Exec backends print one JSON object on stdout. Model runtimes tend to log
// progress to stdout too, so the last parseable object wins.

var asrOutputSchema = jsonschema.MustCompileString("asr_output.json", `{
	"type": "object",
	"required": ["text"],
	"properties": {
		"text": {"type": "string"},
		"language": {"type": "string"},
		"duration": {"type": "number", "minimum": 0}
	}
}`)

var ttsOutputSchema = jsonschema.MustCompileString("tts_output.json", `{
	"type": "object",
	"anyOf": [
		{"required": ["audio_base64"]},
		{"required": ["path"]}
	],
	"properties": {
		"audio_base64": {"type": "string", "minLength": 1},
		"path": {"type": "string", "minLength": 1},
		"format": {"type": "string"},
		"sample_rate": {"type": "integer", "minimum": 1}
	}
}`)

// parseCommandOutput finds the JSON result in stdout and validates it.
func parseCommandOutput(stdout string, schema *jsonschema.Schema) (json.RawMessage, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, fmt.Errorf("command produced no output: %w", ErrEmptyResult)
	}

	candidates := []string{stdout}
	if stripped := stripCodeFences(stdout); stripped != "" {
		candidates = append(candidates, stripped)
	}
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); strings.HasPrefix(line, "{") {
			candidates = append(candidates, line)
		}
	}
	if extracted := extractJSONObject(stdout); extracted != "" {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		var doc any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			continue
		}
		if _, ok := doc.(map[string]any); !ok {
			continue
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("command output does not match schema: %w", err)
		}
		return json.RawMessage(candidate), nil
	}

	return nil, fmt.Errorf("no JSON object in command output: %.200q", stdout)
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONObject returns the span from the first '{' to the last '}'.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return ""
	}
	return strings.TrimSpace(content[start : end+1])
}
