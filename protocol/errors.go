package protocol

import (
	"encoding/json"
	"strings"
)

// GenericErrorText is shown when no error detail can be extracted from an
// ERROR_MESSAGE payload.
const GenericErrorText = "An unexpected error occurred"

// ExtractErrorText pulls the best-available human-readable text out of an
// ERROR_MESSAGE payload. Backends wrap errors inconsistently, so the
// lookup tries, in order: data.data.content, data.content, content, the
// raw payload as a bare string, then GenericErrorText.
func ExtractErrorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return GenericErrorText
	}

	var node map[string]any
	if err := json.Unmarshal(raw, &node); err == nil {
		if s := dig(node, "data", "data", "content"); s != "" {
			return s
		}
		if s := dig(node, "data", "content"); s != "" {
			return s
		}
		if s := dig(node, "content"); s != "" {
			return s
		}
		return GenericErrorText
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return s
	}
	return GenericErrorText
}

// dig walks nested string-keyed maps and returns the string at the end of
// the path, or "" when any hop is missing or of the wrong type.
func dig(node map[string]any, path ...string) string {
	cur := any(node)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = m[key]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

// FormatErrorContent renders error text for the conversation log: a
// warning glyph on the first line and two-space indentation on
// continuation lines.
func FormatErrorContent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i == 0 {
			b.WriteString("⚠ " + line)
			continue
		}
		b.WriteString("\n  " + line)
	}
	return b.String()
}
