package planning

import "strings"

// ExtractMermaid pulls the first ```mermaid fenced block out of a
// completion. Returns false when no complete block is present.
func ExtractMermaid(content string) (string, bool) {
	start := strings.Index(content, "```mermaid")
	if start == -1 {
		return "", false
	}

	rest := content[start+len("```mermaid"):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}

	return strings.TrimSpace(rest[:end]), true
}
