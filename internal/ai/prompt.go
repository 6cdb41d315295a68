package ai

import "strings"

// BuildPrompt appends the last window history lines to the base prompt
func BuildPrompt(basePrompt string, history []string, window int) string {
	start := 0
	if window > 0 && len(history) > window {
		start = len(history) - window
	}

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString("\n\n")
	for _, line := range history[start:] {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
