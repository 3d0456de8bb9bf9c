package articulation

import (
	"fmt"
	"strings"
)

// =============================================================================
// CONTEXT COMPOSITION
// =============================================================================

const (
	greetingTemplate     = "Hello, I'm here to assist you. I understand that you're taking %s. How can I help you?"
	systemPromptTemplate = "I am taking the following medications: %s. I have some questions about the medication."
	entrySeparator       = ", "
)

// Greeting derives the chat greeting from a medication summary in the
// medication.Summary format: entries "Name (strength, frequency)" joined by
// ", ". Only the names are kept, in order. An empty summary yields the
// template with an empty name list.
func Greeting(summary string) string {
	return fmt.Sprintf(greetingTemplate, strings.Join(SummaryNames(summary), entrySeparator))
}

// SystemPrompt builds the system role for chat requests.
func SystemPrompt(summary string) string {
	return fmt.Sprintf(systemPromptTemplate, summary)
}

// SummaryNames splits a summary into entries and strips the parenthetical
// suffix of each. The separator inside "(strength, frequency)" does not split
// an entry.
func SummaryNames(summary string) []string {
	if strings.TrimSpace(summary) == "" {
		return nil
	}

	var names []string
	for _, entry := range splitTopLevel(summary) {
		name, _, _ := strings.Cut(entry, " (")
		names = append(names, strings.TrimSpace(name))
	}
	return names
}

// splitTopLevel splits s on entrySeparator occurrences outside parentheses.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case entrySeparator[0]:
			if depth == 0 && strings.HasPrefix(s[i:], entrySeparator) {
				parts = append(parts, s[start:i])
				start = i + len(entrySeparator)
				i += len(entrySeparator) - 1
			}
		}
	}
	return append(parts, s[start:])
}
