// Package articulation turns raw language-model text into structured records
// and composes the text medtrack sends back to the model.
package articulation

import (
	"strings"

	"medtrack/internal/medication"
)

// =============================================================================
// RESPONSE PARSING
// =============================================================================

// cellDelimiter separates table cells in model responses.
const cellDelimiter = "|"

// ParseContraindications extracts contraindication rows from a
// delimiter-separated table embedded in free text.
//
// The first line containing the delimiter is the header and is skipped. Every
// later line containing it is split into cells; rows with fewer than three
// cells are dropped. Cell 1 is the seriousness and cell 2 the description,
// because a leading delimiter leaves cell 0 empty. Lines without the delimiter
// are prose and ignored.
//
// It never fails: when no row is accepted the result is the single
// medication.NoContraindications sentinel.
func ParseContraindications(text string) []medication.Contraindication {
	lines := strings.Split(text, "\n")

	start := len(lines)
	for i, line := range lines {
		if strings.Contains(line, cellDelimiter) {
			start = i + 1
			break
		}
	}

	var rows []medication.Contraindication
	for _, line := range lines[start:] {
		if !strings.Contains(line, cellDelimiter) {
			continue
		}
		cells := strings.Split(line, cellDelimiter)
		if len(cells) < 3 {
			continue
		}
		rows = append(rows, medication.Contraindication{
			Seriousness: strings.TrimSpace(cells[1]),
			Description: strings.TrimSpace(cells[2]),
		})
	}

	if len(rows) == 0 {
		return []medication.Contraindication{medication.NoContraindications}
	}
	return rows
}

// ParseDescription normalizes a description response.
func ParseDescription(text string) string {
	return strings.TrimSpace(text)
}
