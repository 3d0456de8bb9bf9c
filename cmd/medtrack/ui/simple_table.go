package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"medtrack/internal/medication"
)

// SimpleTable renders static rows, such as a contraindication table inside the
// chat transcript.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewSimpleTable creates a table with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:   title,
		Headers: headers,
		Rows:    make([][]string, 0),
	}
}

// ContraindicationTable builds a table from parsed contraindication rows.
func ContraindicationTable(rows []medication.Contraindication) *SimpleTable {
	t := NewSimpleTable("Contraindications", []string{"Seriousness", "Description"})
	for _, r := range rows {
		t.AddRow(r.Seriousness, r.Description)
	}
	return t
}

// AddRow adds a row.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// View renders the table. Cells in the first column are colored by
// seriousness when they hold one of the known labels.
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(cell); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}
	// Width includes the one-cell padding on each side.
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("|")

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(t.Headers) - 1
	for _, w := range colWidths {
		total += w
	}
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range t.Rows {
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			style := rowStyle
			if i == 0 {
				style = seriousnessStyle(styles, cell).Padding(0, 1)
			}
			sb.WriteString(style.Width(colWidths[i]).Render(cell))
			if i < len(row)-1 && i < len(colWidths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// seriousnessStyle colors a label by its rank, most serious first.
func seriousnessStyle(styles Styles, label string) lipgloss.Style {
	palette := []lipgloss.Style{styles.Error, styles.Warning, styles.Info, styles.Success}
	if rank := medication.SeriousnessRank(label); rank >= 0 && rank < len(palette) {
		return palette[rank]
	}
	return styles.Body
}
