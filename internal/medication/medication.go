// Package medication holds the records a profile tracks and the
// contraindication rows derived from them.
package medication

import (
	"fmt"
	"slices"
	"strings"
)

// Record is a single medication entry.
//
// Description is empty until the record has been enriched by a
// reconciliation. Editing Name leaves Description stale until the next one.
type Record struct {
	Name        string
	Strength    string
	Frequency   string
	Description string
}

// Label renders the record the way it is listed to the language model:
// "Name (strength, frequency)".
func (r Record) Label() string {
	return fmt.Sprintf("%s (%s, %s)", r.Name, r.Strength, r.Frequency)
}

// Validate checks the fields a user must supply.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("medication name is required")
	}
	return nil
}

// Seriousness labels used in contraindication tables.
const (
	VerySerious  = "Very Serious"
	Serious      = "Serious"
	Moderate     = "Moderate"
	Minor        = "Minor"
	NotAvailable = "N/A"
)

// SeriousnessLevels lists the closed label set, most serious first.
var SeriousnessLevels = []string{VerySerious, Serious, Moderate, Minor}

// SeriousnessRank returns the position of label in SeriousnessLevels, or -1
// for labels outside the set.
func SeriousnessRank(label string) int {
	return slices.Index(SeriousnessLevels, label)
}

// Contraindication is one row of a contraindication table.
type Contraindication struct {
	Seriousness string
	Description string
}

// NoContraindications is the sentinel returned when a response holds no
// usable table rows.
var NoContraindications = Contraindication{
	Seriousness: NotAvailable,
	Description: "No contraindications found.",
}

// Clone returns a copy of records that shares no backing array with the input.
// Units of work receive clones so they never touch a list the interaction
// loop owns.
func Clone(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Names returns the record names in order.
func Names(records []Record) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	return names
}

// Summary joins the record labels with ", ". It is the input format expected
// by articulation.Greeting and articulation.SystemPrompt.
func Summary(records []Record) string {
	labels := make([]string, 0, len(records))
	for _, r := range records {
		labels = append(labels, r.Label())
	}
	return strings.Join(labels, ", ")
}
