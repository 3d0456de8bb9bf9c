package articulation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medtrack/internal/medication"
)

var sentinel = []medication.Contraindication{medication.NoContraindications}

func TestParseContraindications_Table(t *testing.T) {
	text := strings.Join([]string{
		"Here is what I found for this combination:",
		"",
		"| Seriousness | Description |",
		"| Very Serious | Increased bleeding risk |",
		"Note: consult your doctor.",
		"|  Moderate  |   Reduced effect of lisinopril  |",
		"| Minor | Mild stomach upset |",
		"",
		"Always read the label.",
	}, "\n")

	got := ParseContraindications(text)
	want := []medication.Contraindication{
		{Seriousness: "Very Serious", Description: "Increased bleeding risk"},
		{Seriousness: "Moderate", Description: "Reduced effect of lisinopril"},
		{Seriousness: "Minor", Description: "Mild stomach upset"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseContraindications mismatch (-want +got):\n%s", diff)
	}
}

func TestParseContraindications_RowCountMatches(t *testing.T) {
	for k := 1; k <= 6; k++ {
		var b strings.Builder
		b.WriteString("| Seriousness | Description |\n")
		for i := 0; i < k; i++ {
			fmt.Fprintf(&b, "| %s | row %d |\n", medication.SeriousnessLevels[i%4], i)
		}

		got := ParseContraindications(b.String())
		require.Len(t, got, k)
		for i, c := range got {
			assert.Equal(t, medication.SeriousnessLevels[i%4], c.Seriousness)
			assert.Equal(t, fmt.Sprintf("row %d", i), c.Description)
		}
	}
}

func TestParseContraindications_SeparatorRowIsKept(t *testing.T) {
	text := "| Seriousness | Description |\n|---|---|\n| Serious | Hypotension |"
	got := ParseContraindications(text)
	require.Len(t, got, 2)
	assert.Equal(t, "---", got[0].Seriousness)
	assert.Equal(t, medication.Contraindication{Seriousness: "Serious", Description: "Hypotension"}, got[1])
}

func TestParseContraindications_Sentinel(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"prose only", "No known interactions between these medications.\nStay hydrated."},
		{"header only", "| Seriousness | Description |"},
		{"rows too short", "| Seriousness | Description |\nMinor|\n|"},
		{"delimiter only on header", "Seriousness | Description\nnothing else"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, sentinel, ParseContraindications(tt.text))
		})
	}
}

func TestParseContraindications_NoLeadingDelimiterShiftsColumns(t *testing.T) {
	// Documented convention: cell 0 is assumed empty.
	got := ParseContraindications("Seriousness | Description | Notes\nSerious | Dizziness | rare")
	require.Len(t, got, 1)
	assert.Equal(t, "Dizziness", got[0].Seriousness)
	assert.Equal(t, "rare", got[0].Description)
}

func TestParseDescription(t *testing.T) {
	assert.Equal(t, "1. Pain\n2. Fever", ParseDescription("\n  1. Pain\n2. Fever \n"))
}

func TestGreeting(t *testing.T) {
	got := Greeting("Aspirin (81mg, Once daily), Lisinopril (10mg, Once daily)")
	assert.Equal(t,
		"Hello, I'm here to assist you. I understand that you're taking Aspirin, Lisinopril. How can I help you?",
		got)

	assert.Less(t, strings.Index(got, "Aspirin"), strings.Index(got, "Lisinopril"))
	for _, frag := range []string{"81mg", "10mg", "Once daily", "("} {
		assert.NotContains(t, got, frag)
	}
}

func TestGreeting_Empty(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t,
			"Hello, I'm here to assist you. I understand that you're taking . How can I help you?",
			Greeting(""))
	})
	assert.Equal(t, Greeting(""), Greeting("   "))
}

func TestGreeting_FromSummary(t *testing.T) {
	records := []medication.Record{
		{Name: "Metformin", Strength: "500mg", Frequency: "Twice daily, with meals"},
		{Name: "Vitamin D", Strength: "1000 IU", Frequency: "Daily"},
		{Name: "Metformin", Strength: "850mg", Frequency: "Nightly"},
	}
	assert.Equal(t, []string{"Metformin", "Vitamin D", "Metformin"}, SummaryNames(medication.Summary(records)))
}

func TestSummaryNames_WithoutParenthetical(t *testing.T) {
	assert.Equal(t, []string{"Aspirin", "Ibuprofen"}, SummaryNames("Aspirin, Ibuprofen"))
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t,
		"I am taking the following medications: Aspirin (81mg, Once daily). I have some questions about the medication.",
		SystemPrompt("Aspirin (81mg, Once daily)"))
}
