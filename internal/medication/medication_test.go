package medication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	records := []Record{
		{Name: "Aspirin", Strength: "81mg", Frequency: "Once daily"},
		{Name: "Lisinopril", Strength: "10mg", Frequency: "Once daily"},
	}
	assert.Equal(t, "Aspirin (81mg, Once daily), Lisinopril (10mg, Once daily)", Summary(records))
	assert.Equal(t, "", Summary(nil))
}

func TestNames(t *testing.T) {
	records := []Record{{Name: "b"}, {Name: "a"}, {Name: "b"}}
	assert.Equal(t, []string{"b", "a", "b"}, Names(records))
	assert.Empty(t, Names(nil))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := []Record{{Name: "Aspirin"}}
	c := Clone(orig)
	c[0].Description = "pain"
	assert.Empty(t, orig[0].Description)
	assert.Nil(t, Clone(nil))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Record{Name: "Aspirin"}.Validate())
	assert.Error(t, Record{Name: "  "}.Validate())
}

func TestSeriousnessRank(t *testing.T) {
	assert.Equal(t, 0, SeriousnessRank(VerySerious))
	assert.Equal(t, 3, SeriousnessRank(Minor))
	assert.Equal(t, -1, SeriousnessRank(NotAvailable))
	assert.Equal(t, -1, SeriousnessRank("very serious"))
}
