package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSections_TableShape(t *testing.T) {
	secs := Sections()
	require.Len(t, secs, 10)

	// Every category member must resolve to a section in the table
	for _, cat := range SectionCategories() {
		for _, name := range cat.Sections {
			s, ok := SectionByName(name)
			require.True(t, ok, "category %s references unknown section %s", cat.Name, name)
			assert.Equal(t, cat.Name, s.Category)
		}
	}

	// Plan minutes and question counts are always positive
	for _, s := range secs {
		assert.Greater(t, s.PlanMinutes, 0.0, s.Name)
		assert.Greater(t, s.Questions, 0, s.Name)
	}
}

func TestSectionIndex_OrderAndUnknown(t *testing.T) {
	assert.Equal(t, 0, SectionIndex("politics"))
	assert.Equal(t, 9, SectionIndex("data-analysis"))

	// Unknown sections sort last
	assert.Equal(t, len(Sections()), SectionIndex("nonexistent"))
	assert.False(t, IsKnownSection("nonexistent"))
}

func TestPlanMinutesFor(t *testing.T) {
	assert.Equal(t, 25.0, PlanMinutesFor("data-analysis"))
	assert.Equal(t, 25.0, PlanMinutesFor("quantitative"))
	assert.Equal(t, 10.0, PlanMinutesFor("judgment-logic"))
	assert.Equal(t, 0.0, PlanMinutesFor("nonexistent"))
}

func TestPaperTemplates_TotalsAndScores(t *testing.T) {
	provincial, ok := PaperTemplateByName("provincial-125")
	require.True(t, ok)
	assert.Equal(t, 125, provincial.TotalQuestions())
	assert.InDelta(t, 100.0, provincial.MaxScore(), 0.0001)

	huasheng, ok := PaperTemplateByName("huasheng-120")
	require.True(t, ok)
	assert.Equal(t, 120, huasheng.TotalQuestions())
	assert.InDelta(t, 102.0, huasheng.MaxScore(), 0.0001)

	chaoge, ok := PaperTemplateByName("chaoge-125")
	require.True(t, ok)
	assert.Equal(t, 125, chaoge.TotalQuestions())

	// Template sections must all exist in the section table
	for _, tpl := range PaperTemplates() {
		for name := range tpl.Totals {
			assert.True(t, IsKnownSection(name), "%s references unknown section %s", tpl.Name, name)
		}
	}

	_, ok = PaperTemplateByName("nonexistent")
	assert.False(t, ok)
}
