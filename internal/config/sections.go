package config

// SectionKind classifies a section for advice and task generation. Canned
// drill wording is selected by kind, never by parsing section names.
type SectionKind string

const (
	// KindKnowledge covers memorization-heavy sections (politics, common knowledge)
	KindKnowledge SectionKind = "knowledge"
	// KindVerbal covers verbal comprehension sections
	KindVerbal SectionKind = "verbal"
	// KindQuantitative covers quantitative relations
	KindQuantitative SectionKind = "quantitative"
	// KindJudgment covers figure, definition and analogy judgment
	KindJudgment SectionKind = "judgment"
	// KindLogic covers logical judgment, which has its own pacing strategy
	KindLogic SectionKind = "logic"
	// KindDataAnalysis covers data analysis passages
	KindDataAnalysis SectionKind = "data"
)

// Section describes one scoreable leaf section of the aptitude test.
type Section struct {
	// Name is the stable identifier used in storage and APIs
	Name string `json:"name" yaml:"name"`
	// Label is the display name (Chinese)
	Label string `json:"label" yaml:"label"`
	// Category groups sections under their exam part
	Category string `json:"category" yaml:"category"`
	// Kind selects advice and drill templates
	Kind SectionKind `json:"kind" yaml:"kind"`
	// Questions is the default question count for this section
	Questions int `json:"questions" yaml:"questions"`
	// PlanMinutes is the recommended time budget
	PlanMinutes float64 `json:"plan_minutes" yaml:"plan_minutes"`
}

// SectionCategory is a display grouping of leaf sections.
type SectionCategory struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Sections []string `json:"sections"`
}

// sections is the canonical section table in exam paper order. Order matters:
// it is the tie-break for every ranking in diagnostics and planning.
var sections = []Section{
	{Name: "politics", Label: "政治理论", Category: "politics", Kind: KindKnowledge, Questions: 15, PlanMinutes: 5.0},
	{Name: "common-knowledge", Label: "常识判断", Category: "common-knowledge", Kind: KindKnowledge, Questions: 15, PlanMinutes: 5.0},
	{Name: "verbal-cloze", Label: "言语-逻辑填空", Category: "verbal", Kind: KindVerbal, Questions: 10, PlanMinutes: 5.0},
	{Name: "verbal-reading", Label: "言语-片段阅读", Category: "verbal", Kind: KindVerbal, Questions: 15, PlanMinutes: 12.0},
	{Name: "quantitative", Label: "数量关系", Category: "quantitative", Kind: KindQuantitative, Questions: 15, PlanMinutes: 25.0},
	{Name: "judgment-figure", Label: "判断-图形推理", Category: "judgment", Kind: KindJudgment, Questions: 5, PlanMinutes: 6.0},
	{Name: "judgment-definition", Label: "判断-定义判断", Category: "judgment", Kind: KindJudgment, Questions: 10, PlanMinutes: 6.0},
	{Name: "judgment-analogy", Label: "判断-类比推理", Category: "judgment", Kind: KindJudgment, Questions: 10, PlanMinutes: 5.0},
	{Name: "judgment-logic", Label: "判断-逻辑判断", Category: "judgment", Kind: KindLogic, Questions: 10, PlanMinutes: 10.0},
	{Name: "data-analysis", Label: "资料分析", Category: "data-analysis", Kind: KindDataAnalysis, Questions: 20, PlanMinutes: 25.0},
}

var categories = []SectionCategory{
	{Name: "politics", Label: "政治理论", Sections: []string{"politics"}},
	{Name: "common-knowledge", Label: "常识判断", Sections: []string{"common-knowledge"}},
	{Name: "verbal", Label: "言语理解", Sections: []string{"verbal-cloze", "verbal-reading"}},
	{Name: "quantitative", Label: "数量关系", Sections: []string{"quantitative"}},
	{Name: "judgment", Label: "判断推理", Sections: []string{"judgment-figure", "judgment-definition", "judgment-analogy", "judgment-logic"}},
	{Name: "data-analysis", Label: "资料分析", Sections: []string{"data-analysis"}},
}

// Sections returns the section table in exam paper order.
func Sections() []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}

// SectionCategories returns the display grouping of sections.
func SectionCategories() []SectionCategory {
	out := make([]SectionCategory, len(categories))
	copy(out, categories)
	return out
}

// SectionNames returns the leaf section names in exam paper order.
func SectionNames() []string {
	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	return names
}

// SectionByName looks up a section by its stable name.
func SectionByName(name string) (Section, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// SectionIndex returns the position of a section in exam paper order, or
// len(sections) for unknown names so they sort last.
func SectionIndex(name string) int {
	for i, s := range sections {
		if s.Name == name {
			return i
		}
	}
	return len(sections)
}

// IsKnownSection reports whether the name is in the section table.
func IsKnownSection(name string) bool {
	_, ok := SectionByName(name)
	return ok
}

// PlanMinutesFor returns the recommended time budget for a section, 0 for
// unknown sections.
func PlanMinutesFor(name string) float64 {
	if s, ok := SectionByName(name); ok {
		return s.PlanMinutes
	}
	return 0
}

// PaperTemplate describes a mock paper: per-question score weight and the
// question count of each section.
type PaperTemplate struct {
	// Name is the stable identifier
	Name string `json:"name"`
	// Label is the display name (Chinese)
	Label string `json:"label"`
	// Weight is the score value of a single question
	Weight float64 `json:"weight"`
	// Totals maps section name to question count
	Totals map[string]int `json:"totals"`
}

// TotalQuestions sums the question counts of all sections in the template.
func (t PaperTemplate) TotalQuestions() int {
	total := 0
	for _, n := range t.Totals {
		total += n
	}
	return total
}

// MaxScore is the highest total score the template can yield.
func (t PaperTemplate) MaxScore() float64 {
	return float64(t.TotalQuestions()) * t.Weight
}

var paperTemplates = []PaperTemplate{
	{
		Name:   "provincial-125",
		Label:  "省考套题（125题，0.8分/题）",
		Weight: 0.8,
		Totals: map[string]int{
			"politics": 15, "common-knowledge": 15,
			"verbal-cloze": 10, "verbal-reading": 15,
			"quantitative":    15,
			"judgment-figure": 5, "judgment-definition": 10,
			"judgment-analogy": 10, "judgment-logic": 10,
			"data-analysis": 20,
		},
	},
	{
		Name:   "huasheng-120",
		Label:  "花生套题（120题，0.85分/题）",
		Weight: 0.85,
		Totals: map[string]int{
			"politics": 15, "common-knowledge": 10,
			"verbal-cloze": 15, "verbal-reading": 15,
			"quantitative":    15,
			"judgment-figure": 5, "judgment-definition": 10,
			"judgment-analogy": 5, "judgment-logic": 10,
			"data-analysis": 20,
		},
	},
	{
		Name:   "chaoge-125",
		Label:  "超格套题（125题，0.8分/题）",
		Weight: 0.8,
		Totals: map[string]int{
			"politics": 15, "common-knowledge": 15,
			"verbal-cloze": 10, "verbal-reading": 20,
			"quantitative":    15,
			"judgment-figure": 5, "judgment-definition": 10,
			"judgment-analogy": 5, "judgment-logic": 10,
			"data-analysis": 20,
		},
	},
}

// PaperTemplates returns all known paper templates.
func PaperTemplates() []PaperTemplate {
	out := make([]PaperTemplate, len(paperTemplates))
	copy(out, paperTemplates)
	return out
}

// PaperTemplateByName looks up a paper template by its stable name.
func PaperTemplateByName(name string) (PaperTemplate, bool) {
	for _, t := range paperTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return PaperTemplate{}, false
}
