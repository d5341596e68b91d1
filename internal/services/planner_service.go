package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// PlannerServiceInterface defines the interface for weekly plan generation.
type PlannerServiceInterface interface {
	BuildWeekPlan(ctx context.Context, records []models.ExamRecord, strategy *models.Strategy, today time.Time) (*models.WeekPlan, error)
}

// PlannerService generates the rotating 7-day focus schedule from recent
// exam records. Like the diagnostics engine it holds no database handle;
// today's date is an explicit parameter so output is reproducible.
type PlannerService struct {
	cfg    *config.Config
	logger *observability.Logger
}

// NewPlannerServiceWithLogger creates a new PlannerService instance with logger
func NewPlannerServiceWithLogger(cfg *config.Config, logger *observability.Logger) *PlannerService {
	return &PlannerService{
		cfg:    cfg,
		logger: logger,
	}
}

// sectionAverages is the per-section mean accuracy and mean overrun across
// the records that actually contain the section.
type sectionAverages struct {
	name         string
	meanAccuracy float64
	meanOverrun  float64
}

// computeAverages aggregates up to the configured number of recent records.
// A section missing from a record simply does not contribute to its means.
func computeAverages(records []models.ExamRecord) []sectionAverages {
	type sums struct {
		accuracy float64
		overrun  float64
		count    int
	}
	byName := make(map[string]*sums)
	for _, record := range records {
		for _, sec := range record.Sections {
			entry := byName[sec.SectionName]
			if entry == nil {
				entry = &sums{}
				byName[sec.SectionName] = entry
			}
			entry.accuracy += sec.Accuracy()
			entry.overrun += sec.TimeDiff()
			entry.count++
		}
	}

	averages := make([]sectionAverages, 0, len(byName))
	for _, name := range config.SectionNames() {
		entry := byName[name]
		if entry == nil || entry.count == 0 {
			continue
		}
		averages = append(averages, sectionAverages{
			name:         name,
			meanAccuracy: entry.accuracy / float64(entry.count),
			meanOverrun:  entry.overrun / float64(entry.count),
		})
	}
	return averages
}

// focusList concatenates the 3 worst sections by mean accuracy with the 2
// worst by mean overrun, deduplicated preserving first occurrence.
func focusList(averages []sectionAverages) []string {
	byAccuracy := make([]sectionAverages, len(averages))
	copy(byAccuracy, averages)
	sort.SliceStable(byAccuracy, func(i, j int) bool {
		if byAccuracy[i].meanAccuracy != byAccuracy[j].meanAccuracy {
			return byAccuracy[i].meanAccuracy < byAccuracy[j].meanAccuracy
		}
		return config.SectionIndex(byAccuracy[i].name) < config.SectionIndex(byAccuracy[j].name)
	})

	byOverrun := make([]sectionAverages, len(averages))
	copy(byOverrun, averages)
	sort.SliceStable(byOverrun, func(i, j int) bool {
		if byOverrun[i].meanOverrun != byOverrun[j].meanOverrun {
			return byOverrun[i].meanOverrun > byOverrun[j].meanOverrun
		}
		return config.SectionIndex(byOverrun[i].name) < config.SectionIndex(byOverrun[j].name)
	})

	var candidates []string
	for i := 0; i < 3 && i < len(byAccuracy); i++ {
		candidates = append(candidates, byAccuracy[i].name)
	}
	for i := 0; i < 2 && i < len(byOverrun); i++ {
		candidates = append(candidates, byOverrun[i].name)
	}

	seen := make(map[string]bool, len(candidates))
	var focus []string
	for _, name := range candidates {
		if seen[name] {
			continue
		}
		seen[name] = true
		focus = append(focus, name)
	}
	return focus
}

// focusTask returns the focus-section task for one day, parameterized by the
// strategy's time caps where the section kind has one.
func focusTask(sectionName string, strategy *models.Strategy) string {
	sec, ok := config.SectionByName(sectionName)
	if !ok {
		return fmt.Sprintf("专项练习：%s", sectionName)
	}
	switch sec.Kind {
	case config.KindQuantitative:
		return fmt.Sprintf("数量关系专项：每题限时%d秒，只练会的题型", strategy.QuantSecondsPerQuestion)
	case config.KindDataAnalysis:
		return fmt.Sprintf("资料分析专项：每篇限时%d分钟，练速算", strategy.DataMinutesPerPassage)
	case config.KindLogic:
		return fmt.Sprintf("逻辑判断专项：每题限时%d秒，练翻译推理", strategy.LogicSecondsPerQuestion)
	default:
		return fmt.Sprintf("专项练习：%s集中刷一组题", sec.Label)
	}
}

// BuildWeekPlan produces 7 days of tasks starting today. The focus section
// for day i is focus[i mod len(focus)]. With no exam history the plan is
// empty; with zero focus candidates the plan falls back to data analysis.
func (s *PlannerService) BuildWeekPlan(ctx context.Context, records []models.ExamRecord, strategy *models.Strategy, today time.Time) (result0 *models.WeekPlan, err error) {
	_, span := observability.TracePlannerFunction(ctx, "build_week_plan",
		observability.AttributeDate(contextutils.FormatDateOnly(today)),
		observability.AttributeLimit(len(records)))
	defer observability.FinishSpan(span, &err)

	plan := &models.WeekPlan{}
	if len(records) == 0 {
		return plan, nil
	}

	if len(records) > config.WeeklyPlanHistoryDepth {
		records = records[:config.WeeklyPlanHistoryDepth]
	}

	focus := focusList(computeAverages(records))
	if len(focus) == 0 {
		focus = []string{"verbal-cloze"}
	}
	plan.FocusSections = focus

	baseline := []string{
		fmt.Sprintf("资料分析限时训练：2篇，每篇%d分钟", strategy.DataMinutesPerPassage),
		"言语逻辑填空：20题，整理错题",
	}

	today = contextutils.TruncateToDay(today)
	for i := 0; i < config.WeeklyPlanDays; i++ {
		day := today.AddDate(0, 0, i)
		focusSection := focus[i%len(focus)]
		tasks := make([]string, 0, len(baseline)+1)
		tasks = append(tasks, baseline...)
		tasks = append(tasks, focusTask(focusSection, strategy))
		plan.Days = append(plan.Days, models.DayPlan{
			Date:  contextutils.FormatDateOnly(day),
			Focus: focusSection,
			Tasks: tasks,
		})
	}

	return plan, nil
}
