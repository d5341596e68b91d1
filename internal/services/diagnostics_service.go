package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// DiagnosticsServiceInterface defines the interface for per-record diagnostics.
type DiagnosticsServiceInterface interface {
	ComputeSectionMetrics(record *models.ExamRecord) []models.SectionMetric
	DiagnoseRecord(ctx context.Context, record *models.ExamRecord, strategy *models.Strategy) (*models.RecordDiagnostics, error)
	BuildNextDayPlan(ctx context.Context, record *models.ExamRecord, strategy *models.Strategy) (*models.NextDayPlan, error)
	SuggestReviewSections(record *models.ExamRecord) []string
	BuildDashboardSummary(ctx context.Context, records []models.ExamRecord) (*models.DashboardSummary, error)
	RenderDigest(record *models.ExamRecord, diagnostics *models.RecordDiagnostics, plan *models.NextDayPlan) string
}

// DiagnosticsService derives weak-section and time-overrun diagnostics from
// exam records. It holds no database handle: every input is passed in, so
// the same record always yields the same readout.
type DiagnosticsService struct {
	cfg    *config.Config
	logger *observability.Logger
}

// NewDiagnosticsServiceWithLogger creates a new DiagnosticsService instance with logger
func NewDiagnosticsServiceWithLogger(cfg *config.Config, logger *observability.Logger) *DiagnosticsService {
	return &DiagnosticsService{
		cfg:    cfg,
		logger: logger,
	}
}

// ComputeSectionMetrics derives the fixed-shape metric for every section row
// of one record, in canonical section order. Sections with zero questions
// get accuracy 0; sections without a plan get time diff 0.
func (s *DiagnosticsService) ComputeSectionMetrics(record *models.ExamRecord) []models.SectionMetric {
	metrics := make([]models.SectionMetric, 0, len(record.Sections))
	for _, sec := range record.Sections {
		m := models.SectionMetric{
			SectionName:  sec.SectionName,
			CorrectCount: sec.CorrectCount,
			Questions:    sec.TotalQuestions,
			Accuracy:     sec.Accuracy(),
			MinutesUsed:  sec.MinutesUsed,
			TimeDiff:     sec.TimeDiff(),
			HasPlan:      sec.PlannedMinutes.Valid,
		}
		if sec.PlannedMinutes.Valid {
			m.PlanMinutes = sec.PlannedMinutes.Float64
		}
		metrics = append(metrics, m)
	}
	sort.SliceStable(metrics, func(i, j int) bool {
		return config.SectionIndex(metrics[i].SectionName) < config.SectionIndex(metrics[j].SectionName)
	})
	return metrics
}

// rankByAccuracy sorts metrics ascending by accuracy. Ties keep canonical
// section order, so repeated calls always rank identically.
func rankByAccuracy(metrics []models.SectionMetric) []models.SectionScore {
	ranked := make([]models.SectionMetric, len(metrics))
	copy(ranked, metrics)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Accuracy != ranked[j].Accuracy {
			return ranked[i].Accuracy < ranked[j].Accuracy
		}
		return config.SectionIndex(ranked[i].SectionName) < config.SectionIndex(ranked[j].SectionName)
	})
	scores := make([]models.SectionScore, len(ranked))
	for i, m := range ranked {
		scores[i] = models.SectionScore{SectionName: m.SectionName, Value: m.Accuracy}
	}
	return scores
}

// rankByTimeDiff sorts metrics descending by overrun, same tie-break.
func rankByTimeDiff(metrics []models.SectionMetric) []models.SectionScore {
	ranked := make([]models.SectionMetric, len(metrics))
	copy(ranked, metrics)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TimeDiff != ranked[j].TimeDiff {
			return ranked[i].TimeDiff > ranked[j].TimeDiff
		}
		return config.SectionIndex(ranked[i].SectionName) < config.SectionIndex(ranked[j].SectionName)
	})
	scores := make([]models.SectionScore, len(ranked))
	for i, m := range ranked {
		scores[i] = models.SectionScore{SectionName: m.SectionName, Value: m.TimeDiff}
	}
	return scores
}

func topN(scores []models.SectionScore, n int) []models.SectionScore {
	if len(scores) < n {
		n = len(scores)
	}
	out := make([]models.SectionScore, n)
	copy(out, scores[:n])
	return out
}

// kindAction returns the canned drill tip for a section kind. The mapping is
// exhaustive over SectionKind; unknown sections fall back to the generic tip.
func kindAction(kind config.SectionKind, strategy *models.Strategy) string {
	switch kind {
	case config.KindQuantitative:
		if strategy.QuantEasyOnly {
			return fmt.Sprintf("数量关系只做会做的题，每题限时%d秒，其余直接蒙", strategy.QuantSecondsPerQuestion)
		}
		return fmt.Sprintf("数量关系每题限时%d秒，超时立即跳过", strategy.QuantSecondsPerQuestion)
	case config.KindDataAnalysis:
		if strategy.DataSkipOnTimeout {
			return fmt.Sprintf("资料分析每篇限时%d分钟，超时跳到下一篇", strategy.DataMinutesPerPassage)
		}
		return fmt.Sprintf("资料分析每篇限时%d分钟，练速算和找数", strategy.DataMinutesPerPassage)
	case config.KindLogic:
		return fmt.Sprintf("逻辑判断每题限时%d秒，先翻译题干再看选项", strategy.LogicSecondsPerQuestion)
	case config.KindJudgment:
		return "判断推理按题型归纳规律，错题记规律类型"
	case config.KindVerbal:
		return "言语理解先找关联词和主题词，再排选项"
	case config.KindKnowledge:
		return "常识政治靠积累，每天刷20题碎片时间记忆"
	default:
		return "针对该模块做一组专项练习"
	}
}

// adviceFor classifies one section's accuracy into bands and attaches the
// overtime tag and the kind-specific canned action.
func adviceFor(m models.SectionMetric, strategy *models.Strategy) models.SectionAdvice {
	advice := models.SectionAdvice{SectionName: m.SectionName}

	if m.TimeDiff > config.OvertimeGraceMinutes {
		advice.Tags = append(advice.Tags, models.AdviceTagOverTime)
		advice.Actions = append(advice.Actions, fmt.Sprintf("超时%.1f分钟，优先压缩该模块用时", m.TimeDiff))
	}

	switch {
	case m.Accuracy >= config.StrongAccuracy:
		advice.Tags = append(advice.Tags, models.AdviceTagStrong)
		advice.Actions = append(advice.Actions, "正确率已达标，练提速、减少粗心丢分")
	case m.Accuracy < config.WeakAccuracy:
		advice.Tags = append(advice.Tags, models.AdviceTagWeak)
		advice.Actions = append(advice.Actions, "把错题按知识盲区/方法不熟/粗心陷阱分类，只集中解决一类")
	default:
		advice.Tags = append(advice.Tags, models.AdviceTagImprovable)
		advice.Actions = append(advice.Actions, "这个区间刷题见效最快，保持专项练习")
	}

	kind := config.SectionKind("")
	if sec, ok := config.SectionByName(m.SectionName); ok {
		kind = sec.Kind
	}
	advice.Actions = append(advice.Actions, kindAction(kind, strategy))
	return advice
}

// DiagnoseRecord computes the full readout for one record: per-section
// metrics, the top-3 weakest and top-3 most overrun sections, and advice for
// every section appearing in either top list.
func (s *DiagnosticsService) DiagnoseRecord(ctx context.Context, record *models.ExamRecord, strategy *models.Strategy) (result0 *models.RecordDiagnostics, err error) {
	_, span := observability.TraceDiagnosticsFunction(ctx, "diagnose_record", observability.AttributeRecordID(record.ID))
	defer observability.FinishSpan(span, &err)

	metrics := s.ComputeSectionMetrics(record)
	byAccuracy := rankByAccuracy(metrics)
	byTime := rankByTimeDiff(metrics)

	diagnostics := &models.RecordDiagnostics{
		RecordID:          record.ID,
		Metrics:           metrics,
		WeakestByAccuracy: topN(byAccuracy, 3),
		WorstByTime:       topN(byTime, 3),
	}

	metricByName := make(map[string]models.SectionMetric, len(metrics))
	for _, m := range metrics {
		metricByName[m.SectionName] = m
	}

	advised := make(map[string]bool)
	for _, score := range append(diagnostics.WeakestByAccuracy, diagnostics.WorstByTime...) {
		if advised[score.SectionName] {
			continue
		}
		advised[score.SectionName] = true
		diagnostics.Advice = append(diagnostics.Advice, adviceFor(metricByName[score.SectionName], strategy))
	}

	return diagnostics, nil
}

// SuggestReviewSections returns the sections most worth writing review notes
// for: the 4 weakest by accuracy followed by the 2 worst overruns,
// deduplicated preserving first occurrence.
func (s *DiagnosticsService) SuggestReviewSections(record *models.ExamRecord) []string {
	metrics := s.ComputeSectionMetrics(record)
	byAccuracy := topN(rankByAccuracy(metrics), 4)
	byTime := topN(rankByTimeDiff(metrics), 2)

	seen := make(map[string]bool, len(byAccuracy)+len(byTime))
	var sections []string
	for _, score := range append(byAccuracy, byTime...) {
		if seen[score.SectionName] {
			continue
		}
		seen[score.SectionName] = true
		sections = append(sections, score.SectionName)
	}
	return sections
}

// BuildNextDayPlan emits the fixed 3-item drill list for the day after one
// exam: two fixed baseline drills, plus a quantitative pacing drill when the
// quantitative section is either the weakest or the most overrun, otherwise
// a focus drill naming the weakest section.
func (s *DiagnosticsService) BuildNextDayPlan(ctx context.Context, record *models.ExamRecord, strategy *models.Strategy) (result0 *models.NextDayPlan, err error) {
	_, span := observability.TraceDiagnosticsFunction(ctx, "build_next_day_plan", observability.AttributeRecordID(record.ID))
	defer observability.FinishSpan(span, &err)

	metrics := s.ComputeSectionMetrics(record)
	byAccuracy := rankByAccuracy(metrics)
	byTime := rankByTimeDiff(metrics)

	plan := &models.NextDayPlan{
		Tasks: []string{
			fmt.Sprintf("资料分析限时训练：2篇，每篇%d分钟", strategy.DataMinutesPerPassage),
			"言语逻辑填空：20题，整理高频成语",
		},
	}
	if len(byAccuracy) > 0 {
		plan.WorstAccuracy = byAccuracy[0]
	}
	if len(byTime) > 0 {
		plan.WorstTime = byTime[0]
	}

	weakest := plan.WorstAccuracy.SectionName
	slowest := plan.WorstTime.SectionName
	if isQuantitative(weakest) || isQuantitative(slowest) {
		plan.Tasks = append(plan.Tasks,
			fmt.Sprintf("数量关系专项：只做会的题型，每题限时%d秒", strategy.QuantSecondsPerQuestion))
	} else {
		plan.Tasks = append(plan.Tasks,
			fmt.Sprintf("薄弱模块专项：%s集中刷一组题", sectionLabel(weakest)))
	}

	return plan, nil
}

func isQuantitative(name string) bool {
	sec, ok := config.SectionByName(name)
	return ok && sec.Kind == config.KindQuantitative
}

func sectionLabel(name string) string {
	if sec, ok := config.SectionByName(name); ok {
		return sec.Label
	}
	return name
}

// BuildDashboardSummary derives the headline KPI block from the full record
// history, most recent first. An empty history yields an explicit no-data
// summary, never an error.
func (s *DiagnosticsService) BuildDashboardSummary(ctx context.Context, records []models.ExamRecord) (result0 *models.DashboardSummary, err error) {
	_, span := observability.TraceDiagnosticsFunction(ctx, "build_dashboard_summary")
	defer observability.FinishSpan(span, &err)

	summary := &models.DashboardSummary{GoalScore: s.cfg.GoalScore()}
	if len(records) == 0 {
		return summary, nil
	}

	latest := records[0]
	summary.HasData = true
	summary.RecordCount = len(records)
	summary.LatestScore = latest.TotalScore
	summary.OverallAccuracy = latest.OverallAccuracy()
	if len(records) > 1 {
		delta := latest.TotalScore - records[1].TotalScore
		summary.ScoreDelta = &delta
	}
	if latest.TotalMinutes > 0 {
		summary.ScorePerMinute = latest.TotalScore / latest.TotalMinutes
	}

	depth := config.RecentScoreDepth
	if len(records) < depth {
		depth = len(records)
	}
	sum := 0.0
	for _, r := range records[:depth] {
		sum += r.TotalScore
	}
	summary.RecentAverage = sum / float64(depth)

	return summary, nil
}

// RenderDigest renders a record's diagnostics as a markdown summary suitable
// for the reminder email or copy-paste into study notes.
func (s *DiagnosticsService) RenderDigest(record *models.ExamRecord, diagnostics *models.RecordDiagnostics, plan *models.NextDayPlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 刷题复盘 %s（%s）\n\n", contextutils.FormatDateOnly(record.ExamDate), record.PaperName)
	fmt.Fprintf(&b, "总分 **%.1f**，正确 %d/%d，用时 %.0f 分钟\n\n",
		record.TotalScore, record.TotalCorrect, record.TotalQuestions, record.TotalMinutes)

	b.WriteString("## 各模块\n\n")
	b.WriteString("| 模块 | 正确率 | 用时 | 超时 |\n|---|---|---|---|\n")
	for _, m := range diagnostics.Metrics {
		fmt.Fprintf(&b, "| %s | %.0f%% | %.1f分 | %+.1f分 |\n",
			sectionLabel(m.SectionName), m.Accuracy*100, m.MinutesUsed, m.TimeDiff)
	}

	if len(diagnostics.WeakestByAccuracy) > 0 {
		weak := diagnostics.WeakestByAccuracy[0]
		fmt.Fprintf(&b, "\n当前弱点：**%s**（正确率 %.0f%%）\n", sectionLabel(weak.SectionName), weak.Value*100)
	}
	if len(diagnostics.WorstByTime) > 0 {
		slow := diagnostics.WorstByTime[0]
		fmt.Fprintf(&b, "时间黑洞：**%s**（超时 %+.1f 分钟）\n", sectionLabel(slow.SectionName), slow.Value)
	}

	if plan != nil && len(plan.Tasks) > 0 {
		b.WriteString("\n## 明日计划\n\n")
		for _, task := range plan.Tasks {
			fmt.Fprintf(&b, "- %s\n", task)
		}
	}

	return b.String()
}
