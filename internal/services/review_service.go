package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// ReviewNoteSubmission is the review-form payload for one (exam, section)
// annotation.
type ReviewNoteSubmission struct {
	NoteDate         string `json:"note_date"`
	PaperName        string `json:"paper_name"`
	SectionName      string `json:"section_name"`
	WrongCount       int    `json:"wrong_count"`
	KnowledgeGap     int    `json:"knowledge_gap"`
	MethodUnfamiliar int    `json:"method_unfamiliar"`
	CarelessTrap     int    `json:"careless_trap"`
	ReasonText       string `json:"reason_text"`
	NextActionText   string `json:"next_action_text"`
}

// ReviewNoteFilter narrows note listings. Zero values mean no filtering.
type ReviewNoteFilter struct {
	PaperName   string
	SectionName string
	Keyword     string
}

// ReviewServiceInterface defines the interface for error-cause review notes.
type ReviewServiceInterface interface {
	CreateReviewNote(ctx context.Context, userID int, submission *ReviewNoteSubmission) (*models.ReviewNote, error)
	ListReviewNotes(ctx context.Context, userID int, filter ReviewNoteFilter) ([]models.ReviewNote, error)
	DeleteReviewNote(ctx context.Context, userID, noteID int) error
	GetReviewAnalytics(ctx context.Context, userID, windowDays int, today time.Time) (*models.ReviewAnalytics, error)
}

// ReviewService stores error-cause annotations and aggregates them over a
// trailing window.
type ReviewService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewReviewServiceWithLogger creates a new ReviewService instance with logger
func NewReviewServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ReviewService {
	return &ReviewService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReviewNote validates and stores one annotation. Notes are
// append-only; there is no update path.
func (s *ReviewService) CreateReviewNote(ctx context.Context, userID int, submission *ReviewNoteSubmission) (result0 *models.ReviewNote, err error) {
	ctx, span := observability.TraceReviewFunction(ctx, "create_review_note",
		observability.AttributeUserID(userID),
		observability.AttributeSection(submission.SectionName))
	defer observability.FinishSpan(span, &err)

	noteDate, err := contextutils.ParseDateOnly(submission.NoteDate)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "note date must be YYYY-MM-DD")
	}
	if !config.IsKnownSection(submission.SectionName) {
		return nil, contextutils.WrapErrorf(contextutils.ErrUnknownSection, "unknown section %q", submission.SectionName)
	}
	if submission.WrongCount < 0 || submission.KnowledgeGap < 0 || submission.MethodUnfamiliar < 0 || submission.CarelessTrap < 0 {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "counts cannot be negative")
	}

	note := &models.ReviewNote{
		UserID:           userID,
		NoteDate:         noteDate,
		PaperName:        submission.PaperName,
		SectionName:      submission.SectionName,
		WrongCount:       submission.WrongCount,
		KnowledgeGap:     submission.KnowledgeGap,
		MethodUnfamiliar: submission.MethodUnfamiliar,
		CarelessTrap:     submission.CarelessTrap,
		ReasonText:       submission.ReasonText,
		NextActionText:   submission.NextActionText,
		CreatedAt:        time.Now(),
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO review_notes (user_id, note_date, paper_name, section_name, wrong_count,
			knowledge_gap, method_unfamiliar, careless_trap, reason_text, next_action_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		note.UserID, note.NoteDate, note.PaperName, note.SectionName, note.WrongCount,
		note.KnowledgeGap, note.MethodUnfamiliar, note.CarelessTrap, note.ReasonText, note.NextActionText, note.CreatedAt,
	).Scan(&note.ID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert review note")
	}
	return note, nil
}

// ListReviewNotes returns the user's notes in insertion order, optionally
// narrowed by paper name and section name.
func (s *ReviewService) ListReviewNotes(ctx context.Context, userID int, filter ReviewNoteFilter) (result0 []models.ReviewNote, err error) {
	ctx, span := observability.TraceReviewFunction(ctx, "list_review_notes", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := `SELECT id, user_id, note_date, paper_name, section_name, wrong_count,
		knowledge_gap, method_unfamiliar, careless_trap, reason_text, next_action_text, created_at
		FROM review_notes WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.PaperName != "" {
		args = append(args, filter.PaperName)
		query += fmt.Sprintf(" AND paper_name = $%d", len(args))
	}
	if filter.SectionName != "" {
		args = append(args, filter.SectionName)
		query += fmt.Sprintf(" AND section_name = $%d", len(args))
	}
	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		query += fmt.Sprintf(" AND (reason_text ILIKE $%d OR next_action_text ILIKE $%d)", len(args), len(args))
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query review notes")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var notes []models.ReviewNote
	for rows.Next() {
		note := models.ReviewNote{}
		err = rows.Scan(&note.ID, &note.UserID, &note.NoteDate, &note.PaperName, &note.SectionName,
			&note.WrongCount, &note.KnowledgeGap, &note.MethodUnfamiliar, &note.CarelessTrap,
			&note.ReasonText, &note.NextActionText, &note.CreatedAt)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan review note")
		}
		notes = append(notes, note)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate review notes")
	}
	return notes, nil
}

// DeleteReviewNote removes one note by id.
func (s *ReviewService) DeleteReviewNote(ctx context.Context, userID, noteID int) (err error) {
	ctx, span := observability.TraceReviewFunction(ctx, "delete_review_note",
		observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM review_notes WHERE id = $1 AND user_id = $2`, noteID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete review note")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check delete result")
	}
	if rows == 0 {
		return contextutils.ErrReviewNoteNotFound
	}
	return nil
}

// AggregateReviewNotes computes the windowed cause breakdown and top-N
// per-section error ranking over an already-loaded note list. The window is
// inclusive: a note dated exactly today − windowDays is counted.
func AggregateReviewNotes(notes []models.ReviewNote, windowDays int, today time.Time) *models.ReviewAnalytics {
	analytics := &models.ReviewAnalytics{WindowDays: windowDays}

	start := contextutils.WindowStart(contextutils.TruncateToDay(today), windowDays)
	var filtered []models.ReviewNote
	for _, note := range notes {
		if !contextutils.TruncateToDay(note.NoteDate).Before(start) {
			filtered = append(filtered, note)
		}
	}
	if len(filtered) == 0 {
		return analytics
	}
	analytics.HasData = true

	wrongBySection := make(map[string]int)
	var sectionOrder []string
	for _, note := range filtered {
		analytics.CauseTotals.KnowledgeGap += note.KnowledgeGap
		analytics.CauseTotals.MethodUnfamiliar += note.MethodUnfamiliar
		analytics.CauseTotals.CarelessTrap += note.CarelessTrap
		if _, ok := wrongBySection[note.SectionName]; !ok {
			sectionOrder = append(sectionOrder, note.SectionName)
		}
		wrongBySection[note.SectionName] += note.WrongCount
	}

	errorCounts := make([]models.SectionErrorCount, 0, len(sectionOrder))
	for _, name := range sectionOrder {
		errorCounts = append(errorCounts, models.SectionErrorCount{SectionName: name, WrongCount: wrongBySection[name]})
	}
	// Stable sort keeps first-seen order between equal counts
	sort.SliceStable(errorCounts, func(i, j int) bool {
		return errorCounts[i].WrongCount > errorCounts[j].WrongCount
	})
	if len(errorCounts) > config.SectionErrorsTopN {
		errorCounts = errorCounts[:config.SectionErrorsTopN]
	}
	analytics.SectionErrors = errorCounts

	return analytics
}

// GetReviewAnalytics loads the user's notes and aggregates them over the
// trailing window ending today.
func (s *ReviewService) GetReviewAnalytics(ctx context.Context, userID, windowDays int, today time.Time) (result0 *models.ReviewAnalytics, err error) {
	ctx, span := observability.TraceReviewFunction(ctx, "get_review_analytics",
		observability.AttributeUserID(userID),
		observability.AttributeWindowDays(windowDays))
	defer observability.FinishSpan(span, &err)

	if windowDays <= 0 {
		windowDays = s.cfg.ReviewWindowDays()
	}

	notes, err := s.ListReviewNotes(ctx, userID, ReviewNoteFilter{})
	if err != nil {
		return nil, err
	}
	return AggregateReviewNotes(notes, windowDays, today), nil
}
