package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/EchoAurora/xingcefupan/internal/config"
	"github.com/EchoAurora/xingcefupan/internal/models"
	"github.com/EchoAurora/xingcefupan/internal/observability"
	contextutils "github.com/EchoAurora/xingcefupan/internal/utils"
)

// SectionSubmission is one section's raw counts as entered on the exam form.
type SectionSubmission struct {
	SectionName    string  `json:"section_name"`
	CorrectCount   int     `json:"correct_count"`
	TotalQuestions int     `json:"total_questions"`
	MinutesUsed    float64 `json:"minutes_used"`
}

// ExamSubmission is the full entry-form payload for one practice exam.
type ExamSubmission struct {
	ExamDate     string              `json:"exam_date"`
	PaperName    string              `json:"paper_name"`
	TotalMinutes float64             `json:"total_minutes"`
	Sections     []SectionSubmission `json:"sections"`
}

// ExamServiceInterface defines the interface for exam-record operations.
type ExamServiceInterface interface {
	CreateExamRecord(ctx context.Context, userID int, submission *ExamSubmission) (*models.ExamRecord, error)
	GetExamRecord(ctx context.Context, userID, recordID int) (*models.ExamRecord, error)
	GetLatestExamRecord(ctx context.Context, userID int) (*models.ExamRecord, error)
	ListExamRecords(ctx context.Context, userID int) ([]models.ExamRecord, error)
	GetRecentExamRecords(ctx context.Context, userID, limit int) ([]models.ExamRecord, error)
	DeleteExamRecord(ctx context.Context, userID, recordID int) error
}

// ExamService stores and retrieves practice exam records.
type ExamService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewExamServiceWithLogger creates a new ExamService instance with logger
func NewExamServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ExamService {
	return &ExamService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// CreateExamRecord validates a submission, scores it against its paper
// template and stores the record with its section rows in one transaction.
// Records are immutable once created.
func (s *ExamService) CreateExamRecord(ctx context.Context, userID int, submission *ExamSubmission) (result0 *models.ExamRecord, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "create_exam_record",
		observability.AttributeUserID(userID),
		observability.AttributePaper(submission.PaperName),
		observability.AttributeDate(submission.ExamDate),
	)
	defer observability.FinishSpan(span, &err)

	examDate, err := contextutils.ParseDateOnly(submission.ExamDate)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "exam date must be YYYY-MM-DD")
	}
	if submission.PaperName == "" {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "paper name is required")
	}
	if len(submission.Sections) == 0 {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "at least one section result is required")
	}
	if submission.TotalMinutes < 0 {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "total minutes cannot be negative")
	}

	template, hasTemplate := config.PaperTemplateByName(submission.PaperName)

	totalCorrect := 0
	totalQuestions := 0
	seen := make(map[string]bool, len(submission.Sections))
	for _, sec := range submission.Sections {
		if !config.IsKnownSection(sec.SectionName) {
			return nil, contextutils.WrapErrorf(contextutils.ErrUnknownSection, "unknown section %q", sec.SectionName)
		}
		if seen[sec.SectionName] {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "duplicate section %q", sec.SectionName)
		}
		seen[sec.SectionName] = true
		if sec.CorrectCount < 0 || sec.TotalQuestions < 0 || sec.CorrectCount > sec.TotalQuestions {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid counts for section %q", sec.SectionName)
		}
		if sec.MinutesUsed < 0 {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "negative minutes for section %q", sec.SectionName)
		}
		totalCorrect += sec.CorrectCount
		totalQuestions += sec.TotalQuestions
	}

	// Score is always derived from counts, never accepted from the client.
	// Papers without a matching template score at the provincial weight.
	weight := 0.8
	if hasTemplate {
		weight = template.Weight
	}
	totalScore := float64(totalCorrect) * weight

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to rollback exam record transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	var recordID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO exam_records (user_id, exam_date, paper_name, total_score, total_correct, total_questions, total_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		userID, examDate, submission.PaperName, totalScore, totalCorrect, totalQuestions, submission.TotalMinutes, time.Now(),
	).Scan(&recordID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert exam record")
	}

	// Section rows keep the canonical table order so reads are stable.
	for _, name := range config.SectionNames() {
		var sub *SectionSubmission
		for i := range submission.Sections {
			if submission.Sections[i].SectionName == name {
				sub = &submission.Sections[i]
				break
			}
		}
		if sub == nil {
			continue
		}
		planned := config.PlanMinutesFor(name)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO exam_record_sections (record_id, section_name, correct_count, total_questions, minutes_used, planned_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			recordID, name, sub.CorrectCount, sub.TotalQuestions, sub.MinutesUsed, planned,
		)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to insert section %q", name)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to commit exam record")
	}

	s.logger.Info(ctx, "Created exam record", map[string]interface{}{
		"user_id":   userID,
		"record_id": recordID,
		"paper":     submission.PaperName,
		"score":     totalScore,
	})

	return s.GetExamRecord(ctx, userID, recordID)
}

// GetExamRecord loads one record with its section rows. Returns
// ErrExamRecordNotFound when the record does not exist or belongs to
// another user.
func (s *ExamService) GetExamRecord(ctx context.Context, userID, recordID int) (result0 *models.ExamRecord, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "get_exam_record",
		observability.AttributeUserID(userID), observability.AttributeRecordID(recordID))
	defer observability.FinishSpan(span, &err)

	record := &models.ExamRecord{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, user_id, exam_date, paper_name, total_score, total_correct, total_questions, total_minutes, created_at
		FROM exam_records WHERE id = $1 AND user_id = $2`, recordID, userID,
	).Scan(&record.ID, &record.UserID, &record.ExamDate, &record.PaperName,
		&record.TotalScore, &record.TotalCorrect, &record.TotalQuestions, &record.TotalMinutes, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrExamRecordNotFound
		}
		return nil, contextutils.WrapError(err, "failed to query exam record")
	}

	record.Sections, err = s.loadSections(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetLatestExamRecord returns the most recently created record, or
// ErrNoExamHistory when the user has none.
func (s *ExamService) GetLatestExamRecord(ctx context.Context, userID int) (result0 *models.ExamRecord, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "get_latest_exam_record", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	records, err := s.GetRecentExamRecords(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, contextutils.ErrNoExamHistory
	}
	return &records[0], nil
}

// ListExamRecords returns the user's full history in insertion order.
func (s *ExamService) ListExamRecords(ctx context.Context, userID int) (result0 []models.ExamRecord, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "list_exam_records", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	return s.queryRecords(ctx,
		`SELECT id, user_id, exam_date, paper_name, total_score, total_correct, total_questions, total_minutes, created_at
		FROM exam_records WHERE user_id = $1 ORDER BY id`, userID)
}

// GetRecentExamRecords returns up to limit records, most recent first.
func (s *ExamService) GetRecentExamRecords(ctx context.Context, userID, limit int) (result0 []models.ExamRecord, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "get_recent_exam_records",
		observability.AttributeUserID(userID), observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	if limit <= 0 {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "limit must be positive")
	}
	return s.queryRecords(ctx,
		`SELECT id, user_id, exam_date, paper_name, total_score, total_correct, total_questions, total_minutes, created_at
		FROM exam_records WHERE user_id = $1 ORDER BY id DESC LIMIT $2`, userID, limit)
}

// DeleteExamRecord removes a record and its section rows. Deletion is the
// only mutation allowed after creation.
func (s *ExamService) DeleteExamRecord(ctx context.Context, userID, recordID int) (err error) {
	ctx, span := observability.TraceExamFunction(ctx, "delete_exam_record",
		observability.AttributeUserID(userID), observability.AttributeRecordID(recordID))
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM exam_records WHERE id = $1 AND user_id = $2`, recordID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete exam record")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to check delete result")
	}
	if rows == 0 {
		return contextutils.ErrExamRecordNotFound
	}
	return nil
}

func (s *ExamService) queryRecords(ctx context.Context, query string, args ...interface{}) ([]models.ExamRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query exam records")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var records []models.ExamRecord
	for rows.Next() {
		record := models.ExamRecord{}
		err = rows.Scan(&record.ID, &record.UserID, &record.ExamDate, &record.PaperName,
			&record.TotalScore, &record.TotalCorrect, &record.TotalQuestions, &record.TotalMinutes, &record.CreatedAt)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan exam record")
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate exam records")
	}

	for i := range records {
		records[i].Sections, err = s.loadSections(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// loadSections returns section rows ordered by the canonical section table,
// unknown names last.
func (s *ExamService) loadSections(ctx context.Context, recordID int) ([]models.SectionResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, section_name, correct_count, total_questions, minutes_used, planned_minutes
		FROM exam_record_sections WHERE record_id = $1 ORDER BY id`, recordID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query section results")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var results []models.SectionResult
	for rows.Next() {
		sr := models.SectionResult{}
		err = rows.Scan(&sr.ID, &sr.RecordID, &sr.SectionName, &sr.CorrectCount, &sr.TotalQuestions, &sr.MinutesUsed, &sr.PlannedMinutes)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to scan section result")
		}
		results = append(results, sr)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate section results")
	}
	return results, nil
}
