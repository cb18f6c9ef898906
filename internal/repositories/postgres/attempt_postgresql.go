package postgres

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/cache"
	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (ar *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if err := ar.getDB(tx).WithContext(ctx).Create(attempt).Error; err != nil {
		return err
	}
	return nil
}

func (ar *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := ar.getDB(tx).WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (ar *AttemptPostgreSQL) GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := ar.getDB(tx).WithContext(ctx).
		Preload("Exam").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("answers.question_id ASC")
		}).
		Preload("Answers.Question").
		Preload("Answers.Question.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC, choices.id ASC")
		}).
		First(&attempt, id).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (ar *AttemptPostgreSQL) GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := ar.getDB(tx).WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (ar *AttemptPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	db := ar.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_attempts.student_id = ?", studentID)
	db = applyAttemptFilters(db, filters)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}

	var attempts []*models.ExamAttempt
	query := applyPaginationAndSort(db.Preload("Exam"), filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list student attempts: %w", err)
	}

	return attempts, total, nil
}

// ListForGrading returns attempts on exams owned by the teacher, filtered
// by status. Admin callers pass an empty teacherID to see everything.
func (ar *AttemptPostgreSQL) ListForGrading(ctx context.Context, tx *gorm.DB, teacherID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	db := ar.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Joins("JOIN exams ON exams.id = exam_attempts.exam_id")

	if teacherID != "" {
		db = db.Where("exams.created_by = ?", teacherID)
	}
	db = applyAttemptFilters(db, filters)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts for grading: %w", err)
	}

	var attempts []*models.ExamAttempt
	query := applyPaginationAndSort(db.Preload("Exam"), filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts for grading: %w", err)
	}

	return attempts, total, nil
}

func (ar *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	if err := ar.getDB(tx).WithContext(ctx).Save(attempt).Error; err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	ar.cacheManager.InvalidateAttempt(ctx, attempt.ID)
	return nil
}

func (ar *AttemptPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.AttemptStats, error) {
	var stats repositories.AttemptStats

	cacheKey := fmt.Sprintf("exam:%d:attempts", examID)
	if tx == nil {
		if err := ar.cacheManager.Stats.Get(ctx, cacheKey, &stats); err == nil {
			return &stats, nil
		}
	}

	err := ar.getDB(tx).WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Select(`COUNT(*) AS total_attempts,
			COUNT(*) FILTER (WHERE status = 'in_progress') AS in_progress,
			COUNT(*) FILTER (WHERE status = 'submitted') AS submitted,
			COUNT(*) FILTER (WHERE status = 'graded') AS graded,
			COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
			COALESCE(AVG(total_score), 0) AS average_total_score`).
		Where("exam_id = ?", examID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt stats: %w", err)
	}

	if tx == nil {
		_ = ar.cacheManager.Stats.Set(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL)
	}
	return &stats, nil
}

// ===== ANSWERS =====

type AnswerPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewAnswerPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AnswerRepository {
	return &AnswerPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (ar *AnswerPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ar.db
}

func (ar *AnswerPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	if err := ar.getDB(tx).WithContext(ctx).CreateInBatches(answers, 100).Error; err != nil {
		return fmt.Errorf("failed to create answers: %w", err)
	}
	return nil
}

func (ar *AnswerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	var answer models.Answer
	err := ar.getDB(tx).WithContext(ctx).
		Preload("Question").
		Preload("Question.Choices").
		First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (ar *AnswerPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	var answers []*models.Answer
	err := ar.getDB(tx).WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Preload("Question").
		Preload("Question.Choices").
		Order("question_id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get answers for attempt %d: %w", attemptID, err)
	}
	return answers, nil
}

func (ar *AnswerPostgreSQL) GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error) {
	var answer models.Answer
	err := ar.getDB(tx).WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (ar *AnswerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	if err := ar.getDB(tx).WithContext(ctx).Save(answer).Error; err != nil {
		return fmt.Errorf("failed to update answer: %w", err)
	}

	ar.cacheManager.InvalidateAttempt(ctx, answer.AttemptID)
	return nil
}

// AreAllScored reports whether every answer of the attempt carries a
// score. False when the attempt has no answers at all.
func (ar *AnswerPostgreSQL) AreAllScored(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error) {
	var result struct {
		AllScored bool
		Total     int64
	}
	err := ar.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Select("COALESCE(bool_and(score IS NOT NULL), false) AS all_scored, COUNT(*) AS total").
		Where("attempt_id = ?", attemptID).
		Scan(&result).Error
	if err != nil {
		return false, fmt.Errorf("failed to check answer scores: %w", err)
	}
	return result.AllScored && result.Total > 0, nil
}

func (ar *AnswerPostgreSQL) SumScores(ctx context.Context, tx *gorm.DB, attemptID uint) (float64, error) {
	var sum float64
	err := ar.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Select("COALESCE(SUM(score), 0)").
		Where("attempt_id = ?", attemptID).
		Scan(&sum).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum answer scores: %w", err)
	}
	return sum, nil
}

func (ar *AnswerPostgreSQL) GetGradingStats(ctx context.Context, tx *gorm.DB, examID uint) (*repositories.GradingStats, error) {
	var stats repositories.GradingStats

	cacheKey := fmt.Sprintf("exam:%d:grading", examID)
	if tx == nil {
		if err := ar.cacheManager.Stats.Get(ctx, cacheKey, &stats); err == nil {
			return &stats, nil
		}
	}

	err := ar.getDB(tx).WithContext(ctx).
		Model(&models.Answer{}).
		Joins("JOIN exam_attempts ON exam_attempts.id = answers.attempt_id").
		Select(`COUNT(*) AS total_answers,
			COUNT(answers.score) AS scored_answers,
			COUNT(*) FILTER (WHERE answers.needs_manual AND answers.score IS NULL) AS pending_manual,
			COUNT(*) FILTER (WHERE answers.is_auto_graded) AS auto_graded,
			COUNT(*) FILTER (WHERE answers.score IS NOT NULL AND NOT answers.is_auto_graded) AS manual_graded,
			COALESCE(AVG(answers.score), 0) AS average_score`).
		Where("exam_attempts.exam_id = ?", examID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}

	if tx == nil {
		_ = ar.cacheManager.Stats.Set(ctx, cacheKey, &stats, cache.StatsCacheConfig.TTL)
	}
	return &stats, nil
}
