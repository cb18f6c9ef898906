package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/cache"
	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (er *ExamPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return er.db
}

func (er *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam

	// Skip cache inside transactions to avoid stale reads.
	if tx != nil {
		if err := tx.WithContext(ctx).First(&exam, id).Error; err != nil {
			return nil, err
		}
		return &exam, nil
	}

	cacheKey := fmt.Sprintf("id:%d", id)
	err := er.cacheManager.Exam.CacheOrExecute(ctx, cacheKey, &exam, cache.ExamCacheConfig.TTL, func() (interface{}, error) {
		var fetched models.Exam
		if err := er.db.WithContext(ctx).First(&fetched, id).Error; err != nil {
			return nil, err
		}
		return &fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (er *ExamPostgreSQL) GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	var exam models.Exam
	err := er.getDB(tx).WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.\"order\" ASC, questions.id ASC")
		}).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC, choices.id ASC")
		}).
		First(&exam, id).Error
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (er *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	db := er.getDB(tx).WithContext(ctx).Model(&models.Exam{})

	if filters.Published != nil {
		db = db.Where("published = ?", *filters.Published)
	}
	if filters.CreatedBy != nil {
		db = db.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Search != "" {
		db = db.Where("title ILIKE ?", "%"+filters.Search+"%")
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	var exams []*models.Exam
	query := applyPaginationAndSort(db, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}

	return exams, total, nil
}

func (er *ExamPostgreSQL) ListAvailable(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Exam, error) {
	var exams []*models.Exam
	err := er.getDB(tx).WithContext(ctx).
		Where("published = ? AND start_at <= ?", true, now).
		Order("start_at DESC").
		Find(&exams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available exams: %w", err)
	}
	return exams, nil
}

func (er *ExamPostgreSQL) IsOwnedBy(ctx context.Context, tx *gorm.DB, examID uint, userID string) (bool, error) {
	cacheKey := fmt.Sprintf("exam:%d:owner:%s", examID, userID)
	if tx == nil {
		if cached, err := er.cacheManager.Exists.GetString(ctx, cacheKey); err == nil {
			return cached == "true", nil
		}
	}

	var count int64
	err := er.getDB(tx).WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND created_by = ?", examID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check exam ownership: %w", err)
	}

	owned := count > 0
	if tx == nil {
		_ = er.cacheManager.Exists.SetString(ctx, cacheKey, fmt.Sprintf("%t", owned), cache.ExistsCacheConfig.TTL)
	}
	return owned, nil
}

func (er *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	if err := er.getDB(tx).WithContext(ctx).Save(exam).Error; err != nil {
		return fmt.Errorf("failed to update exam: %w", err)
	}

	er.cacheManager.InvalidateExam(ctx, exam.ID)
	return nil
}

// ===== QUESTIONS =====

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (qr *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return qr.db
}

func (qr *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	var question models.Question
	err := qr.getDB(tx).WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC, choices.id ASC")
		}).
		First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (qr *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := qr.getDB(tx).WithContext(ctx).
		Where("exam_id = ?", examID).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.\"order\" ASC, choices.id ASC")
		}).
		Order("questions.\"order\" ASC, questions.id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get questions for exam %d: %w", examID, err)
	}
	return questions, nil
}

func (qr *QuestionPostgreSQL) GetChoice(ctx context.Context, tx *gorm.DB, choiceID uint) (*models.Choice, error) {
	var choice models.Choice
	if err := qr.getDB(tx).WithContext(ctx).First(&choice, choiceID).Error; err != nil {
		return nil, err
	}
	return &choice, nil
}
