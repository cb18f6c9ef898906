package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

type ReviewPostgreSQL struct {
	db *gorm.DB
}

func NewReviewPostgreSQL(db *gorm.DB) repositories.ReviewRepository {
	return &ReviewPostgreSQL{db: db}
}

func (rr *ReviewPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return rr.db
}

func (rr *ReviewPostgreSQL) GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.ManualReview, error) {
	var review models.ManualReview
	err := rr.getDB(tx).WithContext(ctx).
		Where("answer_id = ?", answerID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (rr *ReviewPostgreSQL) Create(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error {
	if err := rr.getDB(tx).WithContext(ctx).Create(review).Error; err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (rr *ReviewPostgreSQL) Update(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error {
	if err := rr.getDB(tx).WithContext(ctx).Save(review).Error; err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return nil
}

// ===== AUTO-GRADER LOGS =====

type GradeLogPostgreSQL struct {
	db *gorm.DB
}

func NewGradeLogPostgreSQL(db *gorm.DB) repositories.GradeLogRepository {
	return &GradeLogPostgreSQL{db: db}
}

func (gr *GradeLogPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return gr.db
}

func (gr *GradeLogPostgreSQL) Create(ctx context.Context, tx *gorm.DB, log *models.AutoGraderLog) error {
	if err := gr.getDB(tx).WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create grader log: %w", err)
	}
	return nil
}

func (gr *GradeLogPostgreSQL) GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) ([]*models.AutoGraderLog, error) {
	var logs []*models.AutoGraderLog
	err := gr.getDB(tx).WithContext(ctx).
		Where("answer_id = ?", answerID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get grader logs: %w", err)
	}
	return logs, nil
}

func (gr *GradeLogPostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AutoGraderLog, error) {
	var logs []*models.AutoGraderLog
	err := gr.getDB(tx).WithContext(ctx).
		Joins("JOIN answers ON answers.id = auto_grader_logs.answer_id").
		Where("answers.attempt_id = ?", attemptID).
		Order("auto_grader_logs.created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get grader logs for attempt: %w", err)
	}
	return logs, nil
}

// ===== NOTIFICATIONS =====

type NotificationPostgreSQL struct {
	db *gorm.DB
}

func NewNotificationPostgreSQL(db *gorm.DB) repositories.NotificationRepository {
	return &NotificationPostgreSQL{db: db}
}

func (nr *NotificationPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return nr.db
}

func (nr *NotificationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	if err := nr.getDB(tx).WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (nr *NotificationPostgreSQL) GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit, offset int) ([]*models.Notification, int64, error) {
	db := nr.getDB(tx).WithContext(ctx).
		Model(&models.Notification{}).
		Where("student_id = ?", studentID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	var notifications []*models.Notification
	query := db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}

	return notifications, total, nil
}
