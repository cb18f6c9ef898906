package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/exam-portal/exam-service/internal/events"
	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

type notificationEventService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	topic          string
}

// NewNotificationService builds the notifier boundary. The publisher is
// injected here; nothing in the service reaches for globals.
func NewNotificationService(repo repositories.Repository, eventPublisher events.EventPublisher, logger *slog.Logger, topic string) NotificationService {
	return &notificationEventService{
		repo:           repo,
		eventPublisher: eventPublisher,
		logger:         logger,
		topic:          topic,
	}
}

// NotifyScore publishes the score event and persists a notification row.
// Callers treat any returned error as non-fatal.
func (s *notificationEventService) NotifyScore(ctx context.Context, attempt *models.ExamAttempt, exam *models.Exam, totalScore float64) error {
	data := events.ScoreNotificationData{
		StudentID:  attempt.StudentID,
		ExamID:     exam.ID,
		ExamTitle:  exam.Title,
		AttemptID:  attempt.ID,
		Score:      totalScore,
		TotalScore: exam.TotalScore,
	}

	event := events.NewEvent(string(models.NotificationScorePublished), data)
	publishErr := s.eventPublisher.Publish(ctx, s.topic, event)

	notification := &models.Notification{
		StudentID: attempt.StudentID,
		ExamID:    exam.ID,
		Type:      models.NotificationScorePublished,
		Title:     fmt.Sprintf("Your score for %s is ready", exam.Title),
		Message:   fmt.Sprintf("You scored %.2f out of %.2f on %s.", totalScore, exam.TotalScore, exam.Title),
		Priority:  models.PriorityNormal,
	}
	if payload, err := json.Marshal(data); err == nil {
		notification.Payload = payload
	}
	if publishErr == nil {
		now := time.Now()
		notification.SentAt = &now
	}

	if err := s.repo.Notification().Create(ctx, nil, notification); err != nil {
		s.logger.Error("Failed to persist notification",
			"student_id", attempt.StudentID,
			"attempt_id", attempt.ID,
			"error", err)
	}

	if publishErr != nil {
		return fmt.Errorf("failed to publish score notification: %w", publishErr)
	}

	s.logger.Info("Score notification sent",
		"student_id", attempt.StudentID,
		"exam_id", exam.ID,
		"attempt_id", attempt.ID,
		"score", totalScore)

	return nil
}

func (s *notificationEventService) GetByStudent(ctx context.Context, studentID string, limit, offset int) ([]*models.Notification, int64, error) {
	notifications, total, err := s.repo.Notification().GetByStudent(ctx, nil, studentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}
