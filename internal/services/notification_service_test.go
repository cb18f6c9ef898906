package services

import (
	"context"
	"testing"

	"github.com/exam-portal/exam-service/internal/events"
	"github.com/exam-portal/exam-service/internal/models"
)

func TestNotifyScorePublishesOneEvent(t *testing.T) {
	publisher := events.NewMockEventPublisher(testLogger())
	notifications := &stubNotificationRepo{}
	repo := &stubRepo{notifications: notifications}

	svc := NewNotificationService(repo, publisher, testLogger(), "exam-events")

	attempt := &models.ExamAttempt{ID: 7, ExamID: 3, StudentID: "s-42", Status: models.AttemptGraded}
	exam := &models.Exam{ID: 3, Title: "Geometry Final", TotalScore: 20}

	if err := svc.NotifyScore(context.Background(), attempt, exam, 15.5); err != nil {
		t.Fatalf("NotifyScore failed: %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("expected exactly one published event, got %d", len(published))
	}
	if published[0].Topic != "exam-events" {
		t.Errorf("topic = %q, want exam-events", published[0].Topic)
	}
	if published[0].Event.Type != string(models.NotificationScorePublished) {
		t.Errorf("event type = %q, want %q", published[0].Event.Type, models.NotificationScorePublished)
	}

	data, ok := published[0].Event.Data.(events.ScoreNotificationData)
	if !ok {
		t.Fatalf("unexpected event payload type %T", published[0].Event.Data)
	}
	if data.StudentID != "s-42" || data.AttemptID != 7 || data.Score != 15.5 || data.TotalScore != 20 {
		t.Errorf("unexpected payload: %+v", data)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("expected one persisted notification, got %d", len(notifications.created))
	}
	if notifications.created[0].SentAt == nil {
		t.Error("successful publish should set SentAt")
	}
	if notifications.created[0].Type != models.NotificationScorePublished {
		t.Errorf("notification type = %q", notifications.created[0].Type)
	}
}

func TestNotifyScoreReturnsPublishError(t *testing.T) {
	publisher := events.NewMockEventPublisher(testLogger())
	publisher.FailNext = context.DeadlineExceeded

	notifications := &stubNotificationRepo{}
	repo := &stubRepo{notifications: notifications}
	svc := NewNotificationService(repo, publisher, testLogger(), "exam-events")

	attempt := &models.ExamAttempt{ID: 7, ExamID: 3, StudentID: "s-42"}
	exam := &models.Exam{ID: 3, Title: "Geometry Final", TotalScore: 20}

	if err := svc.NotifyScore(context.Background(), attempt, exam, 15.5); err == nil {
		t.Fatal("expected an error when the publisher fails")
	}
	if len(notifications.created) != 1 {
		t.Fatalf("expected the notification row to be persisted anyway, got %d", len(notifications.created))
	}
	if notifications.created[0].SentAt != nil {
		t.Error("failed publish must leave SentAt unset")
	}
}
