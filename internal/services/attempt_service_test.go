package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/validator"
)

func TestSecondsRemaining(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		duration    int
		now         time.Time
		wantSeconds int
		wantExpired bool
	}{
		{
			name:        "time left",
			duration:    60,
			now:         started.Add(10 * time.Minute),
			wantSeconds: 50 * 60,
			wantExpired: false,
		},
		{
			name:        "exactly at deadline",
			duration:    60,
			now:         started.Add(60 * time.Minute),
			wantSeconds: 0,
			wantExpired: true,
		},
		{
			name:        "past deadline reports zero",
			duration:    30,
			now:         started.Add(2 * time.Hour),
			wantSeconds: 0,
			wantExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seconds, expired := secondsRemaining(started, tt.duration, tt.now)
			if seconds != tt.wantSeconds {
				t.Errorf("seconds = %d, want %d", seconds, tt.wantSeconds)
			}
			if expired != tt.wantExpired {
				t.Errorf("expired = %v, want %v", expired, tt.wantExpired)
			}
		})
	}
}

func TestAttemptStatusIsClosed(t *testing.T) {
	if models.AttemptInProgress.IsClosed() {
		t.Error("in_progress must count as open")
	}
	for _, status := range []models.AttemptStatus{models.AttemptSubmitted, models.AttemptGraded, models.AttemptCancelled} {
		if !status.IsClosed() {
			t.Errorf("%s must count as closed", status)
		}
	}
}

func TestDuplicateAttemptError(t *testing.T) {
	err := &DuplicateAttemptError{StudentID: "s-1", ExamID: 3, AttemptID: 42}

	var dup *DuplicateAttemptError
	if !errors.As(error(err), &dup) {
		t.Fatal("errors.As should unwrap DuplicateAttemptError")
	}
	if dup.AttemptID != 42 {
		t.Errorf("attempt id = %d, want 42", dup.AttemptID)
	}
	if err.Error() == "" {
		t.Error("error message should not be empty")
	}
}

func TestSaveAnswerRejectsClosedAttempt(t *testing.T) {
	tests := []struct {
		name   string
		status models.AttemptStatus
	}{
		{name: "submitted", status: models.AttemptSubmitted},
		{name: "graded", status: models.AttemptGraded},
		{name: "cancelled", status: models.AttemptCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{}
			repo.attempts = &stubAttemptRepo{
				repo:    repo,
				attempt: &models.ExamAttempt{ID: 1, ExamID: 2, StudentID: "s-1", Status: tt.status},
			}
			svc := &attemptService{repo: repo, logger: testLogger(), validator: validator.New()}

			req := &SaveAnswerRequest{QuestionID: 10, TextAnswer: strPtr("paris")}
			err := svc.SaveAnswer(context.Background(), 1, req, "s-1")
			if !errors.Is(err, ErrAttemptClosed) {
				t.Fatalf("err = %v, want ErrAttemptClosed", err)
			}
			if len(repo.attempts.updated) != 0 {
				t.Errorf("closed attempt must not be written, got %d updates", len(repo.attempts.updated))
			}
		})
	}
}

func TestSanitizeAttemptForStudent(t *testing.T) {
	pattern := "42"
	attempt := &models.ExamAttempt{
		Status: models.AttemptInProgress,
		Exam: models.Exam{
			Questions: []models.Question{
				{ID: 12, Type: models.ShortAnswer, AutoGradePattern: &pattern},
			},
		},
		Answers: []models.Answer{
			{
				ID: 1,
				Question: models.Question{
					ID:               10,
					Type:             models.ShortAnswer,
					AutoGradePattern: &pattern,
				},
			},
			{
				ID: 2,
				Question: models.Question{
					ID:   11,
					Type: models.MultipleChoice,
					Choices: []models.Choice{
						{ID: 101, IsCorrect: true},
						{ID: 102},
					},
				},
			},
		},
	}

	sanitizeAttemptForStudent(attempt)

	if attempt.Answers[0].Question.AutoGradePattern != nil {
		t.Error("grading pattern must never reach students")
	}
	for _, choice := range attempt.Answers[1].Question.Choices {
		if choice.IsCorrect {
			t.Error("correct-choice flags must never reach students")
		}
	}
	if attempt.Exam.Questions[0].AutoGradePattern != nil {
		t.Error("grading pattern must be stripped from preloaded exam questions")
	}
}
