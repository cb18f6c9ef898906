package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

// ===== ACCESS CONTROL =====

// getOwnedAttempt loads the attempt and masks both missing rows and
// foreign rows as ErrAttemptNotFound.
func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, studentID string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.StudentID != studentID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *attemptService) canAccessAttempt(ctx context.Context, attempt *models.ExamAttempt, userID string) (bool, error) {
	if attempt.StudentID == userID {
		return true, nil
	}
	return s.canManageAttempt(ctx, attempt, userID)
}

// canManageAttempt reports whether the user may act on the attempt as
// staff: admins always, teachers and proctors for their own exams.
func (s *attemptService) canManageAttempt(ctx context.Context, attempt *models.ExamAttempt, userID string) (bool, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to get user: %w", err)
	}

	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleTeacher, models.RoleProctor:
		return s.repo.Exam().IsOwnedBy(ctx, nil, attempt.ExamID, userID)
	default:
		return false, nil
	}
}

// ===== DEADLINE HELPERS =====

// secondsRemaining computes the time left on an attempt. Expired
// attempts report zero remaining.
func secondsRemaining(startedAt time.Time, durationMinutes int, now time.Time) (int, bool) {
	deadline := startedAt.Add(time.Duration(durationMinutes) * time.Minute)
	remaining := int(deadline.Sub(now).Seconds())
	if remaining <= 0 {
		return 0, true
	}
	return remaining, false
}

// checkDeadlineFor submits the attempt in place when the deadline has
// passed. Returns whether the attempt is expired.
func (s *attemptService) checkDeadlineFor(ctx context.Context, attempt *models.ExamAttempt) (bool, error) {
	if attempt.Status.IsClosed() {
		return true, nil
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return false, fmt.Errorf("failed to get exam: %w", err)
	}

	now := time.Now()
	_, expired := secondsRemaining(attempt.StartedAt, exam.Duration, now)
	if !expired {
		return false, nil
	}

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now
	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return true, fmt.Errorf("failed to auto-submit expired attempt: %w", err)
	}

	s.logger.Info("Attempt auto-submitted on deadline",
		"attempt_id", attempt.ID,
		"deadline", exam.Deadline(attempt.StartedAt))

	return true, nil
}

// enforceDeadline runs the deadline check against an already loaded
// attempt, mutating it when the transition fires.
func (s *attemptService) enforceDeadline(ctx context.Context, attempt *models.ExamAttempt) error {
	if _, err := s.checkDeadlineFor(ctx, attempt); err != nil {
		return err
	}
	return nil
}

// ===== ANSWER HELPERS =====

func (s *attemptService) initializeAttemptAnswers(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	questions, err := s.repo.Question().GetByExam(ctx, tx, attempt.ExamID)
	if err != nil {
		return fmt.Errorf("failed to get exam questions: %w", err)
	}

	// Materialize one empty answer per question up front so recording
	// is always an update.
	answers := make([]*models.Answer, len(questions))
	for i, question := range questions {
		answers[i] = &models.Answer{
			AttemptID:  attempt.ID,
			QuestionID: question.ID,
		}
	}

	if err := s.repo.Answer().CreateBatch(ctx, tx, answers); err != nil {
		return fmt.Errorf("failed to create initial answers: %w", err)
	}

	return nil
}

// recordAnswer writes one answer payload. Only the field matching the
// question type is touched.
func (s *attemptService) recordAnswer(ctx context.Context, attempt *models.ExamAttempt, req *SaveAnswerRequest) error {
	question, err := s.repo.Question().GetByID(ctx, nil, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}
	if question.ExamID != attempt.ExamID {
		return ErrQuestionNotFound
	}

	answer, err := s.repo.Answer().GetByAttemptAndQuestion(ctx, nil, attempt.ID, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to get answer: %w", err)
	}

	switch question.Type {
	case models.MultipleChoice:
		if req.SelectedChoiceID != nil {
			choice, err := s.repo.Question().GetChoice(ctx, nil, *req.SelectedChoiceID)
			if err != nil {
				if repositories.IsNotFoundError(err) {
					return ErrInvalidChoice
				}
				return fmt.Errorf("failed to get choice: %w", err)
			}
			if choice.QuestionID != question.ID {
				return ErrInvalidChoice
			}
		}
		answer.SelectedChoiceID = req.SelectedChoiceID

	case models.ShortAnswer:
		answer.TextAnswer = req.TextAnswer

	case models.FileUpload:
		answer.UploadedFile = req.UploadedFile

	default:
		return fmt.Errorf("unsupported question type %q", question.Type)
	}

	if err := s.repo.Answer().Update(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}

	return nil
}

// ===== RESPONSE BUILDING =====

func (s *attemptService) buildAttemptResponse(attempt *models.ExamAttempt, durationMinutes int, now time.Time) *AttemptResponse {
	remaining, expired := secondsRemaining(attempt.StartedAt, durationMinutes, now)
	if attempt.Status.IsClosed() {
		remaining, expired = 0, true
	}

	return &AttemptResponse{
		ExamAttempt:      attempt,
		SecondsRemaining: remaining,
		Expired:          expired,
		CanSubmit:        attempt.Status == models.AttemptInProgress && !expired,
	}
}

// sanitizeAttemptForStudent strips the answer key from preloaded
// question data.
func sanitizeAttemptForStudent(attempt *models.ExamAttempt) {
	for i := range attempt.Answers {
		question := &attempt.Answers[i].Question
		question.AutoGradePattern = nil
		for j := range question.Choices {
			question.Choices[j].IsCorrect = false
		}
	}
	for i := range attempt.Exam.Questions {
		attempt.Exam.Questions[i].AutoGradePattern = nil
		for j := range attempt.Exam.Questions[i].Choices {
			attempt.Exam.Questions[i].Choices[j].IsCorrect = false
		}
	}
}
