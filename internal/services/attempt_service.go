package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
	"github.com/exam-portal/exam-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAttemptService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) AttemptService {
	return &attemptService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, examID uint, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", examID,
		"student_id", studentID)

	exam, err := s.repo.Exam().GetByID(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	now := time.Now()
	if !exam.IsAvailable(now) {
		return nil, ErrExamNotAvailable
	}

	// One attempt per student per exam, ever.
	if existing, err := s.repo.Attempt().GetByStudentAndExam(ctx, nil, studentID, examID); err == nil {
		return nil, &DuplicateAttemptError{StudentID: studentID, ExamID: examID, AttemptID: existing.ID}
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to check existing attempt: %w", err)
	}

	attempt := &models.ExamAttempt{
		ExamID:    examID,
		StudentID: studentID,
		Status:    models.AttemptInProgress,
		StartedAt: now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		return s.initializeAttemptAnswers(ctx, tx, attempt)
	})
	if err != nil {
		// The unique index is the guard against two concurrent starts.
		if repositories.IsDuplicateKeyError(err) {
			if existing, getErr := s.repo.Attempt().GetByStudentAndExam(ctx, nil, studentID, examID); getErr == nil {
				return nil, &DuplicateAttemptError{StudentID: studentID, ExamID: examID, AttemptID: existing.ID}
			}
		}
		return nil, err
	}

	s.logger.Info("Exam attempt started",
		"attempt_id", attempt.ID,
		"exam_id", examID,
		"student_id", studentID)

	return s.buildAttemptResponse(attempt, exam.Duration, now), nil
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	// Deadline is evaluated on access; an expired attempt submits here.
	if _, err := s.CheckDeadline(ctx, attemptID); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByIDWithDetails(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canAccessAttempt(ctx, attempt, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		// Indistinguishable from a missing attempt on purpose.
		return nil, ErrAttemptNotFound
	}

	// Hide the answer key until the attempt is graded.
	if attempt.StudentID == userID && attempt.Status != models.AttemptGraded {
		sanitizeAttemptForStudent(attempt)
	}

	return s.buildAttemptResponse(attempt, attempt.Exam.Duration, time.Now()), nil
}

func (s *attemptService) GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	attempts, total, err := s.repo.Attempt().GetByStudent(ctx, nil, studentID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, total, nil
}

// ===== ANSWER RECORDING =====

func (s *attemptService) SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return err
	}

	if err := s.enforceDeadline(ctx, attempt); err != nil {
		return err
	}
	if attempt.Status.IsClosed() {
		return ErrAttemptClosed
	}

	return s.recordAnswer(ctx, attempt, req)
}

func (s *attemptService) SaveAnswers(ctx context.Context, attemptID uint, req *SaveAnswersRequest, studentID string) (*BatchResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	if err := s.enforceDeadline(ctx, attempt); err != nil {
		return nil, err
	}
	if attempt.Status.IsClosed() {
		return nil, ErrAttemptClosed
	}

	// Items fail independently; the batch reports counts.
	result := &BatchResult{Errors: make(map[uint]string)}
	for i := range req.Answers {
		item := &req.Answers[i]
		if err := s.recordAnswer(ctx, attempt, item); err != nil {
			result.Failed++
			result.Errors[item.QuestionID] = err.Error()
			continue
		}
		result.Succeeded++
	}

	s.logger.Info("Answers saved",
		"attempt_id", attemptID,
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	return result, nil
}

// ===== SUBMISSION =====

func (s *attemptService) Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error) {
	s.logger.Info("Submitting exam attempt",
		"attempt_id", attemptID,
		"student_id", studentID)

	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	if err := s.enforceDeadline(ctx, attempt); err != nil {
		return nil, err
	}
	if attempt.Status.IsClosed() {
		return nil, ErrAttemptClosed
	}

	now := time.Now()
	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now

	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	s.logger.Info("Exam attempt submitted", "attempt_id", attemptID)

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	return s.buildAttemptResponse(attempt, exam.Duration, now), nil
}

func (s *attemptService) Cancel(ctx context.Context, attemptID uint, userID string) error {
	s.logger.Info("Cancelling exam attempt",
		"attempt_id", attemptID,
		"user_id", userID)

	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAttemptNotFound
		}
		return fmt.Errorf("failed to get attempt: %w", err)
	}

	canAccess, err := s.canManageAttempt(ctx, attempt, userID)
	if err != nil {
		return err
	}
	if !canAccess {
		return NewPermissionError(userID, attemptID, "attempt", "cancel", "not exam owner")
	}

	if attempt.Status.IsClosed() {
		return ErrAttemptClosed
	}

	attempt.Status = models.AttemptCancelled
	if err := s.repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return fmt.Errorf("failed to cancel attempt: %w", err)
	}

	return nil
}

// ===== DEADLINE =====

// CheckDeadline performs the submit transition when the attempt has run
// past its deadline. Idempotent: a closed attempt is left alone.
func (s *attemptService) CheckDeadline(ctx context.Context, attemptID uint) (bool, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAttemptNotFound
		}
		return false, fmt.Errorf("failed to get attempt: %w", err)
	}

	return s.checkDeadlineFor(ctx, attempt)
}

func (s *attemptService) GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (*TimeRemainingResponse, error) {
	attempt, err := s.getOwnedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	if attempt.Status.IsClosed() {
		return &TimeRemainingResponse{SecondsRemaining: 0, Expired: true}, nil
	}

	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	remaining, expired := secondsRemaining(attempt.StartedAt, exam.Duration, time.Now())
	return &TimeRemainingResponse{SecondsRemaining: remaining, Expired: expired}, nil
}
