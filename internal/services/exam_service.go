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

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *examService) GetByID(ctx context.Context, examID uint, userID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Students never see unpublished exams or the answer key.
	if userRole == models.RoleStudent {
		if !exam.IsAvailable(time.Now()) {
			return nil, ErrExamNotFound
		}
		sanitizeExamForStudent(exam)
	}

	return exam, nil
}

// GetForTaking returns the exam as presented to a student during an
// attempt: questions in order, choices without correct flags, no
// grading patterns.
func (s *examService) GetForTaking(ctx context.Context, examID uint, studentID string) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByIDWithQuestions(ctx, nil, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if !exam.IsAvailable(time.Now()) {
		return nil, ErrExamNotAvailable
	}

	sanitizeExamForStudent(exam)
	return exam, nil
}

func (s *examService) ListAvailable(ctx context.Context, now time.Time) ([]*models.Exam, error) {
	exams, err := s.repo.Exam().ListAvailable(ctx, nil, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list available exams: %w", err)
	}
	return exams, nil
}

// CanAccess reports whether the user may manage the exam. Admins always
// can, teachers only for exams they created.
func (s *examService) CanAccess(ctx context.Context, examID uint, userID string) (bool, error) {
	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}

	if !userRole.CanGrade() {
		return false, nil
	}
	if userRole == models.RoleAdmin {
		return true, nil
	}

	owned, err := s.repo.Exam().IsOwnedBy(ctx, nil, examID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check exam ownership: %w", err)
	}
	return owned, nil
}

func (s *examService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// sanitizeExamForStudent strips the answer key from an exam in place.
func sanitizeExamForStudent(exam *models.Exam) {
	for i := range exam.Questions {
		exam.Questions[i].AutoGradePattern = nil
		for j := range exam.Questions[i].Choices {
			exam.Questions[i].Choices[j].IsCorrect = false
		}
	}
}
