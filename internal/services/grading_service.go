package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
	"github.com/exam-portal/exam-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	notifier  NotificationService
}

func NewGradingService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, notifier NotificationService) GradingService {
	return &gradingService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		notifier:  notifier,
	}
}

// ===== GRADING QUEUE =====

func (s *gradingService) ListForGrading(ctx context.Context, graderID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	user, err := s.repo.User().GetByID(ctx, graderID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get user: %w", err)
	}

	// Admins see every exam, teachers and proctors only their own.
	teacherID := graderID
	if user.Role == models.RoleAdmin {
		teacherID = ""
	}

	if len(filters.Status) == 0 {
		filters.Status = []models.AttemptStatus{models.AttemptSubmitted}
	}

	attempts, total, err := s.repo.Attempt().ListForGrading(ctx, nil, teacherID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list attempts for grading: %w", err)
	}
	return attempts, total, nil
}

// ===== AUTO-GRADING =====

func (s *gradingService) AutoGradeAttempt(ctx context.Context, attemptID uint, graderID string) (*AutoGradeResult, error) {
	s.logger.Info("Auto-grading attempt",
		"attempt_id", attemptID,
		"grader_id", graderID)

	attempt, err := s.getGradableAttempt(ctx, attemptID, graderID, "auto_grade")
	if err != nil {
		return nil, err
	}

	result := &AutoGradeResult{}
	var finalized bool
	var total float64

	err = s.runGradingTx(ctx, "auto-grading", func(txRepo repositories.Repository) error {
		answers, err := txRepo.Answer().GetByAttempt(ctx, nil, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get answers: %w", err)
		}

		now := time.Now()
		for _, answer := range answers {
			if answer.IsScored() {
				result.AlreadyScored++
				continue
			}

			verdict := evaluateAnswer(answer, &answer.Question)

			if verdict.graded {
				score := verdict.score
				answer.Score = &score
				answer.IsAutoGraded = true
				answer.GradedAt = &now
				answer.NeedsManual = false
				result.AutoGraded++
			} else {
				answer.NeedsManual = true
				result.NeedsManual++
			}

			if err := txRepo.Answer().Update(ctx, nil, answer); err != nil {
				return fmt.Errorf("failed to update answer %d: %w", answer.ID, err)
			}

			if verdict.logged {
				log := buildGraderLog(answer, verdict)
				if err := txRepo.GradeLog().Create(ctx, nil, log); err != nil {
					return fmt.Errorf("failed to write grader log: %w", err)
				}
			}
		}

		finalized, total, err = s.finalizeAttempt(ctx, txRepo, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}

	result.Finalized = finalized
	if finalized {
		s.publishScore(ctx, attempt, total)
	}

	s.logger.Info("Auto-grading finished",
		"attempt_id", attemptID,
		"auto_graded", result.AutoGraded,
		"needs_manual", result.NeedsManual,
		"finalized", finalized)

	return result, nil
}

// ===== MANUAL GRADING =====

func (s *gradingService) GradeAnswer(ctx context.Context, req *ManualGradeRequest, graderID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	answer, err := s.repo.Answer().GetByID(ctx, nil, req.AnswerID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAnswerNotFound
		}
		return fmt.Errorf("failed to get answer: %w", err)
	}

	attempt, err := s.getGradableAttempt(ctx, answer.AttemptID, graderID, "manual_grade")
	if err != nil {
		return err
	}

	// Review upsert, answer write-back and aggregation commit or roll
	// back together.
	var finalized bool
	var total float64
	err = s.runGradingTx(ctx, "manual grading", func(txRepo repositories.Repository) error {
		if err := s.applyManualGrade(ctx, txRepo, answer, req, graderID); err != nil {
			return err
		}
		var err error
		finalized, total, err = s.finalizeAttempt(ctx, txRepo, attempt)
		return err
	})
	if err != nil {
		return err
	}

	if finalized {
		s.publishScore(ctx, attempt, total)
	}
	return nil
}

func (s *gradingService) GradeAttempt(ctx context.Context, attemptID uint, req *ManualGradeBatchRequest, graderID string) (*BatchResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	s.logger.Info("Manual-grading attempt",
		"attempt_id", attemptID,
		"grader_id", graderID,
		"grades", len(req.Grades))

	attempt, err := s.getGradableAttempt(ctx, attemptID, graderID, "manual_grade")
	if err != nil {
		return nil, err
	}

	// Grades fail independently; each one commits or rolls back on its
	// own, and the batch reports counts.
	result := &BatchResult{Errors: make(map[uint]string)}
	for i := range req.Grades {
		grade := &req.Grades[i]

		answer, err := s.repo.Answer().GetByID(ctx, nil, grade.AnswerID)
		if err != nil {
			result.Failed++
			result.Errors[grade.AnswerID] = ErrAnswerNotFound.Error()
			continue
		}
		if answer.AttemptID != attemptID {
			result.Failed++
			result.Errors[grade.AnswerID] = ErrAnswerNotFound.Error()
			continue
		}

		err = s.runGradingTx(ctx, "manual grading", func(txRepo repositories.Repository) error {
			return s.applyManualGrade(ctx, txRepo, answer, grade, graderID)
		})
		if err != nil {
			result.Failed++
			result.Errors[grade.AnswerID] = err.Error()
			continue
		}
		result.Succeeded++
	}

	if err := s.finalizeAndNotify(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("Manual grading finished",
		"attempt_id", attemptID,
		"succeeded", result.Succeeded,
		"failed", result.Failed)

	return result, nil
}

// ===== STATS =====

func (s *gradingService) GetGradingStats(ctx context.Context, examID uint, graderID string) (*repositories.GradingStats, error) {
	if err := s.requireExamAccess(ctx, examID, graderID, "view_grading_stats"); err != nil {
		return nil, err
	}

	stats, err := s.repo.Answer().GetGradingStats(ctx, nil, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to get grading stats: %w", err)
	}
	return stats, nil
}
