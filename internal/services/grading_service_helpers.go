package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

// ===== AUTO-GRADE POLICY =====

type autoGradeVerdict struct {
	// graded means a score was reached; otherwise the answer goes to
	// manual review.
	graded  bool
	matched bool
	score   float64
	reason  string
	// logged controls whether an audit row is written. Verdicts that
	// never evaluated anything (missing pattern, malformed pattern,
	// file uploads) leave no log.
	logged bool
	detail map[string]any
}

// evaluateAnswer applies the grading policy for one answer. Pure: no
// I/O, no mutation.
func evaluateAnswer(answer *models.Answer, question *models.Question) autoGradeVerdict {
	switch question.Type {
	case models.MultipleChoice:
		return evaluateChoice(answer, question)
	case models.ShortAnswer:
		return evaluateShortAnswer(answer, question)
	default:
		// File uploads always need a human.
		return autoGradeVerdict{reason: "requires manual review"}
	}
}

// evaluateChoice grades an MCQ answer binary: full marks for the correct
// choice, zero for anything else including no selection.
func evaluateChoice(answer *models.Answer, question *models.Question) autoGradeVerdict {
	verdict := autoGradeVerdict{
		graded: true,
		logged: true,
		detail: map[string]any{"question_id": question.ID},
	}

	if answer.SelectedChoiceID == nil {
		verdict.reason = "no choice selected"
		return verdict
	}

	verdict.detail["selected_choice_id"] = *answer.SelectedChoiceID
	for i := range question.Choices {
		if question.Choices[i].ID == *answer.SelectedChoiceID {
			verdict.matched = question.Choices[i].IsCorrect
			break
		}
	}

	if verdict.matched {
		verdict.score = question.MaxScore
		verdict.reason = "correct choice selected"
	} else {
		verdict.reason = "incorrect choice selected"
	}
	return verdict
}

// evaluateShortAnswer grades against the question's pattern: a
// case-insensitive full-string match on the trimmed text. No pattern or
// a malformed pattern sends the answer to manual review without a log.
func evaluateShortAnswer(answer *models.Answer, question *models.Question) autoGradeVerdict {
	if question.AutoGradePattern == nil || *question.AutoGradePattern == "" {
		return autoGradeVerdict{reason: "no grading pattern"}
	}

	re, err := regexp.Compile(`(?i)^(?:` + *question.AutoGradePattern + `)$`)
	if err != nil {
		return autoGradeVerdict{reason: "malformed grading pattern"}
	}

	text := ""
	if answer.TextAnswer != nil {
		text = strings.TrimSpace(*answer.TextAnswer)
	}

	verdict := autoGradeVerdict{
		graded:  true,
		matched: re.MatchString(text),
		logged:  true,
		detail: map[string]any{
			"question_id": question.ID,
			"pattern":     *question.AutoGradePattern,
		},
	}

	if verdict.matched {
		verdict.score = question.MaxScore
		verdict.reason = fmt.Sprintf("answer matched pattern %q", *question.AutoGradePattern)
	} else {
		verdict.reason = fmt.Sprintf("answer did not match pattern %q", *question.AutoGradePattern)
	}
	return verdict
}

func buildGraderLog(answer *models.Answer, verdict autoGradeVerdict) *models.AutoGraderLog {
	log := &models.AutoGraderLog{
		AnswerID:     answer.ID,
		Matched:      verdict.matched,
		ScoreAwarded: verdict.score,
		Reason:       verdict.reason,
	}
	if verdict.detail != nil {
		if detail, err := json.Marshal(verdict.detail); err == nil {
			log.Detail = detail
		}
	}
	return log
}

// ===== TRANSACTION BOUNDARY =====

// runGradingTx runs fn inside one repository transaction. A panic in fn
// surfaces as an error after the transaction has rolled back, so a
// grading call never silently returns nothing.
func (s *gradingService) runGradingTx(ctx context.Context, op string, fn func(txRepo repositories.Repository) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic during grading",
				"operation", op,
				"panic", r)
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return s.repo.WithTransaction(ctx, fn)
}

// ===== MANUAL GRADING =====

// applyManualGrade validates the score, upserts the review and writes
// the grade back onto the answer. Callers run it inside a transaction
// so the review and the write-back never land separately.
func (s *gradingService) applyManualGrade(ctx context.Context, repo repositories.Repository, answer *models.Answer, req *ManualGradeRequest, graderID string) error {
	question, err := repo.Question().GetByID(ctx, nil, answer.QuestionID)
	if err != nil {
		return fmt.Errorf("failed to get question: %w", err)
	}

	// Boundary values are accepted; nothing is clamped.
	if req.Score < 0 || req.Score > question.MaxScore {
		return ErrScoreOutOfRange
	}

	now := time.Now()

	review, err := repo.Review().GetByAnswer(ctx, nil, answer.ID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to get review: %w", err)
		}
		review = &models.ManualReview{AnswerID: answer.ID}
	}

	// One review per answer; a re-grade overwrites it.
	review.ReviewerID = graderID
	review.Score = req.Score
	review.Comments = req.Comments
	review.ReviewedAt = now

	if review.ID == 0 {
		if err := repo.Review().Create(ctx, nil, review); err != nil {
			return err
		}
	} else {
		if err := repo.Review().Update(ctx, nil, review); err != nil {
			return err
		}
	}

	score := req.Score
	answer.Score = &score
	answer.GradedBy = &review.ReviewerID
	answer.GradedAt = &now
	answer.IsAutoGraded = false
	answer.NeedsManual = false

	if err := repo.Answer().Update(ctx, nil, answer); err != nil {
		return fmt.Errorf("failed to write grade back: %w", err)
	}

	return nil
}

// ===== AGGREGATION =====

// finalizeAttempt computes the total once every answer is scored. The
// graded transition fires only out of submitted, so notifications go
// out at most once per attempt.
func (s *gradingService) finalizeAttempt(ctx context.Context, repo repositories.Repository, attempt *models.ExamAttempt) (bool, float64, error) {
	allScored, err := repo.Answer().AreAllScored(ctx, nil, attempt.ID)
	if err != nil {
		return false, 0, err
	}
	if !allScored {
		return false, 0, nil
	}

	total, err := repo.Answer().SumScores(ctx, nil, attempt.ID)
	if err != nil {
		return false, 0, err
	}

	attempt.TotalScore = &total
	transitioned := attempt.Status == models.AttemptSubmitted
	if transitioned {
		attempt.Status = models.AttemptGraded
	}

	if err := repo.Attempt().Update(ctx, nil, attempt); err != nil {
		return false, 0, fmt.Errorf("failed to finalize attempt: %w", err)
	}

	return transitioned, total, nil
}

func (s *gradingService) finalizeAndNotify(ctx context.Context, attempt *models.ExamAttempt) error {
	var finalized bool
	var total float64

	err := s.runGradingTx(ctx, "grade aggregation", func(txRepo repositories.Repository) error {
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

// publishScore emits the score notification. Fire and forget: failures
// are logged and swallowed, grading never fails on notification.
func (s *gradingService) publishScore(ctx context.Context, attempt *models.ExamAttempt, total float64) {
	exam, err := s.repo.Exam().GetByID(ctx, nil, attempt.ExamID)
	if err != nil {
		s.logger.Error("Failed to load exam for score notification",
			"attempt_id", attempt.ID,
			"error", err)
		return
	}

	if err := s.notifier.NotifyScore(ctx, attempt, exam, total); err != nil {
		s.logger.Error("Failed to publish score notification",
			"attempt_id", attempt.ID,
			"student_id", attempt.StudentID,
			"error", err)
	}
}

// ===== ACCESS CONTROL =====

// getGradableAttempt loads the attempt and checks that the grader may
// act on it and that it has been submitted.
func (s *gradingService) getGradableAttempt(ctx context.Context, attemptID uint, graderID, action string) (*models.ExamAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, nil, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if err := s.requireExamAccess(ctx, attempt.ExamID, graderID, action); err != nil {
		return nil, err
	}

	if attempt.Status != models.AttemptSubmitted && attempt.Status != models.AttemptGraded {
		return nil, ErrAttemptNotSubmitted
	}

	return attempt, nil
}

func (s *gradingService) requireExamAccess(ctx context.Context, examID uint, userID, action string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !user.Role.CanGrade() {
		return NewPermissionError(userID, examID, "exam", action, "insufficient role")
	}
	if user.Role == models.RoleAdmin {
		return nil
	}

	owned, err := s.repo.Exam().IsOwnedBy(ctx, nil, examID, userID)
	if err != nil {
		return fmt.Errorf("failed to check exam ownership: %w", err)
	}
	if !owned {
		return NewPermissionError(userID, examID, "exam", action, "not exam owner")
	}
	return nil
}
