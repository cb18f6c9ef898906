package services

import (
	"context"
	"time"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

// ===== REQUEST DTOs =====

type SaveAnswerRequest struct {
	QuestionID       uint    `json:"question_id" validate:"required"`
	TextAnswer       *string `json:"text_answer"`
	SelectedChoiceID *uint   `json:"selected_choice_id"`
	UploadedFile     *string `json:"uploaded_file"`
}

type SaveAnswersRequest struct {
	Answers []SaveAnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

type ManualGradeRequest struct {
	AnswerID uint    `json:"answer_id" validate:"required"`
	Score    float64 `json:"score"`
	Comments *string `json:"comments"`
}

type ManualGradeBatchRequest struct {
	Grades []ManualGradeRequest `json:"grades" validate:"required,min=1,dive"`
}

// ===== RESPONSE DTOs =====

type AttemptResponse struct {
	*models.ExamAttempt

	SecondsRemaining int  `json:"seconds_remaining"`
	Expired          bool `json:"expired"`
	CanSubmit        bool `json:"can_submit"`
}

type TimeRemainingResponse struct {
	SecondsRemaining int  `json:"seconds_remaining"`
	Expired          bool `json:"expired"`
}

// BatchResult reports the outcome of a partial-failure batch operation.
type BatchResult struct {
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Errors    map[uint]string `json:"errors,omitempty"`
}

type AutoGradeResult struct {
	AutoGraded    int  `json:"auto_graded"`
	NeedsManual   int  `json:"needs_manual"`
	AlreadyScored int  `json:"already_scored"`
	Finalized     bool `json:"finalized"`
}

// ===== SERVICE INTERFACES =====

type ExamService interface {
	GetByID(ctx context.Context, examID uint, userID string) (*models.Exam, error)
	GetForTaking(ctx context.Context, examID uint, studentID string) (*models.Exam, error)
	ListAvailable(ctx context.Context, now time.Time) ([]*models.Exam, error)
	CanAccess(ctx context.Context, examID uint, userID string) (bool, error)
}

type AttemptService interface {
	Start(ctx context.Context, examID uint, studentID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	GetByStudent(ctx context.Context, studentID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, studentID string) error
	SaveAnswers(ctx context.Context, attemptID uint, req *SaveAnswersRequest, studentID string) (*BatchResult, error)
	Submit(ctx context.Context, attemptID uint, studentID string) (*AttemptResponse, error)
	Cancel(ctx context.Context, attemptID uint, userID string) error
	CheckDeadline(ctx context.Context, attemptID uint) (bool, error)
	GetTimeRemaining(ctx context.Context, attemptID uint, studentID string) (*TimeRemainingResponse, error)
}

type GradingService interface {
	ListForGrading(ctx context.Context, graderID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	AutoGradeAttempt(ctx context.Context, attemptID uint, graderID string) (*AutoGradeResult, error)
	GradeAnswer(ctx context.Context, req *ManualGradeRequest, graderID string) error
	GradeAttempt(ctx context.Context, attemptID uint, req *ManualGradeBatchRequest, graderID string) (*BatchResult, error)
	GetGradingStats(ctx context.Context, examID uint, graderID string) (*repositories.GradingStats, error)
	ExportScores(ctx context.Context, examID uint, graderID string) ([]byte, error)
}

type NotificationService interface {
	NotifyScore(ctx context.Context, attempt *models.ExamAttempt, exam *models.Exam, totalScore float64) error
	GetByStudent(ctx context.Context, studentID string, limit, offset int) ([]*models.Notification, int64, error)
}
