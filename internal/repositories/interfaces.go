package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/models"
)

// ===== FILTER TYPES =====

type ExamFilters struct {
	Published *bool
	CreatedBy *string
	Search    string

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type AttemptFilters struct {
	Status    []models.AttemptStatus
	ExamID    *uint
	StudentID *string
	DateFrom  *time.Time
	DateTo    *time.Time

	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

type UserFilters struct {
	Query  string
	Role   *models.UserRole
	Limit  int
	Offset int
}

// ===== RESULT TYPES =====

type GradingStats struct {
	TotalAnswers  int64   `json:"total_answers"`
	ScoredAnswers int64   `json:"scored_answers"`
	PendingManual int64   `json:"pending_manual"`
	AutoGraded    int64   `json:"auto_graded"`
	ManualGraded  int64   `json:"manual_graded"`
	AverageScore  float64 `json:"average_score"`
}

type AttemptStats struct {
	TotalAttempts     int64   `json:"total_attempts"`
	InProgress        int64   `json:"in_progress"`
	Submitted         int64   `json:"submitted"`
	Graded            int64   `json:"graded"`
	Cancelled         int64   `json:"cancelled"`
	AverageTotalScore float64 `json:"average_total_score"`
}

// ===== REPOSITORY INTERFACES =====

type ExamRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	GetByIDWithQuestions(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	ListAvailable(ctx context.Context, tx *gorm.DB, now time.Time) ([]*models.Exam, error)
	IsOwnedBy(ctx context.Context, tx *gorm.DB, examID uint, userID string) (bool, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
}

type QuestionRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Question, error)
	GetChoice(ctx context.Context, tx *gorm.DB, choiceID uint) (*models.Choice, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByIDWithDetails(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	GetByStudentAndExam(ctx context.Context, tx *gorm.DB, studentID string, examID uint) (*models.ExamAttempt, error)
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	ListForGrading(ctx context.Context, tx *gorm.DB, teacherID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetStats(ctx context.Context, tx *gorm.DB, examID uint) (*AttemptStats, error)
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, answers []*models.Answer) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error)
	GetByAttemptAndQuestion(ctx context.Context, tx *gorm.DB, attemptID, questionID uint) (*models.Answer, error)
	Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error
	AreAllScored(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error)
	SumScores(ctx context.Context, tx *gorm.DB, attemptID uint) (float64, error)
	GetGradingStats(ctx context.Context, tx *gorm.DB, examID uint) (*GradingStats, error)
}

type ReviewRepository interface {
	GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.ManualReview, error)
	Create(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error
	Update(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error
}

type GradeLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, log *models.AutoGraderLog) error
	GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) ([]*models.AutoGraderLog, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.AutoGraderLog, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, notification *models.Notification) error
	GetByStudent(ctx context.Context, tx *gorm.DB, studentID string, limit, offset int) ([]*models.Notification, int64, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
}
