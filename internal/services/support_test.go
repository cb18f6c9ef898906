package services

import (
	"context"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
)

// stubRepo embeds the Repository interface so tests only implement the
// accessors they actually touch. WithTransaction runs the callback
// against the stub itself and records an in-transaction flag, so write
// stubs can report whether a write landed inside a transaction.
type stubRepo struct {
	repositories.Repository

	answers       *stubAnswerRepo
	attempts      *stubAttemptRepo
	exams         *stubExamRepo
	users         *stubUserRepo
	questions     *stubQuestionRepo
	reviews       *stubReviewRepo
	notifications *stubNotificationRepo

	mu       sync.Mutex
	txActive bool
	txCount  int
}

func (r *stubRepo) Answer() repositories.AnswerRepository             { return r.answers }
func (r *stubRepo) Attempt() repositories.AttemptRepository           { return r.attempts }
func (r *stubRepo) Exam() repositories.ExamRepository                 { return r.exams }
func (r *stubRepo) User() repositories.UserRepository                 { return r.users }
func (r *stubRepo) Question() repositories.QuestionRepository         { return r.questions }
func (r *stubRepo) Review() repositories.ReviewRepository             { return r.reviews }
func (r *stubRepo) Notification() repositories.NotificationRepository { return r.notifications }

func (r *stubRepo) WithTransaction(ctx context.Context, fn func(repo repositories.Repository) error) error {
	r.mu.Lock()
	r.txActive = true
	r.txCount++
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.txActive = false
		r.mu.Unlock()
	}()
	return fn(r)
}

func (r *stubRepo) inTx() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txActive
}

type stubAnswerRepo struct {
	repositories.AnswerRepository

	repo *stubRepo

	byID      map[uint]*models.Answer
	allScored bool
	sum       float64

	// panicOnGetByAttempt simulates a fault inside the grading loop.
	panicOnGetByAttempt string

	mu        sync.Mutex
	updated   []*models.Answer
	updatedTx []bool
}

func (r *stubAnswerRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Answer, error) {
	if answer, ok := r.byID[id]; ok {
		return answer, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubAnswerRepo) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Answer, error) {
	if r.panicOnGetByAttempt != "" {
		panic(r.panicOnGetByAttempt)
	}
	var answers []*models.Answer
	for _, answer := range r.byID {
		if answer.AttemptID == attemptID {
			answers = append(answers, answer)
		}
	}
	return answers, nil
}

func (r *stubAnswerRepo) Update(ctx context.Context, tx *gorm.DB, answer *models.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *answer
	r.updated = append(r.updated, &copied)
	r.updatedTx = append(r.updatedTx, r.repo.inTx())
	return nil
}

func (r *stubAnswerRepo) AreAllScored(ctx context.Context, tx *gorm.DB, attemptID uint) (bool, error) {
	return r.allScored, nil
}

func (r *stubAnswerRepo) SumScores(ctx context.Context, tx *gorm.DB, attemptID uint) (float64, error) {
	return r.sum, nil
}

type stubAttemptRepo struct {
	repositories.AttemptRepository

	repo    *stubRepo
	attempt *models.ExamAttempt

	mu        sync.Mutex
	updated   []*models.ExamAttempt
	updatedTx []bool
}

func (r *stubAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	if r.attempt == nil || r.attempt.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.attempt, nil
}

func (r *stubAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *attempt
	r.updated = append(r.updated, &copied)
	r.updatedTx = append(r.updatedTx, r.repo.inTx())
	return nil
}

type stubExamRepo struct {
	repositories.ExamRepository

	exam *models.Exam
}

func (r *stubExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	return r.exam, nil
}

type stubUserRepo struct {
	repositories.UserRepository

	user *models.User
}

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.user == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.user, nil
}

type stubQuestionRepo struct {
	repositories.QuestionRepository

	question *models.Question
}

func (r *stubQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	if r.question == nil || r.question.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.question, nil
}

type stubReviewRepo struct {
	repositories.ReviewRepository

	repo *stubRepo

	mu        sync.Mutex
	review    *models.ManualReview
	creates   int
	updates   int
	createdTx []bool
	updatedTx []bool
}

func (r *stubReviewRepo) GetByAnswer(ctx context.Context, tx *gorm.DB, answerID uint) (*models.ManualReview, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.review == nil || r.review.AnswerID != answerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *r.review
	return &copied, nil
}

func (r *stubReviewRepo) Create(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	review.ID = uint(r.creates + r.updates + 1)
	copied := *review
	r.review = &copied
	r.creates++
	r.createdTx = append(r.createdTx, r.repo.inTx())
	return nil
}

func (r *stubReviewRepo) Update(ctx context.Context, tx *gorm.DB, review *models.ManualReview) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *review
	r.review = &copied
	r.updates++
	r.updatedTx = append(r.updatedTx, r.repo.inTx())
	return nil
}

type stubNotificationRepo struct {
	repositories.NotificationRepository

	mu      sync.Mutex
	created []*models.Notification
}

func (r *stubNotificationRepo) Create(ctx context.Context, tx *gorm.DB, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, notification)
	return nil
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func strPtr(s string) *string { return &s }

func uintPtr(v uint) *uint { return &v }
