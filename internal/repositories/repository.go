package repositories

import (
	"context"
)

// Repository aggregates access to all data stores. Implementations hand
// out tx-scoped copies of themselves through WithTransaction so that a
// service can run several repository calls atomically.
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository
	Review() ReviewRepository
	GradeLog() GradeLogRepository
	Notification() NotificationRepository
	User() UserRepository

	WithTransaction(ctx context.Context, fn func(repo Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the lifecycle of a Repository and its backing
// connections.
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown() error
}
