package services

import (
	"errors"
	"fmt"
	"strings"
)

// ===== SENTINEL ERRORS =====

var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam not available")

	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptClosed       = errors.New("attempt no longer accepts changes")
	ErrAttemptNotSubmitted = errors.New("attempt has not been submitted")
	ErrAttemptTimeExpired  = errors.New("attempt time has expired")

	ErrAnswerNotFound   = errors.New("answer not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrInvalidChoice    = errors.New("selected choice does not belong to question")
	ErrScoreOutOfRange  = errors.New("score outside the allowed range")

	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
)

// ===== TYPED ERRORS =====

// DuplicateAttemptError is returned when a student already holds an
// attempt for the exam. It carries the existing attempt so callers can
// redirect instead of failing hard.
type DuplicateAttemptError struct {
	StudentID string
	ExamID    uint
	AttemptID uint
}

func (e *DuplicateAttemptError) Error() string {
	return fmt.Sprintf("student %s already has attempt %d for exam %d", e.StudentID, e.AttemptID, e.ExamID)
}

// PermissionError describes a denied action on a resource.
type PermissionError struct {
	UserID   string
	Resource string
	ID       any
	Action   string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %v: %s", e.UserID, e.Action, e.Resource, e.ID, e.Reason)
}

func NewPermissionError(userID string, id any, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:   userID,
		Resource: resource,
		ID:       id,
		Action:   action,
		Reason:   reason,
	}
}

// BusinessRuleError describes a domain rule violation that is neither a
// validation nor a permission problem.
type BusinessRuleError struct {
	Message string
	Rule    string
	Context map[string]any
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

func NewBusinessRuleError(message, rule string) *BusinessRuleError {
	return &BusinessRuleError{Message: message, Rule: rule}
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value any) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// ValidationErrors aggregates field errors from a single request.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}
