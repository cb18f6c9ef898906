package models

import (
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
	AttemptCancelled  AttemptStatus = "cancelled"
)

// IsClosed reports whether the attempt no longer accepts answers.
func (s AttemptStatus) IsClosed() bool {
	return s != AttemptInProgress
}

type ExamAttempt struct {
	ID        uint          `json:"id" gorm:"primaryKey"`
	ExamID    uint          `json:"exam_id" gorm:"not null;uniqueIndex:idx_attempt_student_exam"`
	StudentID string        `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_student_exam"`
	Status    AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	// Set once every answer carries a score.
	TotalScore *float64 `json:"total_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam     `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Student User     `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// Deadline returns the point at which the attempt auto-submits.
func (a *ExamAttempt) Deadline(duration int) time.Time {
	return a.StartedAt.Add(time.Duration(duration) * time.Minute)
}

type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_attempt_question"`

	// Payload, one field per question type. Last write wins.
	TextAnswer       *string `json:"text_answer" gorm:"type:text"`
	SelectedChoiceID *uint   `json:"selected_choice_id"`
	UploadedFile     *string `json:"uploaded_file" gorm:"size:500"` // blob storage key

	// Grading
	Score        *float64   `json:"score"`
	GradedBy     *string    `json:"graded_by" gorm:"size:255"`
	GradedAt     *time.Time `json:"graded_at"`
	IsAutoGraded bool       `json:"is_auto_graded" gorm:"default:false"`
	NeedsManual  bool       `json:"needs_manual" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt        ExamAttempt `json:"-" gorm:"foreignKey:AttemptID"`
	Question       Question    `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	SelectedChoice *Choice     `json:"selected_choice,omitempty" gorm:"foreignKey:SelectedChoiceID"`
	Grader         *User       `json:"grader,omitempty" gorm:"foreignKey:GradedBy"`
}

func (Answer) TableName() string {
	return "answers"
}

// IsScored reports whether the answer counts toward the attempt total.
func (a *Answer) IsScored() bool {
	return a.Score != nil
}
