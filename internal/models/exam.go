package models

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:255" validate:"required,max=255"`
	Description *string `json:"description" gorm:"type:text"`

	// Availability window. An exam can be taken once it is published and
	// StartAt has passed.
	StartAt   time.Time `json:"start_at" gorm:"not null;index"`
	Duration  int       `json:"duration" gorm:"not null" validate:"required,exam_duration"` // minutes
	Published bool      `json:"published" gorm:"default:false;index"`

	TotalScore float64 `json:"total_score" gorm:"default:0"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
	Creator   User       `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}

func (Exam) TableName() string {
	return "exams"
}

// IsAvailable reports whether the exam can be taken at the given time.
func (e *Exam) IsAvailable(now time.Time) bool {
	return e.Published && !e.StartAt.After(now)
}

// Deadline returns the submission deadline for an attempt started at the
// given time.
func (e *Exam) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(e.Duration) * time.Minute)
}

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	ShortAnswer    QuestionType = "short_answer"
	FileUpload     QuestionType = "file_upload"
)

type Question struct {
	ID     uint         `json:"id" gorm:"primaryKey"`
	ExamID uint         `json:"exam_id" gorm:"not null;index;constraint:OnDelete:RESTRICT"`
	Type   QuestionType `json:"type" gorm:"not null;index"`
	Text   string       `json:"text" gorm:"type:text;not null" validate:"required"`

	MaxScore float64 `json:"max_score" gorm:"not null" validate:"min=0"`
	Order    int     `json:"order" gorm:"default:0"`

	// Full-string regex applied case-insensitively to the trimmed text
	// answer. Short-answer questions only; nil means manual grading.
	AutoGradePattern *string `json:"auto_grade_pattern" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam    Exam     `json:"-" gorm:"foreignKey:ExamID"`
	Choices []Choice `json:"choices,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

type Choice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Text       string `json:"text" gorm:"type:text;not null" validate:"required"`
	IsCorrect  bool   `json:"is_correct" gorm:"default:false"`
	Order      int    `json:"order" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Question Question `json:"-" gorm:"foreignKey:QuestionID"`
}

func (Choice) TableName() string {
	return "choices"
}
