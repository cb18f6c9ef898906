package models

import (
	"time"

	"gorm.io/datatypes"
)

// ManualReview records a reviewer's grade for a single answer. One review
// per answer; re-grades overwrite the existing row.
type ManualReview struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	AnswerID   uint      `json:"answer_id" gorm:"not null;uniqueIndex"`
	ReviewerID string    `json:"reviewer_id" gorm:"not null;index;size:255"`
	Score      float64   `json:"score" gorm:"not null"`
	Comments   *string   `json:"comments" gorm:"type:text"`
	ReviewedAt time.Time `json:"reviewed_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Answer   Answer `json:"-" gorm:"foreignKey:AnswerID"`
	Reviewer User   `json:"reviewer,omitempty" gorm:"foreignKey:ReviewerID"`
}

func (ManualReview) TableName() string {
	return "manual_reviews"
}

// AutoGraderLog is an append-only audit row written whenever the
// auto-grader reaches a verdict for an answer.
type AutoGraderLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	AnswerID     uint           `json:"answer_id" gorm:"not null;index"`
	Matched      bool           `json:"matched"`
	ScoreAwarded float64        `json:"score_awarded"`
	Reason       string         `json:"reason" gorm:"type:text"`
	Detail       datatypes.JSON `json:"detail" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Answer Answer `json:"-" gorm:"foreignKey:AnswerID"`
}

func (AutoGraderLog) TableName() string {
	return "auto_grader_logs"
}
