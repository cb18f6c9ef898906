package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationScorePublished NotificationType = "exam.score_published"
	NotificationExamPublished  NotificationType = "exam.published"
)

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is the persistence record of an emitted notification. The
// actual delivery happens through the event publisher.
type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	StudentID string           `json:"student_id" gorm:"not null;index;size:255"`
	ExamID    uint             `json:"exam_id" gorm:"not null;index"`
	Type      NotificationType `json:"type" gorm:"not null;size:100"`

	Title    string               `json:"title" gorm:"not null;size:255"`
	Message  string               `json:"message" gorm:"type:text"`
	Priority NotificationPriority `json:"priority" gorm:"default:normal;size:20"`
	Payload  datatypes.JSON       `json:"payload" gorm:"type:jsonb"`

	SentAt    *time.Time `json:"sent_at"`
	CreatedAt time.Time  `json:"created_at"`

	// Relations
	Student User `json:"-" gorm:"foreignKey:StudentID"`
	Exam    Exam `json:"-" gorm:"foreignKey:ExamID"`
}

func (Notification) TableName() string {
	return "notifications"
}
