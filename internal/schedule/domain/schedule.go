package domain

import "time"

// ScheduleStatus is the confirmation state of an extracted candidate.
// Transitions are one-way: PENDING to REGISTERED or PENDING to SKIPPED.
type ScheduleStatus string

const (
	StatusPending    ScheduleStatus = "PENDING"
	StatusRegistered ScheduleStatus = "REGISTERED"
	StatusSkipped    ScheduleStatus = "SKIPPED"
)

// HistoryAction is the terminal action recorded in the audit trail.
type HistoryAction string

const (
	ActionRegistered HistoryAction = "REGISTERED"
	ActionSkipped    HistoryAction = "SKIPPED"
)

// PendingSchedule is one schedule candidate extracted from one inbound
// message, awaiting user confirmation.
type PendingSchedule struct {
	ID            string         `json:"id" gorm:"primaryKey"`
	UserID        string         `json:"user_id" gorm:"index;not null"`
	LineMessageID string         `json:"line_message_id" gorm:"index"`
	Title         string         `json:"title" gorm:"not null"`
	Description   string         `json:"description,omitempty"`
	Location      string         `json:"location,omitempty"`
	StartAt       time.Time      `json:"start_at" gorm:"not null"`
	EndAt         *time.Time     `json:"end_at,omitempty"`
	Status        ScheduleStatus `json:"status" gorm:"index;default:PENDING"`
	CalendarID    *string        `json:"calendar_id,omitempty"` // set only once REGISTERED
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ScheduleHistory is the append-only audit trail, one row per terminal
// action. Never mutated or deleted by the application.
type ScheduleHistory struct {
	ID            string        `json:"id" gorm:"primaryKey"`
	UserID        string        `json:"user_id" gorm:"index;not null"`
	ScheduleID    string        `json:"schedule_id" gorm:"index;not null"`
	Action        HistoryAction `json:"action" gorm:"not null"`
	CalendarID    *string       `json:"calendar_id,omitempty"`
	GoogleEventID *string       `json:"google_event_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
