package types

import (
	"time"
)

// NotificationType enumerates the notification categories pushed by the
// VieGym backend.
type NotificationType string

const (
	NotificationAchievement      NotificationType = "ACHIEVEMENT"
	NotificationWorkout          NotificationType = "WORKOUT"
	NotificationStreak           NotificationType = "STREAK"
	NotificationSystem           NotificationType = "SYSTEM"
	NotificationReminder         NotificationType = "REMINDER"
	NotificationSocial           NotificationType = "SOCIAL"
	NotificationCoachMessage     NotificationType = "COACH_MESSAGE"
	NotificationBookingConfirmed NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled NotificationType = "BOOKING_CANCELLED"
	NotificationProgramUpdate    NotificationType = "PROGRAM_UPDATE"
)

// Notification represents a user notification pushed over the realtime
// channel or fetched from the REST gateway.
type Notification struct {
	ID        string           `json:"id" validate:"required"`
	Type      NotificationType `json:"type" validate:"required,oneof=ACHIEVEMENT WORKOUT STREAK SYSTEM REMINDER SOCIAL COACH_MESSAGE BOOKING_CONFIRMED BOOKING_CANCELLED PROGRAM_UPDATE"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	IsRead    bool             `json:"isRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt" validate:"required"`
}

// NotificationPage is one page of server truth for a user's notification list.
type NotificationPage struct {
	Content       []Notification `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"totalElements"`
}

// UnreadCountResponse carries the server-computed global unread count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}
