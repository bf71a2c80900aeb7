package types

import (
	"time"
)

// ChatMessage represents a one-to-one message between the current user and a
// conversation partner.
type ChatMessage struct {
	ID           string    `json:"id" validate:"required"`
	SenderID     string    `json:"senderId" validate:"required"`
	ReceiverID   string    `json:"receiverId" validate:"required"`
	SenderName   string    `json:"senderName"`
	ReceiverName string    `json:"receiverName"`
	Content      string    `json:"content"`
	SentAt       time.Time `json:"sentAt"`
	IsRead       bool      `json:"isRead"`
}

// PartnerID returns the other participant of the message relative to userID.
func (m ChatMessage) PartnerID(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// PartnerName returns the display name of the other participant relative to
// userID.
func (m ChatMessage) PartnerName(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverName
	}
	return m.SenderName
}

// AddressedTo reports whether the message was sent to userID.
func (m ChatMessage) AddressedTo(userID string) bool {
	return m.ReceiverID == userID
}

// Conversation is a derived grouping of messages with a single partner.
// It is never persisted; the conversation list is recomputed from the flat
// message history and patched incrementally on realtime delivery.
type Conversation struct {
	ID              string    `json:"id"` // partner user id
	Name            string    `json:"name"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"` // zero value sorts last
	UnreadCount     int       `json:"unreadCount"`
}

// SendMessageRequest is the REST payload for persisting a new message.
type SendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// UserInfo is the authenticated user's identity as returned by the gateway.
type UserInfo struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}
