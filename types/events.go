package types

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/VieGym/viegym-sync-client/errors"
)

// Destination helpers for the broker topics/queues the client subscribes to.
const (
	notificationQueueFmt = "/user/%s/queue/notifications"
	messageQueueFmt      = "/user/%s/queue/messages"
	likesTopicFmt        = "/topic/likes/%s"
)

// NotificationQueue returns the per-user private notification destination.
func NotificationQueue(userID string) string {
	return fmt.Sprintf(notificationQueueFmt, userID)
}

// MessageQueue returns the per-user message delivery destination.
func MessageQueue(userID string) string {
	return fmt.Sprintf(messageQueueFmt, userID)
}

// LikesTopic returns the per-post like counter destination.
func LikesTopic(postID string) string {
	return fmt.Sprintf(likesTopicFmt, postID)
}

// Frame is the broker-over-WebSocket envelope. The body is the raw JSON
// payload for the destination's schema (Notification, ChatMessage or
// LikeUpdate).
type Frame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
	Timestamp   time.Time       `json:"timestamp,omitempty"`
}

// Validate checks the envelope before it is dispatched to subscribers.
func (f Frame) Validate() error {
	if f.Destination == "" {
		return errors.New(errors.PayloadError, "invalid frame", "destination is required")
	}
	if len(f.Body) == 0 {
		return errors.New(errors.PayloadError, "invalid frame", "body is required")
	}
	return nil
}

// LikeUpdate is the payload published on per-post like counter topics.
type LikeUpdate struct {
	PostID    string `json:"postId" validate:"required"`
	LikeCount int    `json:"likeCount" validate:"gte=0"`
}

// ConnectionState models the realtime connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
