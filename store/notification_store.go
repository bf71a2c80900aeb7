// Package store implements the in-memory sync cores for one authenticated
// user: the canonical notification list with its unread counter, and the
// derived conversation list with the open message thread. Stores are
// injected dependencies with explicit lifecycle, never package singletons.
//
// All mutations are mutex-guarded; realtime handlers and REST completions
// may land on different goroutines, so consistency is about ordering and
// duplication, which the stores resolve with id-based dedupe and
// recount-after-mutation bookkeeping.
package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

// NotificationGateway is the slice of the REST gateway the notification
// store calls. The gateway owns persistence.
type NotificationGateway interface {
	GetNotifications(ctx context.Context, page, size int) (types.NotificationPage, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
	GetUnreadCount(ctx context.Context) (int, error)
}

// NotificationStore owns the canonical in-memory notification list and
// unread counter for one user.
//
// Optimistic mutations (mark-read, mark-all-read, delete) apply locally
// first and issue the gateway call; on gateway failure the inverse mutation
// is applied, so local state never drifts silently.
type NotificationStore struct {
	log     *zap.SugaredLogger
	gateway NotificationGateway
	alerter Alerter

	mu            sync.Mutex
	notifications []types.Notification
	unreadCount   int
	isConnected   bool
}

// NewNotificationStore creates a store bound to a gateway. A nil alerter
// disables side effects.
func NewNotificationStore(gateway NotificationGateway, alerter Alerter) *NotificationStore {
	if alerter == nil {
		alerter = NopAlerter{}
	}
	return &NotificationStore{
		log:     logger.GetLogger().Named("notification_store"),
		gateway: gateway,
		alerter: alerter,
	}
}

// Notifications returns a copy of the current list.
func (s *NotificationStore) Notifications() []types.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// UnreadCount returns the current unread counter.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadCount
}

// IsConnected reports the realtime connection flag.
func (s *NotificationStore) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnected
}

// SetConnected toggles the realtime connection flag. Called by the sync
// service on transport state transitions.
func (s *NotificationStore) SetConnected(connected bool) {
	s.mu.Lock()
	s.isConnected = connected
	s.mu.Unlock()
}

// Add prepends a notification and bumps the unread counter when the entry is
// unread. Used by the realtime handler and as a general local entry point.
// Fires the toast and sound side effects.
func (s *NotificationStore) Add(n types.Notification) {
	s.mu.Lock()
	s.notifications = append([]types.Notification{n}, s.notifications...)
	if !n.IsRead {
		s.unreadCount++
	}
	s.mu.Unlock()

	s.alerter.Toast(n)
	s.alerter.Sound(n.Type)
}

// FetchPage replaces the entire local list with one page of server truth and
// recomputes the unread counter over the fetched page only. The page-scoped
// count is display bookkeeping; FetchUnreadCount is the authoritative source.
func (s *NotificationStore) FetchPage(ctx context.Context, page, size int) error {
	result, err := s.gateway.GetNotifications(ctx, page, size)
	if err != nil {
		s.log.Errorw("Failed to fetch notifications", "page", page, "size", size, "error", err)
		return err
	}

	unread := 0
	for _, n := range result.Content {
		if !n.IsRead {
			unread++
		}
	}

	s.mu.Lock()
	s.notifications = result.Content
	s.unreadCount = unread
	s.mu.Unlock()
	return nil
}

// FetchUnreadCount overwrites the local counter with the server-computed
// global unread count. The server value wins over any page-scoped recount.
func (s *NotificationStore) FetchUnreadCount(ctx context.Context) error {
	count, err := s.gateway.GetUnreadCount(ctx)
	if err != nil {
		s.log.Errorw("Failed to fetch unread count", "error", err)
		return err
	}

	s.mu.Lock()
	s.unreadCount = count
	s.mu.Unlock()
	return nil
}

// MarkAsRead optimistically flips one notification to read and issues the
// gateway call. Gateway failure applies the inverse flip.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id string) error {
	now := time.Now()

	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 || s.notifications[idx].IsRead {
		s.mu.Unlock()
		return nil
	}
	prev := s.notifications[idx]
	s.notifications[idx].IsRead = true
	s.notifications[idx].ReadAt = &now
	s.decrementUnreadLocked()
	s.mu.Unlock()

	if err := s.gateway.MarkNotificationRead(ctx, id); err != nil {
		s.log.Errorw("Failed to mark notification read, rolling back", "id", id, "error", err)
		s.mu.Lock()
		if idx := s.indexOfLocked(id); idx >= 0 {
			s.notifications[idx] = prev
			s.unreadCount++
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// MarkAllAsRead optimistically flips every entry and resets the counter to
// zero. Gateway failure restores the previous list and counter.
func (s *NotificationStore) MarkAllAsRead(ctx context.Context) error {
	now := time.Now()

	s.mu.Lock()
	prevList := make([]types.Notification, len(s.notifications))
	copy(prevList, s.notifications)
	prevCount := s.unreadCount
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = &now
		}
	}
	s.unreadCount = 0
	s.mu.Unlock()

	if err := s.gateway.MarkAllNotificationsRead(ctx); err != nil {
		s.log.Errorw("Failed to mark all notifications read, rolling back", "error", err)
		s.mu.Lock()
		s.notifications = prevList
		s.unreadCount = prevCount
		s.mu.Unlock()
		return err
	}
	return nil
}

// Delete optimistically removes a notification, decrementing the counter
// only when the removed entry was unread. Gateway failure re-inserts the
// entry at its original position.
func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.notifications[idx]
	s.notifications = append(s.notifications[:idx], s.notifications[idx+1:]...)
	if !removed.IsRead {
		s.decrementUnreadLocked()
	}
	s.mu.Unlock()

	if err := s.gateway.DeleteNotification(ctx, id); err != nil {
		s.log.Errorw("Failed to delete notification, rolling back", "id", id, "error", err)
		s.mu.Lock()
		if idx > len(s.notifications) {
			idx = len(s.notifications)
		}
		s.notifications = append(s.notifications[:idx], append([]types.Notification{removed}, s.notifications[idx:]...)...)
		if !removed.IsRead {
			s.unreadCount++
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *NotificationStore) indexOfLocked(id string) int {
	for i, n := range s.notifications {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (s *NotificationStore) decrementUnreadLocked() {
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}
