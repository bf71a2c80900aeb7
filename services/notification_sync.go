// Package services wires the sync stores to the realtime transport and the
// REST gateway: subscription lifecycle, inbound payload decoding, and the
// connect/disconnect semantics of one user session.
package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/internal/realtime"
	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/store"
	"github.com/VieGym/viegym-sync-client/types"
)

// RealtimeConn is the slice of the transport the sync services use.
// Implemented by *realtime.Conn.
type RealtimeConn interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(destination string, handler realtime.FrameHandler) func()
	OnStateChange(fn func(types.ConnectionState))
	IsConnected() bool
}

// NotificationSyncService maintains the notification store for one logged-in
// user: it subscribes the per-user private queue, merges pushed
// notifications, and mirrors the transport state into the store.
type NotificationSyncService struct {
	log   *zap.SugaredLogger
	store *store.NotificationStore
	conn  RealtimeConn

	mu          sync.Mutex
	unsubscribe func()
}

// NewNotificationSyncService creates the service. The store and connection
// are injected; the service owns the subscription lifecycle only.
func NewNotificationSyncService(st *store.NotificationStore, conn RealtimeConn) *NotificationSyncService {
	svc := &NotificationSyncService{
		log:   logger.GetLogger().Named("notification_sync"),
		store: st,
		conn:  conn,
	}
	conn.OnStateChange(func(state types.ConnectionState) {
		st.SetConnected(state == types.StateConnected)
	})
	return svc
}

// Connect subscribes the user's private notification queue and opens the
// realtime connection. A missing auth token is logged and absorbed: the
// service simply stays disconnected, matching the silent no-token policy.
// Connecting while already connected is a no-op.
func (s *NotificationSyncService) Connect(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.conn.Subscribe(types.NotificationQueue(userID), s.handleFrame)
	}
	s.mu.Unlock()

	if err := s.conn.Connect(ctx); err != nil {
		if errors.IsType(err, errors.AuthError) {
			s.log.Warnw("No auth token available, skipping realtime connect", "userID", userID)
			return nil
		}
		return err
	}
	return nil
}

// Disconnect tears down the subscription and the connection unconditionally.
// Idempotent if already disconnected.
func (s *NotificationSyncService) Disconnect() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.conn.Disconnect()
	s.store.SetConnected(false)
}

// Refresh replaces the local list with one page of server truth and then
// overwrites the counter with the authoritative server-global unread count.
func (s *NotificationSyncService) Refresh(ctx context.Context, page, size int) error {
	if err := s.store.FetchPage(ctx, page, size); err != nil {
		return err
	}
	return s.store.FetchUnreadCount(ctx)
}

// handleFrame merges one pushed notification into the store. Malformed or
// schema-invalid payloads are logged and dropped; the subscription stays up.
func (s *NotificationSyncService) handleFrame(frame types.Frame) {
	n, err := types.DecodeNotification(frame.Body)
	if err != nil {
		s.log.Warnw("Dropping invalid notification payload", "destination", frame.Destination, "error", err)
		return
	}
	s.store.Add(n)
}
