package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/store"
	"github.com/VieGym/viegym-sync-client/types"
)

// ConversationSyncService feeds server-pushed chat messages into the
// conversation store. It shares the session's realtime connection with the
// notification service; subscriptions are independent.
type ConversationSyncService struct {
	log   *zap.SugaredLogger
	store *store.ConversationStore
	conn  RealtimeConn

	mu          sync.Mutex
	unsubscribe func()
}

// NewConversationSyncService creates the service around an injected store
// and connection.
func NewConversationSyncService(st *store.ConversationStore, conn RealtimeConn) *ConversationSyncService {
	return &ConversationSyncService{
		log:   logger.GetLogger().Named("conversation_sync"),
		store: st,
		conn:  conn,
	}
}

// Start subscribes the user's message delivery queue and ensures the shared
// connection is open. Starting twice is a no-op.
func (s *ConversationSyncService) Start(ctx context.Context, userID string) error {
	s.mu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.conn.Subscribe(types.MessageQueue(userID), s.handleFrame)
	}
	s.mu.Unlock()

	return s.conn.Connect(ctx)
}

// Stop removes the message subscription. The shared connection is left to
// its other subscribers; tearing it down belongs to the session owner.
func (s *ConversationSyncService) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleFrame merges one pushed chat message into the store. The mark-read
// call for messages landing in the open thread runs with a background
// context: delivery handling must not inherit a canceled request context.
func (s *ConversationSyncService) handleFrame(frame types.Frame) {
	msg, err := types.DecodeChatMessage(frame.Body)
	if err != nil {
		s.log.Warnw("Dropping invalid chat payload", "destination", frame.Destination, "error", err)
		return
	}
	s.store.HandleRealtimeMessage(context.Background(), msg)
}
