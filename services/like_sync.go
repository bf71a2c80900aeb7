package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

// LikeSyncService follows per-post like counter topics and keeps the latest
// counter value for each followed post.
type LikeSyncService struct {
	log  *zap.SugaredLogger
	conn RealtimeConn

	mu     sync.Mutex
	counts map[string]int
	unsubs map[string]func()

	// OnUpdate, when set, is invoked for every accepted like update.
	OnUpdate func(update types.LikeUpdate)
}

// NewLikeSyncService creates the service around the shared connection.
func NewLikeSyncService(conn RealtimeConn) *LikeSyncService {
	return &LikeSyncService{
		log:    logger.GetLogger().Named("like_sync"),
		conn:   conn,
		counts: make(map[string]int),
		unsubs: make(map[string]func()),
	}
}

// Follow subscribes the like counter topic for a post. Following a post
// twice is a no-op.
func (s *LikeSyncService) Follow(ctx context.Context, postID string) error {
	s.mu.Lock()
	if _, ok := s.unsubs[postID]; ok {
		s.mu.Unlock()
		return nil
	}
	s.unsubs[postID] = s.conn.Subscribe(types.LikesTopic(postID), s.handleFrame)
	s.mu.Unlock()

	return s.conn.Connect(ctx)
}

// Unfollow removes the subscription for a post and forgets its counter.
func (s *LikeSyncService) Unfollow(postID string) {
	s.mu.Lock()
	unsubscribe := s.unsubs[postID]
	delete(s.unsubs, postID)
	delete(s.counts, postID)
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Count returns the last pushed like count for a post.
func (s *LikeSyncService) Count(postID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.counts[postID]
	return count, ok
}

func (s *LikeSyncService) handleFrame(frame types.Frame) {
	update, err := types.DecodeLikeUpdate(frame.Body)
	if err != nil {
		s.log.Warnw("Dropping invalid like payload", "destination", frame.Destination, "error", err)
		return
	}

	s.mu.Lock()
	s.counts[update.PostID] = update.LikeCount
	s.mu.Unlock()

	if s.OnUpdate != nil {
		s.OnUpdate(update)
	}
}
