package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VieGym/viegym-sync-client/store"
	"github.com/VieGym/viegym-sync-client/types"
)

type stubChatGateway struct {
	mu         sync.Mutex
	messages   []types.ChatMessage
	markedRead []string
}

func (g *stubChatGateway) GetMyMessages(context.Context) ([]types.ChatMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]types.ChatMessage, len(g.messages))
	copy(out, g.messages)
	return out, nil
}

func (g *stubChatGateway) GetThread(_ context.Context, partnerID string) ([]types.ChatMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]types.ChatMessage, 0)
	for _, m := range g.messages {
		if m.SenderID == partnerID || m.ReceiverID == partnerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (g *stubChatGateway) SendMessage(_ context.Context, receiverID, content string) (types.ChatMessage, error) {
	return types.ChatMessage{
		ID:         "srv-1",
		SenderID:   "me",
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     time.Now(),
	}, nil
}

func (g *stubChatGateway) MarkMessageRead(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markedRead = append(g.markedRead, id)
	return nil
}

func (g *stubChatGateway) DeleteConversation(context.Context, string) error { return nil }

func inbound(id, sender string) types.ChatMessage {
	return types.ChatMessage{
		ID:         id,
		SenderID:   sender,
		ReceiverID: "me",
		SenderName: "Partner",
		Content:    "hi",
		SentAt:     time.Now(),
	}
}

func TestPushedMessageCreatesConversation(t *testing.T) {
	conn := newFakeConn()
	gw := &stubChatGateway{}
	st := store.NewConversationStore("me", gw)
	svc := NewConversationSyncService(st, conn)

	require.NoError(t, svc.Start(context.Background(), "me"))
	conn.push(t, types.MessageQueue("me"), inbound("m1", "alice"))

	convs := st.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "alice", convs[0].ID)
	assert.Equal(t, 1, convs[0].UnreadCount)
}

func TestPushedMessageInOpenThreadIsMarkedRead(t *testing.T) {
	conn := newFakeConn()
	gw := &stubChatGateway{}
	st := store.NewConversationStore("me", gw)
	svc := NewConversationSyncService(st, conn)

	require.NoError(t, svc.Start(context.Background(), "me"))
	require.NoError(t, st.OpenConversation(context.Background(), "alice"))

	conn.push(t, types.MessageQueue("me"), inbound("m1", "alice"))

	require.Len(t, st.Thread(), 1)
	assert.True(t, st.Thread()[0].IsRead)
	gw.mu.Lock()
	defer gw.mu.Unlock()
	assert.Contains(t, gw.markedRead, "m1")
}

func TestMalformedChatPushIsDropped(t *testing.T) {
	conn := newFakeConn()
	st := store.NewConversationStore("me", &stubChatGateway{})
	svc := NewConversationSyncService(st, conn)

	require.NoError(t, svc.Start(context.Background(), "me"))
	conn.push(t, types.MessageQueue("me"), map[string]string{"content": "no ids"})

	assert.Empty(t, st.Conversations())
}

func TestStopLeavesSharedConnectionOpen(t *testing.T) {
	conn := newFakeConn()
	st := store.NewConversationStore("me", &stubChatGateway{})
	svc := NewConversationSyncService(st, conn)

	require.NoError(t, svc.Start(context.Background(), "me"))
	svc.Stop()

	assert.Equal(t, []string{types.MessageQueue("me")}, conn.unsubscribed)
	assert.Zero(t, conn.disconnects, "the session owner tears the connection down")

	svc.Stop()
	assert.Len(t, conn.unsubscribed, 1)
}

func TestStartTwiceSubscribesOnce(t *testing.T) {
	conn := newFakeConn()
	st := store.NewConversationStore("me", &stubChatGateway{})
	svc := NewConversationSyncService(st, conn)

	require.NoError(t, svc.Start(context.Background(), "me"))
	require.NoError(t, svc.Start(context.Background(), "me"))

	assert.Len(t, conn.subscribed, 1)
}

func TestLikeSyncFollowAndCount(t *testing.T) {
	conn := newFakeConn()
	svc := NewLikeSyncService(conn)

	require.NoError(t, svc.Follow(context.Background(), "post-1"))
	conn.push(t, types.LikesTopic("post-1"), types.LikeUpdate{PostID: "post-1", LikeCount: 3})

	count, ok := svc.Count("post-1")
	require.True(t, ok)
	assert.Equal(t, 3, count)

	conn.push(t, types.LikesTopic("post-1"), types.LikeUpdate{PostID: "post-1", LikeCount: 5})
	count, _ = svc.Count("post-1")
	assert.Equal(t, 5, count)
}

func TestLikeSyncOnUpdateCallback(t *testing.T) {
	conn := newFakeConn()
	svc := NewLikeSyncService(conn)

	var got types.LikeUpdate
	svc.OnUpdate = func(update types.LikeUpdate) { got = update }

	require.NoError(t, svc.Follow(context.Background(), "post-1"))
	conn.push(t, types.LikesTopic("post-1"), types.LikeUpdate{PostID: "post-1", LikeCount: 9})

	assert.Equal(t, 9, got.LikeCount)
}

func TestLikeSyncUnfollowForgetsCounter(t *testing.T) {
	conn := newFakeConn()
	svc := NewLikeSyncService(conn)

	require.NoError(t, svc.Follow(context.Background(), "post-1"))
	conn.push(t, types.LikesTopic("post-1"), types.LikeUpdate{PostID: "post-1", LikeCount: 2})

	svc.Unfollow("post-1")
	_, ok := svc.Count("post-1")
	assert.False(t, ok)
	assert.Equal(t, []string{types.LikesTopic("post-1")}, conn.unsubscribed)
}

func TestLikeSyncInvalidPayloadIgnored(t *testing.T) {
	conn := newFakeConn()
	svc := NewLikeSyncService(conn)

	require.NoError(t, svc.Follow(context.Background(), "post-1"))
	conn.push(t, types.LikesTopic("post-1"), map[string]interface{}{"postId": "post-1", "likeCount": -4})

	_, ok := svc.Count("post-1")
	assert.False(t, ok)
}
