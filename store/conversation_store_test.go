package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viegymerrors "github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/types"
)

const me = "user-me"

type fakeChatGateway struct {
	history  []types.ChatMessage
	threads  map[string][]types.ChatMessage
	sent     []types.SendMessageRequest
	markRead []string
	deleted  []string
	fail     map[string]bool
	nextID   string
}

func newFakeChatGateway() *fakeChatGateway {
	return &fakeChatGateway{
		threads: make(map[string][]types.ChatMessage),
		fail:    make(map[string]bool),
		nextID:  "srv-1",
	}
}

func (g *fakeChatGateway) err(op string) error {
	if g.fail[op] {
		return viegymerrors.NewGatewayError(500, "forced failure")
	}
	return nil
}

func (g *fakeChatGateway) GetMyMessages(context.Context) ([]types.ChatMessage, error) {
	if err := g.err("getMyMessages"); err != nil {
		return nil, err
	}
	return g.history, nil
}

func (g *fakeChatGateway) GetThread(_ context.Context, partnerID string) ([]types.ChatMessage, error) {
	if err := g.err("getThread"); err != nil {
		return nil, err
	}
	return g.threads[partnerID], nil
}

func (g *fakeChatGateway) SendMessage(_ context.Context, receiverID, content string) (types.ChatMessage, error) {
	g.sent = append(g.sent, types.SendMessageRequest{ReceiverID: receiverID, Content: content})
	if err := g.err("sendMessage"); err != nil {
		return types.ChatMessage{}, err
	}
	return types.ChatMessage{
		ID:         g.nextID,
		SenderID:   me,
		ReceiverID: receiverID,
		Content:    content,
		SentAt:     time.Now(),
	}, nil
}

func (g *fakeChatGateway) MarkMessageRead(_ context.Context, id string) error {
	g.markRead = append(g.markRead, id)
	return g.err("markMessageRead")
}

func (g *fakeChatGateway) DeleteConversation(_ context.Context, partnerID string) error {
	g.deleted = append(g.deleted, partnerID)
	return g.err("deleteConversation")
}

func msg(id, sender, receiver string, sentAt time.Time, read bool) types.ChatMessage {
	return types.ChatMessage{
		ID:           id,
		SenderID:     sender,
		ReceiverID:   receiver,
		SenderName:   "name-" + sender,
		ReceiverName: "name-" + receiver,
		Content:      "content " + id,
		SentAt:       sentAt,
		IsRead:       read,
	}
}

func TestDeriveConversations_GroupsAndCounts(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	messages := []types.ChatMessage{
		msg("m1", "alice", me, base, true),
		msg("m2", me, "alice", base.Add(time.Minute), true),
		msg("m3", "alice", me, base.Add(2*time.Minute), false),
		msg("m4", "bob", me, base.Add(30*time.Second), false),
		msg("m5", "bob", me, base.Add(45*time.Second), false),
		// Unread but authored by me: must not count.
		msg("m6", me, "bob", base.Add(20*time.Second), false),
	}

	conversations := DeriveConversations(me, messages)
	require.Len(t, conversations, 2)

	assert.Equal(t, "alice", conversations[0].ID)
	assert.Equal(t, "name-alice", conversations[0].Name)
	assert.Equal(t, "content m3", conversations[0].LastMessage)
	assert.Equal(t, 1, conversations[0].UnreadCount)

	assert.Equal(t, "bob", conversations[1].ID)
	assert.Equal(t, 2, conversations[1].UnreadCount)
	assert.Equal(t, "content m5", conversations[1].LastMessage)
}

func TestDeriveConversations_Idempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	messages := []types.ChatMessage{
		msg("m1", "a", me, base.Add(time.Hour), false),
		msg("m2", "b", me, base, true),
		msg("m3", "c", me, base.Add(2*time.Hour), false),
	}

	first := DeriveConversations(me, messages)
	second := DeriveConversations(me, messages)
	assert.Equal(t, first, second)
}

func TestDeriveConversations_OrderingWithZeroTimeLast(t *testing.T) {
	t1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	messages := []types.ChatMessage{
		msg("m1", "p1", me, t1, true),
		msg("m2", "p3", me, t3, true),
		msg("m3", "p2", me, t2, true),
		msg("m4", "p4", me, time.Time{}, true), // no timestamp sorts last
	}

	conversations := DeriveConversations(me, messages)
	require.Len(t, conversations, 4)
	assert.Equal(t, "p3", conversations[0].ID)
	assert.Equal(t, "p2", conversations[1].ID)
	assert.Equal(t, "p1", conversations[2].ID)
	assert.Equal(t, "p4", conversations[3].ID)
}

func TestConversationStore_OpenConversationDrainsUnread(t *testing.T) {
	gw := newFakeChatGateway()
	base := time.Now()
	gw.history = []types.ChatMessage{
		msg("m1", "alice", me, base, false),
		msg("m2", "alice", me, base.Add(time.Minute), false),
		msg("m3", me, "alice", base.Add(2*time.Minute), false),
	}
	gw.threads["alice"] = gw.history

	s := NewConversationStore(me, gw)
	ctx := context.Background()
	require.NoError(t, s.LoadConversations(ctx))
	require.Equal(t, 2, s.Conversations()[0].UnreadCount)

	require.NoError(t, s.OpenConversation(ctx, "alice"))

	assert.Equal(t, "alice", s.OpenPartner())
	assert.Equal(t, 0, s.Conversations()[0].UnreadCount)
	// Only the unread messages addressed to me get mark-read calls.
	assert.ElementsMatch(t, []string{"m1", "m2"}, gw.markRead)

	for _, m := range s.Thread() {
		if m.AddressedTo(me) {
			assert.True(t, m.IsRead)
		}
	}
}

func TestConversationStore_OpenConversationDrainsDespitePartialFailure(t *testing.T) {
	gw := newFakeChatGateway()
	gw.fail["markMessageRead"] = true
	gw.threads["alice"] = []types.ChatMessage{
		msg("m1", "alice", me, time.Now(), false),
	}

	s := NewConversationStore(me, gw)
	ctx := context.Background()
	s.conversations = []types.Conversation{{ID: "alice", UnreadCount: 1}}

	require.NoError(t, s.OpenConversation(ctx, "alice"))
	assert.Equal(t, 0, s.Conversations()[0].UnreadCount,
		"unread drains regardless of individual mark-read outcomes")
}

func TestConversationStore_SendMessageRejectsEmptyContent(t *testing.T) {
	gw := newFakeChatGateway()
	s := NewConversationStore(me, gw)

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := s.SendMessage(context.Background(), "alice", content)
		require.Error(t, err)
		assert.True(t, viegymerrors.IsType(err, viegymerrors.ValidationError))
	}
	assert.Empty(t, gw.sent, "no gateway call for rejected content")
}

func TestConversationStore_SendMessageAppendsServerEcho(t *testing.T) {
	gw := newFakeChatGateway()
	s := NewConversationStore(me, gw)
	ctx := context.Background()

	require.NoError(t, s.OpenConversation(ctx, "alice"))
	sent, err := s.SendMessage(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", sent.ID)

	thread := s.Thread()
	require.Len(t, thread, 1)
	assert.Equal(t, "srv-1", thread[0].ID)

	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "hello", conversations[0].LastMessage)
	assert.Equal(t, 0, conversations[0].UnreadCount)
}

func TestConversationStore_RealtimeEchoDeduplicatesById(t *testing.T) {
	gw := newFakeChatGateway()
	s := NewConversationStore(me, gw)
	ctx := context.Background()

	require.NoError(t, s.OpenConversation(ctx, "alice"))
	sent, err := s.SendMessage(ctx, "alice", "hello")
	require.NoError(t, err)
	require.Len(t, s.Thread(), 1)

	// The server fan-out echoes the same message back over the push channel.
	s.HandleRealtimeMessage(ctx, sent)
	assert.Len(t, s.Thread(), 1, "echo with a known id must not grow the thread")
}

func TestConversationStore_RealtimeUnreadIncrement(t *testing.T) {
	gw := newFakeChatGateway()
	s := NewConversationStore(me, gw)
	ctx := context.Background()
	incoming := msg("m1", "bob", me, time.Now(), false)

	// Not open: unread increments by exactly 1.
	s.HandleRealtimeMessage(ctx, incoming)
	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "bob", conversations[0].ID)
	assert.Equal(t, 1, conversations[0].UnreadCount)

	// Open: a further message leaves unread at 0 after the drain.
	require.NoError(t, s.OpenConversation(ctx, "bob"))
	later := msg("m2", "bob", me, time.Now(), false)
	s.HandleRealtimeMessage(ctx, later)

	conversations = s.Conversations()
	assert.Equal(t, 0, conversations[0].UnreadCount)
	require.Len(t, s.Thread(), 1)
	assert.True(t, s.Thread()[0].IsRead, "message landing in the open thread is marked read")
	assert.Contains(t, gw.markRead, "m2")
}

func TestConversationStore_RealtimeMessageForUnseenPartnerCreatesConversation(t *testing.T) {
	gw := newFakeChatGateway()
	s := NewConversationStore(me, gw)

	s.HandleRealtimeMessage(context.Background(), msg("m1", "carol", me, time.Now(), false))

	conversations := s.Conversations()
	require.Len(t, conversations, 1)
	assert.Equal(t, "carol", conversations[0].ID)
	assert.Equal(t, "name-carol", conversations[0].Name)
	assert.Equal(t, 1, conversations[0].UnreadCount)
}

func TestConversationStore_DeleteConversation(t *testing.T) {
	gw := newFakeChatGateway()
	gw.threads["alice"] = []types.ChatMessage{msg("m1", "alice", me, time.Now(), true)}
	s := NewConversationStore(me, gw)
	ctx := context.Background()

	require.NoError(t, s.OpenConversation(ctx, "alice"))
	require.NoError(t, s.DeleteConversation(ctx, "alice"))

	assert.Empty(t, s.OpenPartner(), "open thread cleared when its conversation is deleted")
	assert.Empty(t, s.Thread())
	assert.Empty(t, s.Conversations())
	assert.Equal(t, []string{"alice"}, gw.deleted)
}

func TestConversationStore_DeleteConversationKeepsStateOnGatewayFailure(t *testing.T) {
	gw := newFakeChatGateway()
	gw.fail["deleteConversation"] = true
	s := NewConversationStore(me, gw)
	s.conversations = []types.Conversation{{ID: "alice"}}

	err := s.DeleteConversation(context.Background(), "alice")
	require.Error(t, err)
	assert.Len(t, s.Conversations(), 1, "local entry kept when the gateway rejects the delete")
}

func TestSelection_IsOpenConsultedAtEventTime(t *testing.T) {
	var sel Selection
	assert.False(t, sel.IsOpen("alice"))

	sel.Set("alice")
	assert.True(t, sel.IsOpen("alice"))
	assert.False(t, sel.IsOpen("bob"))

	sel.Set("bob")
	assert.False(t, sel.IsOpen("alice"), "selection reflects the latest Set, not a captured value")

	sel.Clear()
	assert.False(t, sel.IsOpen("bob"))
	assert.False(t, sel.IsOpen(""))
}
