package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/logger"
	"github.com/VieGym/viegym-sync-client/types"
)

// ChatGateway is the slice of the REST gateway the conversation store calls.
type ChatGateway interface {
	GetMyMessages(ctx context.Context) ([]types.ChatMessage, error)
	GetThread(ctx context.Context, partnerID string) ([]types.ChatMessage, error)
	SendMessage(ctx context.Context, receiverID, content string) (types.ChatMessage, error)
	MarkMessageRead(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, partnerID string) error
}

// ConversationStore projects the user's flat message history into a sorted
// conversation list and the open-conversation thread, and merges realtime
// deliveries into whichever view is active.
type ConversationStore struct {
	log     *zap.SugaredLogger
	gateway ChatGateway
	userID  string

	mu            sync.Mutex
	conversations []types.Conversation
	thread        []types.ChatMessage

	selection Selection
}

// NewConversationStore creates a store for one user's conversations.
func NewConversationStore(userID string, gateway ChatGateway) *ConversationStore {
	return &ConversationStore{
		log:     logger.GetLogger().Named("conversation_store"),
		gateway: gateway,
		userID:  userID,
	}
}

// DeriveConversations projects a flat message list into the conversation
// list for userID: group by partner, keep the chronologically latest message
// as the preview, count unread messages addressed to userID, and sort
// descending by last message time with missing times last. The projection is
// deterministic and idempotent; ties keep input order.
func DeriveConversations(userID string, messages []types.ChatMessage) []types.Conversation {
	byPartner := make(map[string]*types.Conversation)
	order := make([]string, 0)

	for _, m := range messages {
		partner := m.PartnerID(userID)
		conv, ok := byPartner[partner]
		if !ok {
			conv = &types.Conversation{ID: partner}
			byPartner[partner] = conv
			order = append(order, partner)
		}

		if conv.Name == "" || m.SentAt.After(conv.LastMessageTime) {
			conv.Name = m.PartnerName(userID)
		}
		if !m.SentAt.Before(conv.LastMessageTime) {
			conv.LastMessage = m.Content
			conv.LastMessageTime = m.SentAt
		}
		if !m.IsRead && m.AddressedTo(userID) {
			conv.UnreadCount++
		}
	}

	out := make([]types.Conversation, 0, len(byPartner))
	for _, partner := range order {
		out = append(out, *byPartner[partner])
	}
	sortConversations(out)
	return out
}

// sortConversations orders conversations by last message time descending.
// The zero time sorts last; ties keep input order.
func sortConversations(conversations []types.Conversation) {
	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})
}

// Conversations returns a copy of the derived conversation list.
func (s *ConversationStore) Conversations() []types.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Thread returns a copy of the open conversation's messages.
func (s *ConversationStore) Thread() []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.thread))
	copy(out, s.thread)
	return out
}

// OpenPartner returns the partner id of the open conversation, or "".
func (s *ConversationStore) OpenPartner() string {
	return s.selection.Get()
}

// LoadConversations fetches the full message history and recomputes the
// conversation list from scratch.
func (s *ConversationStore) LoadConversations(ctx context.Context) error {
	messages, err := s.gateway.GetMyMessages(ctx)
	if err != nil {
		s.log.Errorw("Failed to load message history", "error", err)
		return err
	}

	conversations := DeriveConversations(s.userID, messages)

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return nil
}

// OpenConversation fetches the full thread with a partner, marks every
// unread message addressed to the current user as read (sequentially;
// partial failure is logged and left for the next full refetch), and drains
// the conversation's local unread count regardless of individual outcomes.
func (s *ConversationStore) OpenConversation(ctx context.Context, partnerID string) error {
	s.selection.Set(partnerID)

	messages, err := s.gateway.GetThread(ctx, partnerID)
	if err != nil {
		s.log.Errorw("Failed to load thread", "partnerID", partnerID, "error", err)
		return err
	}

	for i := range messages {
		if messages[i].IsRead || !messages[i].AddressedTo(s.userID) {
			continue
		}
		if err := s.gateway.MarkMessageRead(ctx, messages[i].ID); err != nil {
			s.log.Warnw("Failed to mark message read", "messageID", messages[i].ID, "error", err)
		}
		messages[i].IsRead = true
	}

	s.mu.Lock()
	s.thread = messages
	if idx := s.indexOfConversationLocked(partnerID); idx >= 0 {
		s.conversations[idx].UnreadCount = 0
	}
	s.mu.Unlock()
	return nil
}

// CloseConversation clears the open thread and selection.
func (s *ConversationStore) CloseConversation() {
	s.selection.Clear()
	s.mu.Lock()
	s.thread = nil
	s.mu.Unlock()
}

// SendMessage persists a message via the gateway and merges the server echo
// (carrying the authoritative id and sentAt) into the open thread and the
// conversation list. Empty or whitespace-only content is rejected locally
// with zero gateway calls. Failed sends leave no stray local entry.
func (s *ConversationStore) SendMessage(ctx context.Context, partnerID, content string) (types.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return types.ChatMessage{}, errors.ValidationFailed("message content must not be empty", "")
	}

	msg, err := s.gateway.SendMessage(ctx, partnerID, content)
	if err != nil {
		s.log.Errorw("Failed to send message", "partnerID", partnerID, "error", err)
		return types.ChatMessage{}, err
	}

	s.mu.Lock()
	if s.selection.IsOpen(partnerID) && !s.inThreadLocked(msg.ID) {
		s.thread = append(s.thread, msg)
	}
	s.patchConversationLocked(msg, false)
	s.mu.Unlock()
	return msg, nil
}

// HandleRealtimeMessage merges a server-pushed message into the active
// views. Messages already present by id are ignored; the id is the dedupe
// key against the send echo arriving through both REST and the push channel.
func (s *ConversationStore) HandleRealtimeMessage(ctx context.Context, msg types.ChatMessage) {
	partner := msg.PartnerID(s.userID)
	open := s.selection.IsOpen(partner)

	markRead := false
	s.mu.Lock()
	if open {
		if !s.inThreadLocked(msg.ID) {
			if msg.AddressedTo(s.userID) {
				msg.IsRead = true
				markRead = true
			}
			s.thread = append(s.thread, msg)
		}
	}
	incrementUnread := !msg.IsRead && msg.AddressedTo(s.userID) && !open
	s.patchConversationLocked(msg, incrementUnread)
	s.mu.Unlock()

	if markRead {
		if err := s.gateway.MarkMessageRead(ctx, msg.ID); err != nil {
			s.log.Warnw("Failed to mark pushed message read", "messageID", msg.ID, "error", err)
		}
	}
}

// DeleteConversation deletes the server-side history with a partner, then
// removes the local conversation entry and clears the thread if it was the
// open conversation. Callers are responsible for interactive confirmation.
func (s *ConversationStore) DeleteConversation(ctx context.Context, partnerID string) error {
	if err := s.gateway.DeleteConversation(ctx, partnerID); err != nil {
		s.log.Errorw("Failed to delete conversation", "partnerID", partnerID, "error", err)
		return err
	}

	s.mu.Lock()
	if idx := s.indexOfConversationLocked(partnerID); idx >= 0 {
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
	}
	if s.selection.IsOpen(partnerID) {
		s.selection.Clear()
		s.thread = nil
	}
	s.mu.Unlock()
	return nil
}

// patchConversationLocked creates or updates the conversation entry for a
// message and keeps the list sorted.
func (s *ConversationStore) patchConversationLocked(msg types.ChatMessage, incrementUnread bool) {
	partner := msg.PartnerID(s.userID)
	idx := s.indexOfConversationLocked(partner)
	if idx < 0 {
		conv := types.Conversation{
			ID:              partner,
			Name:            msg.PartnerName(s.userID),
			LastMessage:     msg.Content,
			LastMessageTime: msg.SentAt,
		}
		if incrementUnread {
			conv.UnreadCount = 1
		}
		s.conversations = append(s.conversations, conv)
	} else {
		conv := &s.conversations[idx]
		if !msg.SentAt.Before(conv.LastMessageTime) {
			conv.LastMessage = msg.Content
			conv.LastMessageTime = msg.SentAt
		}
		if name := msg.PartnerName(s.userID); name != "" {
			conv.Name = name
		}
		if incrementUnread {
			conv.UnreadCount++
		}
	}
	sortConversations(s.conversations)
}

func (s *ConversationStore) indexOfConversationLocked(partnerID string) int {
	for i, c := range s.conversations {
		if c.ID == partnerID {
			return i
		}
	}
	return -1
}

func (s *ConversationStore) inThreadLocked(id string) bool {
	for _, m := range s.thread {
		if m.ID == id {
			return true
		}
	}
	return false
}
