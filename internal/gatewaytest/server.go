// Package gatewaytest provides an in-process fake of the VieGym backend for
// integration tests: the REST gateway routes backed by in-memory fixtures,
// and a WebSocket bridge endpoint that lets tests push realtime frames.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/VieGym/viegym-sync-client/types"
)

// Server is the fake backend. Fixture fields may be seeded before the client
// under test connects; mutating handlers update them in place.
type Server struct {
	mu            sync.Mutex
	Notifications []types.Notification
	Messages      []types.ChatMessage
	User          types.UserInfo

	// failures maps operation names to forced-failure flags; see FailOn.
	failures map[string]bool
	// calls records "METHOD path" for every REST request received.
	calls []string

	upgrader websocket.Upgrader
	clients  []*brokerClient

	httpServer *httptest.Server
}

type brokerClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
	subs map[string]bool
}

type controlFrame struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// NewServer starts the fake backend on an ephemeral port.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		failures: make(map[string]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := gin.New()
	r.GET("/api/notifications", s.record, s.getNotifications)
	r.POST("/api/notifications/read-all", s.record, s.markAllNotificationsRead)
	r.POST("/api/notifications/:id/read", s.record, s.markNotificationRead)
	r.DELETE("/api/notifications/:id", s.record, s.deleteNotification)
	r.GET("/api/notifications/unread-count", s.record, s.getUnreadCount)
	r.GET("/api/messages", s.record, s.getMessages)
	r.GET("/api/messages/:partnerId", s.record, s.getThread)
	r.POST("/api/messages", s.record, s.sendMessage)
	r.POST("/api/messages/:id/read", s.record, s.markMessageRead)
	r.DELETE("/api/messages/conversation/:partnerId", s.record, s.deleteConversation)
	r.GET("/api/user/my-info", s.record, s.myInfo)
	r.GET("/ws", s.serveWS)

	s.httpServer = httptest.NewServer(r)
	return s
}

// URL returns the REST base URL.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// WSURL returns the WebSocket bridge endpoint.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.httpServer.URL, "http") + "/ws"
}

// Close shuts the fake backend down.
func (s *Server) Close() {
	s.mu.Lock()
	clients := s.clients
	s.clients = nil
	s.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
	s.httpServer.Close()
}

// FailOn forces the named operation to return 500 until cleared. Operation
// names: markNotificationRead, markAllNotificationsRead, deleteNotification,
// sendMessage, markMessageRead, deleteConversation, getNotifications,
// getMessages, getThread, getUnreadCount.
func (s *Server) FailOn(op string, fail bool) {
	s.mu.Lock()
	s.failures[op] = fail
	s.mu.Unlock()
}

// Calls returns the recorded "METHOD path" list.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Push broadcasts a frame to every connected client subscribed to the
// destination, mimicking the broker fan-out.
func (s *Server) Push(destination string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	frame := types.Frame{
		Destination: destination,
		Body:        payload,
		Timestamp:   time.Now(),
	}

	s.mu.Lock()
	clients := make([]*brokerClient, len(s.clients))
	copy(clients, s.clients)
	s.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		subscribed := c.subs[destination]
		if subscribed {
			_ = c.conn.WriteJSON(frame)
		}
		c.mu.Unlock()
	}
	return nil
}

// Subscribed reports whether any connected client holds a subscription for
// the destination.
func (s *Server) Subscribed(destination string) bool {
	s.mu.Lock()
	clients := make([]*brokerClient, len(s.clients))
	copy(clients, s.clients)
	s.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		ok := c.subs[destination]
		c.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) failing(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

func (s *Server) getNotifications(c *gin.Context) {
	if s.failing("getNotifications") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size <= 0 {
		size = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	start := page * size
	end := start + size
	if start > len(s.Notifications) {
		start = len(s.Notifications)
	}
	if end > len(s.Notifications) {
		end = len(s.Notifications)
	}
	content := make([]types.Notification, end-start)
	copy(content, s.Notifications[start:end])

	c.JSON(http.StatusOK, types.NotificationPage{
		Content:       content,
		Page:          page,
		Size:          size,
		TotalElements: int64(len(s.Notifications)),
	})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	if s.failing("markNotificationRead") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	id := c.Param("id")
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Notifications {
		if s.Notifications[i].ID == id {
			s.Notifications[i].IsRead = true
			s.Notifications[i].ReadAt = &now
			c.Status(http.StatusOK)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	if s.failing("markAllNotificationsRead") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Notifications {
		if !s.Notifications[i].IsRead {
			s.Notifications[i].IsRead = true
			s.Notifications[i].ReadAt = &now
		}
	}
	c.Status(http.StatusOK)
}

func (s *Server) deleteNotification(c *gin.Context) {
	if s.failing("deleteNotification") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Notifications {
		if s.Notifications[i].ID == id {
			s.Notifications = append(s.Notifications[:i], s.Notifications[i+1:]...)
			c.Status(http.StatusOK)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
}

func (s *Server) getUnreadCount(c *gin.Context) {
	if s.failing("getUnreadCount") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.Notifications {
		if !n.IsRead {
			count++
		}
	}
	c.JSON(http.StatusOK, types.UnreadCountResponse{Count: count})
}

func (s *Server) getMessages(c *gin.Context) {
	if s.failing("getMessages") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.Messages))
	copy(out, s.Messages)
	c.JSON(http.StatusOK, out)
}

func (s *Server) getThread(c *gin.Context) {
	if s.failing("getThread") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	partnerID := c.Param("partnerId")

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, 0)
	for _, m := range s.Messages {
		if m.SenderID == partnerID || m.ReceiverID == partnerID {
			out = append(out, m)
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) sendMessage(c *gin.Context) {
	if s.failing("sendMessage") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	var req types.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	msg := types.ChatMessage{
		ID:         uuid.New().String(),
		SenderID:   s.User.ID,
		SenderName: s.User.FullName,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
		SentAt:     time.Now(),
	}
	s.Messages = append(s.Messages, msg)
	s.mu.Unlock()

	c.JSON(http.StatusOK, msg)
}

func (s *Server) markMessageRead(c *gin.Context) {
	if s.failing("markMessageRead") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			s.Messages[i].IsRead = true
			c.Status(http.StatusOK)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
}

func (s *Server) deleteConversation(c *gin.Context) {
	if s.failing("deleteConversation") {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "forced failure"})
		return
	}
	partnerID := c.Param("partnerId")

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Messages[:0]
	for _, m := range s.Messages {
		if m.SenderID != partnerID && m.ReceiverID != partnerID {
			kept = append(kept, m)
		}
	}
	s.Messages = kept
	c.Status(http.StatusOK)
}

func (s *Server) myInfo(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.User)
}

func (s *Server) serveWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := &brokerClient{
		conn: conn,
		subs: make(map[string]bool),
	}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()

	go func() {
		defer conn.Close()
		for {
			var frame controlFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			client.mu.Lock()
			switch frame.Type {
			case "subscribe":
				client.subs[frame.Destination] = true
			case "unsubscribe":
				delete(client.subs, frame.Destination)
			}
			client.mu.Unlock()
		}
	}()
}
