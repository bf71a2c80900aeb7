// Package gateway is the typed HTTP client for the VieGym REST API. It owns
// no state beyond the connection settings; persistence lives server-side and
// the sync cores only call through here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/internal/utils"
	"github.com/VieGym/viegym-sync-client/types"
)

// TokenProvider supplies the bearer token attached to every request.
type TokenProvider interface {
	Token() string
}

// Client is a client for the VieGym REST gateway.
type Client struct {
	baseURL    string
	tokens     TokenProvider
	httpClient *http.Client
}

// ClientOption is a function that configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a new gateway client.
func NewClient(baseURL string, tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// do issues a request and decodes the JSON response into out (when non-nil).
// Non-2xx responses are mapped to GatewayError.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.GatewayError, "failed to marshal request body")
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, errors.GatewayError, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", utils.GenerateEventID())
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewTransportError(err, "gateway request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.NewGatewayError(resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, errors.GatewayError, "failed to decode response")
		}
	}
	return nil
}

// GetNotifications fetches one page of the user's notification list.
func (c *Client) GetNotifications(ctx context.Context, page, size int) (types.NotificationPage, error) {
	var result types.NotificationPage
	path := fmt.Sprintf("/api/notifications?page=%d&size=%d", page, size)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return types.NotificationPage{}, err
	}
	return result, nil
}

// MarkNotificationRead marks one notification read server-side.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// MarkAllNotificationsRead marks the user's whole notification list read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
}

// DeleteNotification removes a notification server-side.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil)
}

// GetUnreadCount fetches the server-computed global unread count.
// This endpoint is the authoritative counter source; the page-scoped recount
// in the store is display bookkeeping only.
func (c *Client) GetUnreadCount(ctx context.Context) (int, error) {
	var result types.UnreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// GetMyMessages fetches the user's full flat message history.
func (c *Client) GetMyMessages(ctx context.Context) ([]types.ChatMessage, error) {
	var result []types.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/messages", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetThread fetches the full thread with one partner.
func (c *Client) GetThread(ctx context.Context, partnerID string) ([]types.ChatMessage, error) {
	var result []types.ChatMessage
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(partnerID), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SendMessage persists a new message and returns the server copy carrying
// the authoritative id and sentAt.
func (c *Client) SendMessage(ctx context.Context, receiverID, content string) (types.ChatMessage, error) {
	var result types.ChatMessage
	req := types.SendMessageRequest{ReceiverID: receiverID, Content: content}
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, &result); err != nil {
		return types.ChatMessage{}, err
	}
	return result, nil
}

// MarkMessageRead marks one message read server-side.
func (c *Client) MarkMessageRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/messages/"+url.PathEscape(id)+"/read", nil, nil)
}

// DeleteConversation deletes the server-side history with one partner.
func (c *Client) DeleteConversation(ctx context.Context, partnerID string) error {
	return c.do(ctx, http.MethodDelete, "/api/messages/conversation/"+url.PathEscape(partnerID), nil, nil)
}

// MyInfo fetches the authenticated user's identity.
func (c *Client) MyInfo(ctx context.Context) (types.UserInfo, error) {
	var result types.UserInfo
	if err := c.do(ctx, http.MethodGet, "/api/user/my-info", nil, &result); err != nil {
		return types.UserInfo{}, err
	}
	return result, nil
}
