package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VieGym/viegym-sync-client/errors"
	"github.com/VieGym/viegym-sync-client/types"
)

// fakeNotificationGateway records calls and can be forced to fail per
// operation.
type fakeNotificationGateway struct {
	page        types.NotificationPage
	unreadCount int
	calls       []string
	fail        map[string]bool
}

func newFakeNotificationGateway() *fakeNotificationGateway {
	return &fakeNotificationGateway{fail: make(map[string]bool)}
}

func (g *fakeNotificationGateway) err(op string) error {
	if g.fail[op] {
		return errors.NewGatewayError(500, "forced failure")
	}
	return nil
}

func (g *fakeNotificationGateway) GetNotifications(_ context.Context, page, size int) (types.NotificationPage, error) {
	g.calls = append(g.calls, "getNotifications")
	if err := g.err("getNotifications"); err != nil {
		return types.NotificationPage{}, err
	}
	return g.page, nil
}

func (g *fakeNotificationGateway) MarkNotificationRead(_ context.Context, id string) error {
	g.calls = append(g.calls, "markRead:"+id)
	return g.err("markRead")
}

func (g *fakeNotificationGateway) MarkAllNotificationsRead(_ context.Context) error {
	g.calls = append(g.calls, "markAllRead")
	return g.err("markAllRead")
}

func (g *fakeNotificationGateway) DeleteNotification(_ context.Context, id string) error {
	g.calls = append(g.calls, "delete:"+id)
	return g.err("delete")
}

func (g *fakeNotificationGateway) GetUnreadCount(_ context.Context) (int, error) {
	g.calls = append(g.calls, "getUnreadCount")
	if err := g.err("getUnreadCount"); err != nil {
		return 0, err
	}
	return g.unreadCount, nil
}

// spyAlerter records side effects.
type spyAlerter struct {
	toasts []types.Notification
	sounds []types.NotificationType
}

func (a *spyAlerter) Toast(n types.Notification)     { a.toasts = append(a.toasts, n) }
func (a *spyAlerter) Sound(t types.NotificationType) { a.sounds = append(a.sounds, t) }

func unreadIn(list []types.Notification) int {
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func notif(id string, read bool) types.Notification {
	return types.Notification{
		ID:        id,
		Type:      types.NotificationWorkout,
		Title:     "title " + id,
		Message:   "message " + id,
		IsRead:    read,
		CreatedAt: time.Now(),
	}
}

func TestNotificationStore_AddThenMarkAsRead(t *testing.T) {
	gw := newFakeNotificationGateway()
	s := NewNotificationStore(gw, nil)

	s.Add(notif("n1", false))
	assert.Len(t, s.Notifications(), 1)
	assert.Equal(t, 1, s.UnreadCount())

	require.NoError(t, s.MarkAsRead(context.Background(), "n1"))
	assert.Equal(t, 0, s.UnreadCount())
	got := s.Notifications()
	require.Len(t, got, 1)
	assert.True(t, got[0].IsRead)
	require.NotNil(t, got[0].ReadAt)
}

func TestNotificationStore_UnreadInvariantHoldsAfterEveryMutation(t *testing.T) {
	gw := newFakeNotificationGateway()
	s := NewNotificationStore(gw, nil)
	ctx := context.Background()

	check := func(step string) {
		t.Helper()
		assert.Equal(t, unreadIn(s.Notifications()), s.UnreadCount(), "after %s", step)
	}

	s.Add(notif("a", false))
	check("add a")
	s.Add(notif("b", false))
	check("add b")
	s.Add(notif("c", true))
	check("add read c")
	require.NoError(t, s.MarkAsRead(ctx, "a"))
	check("markAsRead a")
	require.NoError(t, s.MarkAsRead(ctx, "a")) // already read, no-op
	check("markAsRead a twice")
	require.NoError(t, s.Delete(ctx, "b"))
	check("delete unread b")
	require.NoError(t, s.Delete(ctx, "c"))
	check("delete read c")
	require.NoError(t, s.Delete(ctx, "missing"))
	check("delete missing")
	require.NoError(t, s.MarkAllAsRead(ctx))
	check("markAllAsRead")
}

func TestNotificationStore_MarkAllThenFetchYieldsZeroUnread(t *testing.T) {
	gw := newFakeNotificationGateway()
	s := NewNotificationStore(gw, nil)
	ctx := context.Background()

	s.Add(notif("n1", false))
	s.Add(notif("n2", false))

	require.NoError(t, s.MarkAllAsRead(ctx))

	// Server truth after read-all: everything read.
	now := time.Now()
	read1, read2 := notif("n1", true), notif("n2", true)
	read1.ReadAt, read2.ReadAt = &now, &now
	gw.page = types.NotificationPage{Content: []types.Notification{read2, read1}, Size: 20, TotalElements: 2}

	require.NoError(t, s.FetchPage(ctx, 0, 20))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestNotificationStore_FetchPageReplacesList(t *testing.T) {
	gw := newFakeNotificationGateway()
	gw.page = types.NotificationPage{
		Content:       []types.Notification{notif("s1", false), notif("s2", true)},
		TotalElements: 2,
	}
	s := NewNotificationStore(gw, nil)

	s.Add(notif("local", false))
	require.NoError(t, s.FetchPage(context.Background(), 0, 20))

	got := s.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, 1, s.UnreadCount(), "page-scoped recount")
}

func TestNotificationStore_FetchUnreadCountOverwritesCounter(t *testing.T) {
	gw := newFakeNotificationGateway()
	gw.unreadCount = 42
	s := NewNotificationStore(gw, nil)

	s.Add(notif("n1", false))
	require.NoError(t, s.FetchUnreadCount(context.Background()))
	assert.Equal(t, 42, s.UnreadCount(), "server-global count is authoritative")
}

func TestNotificationStore_MarkAsReadRollsBackOnGatewayFailure(t *testing.T) {
	gw := newFakeNotificationGateway()
	gw.fail["markRead"] = true
	s := NewNotificationStore(gw, nil)

	s.Add(notif("n1", false))
	err := s.MarkAsRead(context.Background(), "n1")
	require.Error(t, err)

	got := s.Notifications()
	require.Len(t, got, 1)
	assert.False(t, got[0].IsRead, "optimistic flip reverted")
	assert.Nil(t, got[0].ReadAt)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestNotificationStore_DeleteRollsBackOnGatewayFailure(t *testing.T) {
	gw := newFakeNotificationGateway()
	gw.fail["delete"] = true
	s := NewNotificationStore(gw, nil)

	s.Add(notif("n2", true))
	s.Add(notif("n1", false))

	err := s.Delete(context.Background(), "n2")
	require.Error(t, err)

	got := s.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, "n1", got[0].ID)
	assert.Equal(t, "n2", got[1].ID, "entry restored at its original position")
	assert.Equal(t, 1, s.UnreadCount())
}

func TestNotificationStore_MarkAllRollsBackOnGatewayFailure(t *testing.T) {
	gw := newFakeNotificationGateway()
	gw.fail["markAllRead"] = true
	s := NewNotificationStore(gw, nil)

	s.Add(notif("n1", false))
	s.Add(notif("n2", true))

	err := s.MarkAllAsRead(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, unreadIn(s.Notifications()), s.UnreadCount())
}

func TestNotificationStore_AddFiresAlerts(t *testing.T) {
	gw := newFakeNotificationGateway()
	alerter := &spyAlerter{}
	s := NewNotificationStore(gw, alerter)

	n := notif("n1", false)
	s.Add(n)

	require.Len(t, alerter.toasts, 1)
	assert.Equal(t, "n1", alerter.toasts[0].ID)
	require.Len(t, alerter.sounds, 1)
	assert.Equal(t, types.NotificationWorkout, alerter.sounds[0])
}

func TestNotificationStore_ConnectedFlag(t *testing.T) {
	s := NewNotificationStore(newFakeNotificationGateway(), nil)

	assert.False(t, s.IsConnected())
	s.SetConnected(true)
	assert.True(t, s.IsConnected())
	s.SetConnected(false)
	assert.False(t, s.IsConnected())
}
