package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/presence"
	"dm-service/internal/repositories"
)

type pushed struct {
	userID int
	event  models.LiveEvent
}

// recordingNotifier records pushes to users marked online.
type recordingNotifier struct {
	mu     sync.Mutex
	online map[int]bool
	events []pushed
}

func (n *recordingNotifier) Notify(_ context.Context, userID int, event models.LiveEvent) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.online[userID] {
		return false
	}
	n.events = append(n.events, pushed{userID: userID, event: event})
	return true
}

func (n *recordingNotifier) last(t *testing.T) pushed {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.events)
	return n.events[len(n.events)-1]
}

type recordingAuditor struct {
	texts []string
}

func (a *recordingAuditor) Emit(_ context.Context, _ string, text string, _ int) {
	a.texts = append(a.texts, text)
}

type fixture struct {
	gw       *Gateway
	messages *repositories.MemoryMessageRepo
	users    *repositories.MemoryUserRepo
	notifier *recordingNotifier
	auditor  *recordingAuditor
	clock    *time.Time
}

const (
	alice = 1
	bob   = 2
	carol = 3
)

func newFixture() *fixture {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time {
		*clock = clock.Add(time.Second)
		return *clock
	}

	messages := repositories.NewMemoryMessageRepo(tick)
	users := repositories.NewMemoryUserRepo(tick)
	for id, name := range map[int]string{alice: "Alice", bob: "Bob", carol: "Carol"} {
		n := name
		users.Put(models.User{ID: id, Name: &n})
	}
	notifier := &recordingNotifier{online: map[int]bool{}}
	auditor := &recordingAuditor{}
	typing := presence.NewTypingTracker(func() time.Time { return *clock })

	gw := NewGateway(messages, repositories.NewMemoryBlockRepo(), users, typing, notifier, nil,
		WithAuditor(auditor),
		WithClock(func() time.Time { return *clock }),
	)
	return &fixture{gw: gw, messages: messages, users: users, notifier: notifier, auditor: auditor, clock: clock}
}

func TestSendTextToOfflineReceiverThenList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	msg, err := f.gw.SendText(ctx, alice, bob, "hi", nil, false)
	require.NoError(t, err)
	assert.False(t, msg.IsDelivered)
	assert.False(t, msg.IsRead)
	assert.Empty(t, f.notifier.events)

	unread, err := f.messages.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	f.notifier.online[bob] = true
	msgs, total, err := f.gw.ListMessages(ctx, bob, alice, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", *msgs[0].Body)

	unread, err = f.messages.UnreadCount(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)
	assert.False(t, f.gw.IsTyping(bob, alice))

	stored, err := f.messages.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
	assert.True(t, stored.IsDelivered)
}

func TestSendTextPushesToOnlineReceiver(t *testing.T) {
	f := newFixture()
	f.notifier.online[bob] = true

	first, err := f.gw.SendText(context.Background(), alice, bob, "first", nil, false)
	require.NoError(t, err)

	got := f.notifier.last(t)
	assert.Equal(t, bob, got.userID)
	assert.Equal(t, models.EventNewMessage, got.event.Type)
	live := got.event.Data.(models.LiveMessage)
	assert.False(t, live.Ephemeral)
	assert.Equal(t, first.ID, live.ID)
	assert.Equal(t, "first", *live.Body)
	assert.Nil(t, live.ReplyTo)
}

func TestSendTextReplyPushCarriesReplySummary(t *testing.T) {
	f := newFixture()
	f.notifier.online[alice] = true
	f.notifier.online[bob] = true

	first, err := f.gw.SendText(context.Background(), alice, bob, "first", nil, false)
	require.NoError(t, err)
	reply, err := f.gw.SendText(context.Background(), bob, alice, "reply", &first.ID, false)
	require.NoError(t, err)

	got := f.notifier.last(t)
	assert.Equal(t, alice, got.userID)
	live := got.event.Data.(models.LiveMessage)
	assert.Equal(t, reply.ID, live.ID)
	assert.Equal(t, "reply", *live.Body)
	require.NotNil(t, live.ReplyTo)
	assert.Equal(t, first.ID, live.ReplyTo.ID)
	assert.Equal(t, alice, live.ReplyTo.SenderID)
	require.NotNil(t, live.ReplyTo.Body)
	assert.Equal(t, "first", *live.ReplyTo.Body)
}

func TestSendRejectedWhileBlockedInEitherDirection(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	created, err := f.gw.Block(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = f.gw.SendText(ctx, bob, alice, "hey", nil, false)
	assert.ErrorIs(t, err, apperr.ErrBlocked)
	_, err = f.gw.SendText(ctx, alice, bob, "hey", nil, false)
	assert.ErrorIs(t, err, apperr.ErrBlocked)
	_, err = f.gw.SendMedia(ctx, bob, alice, models.KindImage, "/uploads/chat/x.png", nil, nil)
	assert.ErrorIs(t, err, apperr.ErrBlocked)

	partners, err := f.messages.PartnerIDs(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, partners)

	require.NoError(t, f.gw.Unblock(ctx, alice, bob))
	_, err = f.gw.SendText(ctx, bob, alice, "hey", nil, false)
	assert.NoError(t, err)
	assert.Len(t, f.auditor.texts, 2)
}

func TestBlockTwiceReportsExisting(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.gw.Block(ctx, alice, bob)
	require.NoError(t, err)
	created, err := f.gw.Block(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, created)

	blocked, err := f.gw.IsBlocked(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, blocked)

	views, err := f.gw.ListBlocked(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Bob", views[0].Name)
}

func TestEditRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.notifier.online[bob] = true

	text, err := f.gw.SendText(ctx, alice, bob, "draft", nil, false)
	require.NoError(t, err)
	media, err := f.gw.SendMedia(ctx, alice, bob, models.KindImage, "/uploads/chat/a.png", nil, nil)
	require.NoError(t, err)

	_, err = f.gw.EditText(ctx, bob, text.ID, "hijack")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.gw.EditText(ctx, alice, media.ID, "caption")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	edited, err := f.gw.EditText(ctx, alice, text.ID, "final")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "final", *edited.Body)

	got := f.notifier.last(t)
	assert.Equal(t, models.EventMessageEdited, got.event.Type)
	assert.Equal(t, models.MessageEdited{MessageID: text.ID, Message: "final", IsEdited: true}, got.event.Data)
}

func TestDeleteMediaKeepsReference(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	msg, err := f.gw.SendMedia(ctx, alice, bob, models.KindVoice, "/uploads/chat/v.ogg", nil, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, f.gw.DeleteMessage(ctx, bob, msg.ID), apperr.ErrForbidden)
	require.NoError(t, f.gw.DeleteMessage(ctx, alice, msg.ID))

	msgs, _, err := f.gw.ListMessages(ctx, alice, bob, 1, 50)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsDeleted)
	assert.Equal(t, models.DeletedBody, *msgs[0].Body)
	require.NotNil(t, msgs[0].MediaRef)
	assert.Equal(t, "/uploads/chat/v.ogg", *msgs[0].MediaRef)
	assert.Len(t, f.auditor.texts, 1)
}

func TestAcknowledgementsNotifySender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.notifier.online[alice] = true

	msg, err := f.gw.SendText(ctx, alice, bob, "ping", nil, false)
	require.NoError(t, err)

	assert.ErrorIs(t, f.gw.AcknowledgeRead(ctx, alice, msg.ID), apperr.ErrForbidden)

	require.NoError(t, f.gw.AcknowledgeDelivered(ctx, bob, msg.ID))
	assert.Equal(t, models.EventMessageDelivered, f.notifier.last(t).event.Type)

	require.NoError(t, f.gw.AcknowledgeRead(ctx, bob, msg.ID))
	got := f.notifier.last(t)
	assert.Equal(t, alice, got.userID)
	assert.Equal(t, models.MessageRef{MessageID: msg.ID}, got.event.Data)

	stored, err := f.messages.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsRead && stored.IsDelivered)

	assert.ErrorIs(t, f.gw.AcknowledgeRead(ctx, bob, 999), apperr.ErrNotFound)
}

func TestLiveSendIsEphemeral(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ok, err := f.gw.LiveSend(ctx, alice, LivePayload{ReceiverID: bob, Body: "preview"})
	require.NoError(t, err)
	assert.False(t, ok)

	f.notifier.online[bob] = true
	ok, err = f.gw.LiveSend(ctx, alice, LivePayload{ReceiverID: bob, Body: "preview"})
	require.NoError(t, err)
	assert.True(t, ok)
	live := f.notifier.last(t).event.Data.(models.LiveMessage)
	assert.True(t, live.Ephemeral)
	assert.Equal(t, alice, live.SenderID)

	partners, err := f.messages.PartnerIDs(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, partners)

	_, err = f.gw.Block(ctx, bob, alice)
	require.NoError(t, err)
	_, err = f.gw.LiveSend(ctx, alice, LivePayload{ReceiverID: bob, Body: "preview"})
	assert.ErrorIs(t, err, apperr.ErrBlocked)
}

func TestTypingSignal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.notifier.online[bob] = true

	require.NoError(t, f.gw.SignalTyping(ctx, alice, bob))
	assert.True(t, f.gw.IsTyping(bob, alice))
	assert.False(t, f.gw.IsTyping(alice, bob))
	assert.Equal(t, models.UserTyping{SenderID: alice}, f.notifier.last(t).event.Data)

	*f.clock = f.clock.Add(3001 * time.Millisecond)
	assert.False(t, f.gw.IsTyping(bob, alice))

	_, err := f.gw.Block(ctx, bob, alice)
	require.NoError(t, err)
	assert.ErrorIs(t, f.gw.SignalTyping(ctx, alice, bob), apperr.ErrBlocked)
}

func TestPresenceUpdatesDirectory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.gw.SetOnline(ctx, alice))
	profile, err := f.gw.PartnerProfile(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, profile.IsOnline)
	assert.NotNil(t, profile.LastSeen)
	assert.False(t, profile.IsBlocked)

	require.NoError(t, f.gw.SetOffline(ctx, alice))
	profile, err = f.gw.PartnerProfile(ctx, bob, alice)
	require.NoError(t, err)
	assert.False(t, profile.IsOnline)

	assert.ErrorIs(t, f.gw.SetOnline(ctx, 42), apperr.ErrNotFound)
}

func TestListMessagesClampsPaging(t *testing.T) {
	page, size := ClampPage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageSize, size)

	_, size = ClampPage(2, 10_000)
	assert.Equal(t, MaxPageSize, size)

	_, _, err := newFixture().gw.ListMessages(context.Background(), alice, 0, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestGetConversations(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.gw.SendText(ctx, bob, alice, "from bob", nil, false)
	require.NoError(t, err)
	_, err = f.gw.SendMedia(ctx, carol, alice, models.KindVideo, "/uploads/chat/c.mp4", nil, nil)
	require.NoError(t, err)
	_, err = f.gw.SendText(ctx, alice, 7, "stranger", nil, false)
	require.NoError(t, err)

	convs, err := f.gw.GetConversations(ctx, alice)
	require.NoError(t, err)
	require.Len(t, convs, 3)

	assert.Equal(t, 7, convs[0].User.ID)
	assert.Equal(t, models.DefaultDisplayName, convs[0].User.Name)
	assert.Equal(t, 0, convs[0].UnreadCount)

	assert.Equal(t, carol, convs[1].User.ID)
	assert.Equal(t, "[video]", convs[1].Message)
	assert.Equal(t, 1, convs[1].UnreadCount)

	assert.Equal(t, bob, convs[2].User.ID)
	assert.Equal(t, "from bob", convs[2].Message)

	_, err = f.gw.Block(ctx, carol, alice)
	require.NoError(t, err)
	convs, err = f.gw.GetConversations(ctx, alice)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	for _, c := range convs {
		assert.NotEqual(t, carol, c.User.ID)
	}
}
