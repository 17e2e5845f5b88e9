package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMessageStore() *MemoryMessageRepo {
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemoryMessageRepo(clock.Now)
}

func text(from, to int, body string) models.NewMessage {
	return models.NewMessage{SenderID: from, ReceiverID: to, Kind: models.KindText, Body: &body}
}

func TestAppendMessageValidation(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	_, err := store.AppendMessage(ctx, models.NewMessage{SenderID: 1, ReceiverID: 2, Kind: models.KindImage})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	ref := "/uploads/chat/a.png"
	body := "hi"
	_, err = store.AppendMessage(ctx, models.NewMessage{SenderID: 1, ReceiverID: 2, Kind: models.KindText, Body: &body, MediaRef: &ref})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	missing := int64(99)
	msg := text(1, 2, "reply")
	msg.ReplyToID = &missing
	_, err = store.AppendMessage(ctx, msg)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	created, err := store.AppendMessage(ctx, text(1, 2, "hi"))
	require.NoError(t, err)
	assert.False(t, created.IsDelivered)
	assert.False(t, created.IsRead)
}

func TestAppendMessageResolvesReplySummary(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	first, err := store.AppendMessage(ctx, text(1, 2, "question"))
	require.NoError(t, err)

	reply := text(2, 1, "answer")
	reply.ReplyToID = &first.ID
	created, err := store.AppendMessage(ctx, reply)
	require.NoError(t, err)
	require.NotNil(t, created.ReplyTo)
	assert.Equal(t, first.ID, created.ReplyTo.ID)
	assert.Equal(t, "question", *created.ReplyTo.Body)
	assert.Equal(t, 1, created.ReplyTo.SenderID)
}

func TestListMessagesPagesNewestAndMarksRead(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	for _, body := range []string{"one", "two", "three"} {
		_, err := store.AppendMessage(ctx, text(2, 1, body))
		require.NoError(t, err)
	}
	_, err := store.AppendMessage(ctx, text(1, 2, "four"))
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, text(3, 1, "elsewhere"))
	require.NoError(t, err)

	unread, err := store.UnreadCount(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, 3, unread)

	page, total, err := store.ListMessages(ctx, 1, 2, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "three", *page[0].Body)
	assert.Equal(t, "four", *page[1].Body)

	older, _, err := store.ListMessages(ctx, 1, 2, 2, 2)
	require.NoError(t, err)
	require.Len(t, older, 2)
	assert.Equal(t, "one", *older[0].Body)

	unread, err = store.UnreadCount(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, unread)

	other, err := store.UnreadCount(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, other)

	msg, err := store.GetMessage(ctx, 1)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	assert.True(t, msg.IsDelivered)
}

func TestEditMessageRules(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	msg, err := store.AppendMessage(ctx, text(1, 2, "draft"))
	require.NoError(t, err)

	_, err = store.EditMessage(ctx, msg.ID, 2, "hijack")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	edited, err := store.EditMessage(ctx, msg.ID, 1, "final")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "final", *edited.Body)

	ref := "/uploads/chat/v.mp4"
	media, err := store.AppendMessage(ctx, models.NewMessage{SenderID: 1, ReceiverID: 2, Kind: models.KindVideo, MediaRef: &ref})
	require.NoError(t, err)
	_, err = store.EditMessage(ctx, media.ID, 1, "caption")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	_, err = store.EditMessage(ctx, 404, 1, "x")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSoftDeleteKeepsRowAndMedia(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	ref := "/uploads/chat/p.png"
	msg, err := store.AppendMessage(ctx, models.NewMessage{SenderID: 1, ReceiverID: 2, Kind: models.KindImage, MediaRef: &ref})
	require.NoError(t, err)

	_, err = store.SoftDeleteMessage(ctx, msg.ID, 2)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = store.SoftDeleteMessage(ctx, msg.ID, 1)
	require.NoError(t, err)

	page, _, err := store.ListMessages(ctx, 2, 1, 1, 50)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].IsDeleted)
	assert.Equal(t, models.DeletedBody, *page[0].Body)
	require.NotNil(t, page[0].MediaRef)
	assert.Equal(t, ref, *page[0].MediaRef)
}

func TestAcknowledgementsKeepReadImpliesDelivered(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	msg, err := store.AppendMessage(ctx, text(1, 2, "ping"))
	require.NoError(t, err)

	_, err = store.MarkRead(ctx, msg.ID, 1)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	read, err := store.MarkRead(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.True(t, read.IsRead)
	assert.True(t, read.IsDelivered)

	delivered, err := store.MarkDelivered(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.True(t, delivered.IsRead, "delivery ack must not regress read")

	_, err = store.EditMessage(ctx, msg.ID, 1, "pong")
	require.NoError(t, err)
	after, err := store.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, after.IsRead && after.IsDelivered)
}

func TestLastMessageAndPartners(t *testing.T) {
	store := newMessageStore()
	ctx := context.Background()

	last, err := store.LastMessage(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = store.AppendMessage(ctx, text(1, 2, "a"))
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, text(3, 1, "b"))
	require.NoError(t, err)
	_, err = store.AppendMessage(ctx, text(2, 1, "c"))
	require.NoError(t, err)

	last, err = store.LastMessage(ctx, 2, 1)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "c", *last.Body)

	partners, err := store.PartnerIDs(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, partners)
}

func TestMemoryBlockRepo(t *testing.T) {
	repo := NewMemoryBlockRepo()
	ctx := context.Background()

	created, err := repo.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = repo.Block(ctx, 1, 1)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	blocked, err := repo.IsBlockedEitherDirection(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, blocked)

	_, err = repo.Block(ctx, 3, 1)
	require.NoError(t, err)
	partners, err := repo.BlockedPartners(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{2, 3}, partners)

	ids, err := repo.ListBlockedBy(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)

	require.NoError(t, repo.Unblock(ctx, 1, 2))
	require.NoError(t, repo.Unblock(ctx, 1, 2))
	blocked, err = repo.IsBlockedEitherDirection(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestMemoryUserRepoSetOnline(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryUserRepo(func() time.Time { return now })
	repo.Put(models.User{ID: 1, Phone: "09120000000"})

	require.NoError(t, repo.SetOnline(context.Background(), 1, true))
	user, err := repo.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, user.IsOnline)
	require.NotNil(t, user.LastSeen)
	assert.Equal(t, now, *user.LastSeen)

	err = repo.SetOnline(context.Background(), 2, true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
