// Package messaging implements direct messaging: block policy, persistence
// through the conversation store, and best-effort live notification of the
// other party.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/repositories"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Gateway is the entry point for every messaging operation. Callers pass the
// authenticated actor id; it is trusted as given.
type Gateway struct {
	messages repositories.MessageRepository
	blocks   repositories.BlockRepository
	users    repositories.UserDirectory
	typing   *presence.TypingTracker
	notifier Notifier
	audit    Auditor
	log      *slog.Logger
	now      func() time.Time
}

// Option customizes a Gateway.
type Option func(*Gateway)

func WithAuditor(a Auditor) Option {
	return func(g *Gateway) {
		if a != nil {
			g.audit = a
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway wires the gateway. A nil notifier disables live pushes.
func NewGateway(
	messages repositories.MessageRepository,
	blocks repositories.BlockRepository,
	users repositories.UserDirectory,
	typing *presence.TypingTracker,
	notifier Notifier,
	log *slog.Logger,
	opts ...Option,
) *Gateway {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	if typing == nil {
		typing = presence.NewTypingTracker(nil)
	}
	g := &Gateway{
		messages: messages,
		blocks:   blocks,
		users:    users,
		typing:   typing,
		notifier: notifier,
		audit:    nopAuditor{},
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SendText persists a text message and pushes it to the receiver if connected.
func (g *Gateway) SendText(ctx context.Context, senderID, receiverID int, body string, replyTo *int64, encrypted bool) (models.Message, error) {
	msg, err := g.send(ctx, models.NewMessage{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Kind:        models.KindText,
		Body:        &body,
		ReplyToID:   replyTo,
		IsEncrypted: encrypted,
	})
	observability.IncMessageOp("send_text", err)
	return msg, err
}

// SendMedia persists a media message whose file was already stored by the media collaborator.
func (g *Gateway) SendMedia(ctx context.Context, senderID, receiverID int, kind models.MessageKind, mediaRef string, body *string, replyTo *int64) (models.Message, error) {
	if !kind.RequiresMedia() {
		err := apperr.Validation("media messages must be image, video or voice")
		observability.IncMessageOp("send_media", err)
		return models.Message{}, err
	}
	msg, err := g.send(ctx, models.NewMessage{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Kind:       kind,
		Body:       body,
		MediaRef:   models.StringPtr(mediaRef),
		ReplyToID:  replyTo,
	})
	observability.IncMessageOp("send_media", err)
	return msg, err
}

func (g *Gateway) send(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if in.ReceiverID <= 0 {
		return models.Message{}, apperr.Validation("receiver_id is required")
	}
	if err := g.ensureNotBlocked(ctx, in.SenderID, in.ReceiverID); err != nil {
		return models.Message{}, err
	}

	msg, err := g.messages.AppendMessage(ctx, in)
	if err != nil {
		return models.Message{}, err
	}

	pushed := g.notifier.Notify(ctx, msg.ReceiverID, models.LiveEvent{
		Type: models.EventNewMessage,
		Data: models.LiveMessage{Message: msg},
	})
	g.log.Info("message.send", "message_id", msg.ID, "sender_id", msg.SenderID, "receiver_id", msg.ReceiverID, "kind", msg.Kind, "pushed", pushed)
	return msg, nil
}

// EditText replaces the body of the actor's text message and tells the other party.
func (g *Gateway) EditText(ctx context.Context, actorID int, messageID int64, body string) (models.Message, error) {
	msg, err := g.messages.EditMessage(ctx, messageID, actorID, body)
	observability.IncMessageOp("edit", err)
	if err != nil {
		return models.Message{}, err
	}

	g.notifier.Notify(ctx, msg.Partner(actorID), models.LiveEvent{
		Type: models.EventMessageEdited,
		Data: models.MessageEdited{MessageID: msg.ID, Message: body, IsEdited: true},
	})
	return msg, nil
}

// DeleteMessage soft-deletes the actor's message and tells the other party.
func (g *Gateway) DeleteMessage(ctx context.Context, actorID int, messageID int64) error {
	msg, err := g.messages.SoftDeleteMessage(ctx, messageID, actorID)
	observability.IncMessageOp("delete", err)
	if err != nil {
		return err
	}

	g.audit.Emit(ctx, "INFO", fmt.Sprintf("message %d deleted by sender", msg.ID), actorID)
	g.notifier.Notify(ctx, msg.Partner(actorID), models.LiveEvent{
		Type: models.EventMessageDeleted,
		Data: models.MessageRef{MessageID: msg.ID},
	})
	return nil
}

// AcknowledgeDelivered records delivery by the receiver and tells the sender.
func (g *Gateway) AcknowledgeDelivered(ctx context.Context, actorID int, messageID int64) error {
	msg, err := g.messages.MarkDelivered(ctx, messageID, actorID)
	observability.IncMessageOp("ack_delivered", err)
	if err != nil {
		return err
	}
	g.notifier.Notify(ctx, msg.SenderID, models.LiveEvent{
		Type: models.EventMessageDelivered,
		Data: models.MessageRef{MessageID: msg.ID},
	})
	return nil
}

// AcknowledgeRead records a read by the receiver and tells the sender.
func (g *Gateway) AcknowledgeRead(ctx context.Context, actorID int, messageID int64) error {
	msg, err := g.messages.MarkRead(ctx, messageID, actorID)
	observability.IncMessageOp("ack_read", err)
	if err != nil {
		return err
	}
	g.notifier.Notify(ctx, msg.SenderID, models.LiveEvent{
		Type: models.EventMessageRead,
		Data: models.MessageRef{MessageID: msg.ID},
	})
	return nil
}

// ListMessages returns one page of the conversation with partnerID, oldest first,
// and marks the partner's messages to the actor as read.
func (g *Gateway) ListMessages(ctx context.Context, actorID, partnerID, page, pageSize int) ([]models.Message, int, error) {
	if partnerID <= 0 {
		return nil, 0, apperr.Validation("invalid partner id")
	}
	page, pageSize = ClampPage(page, pageSize)
	return g.messages.ListMessages(ctx, actorID, partnerID, page, pageSize)
}

// ClampPage applies the default page size and the upper bound.
func ClampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// LivePayload is an ephemeral message relayed without persistence.
type LivePayload struct {
	ReceiverID  int
	Body        string
	Kind        models.MessageKind
	MediaRef    *string
	IsEncrypted bool
}

// LiveSend relays a preview straight to the receiver's connection. Nothing is
// stored, so the receiver never sees it after reconnecting; block policy still applies.
func (g *Gateway) LiveSend(ctx context.Context, senderID int, data LivePayload) (bool, error) {
	if data.ReceiverID <= 0 {
		return false, apperr.Validation("receiver_id is required")
	}
	if data.Kind == "" {
		data.Kind = models.KindText
	}
	if !data.Kind.Valid() {
		return false, apperr.Validation("unsupported message type")
	}
	if err := g.ensureNotBlocked(ctx, senderID, data.ReceiverID); err != nil {
		return false, err
	}

	pushed := g.notifier.Notify(ctx, data.ReceiverID, models.LiveEvent{
		Type: models.EventNewMessage,
		Data: models.LiveMessage{
			Message: models.Message{
				SenderID:    senderID,
				ReceiverID:  data.ReceiverID,
				Body:        models.StringPtr(data.Body),
				Kind:        data.Kind,
				MediaRef:    data.MediaRef,
				IsEncrypted: data.IsEncrypted,
				CreatedAt:   g.now().UTC(),
			},
			Ephemeral: true,
		},
	})
	observability.IncMessageOp("live_send", nil)
	if !pushed {
		g.log.Debug("message.live.offline", "sender_id", senderID, "receiver_id", data.ReceiverID)
	}
	return pushed, nil
}

// SignalTyping records that actorID is typing to toID and pushes userTyping.
func (g *Gateway) SignalTyping(ctx context.Context, actorID, toID int) error {
	if toID <= 0 {
		return apperr.Validation("invalid user id")
	}
	if err := g.ensureNotBlocked(ctx, actorID, toID); err != nil {
		return err
	}
	g.typing.Signal(actorID, toID)
	g.notifier.Notify(ctx, toID, models.LiveEvent{
		Type: models.EventUserTyping,
		Data: models.UserTyping{SenderID: actorID},
	})
	return nil
}

// IsTyping reports whether fromID is typing to actorID.
func (g *Gateway) IsTyping(actorID, fromID int) bool {
	return g.typing.IsTyping(fromID, actorID)
}

// SetOnline and SetOffline update the directory's online flag and last-seen time.
func (g *Gateway) SetOnline(ctx context.Context, actorID int) error {
	return g.users.SetOnline(ctx, actorID, true)
}

func (g *Gateway) SetOffline(ctx context.Context, actorID int) error {
	return g.users.SetOnline(ctx, actorID, false)
}

// Block creates actorID's relation to targetID; it reports false when it already existed.
func (g *Gateway) Block(ctx context.Context, actorID, targetID int) (bool, error) {
	created, err := g.blocks.Block(ctx, actorID, targetID)
	if err != nil {
		return false, err
	}
	if created {
		g.audit.Emit(ctx, "INFO", fmt.Sprintf("user %d blocked user %d", actorID, targetID), actorID)
	}
	return created, nil
}

// Unblock removes actorID's own relation to targetID.
func (g *Gateway) Unblock(ctx context.Context, actorID, targetID int) error {
	if err := g.blocks.Unblock(ctx, actorID, targetID); err != nil {
		return err
	}
	g.audit.Emit(ctx, "INFO", fmt.Sprintf("user %d unblocked user %d", actorID, targetID), actorID)
	return nil
}

// ListBlocked returns the profiles of users blocked by actorID.
func (g *Gateway) ListBlocked(ctx context.Context, actorID int) ([]models.UserView, error) {
	ids, err := g.blocks.ListBlockedBy(ctx, actorID)
	if err != nil {
		return nil, err
	}
	users, err := g.users.ResolveMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.UserView, 0, len(ids))
	for _, id := range ids {
		views = append(views, userView(users, id))
	}
	return views, nil
}

// IsBlocked reports whether either user blocks the other.
func (g *Gateway) IsBlocked(ctx context.Context, actorID, otherID int) (bool, error) {
	return g.blocks.IsBlockedEitherDirection(ctx, actorID, otherID)
}

// PartnerProfile returns a user's directory entry and the block state with the actor.
func (g *Gateway) PartnerProfile(ctx context.Context, actorID, userID int) (models.Profile, error) {
	user, err := g.users.Resolve(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	blocked, err := g.blocks.IsBlockedEitherDirection(ctx, actorID, userID)
	if err != nil {
		return models.Profile{}, err
	}
	return models.Profile{UserView: user.View(), IsBlocked: blocked}, nil
}

func (g *Gateway) ensureNotBlocked(ctx context.Context, a, b int) error {
	blocked, err := g.blocks.IsBlockedEitherDirection(ctx, a, b)
	if err != nil {
		return errors.Wrap(err, "check block")
	}
	if blocked {
		return apperr.Blocked("cannot send messages to this user")
	}
	return nil
}

func userView(users map[int]models.User, id int) models.UserView {
	if u, ok := users[id]; ok {
		return u.View()
	}
	return models.UserView{ID: id, Name: models.DefaultDisplayName}
}
