package messaging

import (
	"context"

	"dm-service/internal/models"
)

// Service is the messaging surface consumed by the REST handlers and the
// live channel. *Gateway implements it.
type Service interface {
	SendText(ctx context.Context, senderID, receiverID int, body string, replyTo *int64, encrypted bool) (models.Message, error)
	SendMedia(ctx context.Context, senderID, receiverID int, kind models.MessageKind, mediaRef string, body *string, replyTo *int64) (models.Message, error)
	EditText(ctx context.Context, actorID int, messageID int64, body string) (models.Message, error)
	DeleteMessage(ctx context.Context, actorID int, messageID int64) error
	AcknowledgeDelivered(ctx context.Context, actorID int, messageID int64) error
	AcknowledgeRead(ctx context.Context, actorID int, messageID int64) error
	ListMessages(ctx context.Context, actorID, partnerID, page, pageSize int) ([]models.Message, int, error)
	GetConversations(ctx context.Context, userID int) ([]models.Conversation, error)
	LiveSend(ctx context.Context, senderID int, data LivePayload) (bool, error)
	SignalTyping(ctx context.Context, actorID, toID int) error
	IsTyping(actorID, fromID int) bool
	SetOnline(ctx context.Context, actorID int) error
	SetOffline(ctx context.Context, actorID int) error
	Block(ctx context.Context, actorID, targetID int) (bool, error)
	Unblock(ctx context.Context, actorID, targetID int) error
	ListBlocked(ctx context.Context, actorID int) ([]models.UserView, error)
	IsBlocked(ctx context.Context, actorID, otherID int) (bool, error)
	PartnerProfile(ctx context.Context, actorID, userID int) (models.Profile, error)
}

var _ Service = (*Gateway)(nil)
