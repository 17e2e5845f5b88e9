package mocks

import (
	"context"
	"mime/multipart"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/media"
	"dm-service/internal/messaging"
	"dm-service/internal/models"
)

type MessagingMock struct {
	mock.Mock
}

func (m *MessagingMock) SendText(ctx context.Context, senderID, receiverID int, body string, replyTo *int64, encrypted bool) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, body, replyTo, encrypted)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingMock) SendMedia(ctx context.Context, senderID, receiverID int, kind models.MessageKind, mediaRef string, body *string, replyTo *int64) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, kind, mediaRef, body, replyTo)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingMock) EditText(ctx context.Context, actorID int, messageID int64, body string) (models.Message, error) {
	args := m.Called(ctx, actorID, messageID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagingMock) DeleteMessage(ctx context.Context, actorID int, messageID int64) error {
	args := m.Called(ctx, actorID, messageID)
	return args.Error(0)
}

func (m *MessagingMock) AcknowledgeDelivered(ctx context.Context, actorID int, messageID int64) error {
	args := m.Called(ctx, actorID, messageID)
	return args.Error(0)
}

func (m *MessagingMock) AcknowledgeRead(ctx context.Context, actorID int, messageID int64) error {
	args := m.Called(ctx, actorID, messageID)
	return args.Error(0)
}

func (m *MessagingMock) ListMessages(ctx context.Context, actorID, partnerID, page, pageSize int) ([]models.Message, int, error) {
	args := m.Called(ctx, actorID, partnerID, page, pageSize)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Int(1), args.Error(2)
}

func (m *MessagingMock) GetConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

func (m *MessagingMock) LiveSend(ctx context.Context, senderID int, data messaging.LivePayload) (bool, error) {
	args := m.Called(ctx, senderID, data)
	return args.Bool(0), args.Error(1)
}

func (m *MessagingMock) SignalTyping(ctx context.Context, actorID, toID int) error {
	args := m.Called(ctx, actorID, toID)
	return args.Error(0)
}

func (m *MessagingMock) IsTyping(actorID, fromID int) bool {
	args := m.Called(actorID, fromID)
	return args.Bool(0)
}

func (m *MessagingMock) SetOnline(ctx context.Context, actorID int) error {
	args := m.Called(ctx, actorID)
	return args.Error(0)
}

func (m *MessagingMock) SetOffline(ctx context.Context, actorID int) error {
	args := m.Called(ctx, actorID)
	return args.Error(0)
}

func (m *MessagingMock) Block(ctx context.Context, actorID, targetID int) (bool, error) {
	args := m.Called(ctx, actorID, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *MessagingMock) Unblock(ctx context.Context, actorID, targetID int) error {
	args := m.Called(ctx, actorID, targetID)
	return args.Error(0)
}

func (m *MessagingMock) ListBlocked(ctx context.Context, actorID int) ([]models.UserView, error) {
	args := m.Called(ctx, actorID)
	var users []models.UserView
	if val := args.Get(0); val != nil {
		users = val.([]models.UserView)
	}
	return users, args.Error(1)
}

func (m *MessagingMock) IsBlocked(ctx context.Context, actorID, otherID int) (bool, error) {
	args := m.Called(ctx, actorID, otherID)
	return args.Bool(0), args.Error(1)
}

func (m *MessagingMock) PartnerProfile(ctx context.Context, actorID, userID int) (models.Profile, error) {
	args := m.Called(ctx, actorID, userID)
	var profile models.Profile
	if val := args.Get(0); val != nil {
		profile = val.(models.Profile)
	}
	return profile, args.Error(1)
}

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) SaveMultipart(ctx context.Context, fh *multipart.FileHeader) (media.Stored, error) {
	args := m.Called(ctx, fh)
	var stored media.Stored
	if val := args.Get(0); val != nil {
		stored = val.(media.Stored)
	}
	return stored, args.Error(1)
}

func (m *MediaStoreMock) Remove(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

var _ messaging.Service = (*MessagingMock)(nil)
