package models

import "time"

// Conversation is one row of the derived conversation list.
type Conversation struct {
	User            UserView     `json:"user"`
	Message         string       `json:"message"`
	MessageType     *MessageKind `json:"message_type,omitempty"`
	CreatedAt       *time.Time   `json:"created_at,omitempty"`
	UnreadCount     int          `json:"unread_count"`
	LastMessageID   *int64       `json:"last_message_id,omitempty"`
	lastMessageTime time.Time
}

// SortKey is the last message time, or the zero time when there is none.
func (c Conversation) SortKey() time.Time {
	return c.lastMessageTime
}

// NewConversation assembles a row from the partner and the latest message, if any.
func NewConversation(partner UserView, last *Message, unread int) Conversation {
	conv := Conversation{User: partner, UnreadCount: unread}
	if last != nil {
		kind := last.Kind
		created := last.CreatedAt
		id := last.ID
		conv.Message = last.Preview()
		conv.MessageType = &kind
		conv.CreatedAt = &created
		conv.LastMessageID = &id
		conv.lastMessageTime = created
	}
	return conv
}
