package models

import (
	"strings"
	"time"

	"dm-service/internal/apperr"
)

// DeletedBody replaces the body of a soft-deleted message.
const DeletedBody = "This message was deleted"

// MessageKind is the closed set of direct message variants.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindVoice MessageKind = "voice"
)

// ParseMessageKind validates a wire value.
func ParseMessageKind(raw string) (MessageKind, error) {
	k := MessageKind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", apperr.Validation("unsupported message type: " + raw)
	}
	return k, nil
}

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindVoice:
		return true
	}
	return false
}

// RequiresMedia reports whether the variant carries an uploaded file.
func (k MessageKind) RequiresMedia() bool {
	return k == KindImage || k == KindVideo || k == KindVoice
}

// Editable reports whether the sender may replace the body after sending.
func (k MessageKind) Editable() bool {
	return k == KindText
}

// Message is a persisted direct message between two users.
type Message struct {
	ID          int64         `db:"id" json:"id"`
	SenderID    int           `db:"sender_id" json:"sender_id"`
	ReceiverID  int           `db:"receiver_id" json:"receiver_id"`
	Body        *string       `db:"body" json:"message"`
	Kind        MessageKind   `db:"kind" json:"message_type"`
	MediaRef    *string       `db:"media_ref" json:"media_url,omitempty"`
	ReplyToID   *int64        `db:"reply_to_id" json:"reply_to_id,omitempty"`
	IsDelivered bool          `db:"is_delivered" json:"is_delivered"`
	IsRead      bool          `db:"is_read" json:"is_read"`
	IsEncrypted bool          `db:"is_encrypted" json:"is_encrypted"`
	IsEdited    bool          `db:"is_edited" json:"is_edited"`
	IsDeleted   bool          `db:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	ReplyTo     *ReplySummary `db:"-" json:"reply_to,omitempty"`
}

// ReplySummary is the short form of a replied-to message.
type ReplySummary struct {
	ID       int64       `db:"id" json:"id"`
	Body     *string     `db:"body" json:"message"`
	SenderID int         `db:"sender_id" json:"sender_id"`
	Kind     MessageKind `db:"kind" json:"message_type"`
}

// Summary builds the reply preview of m.
func (m Message) Summary() *ReplySummary {
	return &ReplySummary{ID: m.ID, Body: m.Body, SenderID: m.SenderID, Kind: m.Kind}
}

// Partner returns the other participant from userID's point of view.
func (m Message) Partner(userID int) int {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Preview is the one-line text shown in the conversation list.
func (m Message) Preview() string {
	if m.Body != nil && *m.Body != "" {
		return *m.Body
	}
	if m.Kind != KindText {
		return "[" + string(m.Kind) + "]"
	}
	return ""
}

// NewMessage is the input to the conversation store's append operation.
type NewMessage struct {
	SenderID    int
	ReceiverID  int
	Kind        MessageKind
	Body        *string
	MediaRef    *string
	ReplyToID   *int64
	IsEncrypted bool
}

// Validate enforces the per-variant field rules.
func (n NewMessage) Validate() error {
	if n.SenderID <= 0 || n.ReceiverID <= 0 {
		return apperr.Validation("sender and receiver are required")
	}
	if !n.Kind.Valid() {
		return apperr.Validation("unsupported message type")
	}
	hasMedia := n.MediaRef != nil && *n.MediaRef != ""
	if n.Kind.RequiresMedia() {
		if !hasMedia {
			return apperr.Validation("file is required for " + string(n.Kind) + " messages")
		}
		return nil
	}
	if hasMedia {
		return apperr.Validation("text messages cannot carry media")
	}
	if n.Body == nil || strings.TrimSpace(*n.Body) == "" {
		return apperr.Validation("message is required")
	}
	return nil
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
