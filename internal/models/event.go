package models

// Live-channel event names (server -> client).
const (
	EventNewMessage       = "newMessage"
	EventMessageEdited    = "messageEdited"
	EventMessageDeleted   = "messageDeleted"
	EventMessageDelivered = "messageDelivered"
	EventMessageRead      = "messageRead"
	EventUserTyping       = "userTyping"
	EventRegistered       = "registered"
	EventError            = "error"
)

// Live-channel event names (client -> server).
const (
	EventRegister    = "register"
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
)

// LiveEvent is the frame pushed to a connected client.
type LiveEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// LiveMessage is the newMessage payload: the message plus whether it was persisted.
type LiveMessage struct {
	Message
	Ephemeral bool `json:"ephemeral,omitempty"`
}

type MessageRef struct {
	MessageID int64 `json:"message_id"`
}

type MessageEdited struct {
	MessageID int64  `json:"message_id"`
	Message   string `json:"message"`
	IsEdited  bool   `json:"is_edited"`
}

type UserTyping struct {
	SenderID int `json:"sender_id"`
}

type LiveError struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
