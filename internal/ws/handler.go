package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-service/internal/apperr"
	"dm-service/internal/messaging"
	"dm-service/internal/middleware"
	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// Messenger is the part of the messaging service reachable from the live channel.
type Messenger interface {
	SendText(ctx context.Context, senderID, receiverID int, body string, replyTo *int64, encrypted bool) (models.Message, error)
	LiveSend(ctx context.Context, senderID int, data messaging.LivePayload) (bool, error)
	SignalTyping(ctx context.Context, actorID, toID int) error
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type registerData struct {
	UserID int `json:"user_id"`
}

type sendMessageData struct {
	ReceiverID  int     `json:"receiver_id"`
	Message     string  `json:"message"`
	MessageType string  `json:"message_type"`
	MediaURL    *string `json:"media_url"`
	ReplyToID   *int64  `json:"reply_to_id"`
	IsEncrypted bool    `json:"is_encrypted"`
	Ephemeral   bool    `json:"ephemeral"`
}

type typingData struct {
	To int `json:"to"`
}

// Handler serves GET /ws.
type Handler struct {
	hub      *Hub
	svc      Messenger
	auth     middleware.TokenValidator
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(hub *Hub, svc Messenger, auth middleware.TokenValidator, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		hub:  hub,
		svc:  svc,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handle authenticates the token, upgrades the connection and registers the
// client under the token's user id.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}
	userID, err := h.auth.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("ws.upgrade.fail", "user_id", userID, "err", err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: h.now(),
	}
	client := NewClient(info, sendQueueSize)
	h.hub.Register(client)

	observability.IncWSActive()
	h.hub.publishLifecycle(ctx, "ws_connect", info, "")
	h.log.Info("ws.connect", "user_id", userID, "conn_id", info.ConnID)

	sessionCtx := context.WithoutCancel(ctx)
	go h.writeLoop(sessionCtx, conn, client)
	go h.readLoop(sessionCtx, conn, client)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	var closeReason string
	defer func() {
		h.hub.Unregister(client)
		client.Close()
		observability.DecWSActive()
		h.hub.publishLifecycle(ctx, "ws_disconnect", client.Info, closeReason)
		h.log.Info("ws.disconnect", "user_id", client.Info.UserID, "conn_id", client.Info.ConnID, "reason", closeReason)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(h.now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(h.now().Add(pongWait))
	})

	limiter := NewRateLimiter(rateLimitEvents, rateLimitWindow)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.hub.publishLifecycle(ctx, "ws_error", client.Info, closeReason)
			}
			return
		}
		if !limiter.Allow(h.now()) {
			h.reply(client, models.LiveEvent{
				Type: models.EventError,
				Data: models.LiveError{Kind: "rate_limited", Error: "too many events"},
			})
			continue
		}
		h.dispatch(ctx, client, data)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-client.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), h.now().Add(writeWait))
			return
		case payload := <-client.send:
			_ = conn.SetWriteDeadline(h.now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Warn("ws.write.fail", "conn_id", client.Info.ConnID, "err", err)
				h.hub.publishLifecycle(ctx, "ws_error", client.Info, err.Error())
				client.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, h.now().Add(writeWait)); err != nil {
				client.Close()
				return
			}
		}
	}
}

// dispatch handles one inbound frame. Failures are answered with an error frame.
func (h *Handler) dispatch(ctx context.Context, client *Client, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.reply(client, errorEvent(apperr.Validation("malformed frame")))
		return
	}
	observability.IncWSEvent(frame.Type)

	var err error
	switch frame.Type {
	case models.EventRegister:
		err = h.handleRegister(client, frame.Data)
	case models.EventSendMessage:
		err = h.handleSendMessage(ctx, client, frame.Data)
	case models.EventTyping:
		err = h.handleTyping(ctx, client, frame.Data)
	default:
		err = apperr.Validation("unknown event type")
	}
	if err != nil {
		h.log.Debug("ws.event.fail", "type", frame.Type, "user_id", client.Info.UserID, "err", err)
		h.reply(client, errorEvent(err))
	}
}

func (h *Handler) handleRegister(client *Client, raw json.RawMessage) error {
	var in registerData
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.Validation("invalid register payload")
	}
	if in.UserID != client.Info.UserID {
		return apperr.Forbidden("user_id does not match the authenticated user")
	}
	if !h.hub.Register(client) {
		return apperr.InvalidState("connection is closing")
	}
	h.reply(client, models.LiveEvent{
		Type: models.EventRegistered,
		Data: registerData{UserID: client.Info.UserID},
	})
	return nil
}

func (h *Handler) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) error {
	var in sendMessageData
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.Validation("invalid sendMessage payload")
	}

	if in.Ephemeral {
		kind := models.KindText
		if in.MessageType != "" {
			parsed, err := models.ParseMessageKind(in.MessageType)
			if err != nil {
				return err
			}
			kind = parsed
		}
		_, err := h.svc.LiveSend(ctx, client.Info.UserID, messaging.LivePayload{
			ReceiverID:  in.ReceiverID,
			Body:        in.Message,
			Kind:        kind,
			MediaRef:    in.MediaURL,
			IsEncrypted: in.IsEncrypted,
		})
		return err
	}

	if in.MessageType != "" && in.MessageType != string(models.KindText) {
		return apperr.Validation("media messages must be uploaded through /messages/media")
	}
	_, err := h.svc.SendText(ctx, client.Info.UserID, in.ReceiverID, in.Message, in.ReplyToID, in.IsEncrypted)
	return err
}

func (h *Handler) handleTyping(ctx context.Context, client *Client, raw json.RawMessage) error {
	var in typingData
	if err := json.Unmarshal(raw, &in); err != nil {
		return apperr.Validation("invalid typing payload")
	}
	return h.svc.SignalTyping(ctx, client.Info.UserID, in.To)
}

func (h *Handler) reply(client *Client, event models.LiveEvent) {
	payload, err := encodeEvent(event)
	if err != nil {
		return
	}
	if !client.Enqueue(payload) {
		observability.IncLivePush(event.Type, "dropped")
	}
}
