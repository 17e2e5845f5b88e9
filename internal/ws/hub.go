package ws

import (
	"context"
	"log/slog"
	"time"

	"dm-service/internal/messaging"
	"dm-service/internal/models"
	"dm-service/internal/observability"
	"dm-service/internal/presence"
)

const wsRoutingKey = "ws_events.direct"

// Hub maps each online user to its live websocket client and pushes events to it.
type Hub struct {
	clients *presence.Registry[*Client]
	log     *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{clients: presence.NewRegistry[*Client](), log: log}
}

// Register makes c the live handle of its user and closes the client it
// replaces. A closed client is refused so a dead session cannot take the
// user back from a newer one.
func (h *Hub) Register(c *Client) bool {
	if c.Closed() {
		return false
	}
	prev, replaced := h.clients.Register(c.Info.UserID, c)
	if replaced {
		prev.Close()
		h.log.Info("ws.replace", "user_id", c.Info.UserID, "conn_id", prev.Info.ConnID, "by_conn_id", c.Info.ConnID)
	}
	if c.Closed() {
		h.clients.UnregisterByHandle(c)
		observability.SetOnlineUsers(h.clients.Len())
		return false
	}
	observability.SetOnlineUsers(h.clients.Len())
	return true
}

// Unregister removes c if it is still the user's current handle.
func (h *Hub) Unregister(c *Client) bool {
	_, ok := h.clients.UnregisterByHandle(c)
	observability.SetOnlineUsers(h.clients.Len())
	return ok
}

func (h *Hub) Online(userID int) bool {
	_, ok := h.clients.Lookup(userID)
	return ok
}

// Notify pushes event to userID's client. It never blocks: an absent user or
// a full send queue reports false.
func (h *Hub) Notify(ctx context.Context, userID int, event models.LiveEvent) bool {
	client, ok := h.clients.Lookup(userID)
	if !ok {
		observability.IncLivePush(event.Type, "offline")
		return false
	}

	payload, err := encodeEvent(event)
	if err != nil {
		h.log.Error("ws.encode.fail", "event", event.Type, "err", err)
		observability.IncLivePush(event.Type, "encode_error")
		return false
	}

	if !client.Enqueue(payload) {
		h.log.Warn("ws.push.dropped", "event", event.Type, "user_id", userID, "conn_id", client.Info.ConnID)
		observability.IncLivePush(event.Type, "dropped")
		h.publishLifecycle(ctx, "ws_error", client.Info, "send queue full")
		return false
	}
	observability.IncLivePush(event.Type, "delivered")
	return true
}

func (h *Hub) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	duration := int64(0)
	if event != "ws_connect" {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	payload := map[string]any{
		"ws": map[string]any{
			"kind":        "direct",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Headers:   observability.BuildHeaders(info.RequestID, info.TraceID),
		Payload:   payload,
	})
	observability.IncWSEvent(event)
}

var _ messaging.Notifier = (*Hub)(nil)
