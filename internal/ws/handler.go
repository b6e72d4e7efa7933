package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
)

// subscribePayload carries the token presented on a subscribe request.
type subscribePayload struct {
	Token string `json:"token"`
}

// errorPayload is the body of a TypeError message.
type errorPayload struct {
	Message string `json:"message"`
}

// HandleWS upgrades the request to a WebSocket connection and serves the
// subscription protocol until the client disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: sock, cancel: cancel}

	h.logger.Debug("websocket connected", "remote", r.RemoteAddr)

	// The request context is canceled when this handler returns, so the
	// read loop runs synchronously for the connection's lifetime.
	h.serveConn(ctx, c)
}

// serveConn runs the read loop for one connection, handling subscribe and
// unsubscribe requests until the connection drops.
func (h *Hub) serveConn(ctx context.Context, c *conn) {
	defer func() {
		h.remove(c)
		h.logger.Debug("websocket disconnected")
	}()

	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(ctx, c, "malformed message")
			continue
		}

		switch msg.Type {
		case TypeSubscribe:
			h.handleSubscribe(ctx, c, msg.Payload)

		case TypeUnsubscribe:
			h.leave(c)
			_ = c.write(ctx, Message{Type: TypeUnsubscribed})

		default:
			h.sendError(ctx, c, "unknown message type")
		}
	}
}

// handleSubscribe validates the presented token and joins the connection
// to the owner's room. The owner identity comes from the token alone, so a
// client can only ever join its own room.
func (h *Hub) handleSubscribe(ctx context.Context, c *conn, payload json.RawMessage) {
	var req subscribePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			h.sendError(ctx, c, "malformed subscribe payload")
			return
		}
	}

	claims, err := h.jwtService.ValidateToken(ctx, req.Token)
	if err != nil {
		h.logger.Debug("subscribe rejected", "error", err)
		h.sendError(ctx, c, "unauthorized")
		return
	}

	h.join(c, claims.OwnerID)

	h.logger.Debug("connection subscribed", "owner_id", claims.OwnerID)
	_ = c.write(ctx, Message{Type: TypeSubscribed})
}

func (h *Hub) sendError(ctx context.Context, c *conn, message string) {
	payload, err := json.Marshal(errorPayload{Message: message})
	if err != nil {
		return
	}
	_ = c.write(ctx, Message{Type: TypeError, Payload: payload})
}
