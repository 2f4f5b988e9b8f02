package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"docchat/types"
)

// connEmitter serializes writes to one websocket connection.
type connEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *connEmitter) Emit(event string, data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(types.OutboundEvent{Event: event, Data: data})
}

// RequireUpgrade rejects plain HTTP requests on the websocket route.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWS reads frames until the client goes away. Every frame is handled in its own goroutine so a
// long translation does not block chat; all of them are cancelled when the connection closes.
func (h *EventHandler) HandleWS() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
			h.logger.Info("client disconnected", "remote", conn.RemoteAddr().String())
		}()

		h.logger.Info("client connected", "remote", conn.RemoteAddr().String())
		out := &connEmitter{conn: conn}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Warn("read failed", "error", err)
				}
				return
			}

			var env types.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				if err := emitError(out, msgInvalidRequest); err != nil {
					return
				}
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := h.Dispatch(ctx, env, out); err != nil {
					h.logger.Debug("event not delivered", "event", env.Event, "error", err)
				}
			}()
		}
	})
}
