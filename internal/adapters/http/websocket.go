package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/membermap/membermap/internal/adapters/nats"
	"github.com/membermap/membermap/internal/core/domain"
	"github.com/membermap/membermap/internal/pkg/metrics"
)

// wsMessage is sent by the browser.
type wsMessage struct {
	Action string `json:"action"` // "resize" | "center"
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// wsEvent is pushed to the browser.
type wsEvent struct {
	Type     string           `json:"type"` // "reload" | "members_updated" | "viewport" | "error"
	ClientID string           `json:"client_id,omitempty"`
	Count    int              `json:"count,omitempty"`
	Viewport *domain.Viewport `json:"viewport,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// WebSocketHandler relays map events to one browser. A "reload" event means
// the client's flags changed and the page should rebuild its map, the way a
// full page reload would. The browser may report its canvas size and ask
// for a re-center over the same socket.
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		client, _ := c.Locals("client_id").(string)
		if client == "" {
			client = defaultClientID
		}
		log := slog.Default().With("client_id", client, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		var subs []*nats.Subscription
		if deps.NATS != nil {
			sub, err := deps.NATS.Subscribe(natsadapter.SubjectReloadPrefix+client, func(*nats.Msg) {
				_ = writeJSON(wsEvent{Type: "reload", ClientID: client})
			})
			if err != nil {
				log.Error("ws reload subscribe failed", "error", err)
				return
			}
			subs = append(subs, sub)

			sub, err = deps.NATS.Subscribe(natsadapter.SubjectMembersUpdated, func(msg *nats.Msg) {
				var ev struct {
					Count int `json:"count"`
				}
				_ = json.Unmarshal(msg.Data, &ev)
				_ = writeJSON(wsEvent{Type: "members_updated", Count: ev.Count})
			})
			if err != nil {
				log.Error("ws members subscribe failed", "error", err)
				return
			}
			subs = append(subs, sub)
		}
		defer func() {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
		}()

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(wsEvent{Type: "error", Message: "invalid JSON"})
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			switch m.Action {
			case "resize":
				if err := deps.Maps.Resize(ctx, client, domain.MapSize{Width: m.Width, Height: m.Height}); err != nil {
					_ = writeJSON(wsEvent{Type: "error", Message: err.Error()})
				}
			case "center":
				vp, _, err := deps.Maps.Center(ctx, client)
				if err != nil {
					_ = writeJSON(wsEvent{Type: "error", Message: err.Error()})
				} else {
					_ = writeJSON(wsEvent{Type: "viewport", Viewport: &vp})
				}
			default:
				_ = writeJSON(wsEvent{Type: "error", Message: "unknown action: " + m.Action})
			}
			cancel()
		}

		log.Info("ws client disconnected")
	}
}
