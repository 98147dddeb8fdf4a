package routes

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"tdcchain/core"
	"tdcchain/core/events"
	"tdcchain/core/types"
	"tdcchain/observability"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsBufferCapacity = 128
)

// eventStream pushes committed ledger events to websocket subscribers.
// Optional ledger and type query parameters narrow the stream.
type eventStream struct {
	runtime *core.Runtime
	feed    *events.Feed
	logger  *slog.Logger
}

type streamFilter struct {
	ledger    string
	eventType string
}

func (f streamFilter) match(evt *types.Event) bool {
	if f.ledger != "" && evt.Attr("ledger") != f.ledger {
		return false
	}
	if f.eventType != "" && evt.Type != f.eventType {
		return false
	}
	return true
}

func (s *eventStream) serve(w http.ResponseWriter, r *http.Request) {
	filter := streamFilter{eventType: strings.TrimSpace(r.URL.Query().Get("type"))}
	if ref := strings.TrimSpace(r.URL.Query().Get("ledger")); ref != "" {
		err := s.runtime.View(r.Context(), func(sess *core.Session) error {
			d, err := sess.Resolve(ref)
			if err != nil {
				return err
			}
			filter.ledger = d.Principal()
			return nil
		})
		if err != nil {
			writeJSONError(w, statusFor(err), err)
			return
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	observability.Gateway().StreamOpened()
	defer observability.Gateway().StreamClosed()

	// Subscribers never send; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	if err := s.stream(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			s.logger.Warn("event stream failed", "error", err)
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *eventStream) stream(ctx context.Context, conn *websocket.Conn, filter streamFilter) error {
	updates, cancel := s.feed.Subscribe(wsBufferCapacity)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if !filter.match(evt) {
				continue
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
