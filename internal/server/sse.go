package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"

	"github.com/swissarmyhammer/agentcore/internal/logging"
	"github.com/swissarmyhammer/agentcore/pkg/acp"
)

// sseHeartbeatInterval matches the teacher's SSE heartbeat cadence.
const sseHeartbeatInterval = 30 * time.Second

// notificationBus fans session/update notifications out to SSE
// subscribers over one watermill gochannel topic per session id
// (SPEC_FULL.md §2a: "one bus per orchestrator, subscribed by the
// transport layer"), adapted from the teacher's internal/event.Bus,
// which wraps the same gochannel package for its own pub/sub.
type notificationBus struct {
	pubsub *gochannel.GoChannel
}

func newNotificationBus() *notificationBus {
	return &notificationBus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 100},
			watermill.NopLogger{},
		),
	}
}

func (b *notificationBus) publish(update acp.SessionUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(update.SessionID, message.NewMessage(watermill.NewUUID(), payload))
}

func (b *notificationBus) subscribe(ctx context.Context, sessionID string) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, sessionID)
}

func (b *notificationBus) Close() error { return b.pubsub.Close() }

// sessionEvents streams one session's session/update notifications as
// SSE, adapted from the teacher's sessionEvents handler.
func (s *Server) sessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	msgs, err := s.bus.subscribe(ctx, sessionID)
	if err != nil {
		logging.Warn().Err(err).Str("sessionId", sessionID).Msg("subscribing to session/update SSE stream")
		return
	}

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case m, open := <-msgs:
			if !open {
				return
			}
			if _, err := w.Write([]byte("event: session/update\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(m.Payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
			m.Ack()
		case <-ticker.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
