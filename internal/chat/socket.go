package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// EventHandler processes one inbound interaction event. Handlers are invoked
// on their own goroutine so a slow handler never stalls the read loop.
type EventHandler func(ctx context.Context, ev InteractionEvent)

// socketMessage is the frame format of the platform event socket
type socketMessage struct {
	Op    string            `json:"op"` // "identify", "heartbeat", "event"
	Token string            `json:"token,omitempty"`
	Event *InteractionEvent `json:"event,omitempty"`
}

// Socket consumes interaction events from the platform's websocket feed
// and forwards them to a handler. It reconnects with backoff until the
// context is cancelled.
type Socket struct {
	url       string
	token     string
	handler   EventHandler
	heartbeat time.Duration
	backoff   time.Duration
}

// NewSocket creates a new event socket consumer
func NewSocket(url, token string, handler EventHandler) *Socket {
	return &Socket{
		url:       url,
		token:     token,
		handler:   handler,
		heartbeat: 30 * time.Second,
		backoff:   5 * time.Second,
	}
}

// Start begins consuming events in a goroutine
func (s *Socket) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Socket) run(ctx context.Context) {
	slog.Info("event socket starting", "url", s.url)

	for {
		if err := s.connectAndRead(ctx); err != nil {
			slog.Error("event socket disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("event socket stopped")
			return
		case <-time.After(s.backoff):
		}
	}
}

// connectAndRead holds one connection: identify, heartbeat, then read
// events until the connection drops or the context is cancelled.
func (s *Socket) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteJSON(socketMessage{Op: "identify", Token: s.token}); err != nil {
		return err
	}

	slog.Info("event socket connected")

	connCtx, connCancel := context.WithCancel(ctx)
	defer connCancel()

	// Heartbeat writer
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteJSON(socketMessage{Op: "heartbeat"}); err != nil {
					slog.Debug("heartbeat write failed", "error", err)
					conn.Close()
					return
				}
			}
		}
	}()

	// Unblock the read loop on shutdown
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()

	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return err
		}

		if msg.Op != "event" || msg.Event == nil {
			continue
		}

		slog.Debug("interaction event received",
			"id", msg.Event.ID,
			"kind", msg.Event.Kind,
			"actor", msg.Event.ActorID,
		)

		// Each event is an independent unit of work
		go s.handler(ctx, *msg.Event)
	}
}
