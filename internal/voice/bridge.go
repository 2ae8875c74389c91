package voice

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/aide/internal/observability"
	"github.com/ent0n29/aide/internal/protocol"
)

// Bridge is a websocket hub acting as both Source and Sink. Every connected
// client can speak; every reply is broadcast to all clients.
type Bridge struct {
	logger   *zap.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader

	inbound   chan string
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	clients    map[string]chan any
	sessionID  string
	speechRate int
	volume     float64
}

func NewBridge(sessionID string, allowAnyOrigin bool, logger *zap.Logger, metrics *observability.Metrics) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		logger:     logger,
		metrics:    metrics,
		inbound:    make(chan string, 64),
		done:       make(chan struct{}),
		clients:    make(map[string]chan any),
		sessionID:  sessionID,
		speechRate: 180,
		volume:     0.9,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if allowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// SetSpeechHints sets the base rate and volume attached to outgoing replies.
func (b *Bridge) SetSpeechHints(rate int, volume float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.speechRate = rate
	b.volume = volume
}

func (b *Bridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Bridge) Acquire(ctx context.Context, timeout time.Duration) (string, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case <-b.done:
		return "", false, ErrClosed
	case <-timer.C:
		return "", false, nil
	case text := <-b.inbound:
		return text, text != "", nil
	}
}

func (b *Bridge) Emit(_ context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return ErrNoListeners
	}
	msg := protocol.AssistantText{
		Type:       protocol.TypeAssistantText,
		SessionID:  b.sessionID,
		Text:       text,
		SpeechRate: SpeechRate(b.speechRate, text),
		Volume:     b.volume,
		TSMs:       time.Now().UnixMilli(),
	}
	delivered := 0
	for id, out := range b.clients {
		select {
		case out <- msg:
			delivered++
		default:
			b.logger.Warn("bridge client queue full, dropping reply", zap.String("client_id", id))
		}
	}
	if delivered == 0 {
		return ErrDropped
	}
	return nil
}

// Close ends the source and disconnects every client.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// ServeHTTP upgrades the request and runs the client until it disconnects
// or the bridge closes.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	outbound := make(chan any, 64)
	b.register(clientID, outbound)
	defer b.unregister(clientID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.done:
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					b.logger.Debug("bridge write failed", zap.String("client_id", clientID), zap.Error(err))
					cancel()
					_ = conn.Close()
					return
				}
			}
		}
	}()

	b.enqueue(outbound, protocol.SystemEvent{
		Type:      protocol.TypeSystemEvent,
		SessionID: b.sessionID,
		Code:      "connected",
		Detail:    clientID,
	})

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			b.enqueue(outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: b.sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			})
			continue
		}
		switch m := parsed.(type) {
		case protocol.UserText:
			select {
			case b.inbound <- m.Text:
			case <-ctx.Done():
				break readLoop
			case <-b.done:
				break readLoop
			}
		case protocol.ClientControl:
			if m.Action == protocol.ActionStop {
				break readLoop
			}
			b.enqueue(outbound, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: b.sessionID,
				Code:      "pong",
			})
		}
	}

	cancel()
	<-writerDone
}

func (b *Bridge) enqueue(out chan any, msg any) {
	select {
	case out <- msg:
	default:
		// Keep websocket writes single-threaded; drop if the queue is saturated.
	}
}

func (b *Bridge) register(id string, out chan any) {
	b.mu.Lock()
	b.clients[id] = out
	n := len(b.clients)
	b.mu.Unlock()
	b.metrics.SetBridgeClients(n)
	b.logger.Info("bridge client connected", zap.String("client_id", id))
}

func (b *Bridge) unregister(id string) {
	b.mu.Lock()
	delete(b.clients, id)
	n := len(b.clients)
	b.mu.Unlock()
	b.metrics.SetBridgeClients(n)
	b.logger.Info("bridge client disconnected", zap.String("client_id", id))
}
