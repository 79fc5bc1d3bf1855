package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mfduar8766/browserautomation/internal/domain/logrouter"
	"github.com/mfduar8766/browserautomation/internal/domain/navigation"
	"github.com/mfduar8766/browserautomation/internal/shared/id"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	maxReadSize  = 4096
)

// Message types written to observers.
const (
	TypeSystem     = "system"
	TypeLog        = "log"
	TypeNavigation = "navigation"
	TypePong       = "pong"
	TypeError      = "error"
)

// ErrHubClosed is returned by Handle after Close.
var ErrHubClosed = errors.New("ws: hub closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Observers are read-only and the server binds to loopback by default.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one frame sent to observers.
type Message struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	ObserverID string            `json:"observer_id,omitempty"`
	Level      string            `json:"level,omitempty"`
	Message    string            `json:"message,omitempty"`
	From       *navigation.State `json:"from,omitempty"`
	To         *navigation.State `json:"to,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

type inbound struct {
	Type string `json:"type"`
}

// Metrics is the subset of monitoring the hub reports to.
type Metrics interface {
	IncWSConnections()
	DecWSConnections()
	RecordWSMessage(direction, msgType string)
}

type client struct {
	id   id.ObserverID
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out log and navigation observations to every connected client.
// A client whose buffer is full is disconnected rather than slowing the run.
type Hub struct {
	logger  *zap.Logger
	metrics Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger.Named("ws")
		}
	}
}

// WithMetrics records connections and messages.
func WithMetrics(m Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:  zap.NewNop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle upgrades the request and serves the client until it disconnects.
func (h *Hub) Handle(c *gin.Context) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": ErrHubClosed.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxReadSize)

	cl := &client{
		id:   id.NewObserverID(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !h.register(cl) {
		conn.Close()
		return
	}
	go h.writePump(cl)

	h.enqueue(cl, Message{Type: TypeSystem, ObserverID: cl.id.String(), Message: "connected"})
	h.readPump(cl)
}

// Broadcast sends msg to every client.
func (h *Hub) Broadcast(msg Message) {
	data, err := h.encode(&msg)
	if err != nil {
		h.logger.Error("Failed to encode observation", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
			h.record("out", msg.Type)
		default:
			h.logger.Warn("Dropping slow observer", zap.String("observer_id", cl.id.String()))
			h.dropLocked(cl)
		}
	}
}

// LogObserver returns a logrouter observer that broadcasts each routed event.
func (h *Hub) LogObserver() logrouter.Observer {
	return func(ev logrouter.Event, level logrouter.Level) {
		name := level.String()
		if level == logrouter.LevelUnknown {
			name = ev.Level
		}
		h.Broadcast(Message{Type: TypeLog, Level: name, Message: ev.Message})
	}
}

// NavigationObserver returns a navigation observer that broadcasts each transition.
func (h *Hub) NavigationObserver() navigation.Observer {
	return func(from, to navigation.State) {
		h.Broadcast(Message{Type: TypeNavigation, From: &from, To: &to})
	}
}

// Clients returns the number of connected observers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their writers to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for cl := range h.clients {
		h.dropLocked(cl)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Hub) register(cl *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	h.wg.Add(1)
	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	h.logger.Debug("Observer connected", zap.String("observer_id", cl.id.String()))
	return true
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(cl)
}

func (h *Hub) dropLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}
	h.logger.Debug("Observer disconnected", zap.String("observer_id", cl.id.String()))
}

func (h *Hub) enqueue(cl *client, msg Message) {
	data, err := h.encode(&msg)
	if err != nil {
		h.logger.Error("Failed to encode message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; !ok {
		return
	}
	select {
	case cl.send <- data:
		h.record("out", msg.Type)
	default:
		h.dropLocked(cl)
	}
}

func (h *Hub) readPump(cl *client) {
	defer h.unregister(cl)

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		var in inbound
		if err := sonic.Unmarshal(data, &in); err != nil {
			h.record("in", "invalid")
			h.enqueue(cl, Message{Type: TypeError, Message: "invalid message"})
			continue
		}
		switch in.Type {
		case "ping":
			h.record("in", in.Type)
			h.enqueue(cl, Message{Type: TypePong})
		default:
			h.record("in", "unknown")
			h.enqueue(cl, Message{Type: TypeError, Message: "unknown message type"})
		}
	}
}

func (h *Hub) writePump(cl *client) {
	defer h.wg.Done()
	defer cl.conn.Close()

	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("WebSocket write error", zap.Error(err))
			h.unregister(cl)
			// Drain until unregister closes the channel.
			for range cl.send {
			}
			return
		}
	}
	cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
}

func (h *Hub) encode(msg *Message) ([]byte, error) {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().Unix()
	return sonic.Marshal(msg)
}

func (h *Hub) record(direction, msgType string) {
	if h.metrics != nil {
		h.metrics.RecordWSMessage(direction, msgType)
	}
}
