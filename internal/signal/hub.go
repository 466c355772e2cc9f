// Package signal реализует signaling-сервер: участники подписываются на топик
// комнаты и обмениваются через него объявлениями о себе. Данные документа через
// сервер не идут.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iudanet/mathroom/pkg/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Hub держит websocket-клиентов и их подписки на топики.
type Hub struct {
	logger   *slog.Logger
	bus      Bus
	metrics  *Metrics
	topics   map[string]map[*client]struct{}
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	closed   bool
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
	addr   string
}

// NewHub создает hub и подписывает его на шину.
func NewHub(ctx context.Context, bus Bus, metrics *Metrics, logger *slog.Logger) (*Hub, error) {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := &Hub{
		logger:  logger,
		bus:     bus,
		metrics: metrics,
		topics:  make(map[string]map[*client]struct{}),
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	if err := bus.Subscribe(ctx, h.deliver); err != nil {
		return nil, fmt.Errorf("failed to subscribe hub to bus: %w", err)
	}
	return h, nil
}

// ServeWS обрабатывает GET /ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade signaling connection", "error", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		topics: make(map[string]struct{}),
		addr:   r.RemoteAddr,
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

// Stats возвращает количество активных топиков и соединений.
func (h *Hub) Stats() (topics, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.topics), len(h.clients)
}

// Close закрывает все соединения.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

// register добавляет клиента. После Close новые клиенты не принимаются.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.updateGauges()
	h.mu.Unlock()

	h.logger.Debug("Signaling client connected", "remote_addr", c.addr)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for topic := range c.topics {
		h.leaveLocked(c, topic)
	}
	close(c.send)
	h.updateGauges()

	h.logger.Debug("Signaling client disconnected", "remote_addr", c.addr)
}

func (h *Hub) subscribe(c *client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if topic == "" {
			continue
		}
		subs, ok := h.topics[topic]
		if !ok {
			subs = make(map[*client]struct{})
			h.topics[topic] = subs
		}
		subs[c] = struct{}{}
		c.topics[topic] = struct{}{}
	}
	h.updateGauges()
}

func (h *Hub) unsubscribe(c *client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.leaveLocked(c, topic)
	}
	h.updateGauges()
}

func (h *Hub) leaveLocked(c *client, topic string) {
	delete(c.topics, topic)
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

func (h *Hub) updateGauges() {
	h.metrics.Connections.Set(float64(len(h.clients)))
	h.metrics.Topics.Set(float64(len(h.topics)))
}

// deliver рассылает сообщение из шины подписчикам топика.
func (h *Hub) deliver(topic string, payload []byte) {
	var slow []*client

	h.mu.RLock()
	for c := range h.topics[topic] {
		select {
		case c.send <- payload:
			h.metrics.Deliveries.Inc()
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.metrics.Dropped.Inc()
		h.logger.Warn("Signaling client too slow, closing", "remote_addr", c.addr, "topic", topic)
		_ = c.conn.Close()
	}
}

func (h *Hub) reply(c *client, msg api.SignalMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal signal reply", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.metrics.Dropped.Inc()
	}
}

func (h *Hub) handle(ctx context.Context, c *client, raw []byte) error {
	var msg api.SignalMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("failed to decode signal message: %w", err)
	}
	h.metrics.Messages.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case api.SignalSubscribe:
		h.subscribe(c, msg.Topics)
	case api.SignalUnsubscribe:
		h.unsubscribe(c, msg.Topics)
	case api.SignalPublish:
		if msg.Topic == "" {
			return fmt.Errorf("publish without topic")
		}
		if err := h.bus.Publish(ctx, msg.Topic, raw); err != nil {
			return fmt.Errorf("failed to publish: %w", err)
		}
	case api.SignalPing:
		h.reply(c, api.SignalMessage{Type: api.SignalPong})
	case api.SignalPong:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	return nil
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := context.Background()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Signaling read failed", "remote_addr", c.addr, "error", err)
			}
			return
		}
		if err := h.handle(ctx, c, raw); err != nil {
			h.logger.Warn("Invalid signal message", "remote_addr", c.addr, "error", err)
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
