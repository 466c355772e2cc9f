package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/pkg/api"
)

const (
	peerPath     = "/peer"
	maxFrameSize = 4 << 20
	writeWait    = 5 * time.Second
)

// WebSocket транспорт: обнаружение через signaling-сервер, данные по прямым
// websocket-соединениям между участниками.
//
// Из каждой пары участников соединение устанавливает тот, чей peer id меньше;
// второй, увидев объявление меньшего, отвечает своим объявлением.
type WebSocket struct {
	logger   *slog.Logger
	handler  Handler
	links    map[string]*link
	dialing  map[string]struct{}
	cancel   context.CancelFunc
	server   *http.Server
	signal   *websocket.Conn
	upgrader websocket.Upgrader
	peerID   string
	addr     string
	room     room.ID
	cfg      Config
	wg       sync.WaitGroup
	state    State
	mu       sync.Mutex
	signalMu sync.Mutex // сериализует записи в signaling-соединение
}

var _ Transport = (*WebSocket)(nil)

// NewWebSocket создает транспорт. Сеть не используется до Connect.
func NewWebSocket(cfg Config, logger *slog.Logger) *WebSocket {
	cfg = cfg.withDefaults()
	if cfg.PeerID == "" {
		cfg.PeerID = uuid.New().String()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &WebSocket{
		logger:  logger.With("peer_id", cfg.PeerID),
		handler: noopHandler{},
		links:   make(map[string]*link),
		dialing: make(map[string]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
		peerID: cfg.PeerID,
		cfg:    cfg,
	}
}

// PeerID возвращает идентификатор участника.
func (t *WebSocket) PeerID() string {
	return t.peerID
}

// Addr возвращает объявляемый адрес слушателя (пусто до Connect).
func (t *WebSocket) Addr() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

// SetHandler задает получателя событий.
func (t *WebSocket) SetHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == nil {
		h = noopHandler{}
	}
	t.handler = h
}

// Status возвращает текущее состояние.
func (t *WebSocket) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// statusLocked вычисляет внешнее состояние. Пока открыто хотя бы одно
// соединение с участником, потеря signaling-сервера не видна снаружи.
func (t *WebSocket) statusLocked() Status {
	state := t.state
	if state == StateConnecting && len(t.links) > 0 {
		state = StateConnected
	}
	return Status{State: state, Peers: len(t.links)}
}

// Connect поднимает слушатель прямых соединений и запускает цикл signaling.
func (t *WebSocket) Connect(ctx context.Context, id room.ID) error {
	if len(t.cfg.SignalURLs) == 0 {
		return fmt.Errorf("no signaling servers configured")
	}

	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", t.cfg.ListenAddr)
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to listen for peers: %w", err)
	}

	t.addr = t.cfg.AdvertiseAddr
	if t.addr == "" {
		t.addr = listener.Addr().String()
	}
	t.room = id

	router := mux.NewRouter()
	router.Methods(http.MethodGet).Path(peerPath).HandlerFunc(t.servePeer)
	t.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: t.cfg.HandshakeTimeout,
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	t.state = StateConnecting
	status := t.statusLocked()
	handler := t.handler

	server := t.server
	t.wg.Add(2)
	t.mu.Unlock()

	handler.HandleStatus(status)
	go func() {
		defer t.wg.Done()
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("Peer listener failed", "error", err)
		}
	}()
	go func() {
		defer t.wg.Done()
		t.signalLoop(runCtx)
	}()

	t.logger.Info("Transport connecting", "room", string(id), "addr", t.addr)
	return nil
}

// Disconnect закрывает signaling, слушатель и все соединения и ждет
// завершения всех горутин. Безопасен в любой момент, в том числе во время
// рукопожатия; повторный вызов ничего не делает.
func (t *WebSocket) Disconnect() error {
	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return nil
	}

	t.state = StateDisconnected
	t.cancel()
	links := t.links
	t.links = make(map[string]*link)
	t.dialing = make(map[string]struct{})
	signalConn := t.signal
	server := t.server
	handler := t.handler
	t.mu.Unlock()

	if signalConn != nil {
		_ = signalConn.Close()
	}
	var closeErr error
	if server != nil {
		closeErr = server.Close()
	}
	for _, l := range links {
		l.close()
	}

	t.wg.Wait()

	for peer := range links {
		handler.HandlePeerDown(peer)
	}
	handler.HandleStatus(Status{State: StateDisconnected})
	t.logger.Info("Transport disconnected")

	if closeErr != nil {
		return fmt.Errorf("failed to close peer listener: %w", closeErr)
	}
	return nil
}

// Broadcast отправляет конверт во все соединения. Соединение, чей буфер
// отправки переполнен, закрывается: участник пересинхронизируется при
// повторном соединении.
func (t *WebSocket) Broadcast(env api.Envelope) error {
	env.From = t.peerID
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return ErrNotConnected
	}
	var slow []*link
	for _, l := range t.links {
		if !l.enqueue(data) {
			slow = append(slow, l)
		}
	}
	t.mu.Unlock()

	for _, l := range slow {
		t.logger.Warn("Peer link too slow, closing", "remote_peer", l.peer)
		l.close()
	}
	return nil
}

// Send отправляет конверт одному участнику.
func (t *WebSocket) Send(peer string, env api.Envelope) error {
	env.From = t.peerID
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return ErrNotConnected
	}
	l, ok := t.links[peer]
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, peer)
	}
	if !l.enqueue(data) {
		t.logger.Warn("Peer link too slow, closing", "remote_peer", peer)
		l.close()
	}
	return nil
}

// setState меняет состояние signaling-соединения, если транспорт не был
// отключен. t.state отражает только signaling, см. statusLocked.
func (t *WebSocket) setState(state State) {
	t.mu.Lock()
	if t.state == StateDisconnected || t.state == state {
		t.mu.Unlock()
		return
	}
	t.state = state
	status := t.statusLocked()
	handler := t.handler
	t.mu.Unlock()

	handler.HandleStatus(status)
}

// signalLoop держит соединение с signaling-сервером, переключаясь между
// адресами по кругу с экспоненциальной задержкой.
func (t *WebSocket) signalLoop(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.RetryInitial
	b.MaxInterval = t.cfg.RetryMax
	b.MaxElapsedTime = 0
	b.Reset()

	for attempt := 0; ; attempt++ {
		url := t.cfg.SignalURLs[attempt%len(t.cfg.SignalURLs)]
		err := t.runSignaling(ctx, url, b)
		if ctx.Err() != nil {
			return
		}

		t.setState(StateConnecting)
		wait := b.NextBackOff()
		t.logger.Warn("Signaling connection lost, retrying",
			"url", url,
			"error", err,
			"retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (t *WebSocket) runSignaling(ctx context.Context, url string, b *backoff.ExponentialBackOff) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial signaling server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return nil
	}
	t.signal = conn
	topic := t.room.Topic()
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		if t.signal == conn {
			t.signal = nil
		}
		t.mu.Unlock()
	}()

	if err := t.writeSignal(conn, api.SignalMessage{Type: api.SignalSubscribe, Topics: []string{topic}}); err != nil {
		return err
	}
	if err := t.writeSignal(conn, t.announcement()); err != nil {
		return err
	}

	b.Reset()
	t.setState(StateConnected)
	t.logger.Info("Signaling connected", "url", url, "topic", topic)

	pingDone := make(chan struct{})
	defer close(pingDone)
	go t.signalPing(conn, pingDone)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval * 3))
		var msg api.SignalMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read signal message: %w", err)
		}
		if msg.Type == api.SignalPublish && msg.Data != nil {
			t.handleAnnouncement(ctx, *msg.Data)
		}
	}
}

func (t *WebSocket) signalPing(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := t.writeSignal(conn, api.SignalMessage{Type: api.SignalPing}); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (t *WebSocket) writeSignal(conn *websocket.Conn, msg api.SignalMessage) error {
	t.signalMu.Lock()
	defer t.signalMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write signal message: %w", err)
	}
	return nil
}

func (t *WebSocket) announcement() api.SignalMessage {
	return api.SignalMessage{
		Type:  api.SignalPublish,
		Topic: t.room.Topic(),
		Data: &api.Announcement{
			PeerID: t.peerID,
			Addr:   t.addr,
			Room:   string(t.room),
		},
	}
}

// announce повторно публикует объявление (например, после обрыва соединения).
func (t *WebSocket) announce() {
	t.mu.Lock()
	conn := t.signal
	if conn == nil || t.state == StateDisconnected {
		t.mu.Unlock()
		return
	}
	msg := t.announcement()
	t.mu.Unlock()

	if err := t.writeSignal(conn, msg); err != nil {
		t.logger.Debug("Failed to re-announce", "error", err)
	}
}

func (t *WebSocket) handleAnnouncement(ctx context.Context, ann api.Announcement) {
	if ann.PeerID == "" || ann.PeerID == t.peerID {
		return
	}

	t.mu.Lock()
	if t.state == StateDisconnected || ann.Room != string(t.room) {
		t.mu.Unlock()
		return
	}
	if _, linked := t.links[ann.PeerID]; linked {
		t.mu.Unlock()
		return
	}
	if t.peerID > ann.PeerID {
		t.mu.Unlock()
		// Соединение устанавливает меньший: сообщаем ему о себе
		t.announce()
		return
	}
	if _, busy := t.dialing[ann.PeerID]; busy {
		t.mu.Unlock()
		return
	}
	t.dialing[ann.PeerID] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.dialing, ann.PeerID)
			t.mu.Unlock()
		}()

		if err := t.dial(ctx, ann); err != nil && ctx.Err() == nil {
			t.logger.Warn("Failed to connect to peer", "remote_peer", ann.PeerID, "addr", ann.Addr, "error", err)
		}
	}()
}

func (t *WebSocket) dial(ctx context.Context, ann api.Announcement) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, "ws://"+ann.Addr+peerPath, nil)
	if err != nil {
		return fmt.Errorf("failed to dial peer: %w", err)
	}

	hello := api.Hello{PeerID: t.peerID, Room: string(t.room)}
	if err := t.writeHello(conn, hello); err != nil {
		_ = conn.Close()
		return err
	}
	remote, err := t.readHello(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if remote.PeerID != ann.PeerID {
		_ = conn.Close()
		return fmt.Errorf("peer at %s introduced itself as %s", ann.Addr, remote.PeerID)
	}
	if remote.Room != string(t.room) {
		_ = conn.Close()
		return ErrRoomMismatch
	}

	t.addLink(remote.PeerID, conn)
	return nil
}

// servePeer обрабатывает входящее прямое соединение (GET /peer).
func (t *WebSocket) servePeer(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Debug("Failed to upgrade peer connection", "error", err)
		return
	}

	remote, err := t.readHello(conn)
	if err != nil {
		t.logger.Debug("Peer handshake failed", "remote_addr", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	t.mu.Lock()
	roomID := t.room
	t.mu.Unlock()

	if remote.Room != string(roomID) || remote.PeerID == "" || remote.PeerID == t.peerID {
		t.logger.Warn("Peer rejected", "remote_peer", remote.PeerID, "remote_room", remote.Room)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ErrRoomMismatch.Error()),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	if err := t.writeHello(conn, api.Hello{PeerID: t.peerID, Room: string(roomID)}); err != nil {
		_ = conn.Close()
		return
	}

	t.addLink(remote.PeerID, conn)
}

func (t *WebSocket) writeHello(conn *websocket.Conn, hello api.Hello) error {
	env, err := api.NewEnvelope(api.TypeHello, t.peerID, hello)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.HandshakeTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}
	return nil
}

func (t *WebSocket) readHello(conn *websocket.Conn) (api.Hello, error) {
	_ = conn.SetReadDeadline(time.Now().Add(t.cfg.HandshakeTimeout))

	var env api.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return api.Hello{}, fmt.Errorf("failed to read hello: %w", err)
	}
	if env.Type != api.TypeHello {
		return api.Hello{}, fmt.Errorf("expected hello, got %q", env.Type)
	}

	var hello api.Hello
	if err := env.Decode(&hello); err != nil {
		return api.Hello{}, err
	}
	return hello, nil
}

// addLink регистрирует установленное соединение. Дубликат и соединение,
// пришедшее после Disconnect, закрываются.
func (t *WebSocket) addLink(peer string, conn *websocket.Conn) {
	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	if _, exists := t.links[peer]; exists {
		t.mu.Unlock()
		t.logger.Debug("Duplicate peer link dropped", "remote_peer", peer)
		_ = conn.Close()
		return
	}

	l := newLink(peer, conn, t.cfg.SendBuffer)
	t.links[peer] = l
	status := t.statusLocked()
	handler := t.handler
	t.wg.Add(2)
	t.mu.Unlock()

	t.logger.Info("Peer link up", "remote_peer", peer)
	handler.HandlePeerUp(peer)
	handler.HandleStatus(status)

	go func() {
		defer t.wg.Done()
		l.writePump(t.cfg.PingInterval)
	}()
	go func() {
		defer t.wg.Done()
		t.readPump(l, handler)
	}()
}

func (t *WebSocket) removeLink(l *link) {
	t.mu.Lock()
	current, ok := t.links[l.peer]
	if !ok || current != l {
		t.mu.Unlock()
		l.close()
		return
	}
	delete(t.links, l.peer)
	status := t.statusLocked()
	handler := t.handler
	t.mu.Unlock()

	l.close()
	t.logger.Info("Peer link down", "remote_peer", l.peer)
	handler.HandlePeerDown(l.peer)
	handler.HandleStatus(status)

	// Соседу нужно снова нас найти
	t.announce()
}

func (t *WebSocket) readPump(l *link, handler Handler) {
	defer t.removeLink(l)

	l.conn.SetReadLimit(maxFrameSize)
	_ = l.conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval * 3))
	l.conn.SetPongHandler(func(string) error {
		return l.conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval * 3))
	})

	for {
		var env api.Envelope
		if err := l.conn.ReadJSON(&env); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				t.logger.Warn("Malformed envelope dropped", "remote_peer", l.peer, "error", err)
				continue
			}
			return
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval * 3))

		if env.Type == api.TypeBye {
			return
		}
		// Отправитель - участник на том конце соединения, а не поле From
		env.From = l.peer
		handler.HandleMessage(l.peer, env)
	}
}
