package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/mathroom/internal/room"
	"github.com/iudanet/mathroom/pkg/api"
)

// Network сеть в памяти процесса: участники одной комнаты соединены
// каждый с каждым. Используется в тестах и при встраивании.
type Network struct {
	rooms map[room.ID]map[string]*Memory
	mu    sync.Mutex
}

// NewNetwork создает пустую сеть.
func NewNetwork() *Network {
	return &Network{rooms: make(map[room.ID]map[string]*Memory)}
}

// Memory транспорт поверх Network. Доставка асинхронная, порядок сообщений
// между парой участников сохраняется.
type Memory struct {
	network *Network
	handler Handler
	inbox   *mailbox
	id      string
	room    room.ID
	state   State
	mu      sync.Mutex
}

var _ Transport = (*Memory)(nil)

// NewMemory создает транспорт участника в сети n.
func (n *Network) NewMemory(peerID string) *Memory {
	if peerID == "" {
		peerID = uuid.New().String()
	}
	return &Memory{
		network: n,
		handler: noopHandler{},
		id:      peerID,
	}
}

// PeerID возвращает идентификатор участника.
func (m *Memory) PeerID() string {
	return m.id
}

// SetHandler задает получателя событий.
func (m *Memory) SetHandler(h Handler) {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if h == nil {
		h = noopHandler{}
	}
	m.handler = h
}

// Status возвращает текущее состояние.
func (m *Memory) Status() Status {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.statusLocked()
}

func (m *Memory) statusLocked() Status {
	if m.state != StateConnected {
		return Status{State: m.state}
	}
	return Status{State: StateConnected, Peers: len(m.network.rooms[m.room]) - 1}
}

// Connect входит в комнату и соединяется со всеми ее участниками.
func (m *Memory) Connect(_ context.Context, id room.ID) error {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateDisconnected {
		return ErrAlreadyConnected
	}

	members, ok := m.network.rooms[id]
	if !ok {
		members = make(map[string]*Memory)
		m.network.rooms[id] = members
	}

	m.room = id
	m.state = StateConnected
	m.inbox = newMailbox()
	members[m.id] = m

	status := m.statusLocked()
	handler := m.handler
	m.inbox.push(func() { handler.HandleStatus(Status{State: StateConnecting}) })
	for peerID, other := range members {
		if peerID == m.id {
			continue
		}
		peer := peerID
		m.inbox.push(func() { handler.HandlePeerUp(peer) })
		other.notifyLocked(func(h Handler) { h.HandlePeerUp(m.id) })
		otherStatus := other.statusLocked()
		other.notifyLocked(func(h Handler) { h.HandleStatus(otherStatus) })
	}
	m.inbox.push(func() { handler.HandleStatus(status) })

	return nil
}

// Disconnect выходит из комнаты. Сообщения, еще не доставленные этому
// участнику, отбрасываются.
func (m *Memory) Disconnect() error {
	m.network.mu.Lock()
	m.mu.Lock()

	if m.state == StateDisconnected {
		m.mu.Unlock()
		m.network.mu.Unlock()
		return nil
	}

	members := m.network.rooms[m.room]
	delete(members, m.id)
	if len(members) == 0 {
		delete(m.network.rooms, m.room)
	}
	for _, other := range members {
		other.notifyLocked(func(h Handler) { h.HandlePeerDown(m.id) })
		otherStatus := other.statusLocked()
		other.notifyLocked(func(h Handler) { h.HandleStatus(otherStatus) })
	}

	m.state = StateDisconnected
	inbox := m.inbox
	m.inbox = nil
	handler := m.handler
	peers := make([]string, 0, len(members))
	for peerID := range members {
		peers = append(peers, peerID)
	}
	m.mu.Unlock()
	m.network.mu.Unlock()

	inbox.close()
	for _, peerID := range peers {
		handler.HandlePeerDown(peerID)
	}
	handler.HandleStatus(Status{State: StateDisconnected})
	return nil
}

// Broadcast доставляет конверт всем участникам комнаты.
func (m *Memory) Broadcast(env api.Envelope) error {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()

	if !m.connected() {
		return ErrNotConnected
	}

	env.From = m.id
	for peerID, other := range m.network.rooms[m.room] {
		if peerID == m.id {
			continue
		}
		other.deliverLocked(m.id, env)
	}
	return nil
}

// Send доставляет конверт одному участнику.
func (m *Memory) Send(peer string, env api.Envelope) error {
	m.network.mu.Lock()
	defer m.network.mu.Unlock()

	if !m.connected() {
		return ErrNotConnected
	}

	other, ok := m.network.rooms[m.room][peer]
	if !ok || peer == m.id {
		return ErrUnknownPeer
	}

	env.From = m.id
	other.deliverLocked(m.id, env)
	return nil
}

func (m *Memory) connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateConnected
}

// deliverLocked вызывается под network.mu
func (m *Memory) deliverLocked(from string, env api.Envelope) {
	m.notifyLocked(func(h Handler) { h.HandleMessage(from, env) })
}

// notifyLocked вызывается под network.mu
func (m *Memory) notifyLocked(fn func(Handler)) {
	if m != nil && m.inbox != nil {
		handler := m.handler
		m.inbox.push(func() { fn(handler) })
	}
}

// mailbox неограниченная FIFO-очередь с собственной горутиной:
// отправитель никогда не блокируется на получателе.
type mailbox struct {
	cond   *sync.Cond
	queue  []func()
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func newMailbox() *mailbox {
	mb := &mailbox{done: make(chan struct{})}
	mb.cond = sync.NewCond(&mb.mu)
	go mb.run()
	return mb
}

func (mb *mailbox) push(fn func()) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return
	}
	mb.queue = append(mb.queue, fn)
	mb.cond.Signal()
}

// close отбрасывает недоставленное и ждет завершения горутины.
func (mb *mailbox) close() {
	mb.mu.Lock()
	mb.closed = true
	mb.queue = nil
	mb.cond.Signal()
	mb.mu.Unlock()

	<-mb.done
}

func (mb *mailbox) run() {
	defer close(mb.done)
	for {
		mb.mu.Lock()
		for len(mb.queue) == 0 && !mb.closed {
			mb.cond.Wait()
		}
		if mb.closed {
			mb.mu.Unlock()
			return
		}
		fn := mb.queue[0]
		mb.queue = mb.queue[1:]
		mb.mu.Unlock()

		fn()
	}
}
