package session

import (
	"sync"

	"github.com/iudanet/mathroom/internal/transport"
	"github.com/iudanet/mathroom/pkg/api"
)

// eventQueue неограниченная очередь событий транспорта для цикла сессии.
// push никогда не блокируется: транспорт ждет свои горутины в Disconnect,
// и обработчик, ждущий цикл сессии, мог бы его заблокировать.
type eventQueue struct {
	ready chan struct{} // сигнал о непустой очереди (емкость 1)
	items []func()
	mu    sync.Mutex
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain забирает все накопленные события.
func (q *eventQueue) drain() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// inbound передает события транспорта в цикл сессии.
type inbound struct {
	s *Session
}

var _ transport.Handler = inbound{}

func (h inbound) HandleMessage(from string, env api.Envelope) {
	h.s.events.push(func() { h.s.handleMessage(from, env) })
}

func (h inbound) HandlePeerUp(peer string) {
	h.s.events.push(func() { h.s.handlePeerUp(peer) })
}

func (h inbound) HandlePeerDown(peer string) {
	h.s.events.push(func() { h.s.handlePeerDown(peer) })
}

func (h inbound) HandleStatus(transport.Status) {
	// Актуальное состояние перечитывается в цикле: события могут опаздывать
	h.s.events.push(h.s.handleStatus)
}
