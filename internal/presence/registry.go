// Package presence хранит эфемерные метаданные участников комнаты.
package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/mathroom/internal/crdt"
	"github.com/iudanet/mathroom/internal/models"
)

const (
	// DefaultTimeout время без heartbeat, после которого участник удаляется
	DefaultTimeout = 30 * time.Second
	// RenewInterval период повторной рассылки собственного presence
	RenewInterval = 15 * time.Second
)

// Listener получает уведомление об изменении участника.
type Listener func(models.PeerPresence)

// Registry реестр presence участников комнаты.
// Запись каждого участника пишет только он сам (last-writer-wins по Seq),
// поэтому конфликтов нет. При отключении запись удаляется без tombstone.
type Registry struct {
	logger   *slog.Logger
	entries  *crdt.LWWMap[models.PeerPresence]
	lastSeen map[string]time.Time
	joined   map[int]Listener
	left     map[int]Listener
	updated  map[int]Listener
	local    models.PeerPresence
	timeout  time.Duration
	nextID   int
	mu       sync.Mutex
}

// NewRegistry создает пустой реестр. timeout <= 0 заменяется на DefaultTimeout.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Registry{
		logger:   logger,
		entries:  crdt.NewLWWMap[models.PeerPresence](),
		lastSeen: make(map[string]time.Time),
		joined:   make(map[int]Listener),
		left:     make(map[int]Listener),
		updated:  make(map[int]Listener),
		timeout:  timeout,
	}
}

// Timeout возвращает таймаут heartbeat.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

// SetLocal задает собственный presence, увеличивая Seq.
// Возвращает запись, которую нужно сразу разослать.
func (r *Registry) SetLocal(p models.PeerPresence) models.PeerPresence {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Seq = r.local.Seq + 1
	r.local = p
	return p
}

// Renew увеличивает Seq собственного presence для heartbeat.
func (r *Registry) Renew() models.PeerPresence {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.local.Seq++
	return r.local
}

// Local возвращает собственный presence.
func (r *Registry) Local() models.PeerPresence {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.local
}

// Apply применяет presence, полученный от участника from.
// Запись принимается, только если from ее владелец и Seq новее известного.
// Повтор с теми же полями считается heartbeat и не вызывает уведомлений.
func (r *Registry) Apply(from string, p models.PeerPresence, now time.Time) bool {
	if from == "" || p.PeerID != from {
		r.logger.Warn("Presence rejected: sender is not the owner",
			"from", from,
			"peer_id", p.PeerID)
		return false
	}

	r.mu.Lock()
	if from == r.local.PeerID {
		r.mu.Unlock()
		return false
	}

	previous, existed := r.entries.Get(from)
	if !r.entries.Set(from, p, stampOf(p)) {
		r.mu.Unlock()
		return false
	}
	r.lastSeen[from] = now

	var listeners []Listener
	switch {
	case !existed:
		listeners = collect(r.joined)
	case !sameContent(previous, p):
		listeners = collect(r.updated)
	}
	r.mu.Unlock()

	notify(listeners, p)
	return true
}

// Remove удаляет участника (например, при обрыве соединения).
func (r *Registry) Remove(peerID string) bool {
	r.mu.Lock()
	p, ok := r.entries.Get(peerID)
	if !ok {
		r.mu.Unlock()
		return false
	}
	r.entries.Delete(peerID)
	delete(r.lastSeen, peerID)
	listeners := collect(r.left)
	r.mu.Unlock()

	notify(listeners, p)
	return true
}

// Sweep удаляет участников без heartbeat дольше таймаута.
// Возвращает удаленные записи.
func (r *Registry) Sweep(now time.Time) []models.PeerPresence {
	r.mu.Lock()
	var removed []models.PeerPresence
	for _, peerID := range r.entries.Keys() {
		if now.Sub(r.lastSeen[peerID]) <= r.timeout {
			continue
		}
		if p, ok := r.entries.Get(peerID); ok {
			removed = append(removed, p)
		}
		r.entries.Delete(peerID)
		delete(r.lastSeen, peerID)
	}
	listeners := collect(r.left)
	r.mu.Unlock()

	for _, p := range removed {
		r.logger.Info("Peer presence timed out", "peer_id", p.PeerID)
		notify(listeners, p)
	}
	return removed
}

// Clear удаляет всех удаленных участников (при отключении от комнаты).
func (r *Registry) Clear() {
	r.mu.Lock()
	removed := r.entries.Values()
	r.entries.Clear()
	r.lastSeen = make(map[string]time.Time)
	listeners := collect(r.left)
	r.mu.Unlock()

	for _, p := range removed {
		notify(listeners, p)
	}
}

// Peers возвращает удаленных участников, упорядоченных по PeerID.
func (r *Registry) Peers() []models.PeerPresence {
	return r.entries.Values()
}

// Get возвращает presence участника.
func (r *Registry) Get(peerID string) (models.PeerPresence, bool) {
	return r.entries.Get(peerID)
}

// OnPeerJoined подписывает на появление участника. Возвращает функцию отписки.
func (r *Registry) OnPeerJoined(fn Listener) func() {
	return r.subscribe(r.joined, fn)
}

// OnPeerLeft подписывает на уход участника.
func (r *Registry) OnPeerLeft(fn Listener) func() {
	return r.subscribe(r.left, fn)
}

// OnPeerUpdated подписывает на изменение метаданных участника.
func (r *Registry) OnPeerUpdated(fn Listener) func() {
	return r.subscribe(r.updated, fn)
}

func (r *Registry) subscribe(set map[int]Listener, fn Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	set[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(set, id)
	}
}

func stampOf(p models.PeerPresence) crdt.Stamp {
	return crdt.Stamp{Clock: int64(p.Seq), Peer: p.PeerID}
}

func sameContent(a, b models.PeerPresence) bool {
	a.Seq, b.Seq = 0, 0
	return a == b
}

// collect копирует слушателей, чтобы вызывать их без блокировки.
func collect(set map[int]Listener) []Listener {
	result := make([]Listener, 0, len(set))
	for _, fn := range set {
		result = append(result, fn)
	}
	return result
}

func notify(listeners []Listener, p models.PeerPresence) {
	for _, fn := range listeners {
		fn(p)
	}
}
