// Package projection хранит последнее согласованное представление комнаты
// для читателей (редактор, список участников) и уведомляет их об изменениях.
package projection

import (
	"slices"
	"sync"

	"github.com/iudanet/mathroom/internal/models"
	"github.com/iudanet/mathroom/internal/transport"
)

// View неизменяемый снимок документа, участников и состояния сети.
type View struct {
	Expressions []models.Expression   `json:"expressions"`
	Peers       []models.PeerPresence `json:"peers"`
	Status      transport.Status      `json:"status"`
	Version     uint64                `json:"version"` // Version растет с каждой публикацией
}

// Projection держит текущий View. Писатель один (сессия), читателей сколько угодно.
type Projection struct {
	subscribers map[int]chan View
	current     View
	nextID      int
	mu          sync.RWMutex
}

// New создает пустую проекцию.
func New() *Projection {
	return &Projection{
		current:     View{Expressions: []models.Expression{}, Peers: []models.PeerPresence{}},
		subscribers: make(map[int]chan View),
	}
}

// Publish заменяет текущее представление и будит подписчиков.
// Version назначается проекцией.
func (p *Projection) Publish(v View) View {
	v = clone(v)

	p.mu.Lock()
	defer p.mu.Unlock()

	v.Version = p.current.Version + 1
	p.current = v
	for _, ch := range p.subscribers {
		offer(ch, v)
	}
	return clone(v)
}

// Current возвращает копию текущего представления.
func (p *Projection) Current() View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return clone(p.current)
}

// Subscribe возвращает канал изменений и функцию отписки.
// В канале лежит не больше одного непрочитанного View: при пачке изменений
// промежуточные состояния заменяются последним. Текущее состояние
// отправляется сразу.
func (p *Projection) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subscribers[id] = ch
	ch <- clone(p.current)
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Close отписывает всех подписчиков, закрывая их каналы.
func (p *Projection) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ch := range p.subscribers {
		delete(p.subscribers, id)
		close(ch)
	}
}

// offer кладет v в канал, вытесняя непрочитанное значение.
// Вызывается под p.mu: писатель в канал только один.
func offer(ch chan View, v View) {
	select {
	case <-ch:
	default:
	}
	ch <- clone(v)
}

func clone(v View) View {
	v.Expressions = slices.Clone(v.Expressions)
	if v.Expressions == nil {
		v.Expressions = []models.Expression{}
	}
	v.Peers = slices.Clone(v.Peers)
	if v.Peers == nil {
		v.Peers = []models.PeerPresence{}
	}
	return v
}
