package crdt

import (
	"sort"
	"sync"
)

// Stamp метка версии для разрешения конфликтов Last-Write-Wins.
type Stamp struct {
	Peer  string `json:"peer"`
	Clock int64  `json:"clock"`
}

// IsNewerThan сравнивает две метки согласно LWW:
// 1. Сначала сравнивается Clock (больший выигрывает)
// 2. При равных Clock сравнивается Peer (лексикографически)
func (s Stamp) IsNewerThan(other Stamp) bool {
	if s.Clock != other.Clock {
		return s.Clock > other.Clock
	}
	return s.Peer > other.Peer
}

type lwwEntry[V any] struct {
	value V
	stamp Stamp
}

// LWWMap представляет Last-Write-Wins map: для каждого ключа хранится значение
// с наибольшей меткой. Удаление физическое (без tombstone): отсутствие ключа
// означает, что запись ушла, а не что она была удалена раньше записи.
type LWWMap[V any] struct {
	elements map[string]lwwEntry[V] // map[key]entry
	mu       sync.RWMutex
}

// NewLWWMap создает пустой LWW map.
func NewLWWMap[V any]() *LWWMap[V] {
	return &LWWMap[V]{
		elements: make(map[string]lwwEntry[V]),
	}
}

// Set записывает значение, если ключа нет или новая метка новее.
// Возвращает true, если значение было записано.
func (m *LWWMap[V]) Set(key string, value V, stamp Stamp) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.elements[key]
	if exists && !stamp.IsNewerThan(existing.stamp) {
		return false
	}

	m.elements[key] = lwwEntry[V]{value: value, stamp: stamp}
	return true
}

// Delete удаляет ключ. Возвращает true, если ключ существовал.
func (m *LWWMap[V]) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.elements[key]; !exists {
		return false
	}
	delete(m.elements, key)
	return true
}

// Get возвращает значение по ключу.
func (m *LWWMap[V]) Get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.elements[key]
	return entry.value, exists
}

// Keys возвращает ключи в лексикографическом порядке.
func (m *LWWMap[V]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.elements))
	for key := range m.elements {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Values возвращает значения, упорядоченные по ключу.
func (m *LWWMap[V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.elements))
	for key := range m.elements {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]V, 0, len(keys))
	for _, key := range keys {
		result = append(result, m.elements[key].value)
	}
	return result
}

// Merge объединяет текущий map с другим по правилу LWW.
// Операция коммутативна и идемпотентна.
func (m *LWWMap[V]) Merge(other *LWWMap[V]) {
	if m == other {
		return
	}

	other.mu.RLock()
	snapshot := make(map[string]lwwEntry[V], len(other.elements))
	for key, entry := range other.elements {
		snapshot[key] = entry
	}
	other.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range snapshot {
		existing, exists := m.elements[key]
		if !exists || entry.stamp.IsNewerThan(existing.stamp) {
			m.elements[key] = entry
		}
	}
}

// Size возвращает количество ключей.
func (m *LWWMap[V]) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.elements)
}

// Contains проверяет наличие ключа.
func (m *LWWMap[V]) Contains(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.elements[key]
	return exists
}

// Clear удаляет все элементы.
func (m *LWWMap[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.elements = make(map[string]lwwEntry[V])
}
