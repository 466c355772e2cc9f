package crdt

import (
	"sync"

	"github.com/google/uuid"
)

// LamportClock представляет логические часы Лампорта реплики документа.
// Каждое локальное изменение получает Stamp{Clock, Peer}; пара уникальна,
// так как счетчик одной реплики строго возрастает.
type LamportClock struct {
	peer    string     // идентификатор реплики (peer id)
	counter int64      // монотонно возрастающий счетчик
	mu      sync.Mutex // мьютекс для потокобезопасности
}

// NewLamportClock создает часы со случайным идентификатором реплики (UUID).
func NewLamportClock() *LamportClock {
	return NewLamportClockForPeer(uuid.New().String())
}

// NewLamportClockForPeer создает часы для заданного идентификатора реплики.
// Используется транспортом, который сам выдает peer id, и в тестах.
func NewLamportClockForPeer(peer string) *LamportClock {
	return &LamportClock{peer: peer}
}

// Tick регистрирует новое локальное событие и возвращает его метку.
func (lc *LamportClock) Tick() Stamp {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	lc.counter++
	return Stamp{Clock: lc.counter, Peer: lc.peer}
}

// Witness учитывает метку удаленного события: counter = max(counter, remote).
// Следующий Tick вернет значение строго больше всех увиденных.
func (lc *LamportClock) Witness(remote int64) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if remote > lc.counter {
		lc.counter = remote
	}
}

// Now возвращает текущее значение счетчика без его изменения.
func (lc *LamportClock) Now() int64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	return lc.counter
}

// Peer возвращает идентификатор реплики.
func (lc *LamportClock) Peer() string {
	return lc.peer
}
