package crdt

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp_IsNewerThan(t *testing.T) {
	tests := []struct {
		name     string
		self     Stamp
		other    Stamp
		expected bool
	}{
		{name: "self clock greater", self: Stamp{Clock: 101, Peer: "a"}, other: Stamp{Clock: 100, Peer: "a"}, expected: true},
		{name: "self clock smaller", self: Stamp{Clock: 90, Peer: "b"}, other: Stamp{Clock: 100, Peer: "a"}, expected: false},
		{name: "clocks equal, self peer greater", self: Stamp{Clock: 100, Peer: "b"}, other: Stamp{Clock: 100, Peer: "a"}, expected: true},
		{name: "clocks equal, self peer lower", self: Stamp{Clock: 100, Peer: "a"}, other: Stamp{Clock: 100, Peer: "b"}, expected: false},
		{name: "identical", self: Stamp{Clock: 100, Peer: "a"}, other: Stamp{Clock: 100, Peer: "a"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.self.IsNewerThan(tt.other))
		})
	}
}

func TestLWWMap_Set(t *testing.T) {
	m := NewLWWMap[string]()

	assert.True(t, m.Set("k", "v1", Stamp{Clock: 10, Peer: "a"}), "First set should succeed")
	assert.True(t, m.Set("k", "v2", Stamp{Clock: 20, Peer: "a"}), "Newer set should succeed")
	assert.False(t, m.Set("k", "old", Stamp{Clock: 5, Peer: "a"}), "Older set should be ignored")

	value, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", value)
	assert.Equal(t, 1, m.Size())
}

func TestLWWMap_Set_ConflictResolution_SameClock(t *testing.T) {
	m := NewLWWMap[string]()

	m.Set("k", "from a", Stamp{Clock: 10, Peer: "a"})
	updated := m.Set("k", "from b", Stamp{Clock: 10, Peer: "b"})

	assert.True(t, updated, "Entry with greater peer should win")
	value, _ := m.Get("k")
	assert.Equal(t, "from b", value)
}

func TestLWWMap_Delete(t *testing.T) {
	m := NewLWWMap[int]()
	m.Set("k", 1, Stamp{Clock: 10, Peer: "a"})

	assert.True(t, m.Delete("k"))
	assert.False(t, m.Contains("k"))
	assert.False(t, m.Delete("k"), "Second delete should report absence")

	// Без tombstone старая запись снова может появиться
	assert.True(t, m.Set("k", 2, Stamp{Clock: 1, Peer: "a"}))
}

func TestLWWMap_KeysAndValuesOrdered(t *testing.T) {
	m := NewLWWMap[int]()
	m.Set("c", 3, Stamp{Clock: 1, Peer: "a"})
	m.Set("a", 1, Stamp{Clock: 1, Peer: "a"})
	m.Set("b", 2, Stamp{Clock: 1, Peer: "a"})

	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
	assert.Equal(t, []int{1, 2, 3}, m.Values())
}

func TestLWWMap_Merge_Commutativity(t *testing.T) {
	build := func() (*LWWMap[string], *LWWMap[string]) {
		m1 := NewLWWMap[string]()
		m1.Set("id1", "m1", Stamp{Clock: 10, Peer: "node1"})
		m1.Set("id2", "m1", Stamp{Clock: 30, Peer: "node1"})

		m2 := NewLWWMap[string]()
		m2.Set("id1", "m2", Stamp{Clock: 20, Peer: "node2"})
		m2.Set("id3", "m2", Stamp{Clock: 40, Peer: "node2"})
		return m1, m2
	}

	a1, a2 := build()
	b1, b2 := build()

	a1.Merge(a2) // m1 <- m2
	b2.Merge(b1) // m2 <- m1

	assert.Equal(t, a1.Keys(), b2.Keys())
	assert.Equal(t, a1.Values(), b2.Values())

	value, _ := a1.Get("id1")
	assert.Equal(t, "m2", value, "Newer entry wins regardless of merge direction")
}

func TestLWWMap_Merge_Idempotency(t *testing.T) {
	m1 := NewLWWMap[string]()
	m2 := NewLWWMap[string]()
	m1.Set("id1", "x", Stamp{Clock: 10, Peer: "node1"})
	m2.Set("id2", "y", Stamp{Clock: 20, Peer: "node2"})

	m1.Merge(m2)
	first := m1.Values()
	m1.Merge(m2)
	m1.Merge(m1)

	assert.Equal(t, first, m1.Values(), "Merge should be idempotent")
}

func TestLWWMap_Clear(t *testing.T) {
	m := NewLWWMap[int]()
	m.Set("a", 1, Stamp{Clock: 1, Peer: "a"})
	m.Set("b", 2, Stamp{Clock: 1, Peer: "a"})

	m.Clear()
	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Values())
}

func TestLWWMap_ConcurrentSet(t *testing.T) {
	m := NewLWWMap[int]()
	goroutines := 50
	perGoroutine := 10

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(g int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				id := g*perGoroutine + j
				m.Set(strconv.Itoa(id), id, Stamp{Clock: int64(id), Peer: strconv.Itoa(g)})
			}
		}(i)
	}

	wg.Wait()
	assert.Equal(t, goroutines*perGoroutine, m.Size())
}

func TestLWWMap_ConcurrentMerge(t *testing.T) {
	m1 := NewLWWMap[int]()
	m2 := NewLWWMap[int]()
	for i := 0; i < 100; i++ {
		m1.Set("a"+strconv.Itoa(i), i, Stamp{Clock: int64(i), Peer: "node1"})
		m2.Set("b"+strconv.Itoa(i), i, Stamp{Clock: int64(i), Peer: "node2"})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m1.Merge(m2)
	}()
	go func() {
		defer wg.Done()
		m2.Merge(m1)
	}()
	wg.Wait()

	// Оба map должны содержать все элементы
	assert.Equal(t, 200, m1.Size())
	assert.Equal(t, 200, m2.Size())
}

func BenchmarkLWWMap_Set(b *testing.B) {
	m := NewLWWMap[int]()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Set(strconv.Itoa(i%1000), i, Stamp{Clock: int64(i), Peer: "node1"})
	}
}
