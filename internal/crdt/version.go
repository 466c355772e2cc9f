package crdt

// VersionVector хранит для каждой реплики номер последней операции,
// до которого включительно все операции этой реплики уже интегрированы.
type VersionVector map[string]uint64

// Get возвращает номер для реплики (0, если операций не было).
func (v VersionVector) Get(peer string) uint64 {
	return v[peer]
}

// Covers возвращает true, если операция id уже учтена вектором.
func (v VersionVector) Covers(id ID) bool {
	return id.Seq <= v[id.Peer]
}

// Clone создает копию вектора.
func (v VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(v))
	for peer, seq := range v {
		out[peer] = seq
	}
	return out
}
