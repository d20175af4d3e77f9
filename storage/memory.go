package storage

import (
	"github.com/colorfulnotion/merkle/common"
)

// MemoryStore is a map-backed Store with no persistence, used by tests and
// by trees that never need to survive process restart.
type MemoryStore struct {
	entries map[common.Digest][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[common.Digest][]byte)}
}

func (s *MemoryStore) Get(key common.Digest) ([]byte, bool, error) {
	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Insert(key common.Digest, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[key] = v
	return nil
}

func (s *MemoryStore) Remove(key common.Digest) error {
	delete(s.entries, key)
	return nil
}

// Len reports the number of entries currently stored, mainly useful in
// tests asserting that deletes actually free nodes.
func (s *MemoryStore) Len() int {
	return len(s.entries)
}
