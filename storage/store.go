// Package storage defines the key/value contract both tree engines use to
// persist nodes, plus two implementations: an in-memory map for tests and
// ephemeral trees, and a goleveldb-backed store for durable ones.
package storage

import (
	"github.com/colorfulnotion/merkle/common"
)

// Store is the collaborator both tree engines use to persist and retrieve
// nodes keyed by their digest. Implementations are not required to be safe
// for concurrent use; callers serialize access the same way the engines do.
type Store interface {
	// Get returns the payload previously inserted under key, or ok == false
	// if no such entry exists.
	Get(key common.Digest) (value []byte, ok bool, err error)

	// Insert stores value under key, overwriting any existing entry.
	Insert(key common.Digest, value []byte) error

	// Remove deletes the entry under key. Removing a key that does not exist
	// is not an error.
	Remove(key common.Digest) error
}
