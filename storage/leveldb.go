package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/colorfulnotion/merkle/common"
	"github.com/colorfulnotion/merkle/xlog"
)

// LevelDBStore persists nodes in a goleveldb database. It uses no write
// batches: each Insert and Remove is written to the database as its own
// operation.
type LevelDBStore struct {
	db  *leveldb.DB
	log xlog.Logger
}

// OpenLevelDBStore opens (creating if necessary) a leveldb database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", common.ErrStorage, path, err)
	}
	return &LevelDBStore{db: db, log: xlog.Default().With("component", "leveldb")}, nil
}

// SetLogger overrides the store's diagnostic logger, mainly for tests that
// want xlog.Discard().
func (s *LevelDBStore) SetLogger(l xlog.Logger) {
	s.log = l
}

func (s *LevelDBStore) Get(key common.Digest) ([]byte, bool, error) {
	v, err := s.db.Get(key[:], nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		s.log.Error("get failed", "key", fmt.Sprintf("%x", key), "err", err)
		return nil, false, common.WrapStorageErr("get", key, err)
	}
	return v, true, nil
}

func (s *LevelDBStore) Insert(key common.Digest, value []byte) error {
	if err := s.db.Put(key[:], value, nil); err != nil {
		s.log.Error("put failed", "key", fmt.Sprintf("%x", key), "err", err)
		return common.WrapStorageErr("put", key, err)
	}
	return nil
}

func (s *LevelDBStore) Remove(key common.Digest) error {
	if err := s.db.Delete(key[:], nil); err != nil {
		s.log.Error("delete failed", "key", fmt.Sprintf("%x", key), "err", err)
		return common.WrapStorageErr("delete", key, err)
	}
	return nil
}

// Close releases the underlying leveldb handle. Compaction is left to
// goleveldb's own background scheduling, the same as bpt.go.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
