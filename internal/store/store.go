// Package store implements the narrow read-modify-write byte-store
// interface spec.md section 6 calls for ("the core reads/writes through
// narrow read-modify-write interfaces returning bytes"), with one
// implementation backed by github.com/btcsuite/goleveldb and one in memory.
// No other package in this module reads or writes through it.
package store

import (
	"errors"

	"github.com/btcsuite/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("store: key not found")

// KV is the narrow interface the core depends on; config.json and the
// opaque last-heard/BBS/chat stores are all "external collaborators"
// reachable only through this.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// LevelDB is a KV backed by a goleveldb database file.
type LevelDB struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the database at path.
func Open(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Get returns the value for key, or ErrNotFound.
func (l *LevelDB) Get(key string) ([]byte, error) {
	v, err := l.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// Put writes value for key.
func (l *LevelDB) Put(key string, value []byte) error {
	return l.db.Put([]byte(key), value, nil)
}

// Delete removes key, if present.
func (l *LevelDB) Delete(key string) error {
	return l.db.Delete([]byte(key), nil)
}

// Close releases the underlying database handle.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
