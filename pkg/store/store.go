// Package store implements a wide-column table engine on top of pebble.
// Tables are registered schemas whose rows live under byte-sortable key
// prefixes, giving primary-key point operations, ordered range queries
// within a partition, and at most one secondary index per table. There are
// no multi-row transactions; the only concurrency primitive beyond a point
// write is a version-checked conditional put.
package store

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
)

// Item is one row: attribute name -> value, JSON-shaped.
type Item = map[string]any

// VersionAttr is the reserved attribute carrying the optimistic-concurrency
// counter used by CheckAndPut.
const VersionAttr = "_version"

// Store owns a pebble handle and the table registry.
type Store struct {
	db     *pebble.DB
	path   string
	mu     sync.RWMutex
	tables map[string]Schema

	// striped locks serializing conditional writes per row key
	locks [64]sync.Mutex

	// indexLag delays secondary index row writes to model asynchronous
	// index population. Production leaves it zero; resolver tests set it.
	lagMu    sync.RWMutex
	indexLag time.Duration
}

// Open opens (or creates) a pebble database at path.
func Open(path string) (*Store, error) {
	logger.Info("opening_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return nil, errs.Transient("open store", err)
	}
	return &Store{db: db, path: path, tables: map[string]Schema{}}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	logger.Info("store_closed", "path", s.path)
	return err
}

// SetIndexLag installs an artificial visibility delay on secondary index
// writes. Test-only hook for exercising resolver retry behavior.
func (s *Store) SetIndexLag(d time.Duration) {
	s.lagMu.Lock()
	s.indexLag = d
	s.lagMu.Unlock()
}

func (s *Store) getIndexLag() time.Duration {
	s.lagMu.RLock()
	defer s.lagMu.RUnlock()
	return s.indexLag
}

func (s *Store) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func (s *Store) set(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		logger.Error("store_set_failed", "key", key, "error", err)
		return errs.Transient("store write", err)
	}
	return nil
}

func (s *Store) get(key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, errs.NotFound("no row at %s", key)
		}
		logger.Error("store_get_failed", "key", key, "error", err)
		return nil, errs.Transient("store read", err)
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

func marshalItem(item Item) ([]byte, error) {
	b, err := json.Marshal(item)
	if err != nil {
		return nil, errs.Validation("item not JSON-encodable: %v", err)
	}
	return b, nil
}

// unmarshalItem decodes a row with UseNumber so int64-range values
// (nanosecond timestamps) survive without float64 rounding; key encoding
// depends on that exactness.
func unmarshalItem(b []byte) (Item, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var it Item
	if err := dec.Decode(&it); err != nil {
		return nil, errs.Internal("corrupt row", err)
	}
	return it, nil
}
