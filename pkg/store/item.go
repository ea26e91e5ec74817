package store

import (
	"time"

	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
)

// PutItem writes a whole row. When the table carries a secondary index and
// the item has the indexed attributes, the index row (a full projection of
// the item) is written as well. Index population is asynchronous relative
// to the row write when an index lag is configured, which mirrors how real
// wide-column stores converge their indexes.
func (s *Store) PutItem(table string, item Item) error {
	timer := opTimer("put")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return err
	}
	key, err := rowKey(sc, item)
	if err != nil {
		return err
	}
	data, err := marshalItem(item)
	if err != nil {
		return err
	}
	if err := s.set(key, data); err != nil {
		return err
	}
	return s.writeIndex(sc, item, data)
}

func (s *Store) writeIndex(sc Schema, item Item, data []byte) error {
	idxKey, err := indexKey(sc, item)
	if err != nil {
		return err
	}
	if idxKey == "" {
		return nil
	}
	if lag := s.getIndexLag(); lag > 0 {
		go func() {
			time.Sleep(lag)
			if s.db == nil {
				return
			}
			if err := s.set(idxKey, data); err != nil {
				logger.Error("index_write_failed", "key", idxKey, "error", err)
			}
		}()
		return nil
	}
	return s.set(idxKey, data)
}

// GetItem reads a row by its full primary key. The key item must carry the
// partition attribute and every sort attribute of the table.
func (s *Store) GetItem(table string, key Item) (Item, error) {
	timer := opTimer("get")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return nil, err
	}
	k, err := rowKey(sc, key)
	if err != nil {
		return nil, err
	}
	b, err := s.get(k)
	if err != nil {
		return nil, err
	}
	return unmarshalItem(b)
}

// GetIndexItem reads a secondary index row by (index partition, index sort)
// and returns the projected item. A miss is a NotFound, which callers treat
// as possibly-transient while the index converges.
func (s *Store) GetIndexItem(table string, partition, sortValue any) (Item, error) {
	timer := opTimer("get_index")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return nil, err
	}
	if sc.Index == nil {
		return nil, errs.Validation("table %s has no secondary index", table)
	}
	prefix, err := partitionPrefix(sc, sc.Index, partition)
	if err != nil {
		return nil, err
	}
	enc, err := encodeAttr(sc.Index.Sort.Type, sortValue)
	if err != nil {
		return nil, err
	}
	b, err := s.get(prefix + enc)
	if err != nil {
		return nil, err
	}
	return unmarshalItem(b)
}

// UpdateItem overlays the given top-level attributes onto the stored row
// and writes the merged row back whole. The row is created when absent;
// the store has no native per-field update, so this is the read-modify-
// write primitive everything nested builds on. Key attributes cannot be
// changed. Returns the merged row.
func (s *Store) UpdateItem(table string, key Item, attrs Item) (Item, error) {
	timer := opTimer("update")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return nil, err
	}
	k, err := rowKey(sc, key)
	if err != nil {
		return nil, err
	}
	mu := s.lockFor(k)
	mu.Lock()
	defer mu.Unlock()

	cur := Item{}
	if b, err := s.get(k); err == nil {
		if cur, err = unmarshalItem(b); err != nil {
			return nil, err
		}
	} else if !errs.IsNotFound(err) {
		return nil, err
	}
	for name, v := range key {
		cur[name] = v
	}
	for name, v := range attrs {
		if name == sc.Partition.Name {
			continue
		}
		if v == nil {
			delete(cur, name)
			continue
		}
		cur[name] = v
	}
	data, err := marshalItem(cur)
	if err != nil {
		return nil, err
	}
	if err := s.set(k, data); err != nil {
		return nil, err
	}
	if err := s.writeIndex(sc, cur, data); err != nil {
		return nil, err
	}
	return cur, nil
}

// CheckAndPut writes the item only if the stored row's version counter
// still equals expectedVersion (0 for a row that does not exist yet). On
// success the stored row carries expectedVersion+1. A stale expectation
// returns a conflict error and writes nothing. This is the optimistic
// upgrade for read-modify-write callers that cannot tolerate lost updates
// on mapping attributes.
func (s *Store) CheckAndPut(table string, item Item, expectedVersion int64) error {
	timer := opTimer("check_and_put")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return err
	}
	k, err := rowKey(sc, item)
	if err != nil {
		return err
	}
	mu := s.lockFor(k)
	mu.Lock()
	defer mu.Unlock()

	var current int64
	if b, err := s.get(k); err == nil {
		cur, err := unmarshalItem(b)
		if err != nil {
			return err
		}
		if v, ok := asInt64(cur[VersionAttr]); ok {
			current = v
		}
	} else if !errs.IsNotFound(err) {
		return err
	}
	if current != expectedVersion {
		return errs.Conflict("version mismatch")
	}
	item[VersionAttr] = expectedVersion + 1
	data, err := marshalItem(item)
	if err != nil {
		return err
	}
	if err := s.set(k, data); err != nil {
		return err
	}
	return s.writeIndex(sc, item, data)
}

// DeleteItem removes a row and its index projection. Domain deletions are
// soft tombstones; this exists for operators and tests.
func (s *Store) DeleteItem(table string, key Item) error {
	timer := opTimer("delete")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return err
	}
	k, err := rowKey(sc, key)
	if err != nil {
		return err
	}
	var idxKey string
	if b, err := s.get(k); err == nil {
		if cur, uerr := unmarshalItem(b); uerr == nil {
			idxKey, _ = indexKey(sc, cur)
		}
	}
	if err := s.db.Delete([]byte(k), nil); err != nil {
		return errs.Transient("store delete", err)
	}
	if idxKey != "" {
		if err := s.db.Delete([]byte(idxKey), nil); err != nil {
			return errs.Transient("index delete", err)
		}
	}
	return nil
}
