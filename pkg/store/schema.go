package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatstore/pkg/errs"
)

// AttrType is the storage type of a key attribute: S (string), N (number),
// B (boolean). Only key attributes are typed; non-key attributes are
// schemaless JSON.
type AttrType string

const (
	AttrString AttrType = "S"
	AttrNumber AttrType = "N"
	AttrBool   AttrType = "B"
)

// KeyAttr names one typed key attribute.
type KeyAttr struct {
	Name string
	Type AttrType
}

// IndexSchema describes the single optional secondary index of a table: an
// independently queryable projection keyed by its own partition and sort
// attribute. Index rows carry the full item, so a point lookup resolves the
// primary key without a second read.
type IndexSchema struct {
	Name      string
	Partition KeyAttr
	Sort      KeyAttr
}

// Schema describes one table: a partition key plus zero or more ordered
// sort attributes. Rows within a partition are totally ordered by the
// byte-sortable encoding of the sort attributes, in declaration order.
type Schema struct {
	Name      string
	Partition KeyAttr
	Sort      []KeyAttr
	Index     *IndexSchema
}

// CreateTable registers a table schema. Registering the same name twice is
// an error; schemas are fixed for the life of the process.
func (s *Store) CreateTable(sc Schema) error {
	if sc.Name == "" || sc.Partition.Name == "" {
		return errs.Validation("table schema needs a name and a partition key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[sc.Name]; ok {
		return errs.Validation("table %s already exists", sc.Name)
	}
	s.tables[sc.Name] = sc
	return nil
}

func (s *Store) schema(table string) (Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.tables[table]
	if !ok {
		return Schema{}, errs.Validation("unknown table %s", table)
	}
	return sc, nil
}

// encodeAttr renders a key attribute value as a byte-sortable string
// segment. Numbers are zero-padded to 20 digits so lexical order matches
// numeric order; booleans become 0/1 so true sorts after false.
func encodeAttr(t AttrType, v any) (string, error) {
	switch t {
	case AttrString:
		sv, ok := v.(string)
		if !ok {
			return "", errs.Validation("expected string key attribute, got %T", v)
		}
		if sv == "" {
			return "", errs.Validation("empty string key attribute")
		}
		// ':' is the key segment separator and 0xff is the partition upper
		// bound sentinel; either inside a key value would let one
		// partition's range leak into a sibling's
		if strings.ContainsAny(sv, ":\xff") {
			return "", errs.Validation("string key attribute contains a reserved byte")
		}
		return sv, nil
	case AttrNumber:
		n, ok := asInt64(v)
		if !ok {
			return "", errs.Validation("expected numeric key attribute, got %T", v)
		}
		if n < 0 {
			return "", errs.Validation("negative numeric key attribute %d", n)
		}
		return fmt.Sprintf("%020d", n), nil
	case AttrBool:
		b, ok := v.(bool)
		if !ok {
			return "", errs.Validation("expected boolean key attribute, got %T", v)
		}
		if b {
			return "1", nil
		}
		return "0", nil
	}
	return "", errs.Validation("unknown key attribute type %q", t)
}

// AsInt64 coerces the numeric shapes that survive a JSON round trip.
func AsInt64(v any) (int64, bool) { return asInt64(v) }

// asInt64 accepts the numeric shapes that survive a JSON round trip.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		// rows decode numbers as json.Number so nanosecond timestamps keep
		// full 64-bit precision
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// partitionPrefix builds the key prefix covering one partition of a table
// or of its secondary index.
// Row keys look like t:<table>:<partition>:<sort1>:<sort2>...; index rows
// use the i: namespace so table scans never see them.
func partitionPrefix(sc Schema, index *IndexSchema, partition any) (string, error) {
	if index != nil {
		enc, err := encodeAttr(index.Partition.Type, partition)
		if err != nil {
			return "", err
		}
		return "i:" + sc.Name + ":" + index.Name + ":" + enc + ":", nil
	}
	enc, err := encodeAttr(sc.Partition.Type, partition)
	if err != nil {
		return "", err
	}
	return "t:" + sc.Name + ":" + enc + ":", nil
}

// rowKey builds the full primary key for an item.
func rowKey(sc Schema, item Item) (string, error) {
	pv, ok := item[sc.Partition.Name]
	if !ok {
		return "", errs.Validation("item missing partition key %s", sc.Partition.Name)
	}
	prefix, err := partitionPrefix(sc, nil, pv)
	if err != nil {
		return "", err
	}
	sorts := make([]string, 0, len(sc.Sort))
	for _, ka := range sc.Sort {
		sv, ok := item[ka.Name]
		if !ok {
			return "", errs.Validation("item missing sort key %s", ka.Name)
		}
		enc, err := encodeAttr(ka.Type, sv)
		if err != nil {
			return "", err
		}
		sorts = append(sorts, enc)
	}
	return prefix + strings.Join(sorts, ":"), nil
}

// indexKey builds the secondary index key for an item, or "" when the item
// lacks the indexed attribute.
func indexKey(sc Schema, item Item) (string, error) {
	if sc.Index == nil {
		return "", nil
	}
	pv, ok := item[sc.Index.Partition.Name]
	if !ok {
		return "", nil
	}
	sv, ok := item[sc.Index.Sort.Name]
	if !ok {
		return "", nil
	}
	prefix, err := partitionPrefix(sc, sc.Index, pv)
	if err != nil {
		return "", err
	}
	enc, err := encodeAttr(sc.Index.Sort.Type, sv)
	if err != nil {
		return "", err
	}
	return prefix + enc, nil
}
