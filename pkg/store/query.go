package store

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/pebble"

	"chatstore/pkg/errs"
)

// QueryInput describes one bounded, ordered page over a partition.
type QueryInput struct {
	// Partition is the partition key value (of the table, or of the index
	// when Index is set).
	Partition any
	// Bound is an optional exclusive bound on the first sort attribute:
	// descending queries return rows strictly below it, ascending queries
	// rows strictly above it.
	Bound any
	// Ascending flips the direction; the default is newest-first.
	Ascending bool
	// Limit caps the page size. Zero or negative yields an empty page and
	// no cursor.
	Limit int
	// Index routes the query through the table's secondary index.
	Index string
	// Cursor resumes a previous page. It supersedes Bound.
	Cursor string
}

// Page is one query result: at most Limit items plus an opaque
// continuation cursor, empty when the partition is exhausted.
type Page struct {
	Items  []Item
	Cursor string
}

// cursorToken is the decoded continuation cursor. It stores the encoded
// ordering values of the last returned row, never a physical reference, so
// resumption still works after the row it points at is deleted.
type cursorToken struct {
	Table     string `json:"t"`
	Index     string `json:"i,omitempty"`
	Partition string `json:"p"`
	Sorts     string `json:"s"`
	Ascending bool   `json:"a,omitempty"`
}

func encodeCursor(tok cursorToken) string {
	b, _ := json.Marshal(tok)
	return base64.URLEncoding.EncodeToString(b)
}

func decodeCursor(raw string) (cursorToken, error) {
	var tok cursorToken
	b, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return tok, errs.Validation("malformed cursor")
	}
	if err := json.Unmarshal(b, &tok); err != nil {
		return tok, errs.Validation("malformed cursor")
	}
	return tok, nil
}

// Query returns one ordered page of a partition. See QueryInput for the
// bound, direction, and cursor semantics. Querying a partition with no
// rows returns an empty page, not an error.
func (s *Store) Query(table string, in QueryInput) (Page, error) {
	timer := opTimer("query")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return Page{}, err
	}
	var idx *IndexSchema
	if in.Index != "" {
		if sc.Index == nil || sc.Index.Name != in.Index {
			return Page{}, errs.Validation("table %s has no index %s", table, in.Index)
		}
		idx = sc.Index
	}
	if in.Limit <= 0 {
		return Page{}, nil
	}

	prefix, err := partitionPrefix(sc, idx, in.Partition)
	if err != nil {
		return Page{}, err
	}

	// resolve the start position from cursor, bound, or partition edge
	var afterSorts string
	fromCursor := false
	if in.Cursor != "" {
		tok, err := decodeCursor(in.Cursor)
		if err != nil {
			return Page{}, err
		}
		if tok.Table != table || tok.Index != in.Index ||
			tok.Partition != prefix || tok.Ascending != in.Ascending {
			return Page{}, errs.Validation("cursor does not belong to this query")
		}
		afterSorts = tok.Sorts
		fromCursor = true
	} else if in.Bound != nil {
		first := sc.Partition
		if idx != nil {
			first = idx.Sort
		} else if len(sc.Sort) > 0 {
			first = sc.Sort[0]
		}
		enc, err := encodeAttr(first.Type, in.Bound)
		if err != nil {
			return Page{}, err
		}
		afterSorts = enc
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return Page{}, errs.Transient("open iterator", err)
	}
	defer iter.Close()

	pfx := []byte(prefix)
	if in.Ascending {
		start := pfx
		if fromCursor {
			// a cursor excludes exactly the row it names; 0x00 sorts right
			// after that key and before any sibling
			start = []byte(prefix + afterSorts + "\x00")
		} else if afterSorts != "" {
			// the 0xff sentinel skips every key whose first sort segment
			// equals the bound, making the bound exclusive; bounds are only
			// meaningful on fixed-width (numeric/boolean) sort attributes
			start = []byte(prefix + afterSorts + "\xff")
		}
		iter.SeekGE(start)
	} else {
		upper := []byte(prefix + "\xff")
		if afterSorts != "" {
			upper = []byte(prefix + afterSorts)
		}
		iter.SeekLT(upper)
	}

	var page Page
	for iter.Valid() && bytes.HasPrefix(iter.Key(), pfx) {
		it, err := unmarshalItem(append([]byte(nil), iter.Value()...))
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, it)
		lastSorts := strings.TrimPrefix(string(iter.Key()), prefix)
		if len(page.Items) >= in.Limit {
			page.Cursor = encodeCursor(cursorToken{
				Table:     table,
				Index:     in.Index,
				Partition: prefix,
				Sorts:     lastSorts,
				Ascending: in.Ascending,
			})
			break
		}
		if in.Ascending {
			iter.Next()
		} else {
			iter.Prev()
		}
	}
	if err := iter.Error(); err != nil {
		return Page{}, errs.Transient("iterate partition", err)
	}
	return page, nil
}

// CountAfter counts the rows of a partition whose first sort attribute is
// strictly greater than bound. Used for unread tallies; it never
// materializes the rows.
func (s *Store) CountAfter(table string, partition, bound any) (int, error) {
	timer := opTimer("count")
	defer timer()
	sc, err := s.schema(table)
	if err != nil {
		return 0, err
	}
	prefix, err := partitionPrefix(sc, nil, partition)
	if err != nil {
		return 0, err
	}
	start := prefix
	if bound != nil {
		first := sc.Partition
		if len(sc.Sort) > 0 {
			first = sc.Sort[0]
		}
		enc, err := encodeAttr(first.Type, bound)
		if err != nil {
			return 0, err
		}
		start = prefix + enc + "\xff"
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, errs.Transient("open iterator", err)
	}
	defer iter.Close()
	n := 0
	pfx := []byte(prefix)
	for iter.SeekGE([]byte(start)); iter.Valid() && bytes.HasPrefix(iter.Key(), pfx); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, errs.Transient("iterate partition", err)
	}
	return n, nil
}

// Scan walks every row of a table and returns the items matching the
// filter (a nil filter matches everything). Full scans are meant for
// periodic batch jobs, not request paths.
func (s *Store) Scan(table string, filter func(Item) bool) ([]Item, error) {
	timer := opTimer("scan")
	defer timer()
	if _, err := s.schema(table); err != nil {
		return nil, err
	}
	prefix := []byte("t:" + table + ":")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Transient("open iterator", err)
	}
	defer iter.Close()
	var out []Item
	for iter.SeekGE(prefix); iter.Valid() && bytes.HasPrefix(iter.Key(), prefix); iter.Next() {
		it, err := unmarshalItem(append([]byte(nil), iter.Value()...))
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(it) {
			out = append(out, it)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, errs.Transient("scan table", err)
	}
	return out, nil
}
