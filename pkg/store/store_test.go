package store

import (
	"errors"
	"fmt"
	"testing"

	"chatstore/pkg/errs"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func msgSchema() Schema {
	return Schema{
		Name:      "messages",
		Partition: KeyAttr{Name: "chat_id", Type: AttrString},
		Sort:      []KeyAttr{{Name: "ts", Type: AttrNumber}},
		Index: &IndexSchema{
			Name:      "messages_by_id",
			Partition: KeyAttr{Name: "chat_id", Type: AttrString},
			Sort:      KeyAttr{Name: "msg_id", Type: AttrString},
		},
	}
}

func seedMessages(t *testing.T, st *Store, chatID string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		item := Item{
			"chat_id": chatID,
			"ts":      int64(i * 100),
			"msg_id":  fmt.Sprintf("m%03d", i),
			"body":    fmt.Sprintf("message %d", i),
		}
		if err := st.PutItem("messages", item); err != nil {
			t.Fatalf("PutItem %d: %v", i, err)
		}
	}
}

func TestCreateTableDuplicate(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := st.CreateTable(msgSchema()); !errs.IsValidation(err) {
		t.Fatalf("duplicate CreateTable: want validation error, got %v", err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	item := Item{"chat_id": "c1", "ts": int64(42), "msg_id": "m1", "body": "hello"}
	if err := st.PutItem("messages", item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}
	got, err := st.GetItem("messages", Item{"chat_id": "c1", "ts": int64(42)})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got["body"] != "hello" {
		t.Fatalf("body = %v, want hello", got["body"])
	}
	if _, err := st.GetItem("messages", Item{"chat_id": "c1", "ts": int64(43)}); !errs.IsNotFound(err) {
		t.Fatalf("missing row: want not-found, got %v", err)
	}
}

func TestQueryDescendingPagination(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 10)

	// first page: the 4 newest
	p1, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 4})
	if err != nil {
		t.Fatalf("Query p1: %v", err)
	}
	if len(p1.Items) != 4 {
		t.Fatalf("p1 len = %d, want 4", len(p1.Items))
	}
	if p1.Items[0]["msg_id"] != "m010" || p1.Items[3]["msg_id"] != "m007" {
		t.Fatalf("p1 order wrong: %v .. %v", p1.Items[0]["msg_id"], p1.Items[3]["msg_id"])
	}
	if p1.Cursor == "" {
		t.Fatal("p1 should carry a cursor")
	}

	// second page resumes without overlap or gaps
	p2, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 4, Cursor: p1.Cursor})
	if err != nil {
		t.Fatalf("Query p2: %v", err)
	}
	if len(p2.Items) != 4 {
		t.Fatalf("p2 len = %d, want 4", len(p2.Items))
	}
	if p2.Items[0]["msg_id"] != "m006" || p2.Items[3]["msg_id"] != "m003" {
		t.Fatalf("p2 order wrong: %v .. %v", p2.Items[0]["msg_id"], p2.Items[3]["msg_id"])
	}

	// third page drains the partition and carries no cursor
	p3, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 4, Cursor: p2.Cursor})
	if err != nil {
		t.Fatalf("Query p3: %v", err)
	}
	if len(p3.Items) != 2 {
		t.Fatalf("p3 len = %d, want 2", len(p3.Items))
	}
	if p3.Cursor != "" {
		t.Fatalf("p3 cursor = %q, want empty", p3.Cursor)
	}
}

func TestQueryAscendingWithBound(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 5)

	p, err := st.Query("messages", QueryInput{Partition: "c1", Ascending: true, Bound: int64(200), Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(p.Items) != 3 {
		t.Fatalf("len = %d, want 3 (rows above ts 200)", len(p.Items))
	}
	if p.Items[0]["msg_id"] != "m003" {
		t.Fatalf("first = %v, want m003", p.Items[0]["msg_id"])
	}
}

func TestQueryEdgeCases(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 3)

	// non-positive limit: empty page, no cursor, no error
	p, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 0})
	if err != nil {
		t.Fatalf("Query limit 0: %v", err)
	}
	if len(p.Items) != 0 || p.Cursor != "" {
		t.Fatalf("limit 0: items=%d cursor=%q, want empty", len(p.Items), p.Cursor)
	}

	// absent partition: empty page, not an error
	p, err = st.Query("messages", QueryInput{Partition: "nope", Limit: 5})
	if err != nil {
		t.Fatalf("Query absent partition: %v", err)
	}
	if len(p.Items) != 0 {
		t.Fatalf("absent partition returned %d items", len(p.Items))
	}

	// garbage cursor is a validation error
	if _, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 5, Cursor: "!!!"}); !errs.IsValidation(err) {
		t.Fatalf("garbage cursor: want validation error, got %v", err)
	}
}

func TestCursorSurvivesRowDeletion(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 6)

	p1, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 3})
	if err != nil {
		t.Fatalf("Query p1: %v", err)
	}
	// delete the row the cursor points at (m004, the last of page one)
	if err := st.DeleteItem("messages", Item{"chat_id": "c1", "ts": int64(400)}); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	p2, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 3, Cursor: p1.Cursor})
	if err != nil {
		t.Fatalf("Query p2: %v", err)
	}
	if len(p2.Items) != 3 {
		t.Fatalf("p2 len = %d, want 3", len(p2.Items))
	}
	if p2.Items[0]["msg_id"] != "m003" {
		t.Fatalf("p2 first = %v, want m003", p2.Items[0]["msg_id"])
	}
}

func TestUpdateItemOverlayAndDelete(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 1)

	key := Item{"chat_id": "c1", "ts": int64(100)}
	got, err := st.UpdateItem("messages", key, Item{"body": "edited", "pinned": true})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if got["body"] != "edited" || got["pinned"] != true {
		t.Fatalf("overlay wrong: %v", got)
	}
	// nil deletes the attribute; untouched attributes persist
	got, err = st.UpdateItem("messages", key, Item{"pinned": nil})
	if err != nil {
		t.Fatalf("UpdateItem delete attr: %v", err)
	}
	if _, ok := got["pinned"]; ok {
		t.Fatal("pinned should have been removed")
	}
	if got["body"] != "edited" {
		t.Fatalf("body lost on second update: %v", got["body"])
	}
}

func TestCheckAndPutConflict(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	item := Item{"chat_id": "c1", "ts": int64(1), "msg_id": "m1", "reactions": map[string]any{}}

	// version 0 means the row does not exist yet
	if err := st.CheckAndPut("messages", item, 0); err != nil {
		t.Fatalf("CheckAndPut initial: %v", err)
	}
	// a stale expectation is rejected and writes nothing
	stale := Item{"chat_id": "c1", "ts": int64(1), "msg_id": "m1", "body": "stale"}
	if err := st.CheckAndPut("messages", stale, 0); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("stale CheckAndPut: want conflict, got %v", err)
	}
	got, err := st.GetItem("messages", Item{"chat_id": "c1", "ts": int64(1)})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if _, ok := got["body"]; ok {
		t.Fatal("stale write must not land")
	}
	if v, _ := AsInt64(got[VersionAttr]); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
	// the correct expectation succeeds and bumps the version
	fresh := Item{"chat_id": "c1", "ts": int64(1), "msg_id": "m1", "body": "fresh"}
	if err := st.CheckAndPut("messages", fresh, 1); err != nil {
		t.Fatalf("CheckAndPut v1: %v", err)
	}
	got, _ = st.GetItem("messages", Item{"chat_id": "c1", "ts": int64(1)})
	if v, _ := AsInt64(got[VersionAttr]); v != 2 {
		t.Fatalf("version = %d, want 2", v)
	}
}

func TestGetIndexItem(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 3)

	got, err := st.GetIndexItem("messages", "c1", "m002")
	if err != nil {
		t.Fatalf("GetIndexItem: %v", err)
	}
	if ts, _ := AsInt64(got["ts"]); ts != 200 {
		t.Fatalf("ts = %d, want 200", ts)
	}
	if _, err := st.GetIndexItem("messages", "c1", "missing"); !errs.IsNotFound(err) {
		t.Fatalf("missing index row: want not-found, got %v", err)
	}
}

func TestCountAfter(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 5)

	n, err := st.CountAfter("messages", "c1", int64(300))
	if err != nil {
		t.Fatalf("CountAfter: %v", err)
	}
	if n != 2 {
		t.Fatalf("count above 300 = %d, want 2", n)
	}
	n, err = st.CountAfter("messages", "c1", nil)
	if err != nil {
		t.Fatalf("CountAfter nil bound: %v", err)
	}
	if n != 5 {
		t.Fatalf("count with no bound = %d, want 5", n)
	}
}

func TestStringKeyRejectsReservedBytes(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := st.PutItem("messages", Item{"chat_id": "u1", "ts": int64(100), "msg_id": "m1"}); err != nil {
		t.Fatalf("PutItem u1: %v", err)
	}

	// a partition value carrying the separator would sit inside u1's
	// key range and surface in u1's pages
	crafted := Item{"chat_id": "u1:evil", "ts": int64(200), "msg_id": "m2"}
	if err := st.PutItem("messages", crafted); !errs.IsValidation(err) {
		t.Fatalf("separator in partition key: want validation error, got %v", err)
	}
	if _, err := st.Query("messages", QueryInput{Partition: "u1:evil", Limit: 5}); !errs.IsValidation(err) {
		t.Fatalf("separator in query partition: want validation error, got %v", err)
	}
	if err := st.PutItem("messages", Item{"chat_id": "u1\xff", "ts": int64(200), "msg_id": "m2"}); !errs.IsValidation(err) {
		t.Fatalf("0xff in partition key: want validation error, got %v", err)
	}
	// string sort attributes of the index are covered too
	if err := st.PutItem("messages", Item{"chat_id": "u1", "ts": int64(300), "msg_id": "m:3"}); !errs.IsValidation(err) {
		t.Fatalf("separator in index sort key: want validation error, got %v", err)
	}

	p, err := st.Query("messages", QueryInput{Partition: "u1", Limit: 5})
	if err != nil {
		t.Fatalf("Query u1: %v", err)
	}
	if len(p.Items) != 1 || p.Items[0]["msg_id"] != "m1" {
		t.Fatalf("u1 page = %v, want only m1", p.Items)
	}
}

func TestCursorBoundToQueryShape(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 4)
	seedMessages(t, st, "c2", 4)

	p1, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if p1.Cursor == "" {
		t.Fatal("expected a cursor")
	}
	// a cursor replayed against another partition or direction must not
	// silently produce a page
	if _, err := st.Query("messages", QueryInput{Partition: "c2", Limit: 2, Cursor: p1.Cursor}); !errs.IsValidation(err) {
		t.Fatalf("foreign partition cursor: want validation error, got %v", err)
	}
	if _, err := st.Query("messages", QueryInput{Partition: "c1", Ascending: true, Limit: 2, Cursor: p1.Cursor}); !errs.IsValidation(err) {
		t.Fatalf("flipped direction cursor: want validation error, got %v", err)
	}
	p2, err := st.Query("messages", QueryInput{Partition: "c1", Limit: 2, Cursor: p1.Cursor})
	if err != nil {
		t.Fatalf("matching cursor: %v", err)
	}
	if len(p2.Items) != 2 || p2.Items[0]["msg_id"] != "m002" {
		t.Fatalf("p2 = %v, want m002..m001", p2.Items)
	}
}

func TestScanFilter(t *testing.T) {
	st := openStore(t)
	if err := st.CreateTable(msgSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seedMessages(t, st, "c1", 4)
	seedMessages(t, st, "c2", 2)

	items, err := st.Scan("messages", func(it Item) bool { return it["chat_id"] == "c2" })
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("filtered scan len = %d, want 2", len(items))
	}
}
