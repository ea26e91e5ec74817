package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"chatstore/pkg/chat"
	"chatstore/pkg/config"
	"chatstore/pkg/errs"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
)

func newTestSweeper(t *testing.T) (*Sweeper, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := chat.EnsureTables(st); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	return New(st, config.Default().Sweep), st
}

func putChat(t *testing.T, st *store.Store, chatID string, age time.Duration, autoExpired bool, archivedAt int64) {
	t.Helper()
	item := store.Item{
		"chat_id":    chatID,
		"created_by": "a",
		"created_at": time.Now().UTC().Add(-age).UnixNano(),
	}
	if autoExpired {
		item["auto_expired"] = true
	}
	if archivedAt != 0 {
		item["archived_at"] = archivedAt
	}
	if err := st.PutItem(chat.TableChats, item); err != nil {
		t.Fatalf("PutItem %s: %v", chatID, err)
	}
}

func getChat(t *testing.T, st *store.Store, chatID string) models.Chat {
	t.Helper()
	it, err := st.GetItem(chat.TableChats, store.Item{"chat_id": chatID})
	if err != nil {
		t.Fatalf("GetItem %s: %v", chatID, err)
	}
	c, err := decodeChat(it)
	if err != nil {
		t.Fatalf("decode %s: %v", chatID, err)
	}
	return c
}

func TestExpireOldChats(t *testing.T) {
	sw, st := newTestSweeper(t)
	ctx := context.Background()

	putChat(t, st, "fresh", time.Hour, false, 0)
	putChat(t, st, "stale", 31*24*time.Hour, false, 0)
	putChat(t, st, "already", 31*24*time.Hour, true, 0)
	putChat(t, st, "archived", 90*24*time.Hour, true, time.Now().UTC().UnixNano())

	rep, err := sw.ExpireOldChats(ctx)
	if err != nil {
		t.Fatalf("ExpireOldChats: %v", err)
	}
	if rep.Failed != nil {
		t.Fatalf("unexpected failures: %v", rep.Failed)
	}
	if rep.Updated != 1 {
		t.Fatalf("updated = %d, want 1", rep.Updated)
	}
	if c := getChat(t, st, "stale"); c.State() != models.StateAutoExpired {
		t.Fatalf("stale state = %s", c.State())
	}
	if c := getChat(t, st, "fresh"); c.State() != models.StateActive {
		t.Fatalf("fresh state = %s", c.State())
	}
	if c := getChat(t, st, "archived"); c.State() != models.StateArchived {
		t.Fatalf("archived state = %s", c.State())
	}

	// a second run converges to zero updates
	rep, err = sw.ExpireOldChats(ctx)
	if err != nil {
		t.Fatalf("second ExpireOldChats: %v", err)
	}
	if rep.Updated != 0 {
		t.Fatalf("second run updated = %d, want 0", rep.Updated)
	}
}

func TestArchiveExpiredChats(t *testing.T) {
	sw, st := newTestSweeper(t)
	ctx := context.Background()

	putChat(t, st, "young-expired", 40*24*time.Hour, true, 0)
	putChat(t, st, "old-expired", 70*24*time.Hour, true, 0)
	putChat(t, st, "old-active", 70*24*time.Hour, false, 0)

	rep, err := sw.ArchiveExpiredChats(ctx)
	if err != nil {
		t.Fatalf("ArchiveExpiredChats: %v", err)
	}
	if rep.Updated != 1 {
		t.Fatalf("updated = %d, want 1", rep.Updated)
	}
	first := getChat(t, st, "old-expired")
	if first.State() != models.StateArchived {
		t.Fatalf("old-expired state = %s", first.State())
	}
	// only auto-expired chats archive on age; active ones wait for the
	// expire job first
	if c := getChat(t, st, "old-active"); c.State() != models.StateActive {
		t.Fatalf("old-active state = %s", c.State())
	}

	// re-running never rewrites archived_at
	time.Sleep(2 * time.Millisecond)
	if _, err := sw.ArchiveExpiredChats(ctx); err != nil {
		t.Fatalf("second ArchiveExpiredChats: %v", err)
	}
	if again := getChat(t, st, "old-expired"); again.ArchivedAt != first.ArchivedAt {
		t.Fatalf("archived_at moved: %d -> %d", first.ArchivedAt, again.ArchivedAt)
	}
}

func TestSweepIsolatesRowFailures(t *testing.T) {
	sw, st := newTestSweeper(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		putChat(t, st, "chat-"+id, 31*24*time.Hour, false, 0)
	}
	// a row with a malformed created_at fails alone without stopping the run
	if err := st.PutItem(chat.TableChats, store.Item{"chat_id": "broken", "created_at": "not-a-number"}); err != nil {
		t.Fatalf("PutItem broken: %v", err)
	}

	rep, err := sw.ExpireOldChats(ctx)
	if err != nil {
		t.Fatalf("ExpireOldChats: %v", err)
	}
	if rep.Updated != 3 {
		t.Fatalf("updated = %d, want 3", rep.Updated)
	}
	if rep.Scanned != 4 {
		t.Fatalf("scanned = %d, want 4", rep.Scanned)
	}
	var pbf *errs.PartialBatchFailure
	if !errors.As(rep.Failed, &pbf) {
		t.Fatalf("Failed = %v, want a partial batch failure", rep.Failed)
	}
	if len(pbf.Failures) != 1 || pbf.Failures[0].Key != "broken" {
		t.Fatalf("failures = %+v", pbf.Failures)
	}
}

func TestRunAllOrder(t *testing.T) {
	sw, st := newTestSweeper(t)
	ctx := context.Background()
	putChat(t, st, "ancient", 90*24*time.Hour, false, 0)

	reports, err := sw.RunAll(ctx)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(reports) != 2 || reports[0].Job != "expire" || reports[1].Job != "archive" {
		t.Fatalf("reports = %+v", reports)
	}
	// one pass expires and then archives in the same run
	if c := getChat(t, st, "ancient"); c.State() != models.StateArchived {
		t.Fatalf("ancient state = %s", c.State())
	}
}

func TestPartialBatchFailureMessage(t *testing.T) {
	err := &errs.PartialBatchFailure{
		Op: "sweep_expire",
		Failures: []errs.RowFailure{
			{Key: "chat#1", Err: errs.Validation("bad row")},
		},
	}
	if err.Error() == "" {
		t.Fatal("failure message empty")
	}
}
