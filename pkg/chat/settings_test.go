package chat

import (
	"context"
	"sync"
	"testing"
)

func TestNotificationSettingsPreserveOtherChats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.UpdateNotificationSettings(ctx, "u1", "c1", map[string]any{"muted": true}); err != nil {
		t.Fatalf("UpdateNotificationSettings c1: %v", err)
	}
	if err := svc.UpdateNotificationSettings(ctx, "u1", "c2", map[string]any{"muted": false}); err != nil {
		t.Fatalf("UpdateNotificationSettings c2: %v", err)
	}
	st, err := svc.GetUserSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	if st.Notifications["c1"]["muted"] != true {
		t.Fatalf("c1 prefs lost: %v", st.Notifications)
	}
	if st.Notifications["c2"]["muted"] != false {
		t.Fatalf("c2 prefs wrong: %v", st.Notifications)
	}
}

func TestConcurrentSettingsUpdatesCompose(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	chats := []string{"c1", "c2", "c3"}
	var wg sync.WaitGroup
	for _, c := range chats {
		wg.Add(1)
		go func(chatID string) {
			defer wg.Done()
			if err := svc.UpgradeMembership(ctx, "u1", chatID, "gold"); err != nil {
				t.Errorf("UpgradeMembership %s: %v", chatID, err)
			}
		}(c)
	}
	wg.Wait()

	st, err := svc.GetUserSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	for _, c := range chats {
		if st.Memberships[c] != "gold" {
			t.Fatalf("membership for %s lost: %v", c, st.Memberships)
		}
	}
}

func TestReadPointerAndUnreadCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	chatID, _ := svc.CreateChat(ctx, CreateChatInput{CreatedBy: "a", Participants: []string{"a", "b"}})

	var ids []string
	for _, text := range []string{"one", "two", "three", "four"} {
		id, err := svc.SendMessage(ctx, chatID, "a", text)
		if err != nil {
			t.Fatalf("SendMessage %s: %v", text, err)
		}
		ids = append(ids, id)
	}

	// no pointer yet: everything is unread
	n, err := svc.GetUnreadCount(ctx, "b", chatID)
	if err != nil {
		t.Fatalf("GetUnreadCount: %v", err)
	}
	if n != 4 {
		t.Fatalf("unread = %d, want 4", n)
	}

	if err := svc.MarkMessageRead(ctx, "b", chatID, ids[1]); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	n, _ = svc.GetUnreadCount(ctx, "b", chatID)
	if n != 2 {
		t.Fatalf("unread after read = %d, want 2", n)
	}

	// the pointer never moves backwards
	if err := svc.MarkMessageRead(ctx, "b", chatID, ids[3]); err != nil {
		t.Fatalf("MarkMessageRead forward: %v", err)
	}
	if err := svc.MarkMessageRead(ctx, "b", chatID, ids[0]); err != nil {
		t.Fatalf("MarkMessageRead backward: %v", err)
	}
	n, _ = svc.GetUnreadCount(ctx, "b", chatID)
	if n != 0 {
		t.Fatalf("unread after backward mark = %d, want 0", n)
	}
}

func TestTrialStoresAbsoluteExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.StartChatTrial(ctx, "u1", "c1", 0); err != nil {
		t.Fatalf("StartChatTrial: %v", err)
	}
	st, err := svc.GetUserSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	exp, ok := st.TrialAccess["c1"]
	if !ok || exp == 0 {
		t.Fatalf("trial expiry missing: %v", st.TrialAccess)
	}
}
