package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatstore/internal/sweeper"
	"chatstore/pkg/chat"
	"chatstore/pkg/config"
	"chatstore/pkg/store"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := chat.EnsureTables(st); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	cfg := config.Default()
	svc := chat.New(st, cfg.Limits)
	sw := sweeper.New(st, cfg.Sweep)
	return NewServer(svc, sw, st, cfg).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatMessageFlowOverHTTP(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/chats", map[string]any{
		"created_by":   "alice",
		"participants": []string{"alice", "bob"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create chat status = %d body = %s", rec.Code, rec.Body)
	}
	var created map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	chatID := created["chat_id"]
	if chatID == "" {
		t.Fatal("no chat_id in response")
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/chats/"+chatID+"/messages", map[string]any{
		"sender_id": "alice",
		"text":      "hello over http",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d body = %s", rec.Code, rec.Body)
	}
	var sent map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &sent)
	msgID := sent["message_id"]

	rec = doJSON(t, h, http.MethodPost, "/v1/chats/"+chatID+"/messages/"+msgID+"/reactions", map[string]any{
		"emoji": "🎉",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("react status = %d body = %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/chats/"+chatID+"/messages?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d body = %s", rec.Code, rec.Body)
	}
	var page struct {
		Messages []struct {
			MessageID string         `json:"message_id"`
			Preview   string         `json:"preview"`
			Reactions map[string]int `json:"reactions"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("page len = %d body = %s", len(page.Messages), rec.Body)
	}
	m := page.Messages[0]
	if m.MessageID != msgID || m.Preview != "hello over http" || m.Reactions["🎉"] != 1 {
		t.Fatalf("message wrong: %+v", m)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	h := newTestHandler(t)

	// missing required field
	rec := doJSON(t, h, http.MethodPost, "/v1/chats", map[string]any{"participants": []string{"a"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validation status = %d", rec.Code)
	}
	// unknown chat
	rec = doJSON(t, h, http.MethodGet, "/v1/chats/chat%23nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("not-found status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestAdminSweepEndpoint(t *testing.T) {
	h := newTestHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/v1/admin/sweep", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep status = %d body = %s", rec.Code, rec.Body)
	}
	var out struct {
		Jobs []struct {
			Job string `json:"job"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Jobs) != 2 {
		t.Fatalf("jobs = %+v", out.Jobs)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/admin/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d body = %s", rec.Code, rec.Body)
	}
	var stats struct {
		Rows map[string]int `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if _, ok := stats.Rows[chat.TableChats]; !ok {
		t.Fatalf("stats missing chats table: %v", stats.Rows)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHandler(t)
	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/metrics", nil); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}
