package api

import "net/http"

// openAPISpec is a summary document for the swagger UI. Routes carry full
// request/response shapes in their handlers; this document indexes them.
const openAPISpec = `{
  "openapi": "3.0.3",
  "info": {"title": "chatstore", "version": "1.0.0",
    "description": "Multi-tenant chat persistence API."},
  "paths": {
    "/v1/chats": {"post": {"summary": "Create a chat (kind: private, chime, group, event)"}},
    "/v1/chats/{chatID}": {"get": {"summary": "Fetch a chat row"}},
    "/v1/chats/{chatID}/archive": {"post": {"summary": "Archive a chat"}},
    "/v1/chats/{chatID}/mode": {"put": {"summary": "Switch private/broadcast mode"}},
    "/v1/chats/{chatID}/access": {"put": {"summary": "Set access level"}},
    "/v1/chats/{chatID}/metadata": {"put": {"summary": "Sparse metadata update"}},
    "/v1/chats/{chatID}/subscription": {"put": {"summary": "Toggle subscriber-only access"}},
    "/v1/chats/{chatID}/tiers": {"put": {"summary": "Replace membership tiers"}},
    "/v1/chats/{chatID}/roles/{userID}": {"put": {"summary": "Assign a participant role"}},
    "/v1/chats/{chatID}/join": {"post": {"summary": "Join a list-membership chat"}},
    "/v1/chats/{chatID}/messages": {
      "post": {"summary": "Send a message (content_type selects the variant)"},
      "get": {"summary": "Page history newest-first (cursor, limit)"}},
    "/v1/chats/{chatID}/messages/{messageID}": {
      "get": {"summary": "Fetch one message by public id"},
      "put": {"summary": "Edit message content"},
      "delete": {"summary": "Soft-delete a message"}},
    "/v1/chats/{chatID}/messages/{messageID}/reactions": {"post": {"summary": "Add reactions"}},
    "/v1/chats/{chatID}/messages/{messageID}/pin": {"put": {"summary": "Pin or unpin"}},
    "/v1/chats/{chatID}/messages/{messageID}/urgent": {"put": {"summary": "Flag urgent"}},
    "/v1/chats/{chatID}/messages/{messageID}/lock": {"put": {"summary": "Lock or unlock replies"}},
    "/v1/chats/{chatID}/messages/{messageID}/poll": {"put": {"summary": "Link a poll"}},
    "/v1/chats/{chatID}/messages/{messageID}/task": {"put": {"summary": "Attach a task"}},
    "/v1/chats/{chatID}/messages/{messageID}/gift": {"post": {"summary": "Attach a virtual gift"}},
    "/v1/chats/{chatID}/messages/{messageID}/tip": {"post": {"summary": "Attach a tip"}},
    "/v1/users/{userID}/chats": {
      "get": {"summary": "Page the user's chat list (featured, critical, recency)"},
      "put": {"summary": "Upsert a chat list row"},
      "delete": {"summary": "Remove a chat list row"}},
    "/v1/users/{userID}/settings": {"get": {"summary": "Fetch user settings"}},
    "/v1/users/{userID}/settings/notifications/{chatID}": {"put": {"summary": "Set per-chat notification prefs"}},
    "/v1/users/{userID}/read/{chatID}": {"put": {"summary": "Advance the read pointer"}},
    "/v1/users/{userID}/unread/{chatID}": {"get": {"summary": "Unread message count"}},
    "/v1/users/{userID}/memberships/{chatID}": {"put": {"summary": "Record a membership tier"}},
    "/v1/users/{userID}/trials/{chatID}": {"post": {"summary": "Start a trial window"}},
    "/v1/admin/sweep": {"post": {"summary": "Run lifecycle sweeps now"}},
    "/v1/admin/stats": {"get": {"summary": "Per-table row counts"}}
  }
}`

func serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(openAPISpec))
}
