package models

// Content types stored under the content tagged union. The set is open:
// unknown types are stored and previewed as raw JSON.
const (
	ContentText    = "text"
	ContentVoice   = "voice"
	ContentMixed   = "mixed"
	ContentPaid    = "paid_media"
	ContentProduct = "product_recommendation"
	ContentExcl    = "exclusive"
)

// Message is a row in the chat_messages table, keyed by
// (chat_id, message_ts). message_ts is unique and monotonic within a chat
// partition; message_id is an independently generated identifier used only
// for point addressing via the secondary index.
type Message struct {
	ChatID      string         `json:"chat_id"`
	MessageID   string         `json:"message_id"`
	MessageTS   int64          `json:"message_ts"`
	ContentType string         `json:"content_type"`
	Content     map[string]any `json:"content,omitempty"`
	Reactions   map[string]int `json:"reactions,omitempty"`
	IsPinned    bool           `json:"is_pinned,omitempty"`
	PinnedAt    int64          `json:"pinned_at,omitempty"`
	IsUrgent    bool           `json:"is_urgent,omitempty"`
	Locked      bool           `json:"locked,omitempty"`
	DeletedAt   int64          `json:"deleted_at,omitempty"`
	EditedAt    int64          `json:"edited_at,omitempty"`
	PayToView   bool           `json:"pay_to_view,omitempty"`
	ContentFlag string         `json:"content_flag,omitempty"`
	CreatedAt   int64          `json:"created_at,omitempty"`
}

// Deleted reports whether the message carries a soft-delete tombstone.
func (m Message) Deleted() bool { return m.DeletedAt != 0 }
