package models

// UserSettings is a row in the user_settings table, keyed by user_id. Each
// field is a chat_id-keyed mapping mutated via read-modify-write: the whole
// mapping is replaced on every update.
type UserSettings struct {
	UserID        string                    `json:"user_id"`
	Notifications map[string]map[string]any `json:"notifications,omitempty"`
	ReadReceipts  map[string]int64          `json:"read_receipts,omitempty"`
	Memberships   map[string]string         `json:"memberships,omitempty"`
	TrialAccess   map[string]int64          `json:"trial_access,omitempty"`
}

// UserChatRef is a row in the user_chats table: a denormalized per-user
// fan-out of chat membership ordered so featured and critical chats sort
// ahead of the rest, newest activity first. The write path that keeps
// last_message_ts in step with message traffic belongs to an external
// collaborator; the core only exposes upsert and remove.
type UserChatRef struct {
	UserID        string `json:"user_id"`
	Featured      bool   `json:"featured"`
	IsCritical    bool   `json:"is_critical"`
	LastMessageTS int64  `json:"last_message_ts"`
	ChatID        string `json:"chat_id"`
}
