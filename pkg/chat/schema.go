package chat

import (
	"chatstore/pkg/errs"
	"chatstore/pkg/store"
)

// Table names and the message-id index. The attribute names inside rows
// are the persisted compatibility contract; renaming any of them is a
// breaking change for every collaborator reading the store.
const (
	TableChats        = "chats"
	TableUserChats    = "user_chats"
	TableChatMessages = "chat_messages"
	TableUserSettings = "user_settings"
	IndexMessagesByID = "chat_messages_by_id"
)

// EnsureTables registers the four table schemas and the secondary index.
// Safe to call once per store lifetime, typically right after Open.
func EnsureTables(st *store.Store) error {
	schemas := []store.Schema{
		{
			Name:      TableChats,
			Partition: store.KeyAttr{Name: "chat_id", Type: store.AttrString},
		},
		{
			Name:      TableUserChats,
			Partition: store.KeyAttr{Name: "user_id", Type: store.AttrString},
			Sort: []store.KeyAttr{
				{Name: "featured", Type: store.AttrBool},
				{Name: "is_critical", Type: store.AttrBool},
				{Name: "last_message_ts", Type: store.AttrNumber},
				{Name: "chat_id", Type: store.AttrString},
			},
		},
		{
			Name:      TableChatMessages,
			Partition: store.KeyAttr{Name: "chat_id", Type: store.AttrString},
			Sort: []store.KeyAttr{
				{Name: "message_ts", Type: store.AttrNumber},
			},
			Index: &store.IndexSchema{
				Name:      IndexMessagesByID,
				Partition: store.KeyAttr{Name: "chat_id", Type: store.AttrString},
				Sort:      store.KeyAttr{Name: "message_id", Type: store.AttrString},
			},
		},
		{
			Name:      TableUserSettings,
			Partition: store.KeyAttr{Name: "user_id", Type: store.AttrString},
		},
	}
	for _, sc := range schemas {
		if err := st.CreateTable(sc); err != nil {
			if errs.IsValidation(err) {
				continue // already registered
			}
			return err
		}
	}
	return nil
}
