package chat

import (
	"context"
	"time"

	"chatstore/pkg/errs"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
	"chatstore/pkg/validation"
)

// DefaultTrialDays is the trial window applied when a caller does not
// specify one.
const DefaultTrialDays = 7

func settingsKey(userID string) store.Item {
	return store.Item{"user_id": userID}
}

// GetUserSettings reads a user's settings row. A user with no row yet
// gets an empty settings value, not an error.
func (s *Service) GetUserSettings(ctx context.Context, userID string) (models.UserSettings, error) {
	out := models.UserSettings{UserID: userID}
	if userID == "" {
		return out, errs.Validation("user_id is required")
	}
	it, err := s.st.GetItem(TableUserSettings, settingsKey(userID))
	if errs.IsNotFound(err) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if err := fromItem(it, &out); err != nil {
		return out, err
	}
	return out, nil
}

// UpdateNotificationSettings replaces the notification preferences for one
// chat inside the user's settings row. Preferences for other chats are
// untouched, also under concurrent updates.
func (s *Service) UpdateNotificationSettings(ctx context.Context, userID, chatID string, prefs map[string]any) error {
	op := "update_notification_settings"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"user_id": {Value: userID, Type: "string", Required: true},
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"prefs":   {Value: prefs, Type: "object", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	err := s.mutateMapAttr(TableUserSettings, settingsKey(userID), "notifications", func(m map[string]any) {
		m[chatID] = prefs
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", userID, "chat_id", chatID)
	return nil
}

// MarkMessageRead advances the user's read pointer for a chat to the
// given message. The pointer never moves backwards.
func (s *Service) MarkMessageRead(ctx context.Context, userID, chatID, messageID string) error {
	op := "mark_message_read"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"user_id":    {Value: userID, Type: "string", Required: true},
		"chat_id":    {Value: chatID, Type: "string", Required: true},
		"message_id": {Value: messageID, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	err = s.mutateMapAttr(TableUserSettings, settingsKey(userID), "read_receipts", func(m map[string]any) {
		if cur, ok := store.AsInt64(m[chatID]); ok && cur >= msg.MessageTS {
			return
		}
		m[chatID] = msg.MessageTS
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", userID, "chat_id", chatID, "message_ts", msg.MessageTS)
	return nil
}

// GetUnreadCount counts messages in a chat newer than the user's read
// pointer. A user with no pointer counts the whole chat.
func (s *Service) GetUnreadCount(ctx context.Context, userID, chatID string) (int, error) {
	if userID == "" || chatID == "" {
		return 0, errs.Validation("user_id and chat_id are required")
	}
	settings, err := s.GetUserSettings(ctx, userID)
	if err != nil {
		return 0, err
	}
	var lastRead any
	if ts, ok := settings.ReadReceipts[chatID]; ok {
		lastRead = ts
	}
	return s.st.CountAfter(TableChatMessages, chatID, lastRead)
}

// UpgradeMembership records the user's membership tier for a chat.
func (s *Service) UpgradeMembership(ctx context.Context, userID, chatID, tier string) error {
	op := "upgrade_membership"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"user_id": {Value: userID, Type: "string", Required: true},
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"tier":    {Value: tier, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	err := s.mutateMapAttr(TableUserSettings, settingsKey(userID), "memberships", func(m map[string]any) {
		m[chatID] = tier
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", userID, "chat_id", chatID, "tier", tier)
	return nil
}

// StartChatTrial grants the user time-boxed trial access to a chat. The
// expiry is stored as an absolute epoch so readers need no clock math
// beyond a comparison. Zero days means the default window.
func (s *Service) StartChatTrial(ctx context.Context, userID, chatID string, days int) error {
	op := "start_chat_trial"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"user_id": {Value: userID, Type: "string", Required: true},
		"chat_id": {Value: chatID, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	if days <= 0 {
		days = DefaultTrialDays
	}
	expiry := time.Now().UTC().Add(time.Duration(days) * 24 * time.Hour).UnixNano()
	err := s.mutateMapAttr(TableUserSettings, settingsKey(userID), "trial_access", func(m map[string]any) {
		m[chatID] = expiry
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", userID, "chat_id", chatID, "trial_days", days)
	return nil
}
