package chat

import (
	"context"
	"time"

	"chatstore/pkg/errs"
	"chatstore/pkg/logger"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
)

// resolveMessage maps (chat_id, message_id) to the message's full primary
// key. The lookup goes through the by-id index, which is populated
// asynchronously, so a miss immediately after a send is expected: the
// lookup retries with doubling backoff before declaring the message
// missing. Context cancellation aborts the wait.
func (s *Service) resolveMessage(ctx context.Context, chatID, messageID string) (models.Message, error) {
	var msg models.Message
	if chatID == "" || messageID == "" {
		return msg, errs.Validation("chat_id and message_id are required")
	}
	delay := s.resolveBackoff
	for attempt := 0; attempt < s.resolveAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return msg, errs.Transient("message resolve canceled", ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
		it, err := s.st.GetIndexItem(TableChatMessages, chatID, messageID)
		if errs.IsNotFound(err) {
			logger.Debug("message not yet indexed", "chat_id", chatID, "message_id", messageID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return msg, err
		}
		if err := fromItem(it, &msg); err != nil {
			return msg, err
		}
		return msg, nil
	}
	return msg, errs.NotFound("message %s not found in chat %s", messageID, chatID)
}

// messageKey is the primary key of a resolved message row.
func messageKey(msg models.Message) store.Item {
	return store.Item{"chat_id": msg.ChatID, "message_ts": msg.MessageTS}
}
