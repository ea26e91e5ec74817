package chat

import (
	"context"
	"time"

	"chatstore/pkg/errs"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
	"chatstore/pkg/utils"
	"chatstore/pkg/validation"
)

// newMessage assembles the common shell of a message row. The cluster
// timestamp is allocated strictly increasing so two sends in the same
// chat never collide on the primary key.
func newMessage(chatID, contentType string, content map[string]any) models.Message {
	now := time.Now().UTC().UnixNano()
	return models.Message{
		ChatID:      chatID,
		MessageID:   utils.GenMessageID(),
		MessageTS:   utils.NextMessageTS(),
		ContentType: contentType,
		Content:     content,
		CreatedAt:   now,
	}
}

func (s *Service) putMessage(msg models.Message) error {
	it, err := toItem(msg)
	if err != nil {
		return err
	}
	return s.st.PutItem(TableChatMessages, it)
}

// SendMessage appends a plain text message and returns its id.
func (s *Service) SendMessage(ctx context.Context, chatID, senderID, text string) (string, error) {
	op := "send_message"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"text":      {Value: text, Type: "string", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	if err := validation.CheckLength(text, s.limits.MaxMessageChars); err != nil {
		return "", s.fail(op, err, true)
	}
	msg := newMessage(chatID, models.ContentText, map[string]any{
		"text":      text,
		"sender_id": senderID,
	})
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// SendVoiceMessage appends a voice message referencing uploaded audio.
func (s *Service) SendVoiceMessage(ctx context.Context, chatID, senderID, audioURL string, durationSec float64) (string, error) {
	op := "send_voice_message"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"audio_url": {Value: audioURL, Type: "string", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	msg := newMessage(chatID, models.ContentVoice, map[string]any{
		"audio_url": audioURL,
		"duration":  durationSec,
		"sender_id": senderID,
	})
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// SendMixedMessage appends a message composed of ordered text and media
// elements.
func (s *Service) SendMixedMessage(ctx context.Context, chatID, senderID string, elements []map[string]any) (string, error) {
	op := "send_mixed_message"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"elements":  {Value: elements, Type: "array", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	els := make([]any, len(elements))
	for i, e := range elements {
		els[i] = e
	}
	msg := newMessage(chatID, models.ContentMixed, map[string]any{
		"elements":  els,
		"sender_id": senderID,
	})
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// SendPaidMedia appends media gated behind payment. The row carries the
// pay_to_view flag; purchase settlement happens elsewhere.
func (s *Service) SendPaidMedia(ctx context.Context, chatID, senderID string, media map[string]any, price float64) (string, error) {
	op := "send_paid_media"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"media":     {Value: media, Type: "object", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	content := map[string]any{"sender_id": senderID, "price": price}
	for k, v := range media {
		content[k] = v
	}
	msg := newMessage(chatID, models.ContentPaid, content)
	msg.PayToView = true
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// SendProductRecommendation appends a product card message.
func (s *Service) SendProductRecommendation(ctx context.Context, chatID, senderID string, product map[string]any) (string, error) {
	op := "send_product_recommendation"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"product":   {Value: product, Type: "object", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	msg := newMessage(chatID, models.ContentProduct, map[string]any{
		"product_recommendation": product,
		"sender_id":              senderID,
	})
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// SendExclusiveContent appends creator content restricted to qualifying
// members. The content_flag marks the row for access checks at read time.
func (s *Service) SendExclusiveContent(ctx context.Context, chatID, senderID string, content map[string]any) (string, error) {
	op := "send_exclusive_content"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":   {Value: chatID, Type: "string", Required: true},
		"sender_id": {Value: senderID, Type: "string", Required: true},
		"content":   {Value: content, Type: "object", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	body := map[string]any{"sender_id": senderID}
	for k, v := range content {
		body[k] = v
	}
	msg := newMessage(chatID, models.ContentExcl, body)
	msg.ContentFlag = "exclusive"
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", chatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// StoreChatMessage persists a fully formed message row, for callers that
// build messages upstream (bots, importers). Missing identity attributes
// are allocated.
func (s *Service) StoreChatMessage(ctx context.Context, msg models.Message) (string, error) {
	op := "store_chat_message"
	if msg.ChatID == "" {
		return "", s.fail(op, errs.Validation("chat_id is required"), true)
	}
	if msg.MessageID == "" {
		msg.MessageID = utils.GenMessageID()
	}
	if msg.MessageTS == 0 {
		msg.MessageTS = utils.NextMessageTS()
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UTC().UnixNano()
	}
	if err := s.putMessage(msg); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", msg.ChatID, "message_id", msg.MessageID)
	return msg.MessageID, nil
}

// MessagePage is one page of a chat's history, newest first.
type MessagePage struct {
	Messages []models.Message
	Cursor   string
}

// FetchRecentMessages pages a chat's history newest-first. Deleted
// messages stay in the page as tombstones so clients can render
// placeholders; filtering is a presentation concern.
func (s *Service) FetchRecentMessages(ctx context.Context, chatID, cursor string, limit int) (MessagePage, error) {
	var out MessagePage
	if chatID == "" {
		return out, errs.Validation("chat_id is required")
	}
	if limit > s.limits.MaxPageSize && s.limits.MaxPageSize > 0 {
		limit = s.limits.MaxPageSize
	}
	page, err := s.st.Query(TableChatMessages, store.QueryInput{
		Partition: chatID,
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return out, err
	}
	for _, it := range page.Items {
		var m models.Message
		if err := fromItem(it, &m); err != nil {
			return out, err
		}
		out.Messages = append(out.Messages, m)
	}
	out.Cursor = page.Cursor
	return out, nil
}

// GetMessage resolves one message by its public id.
func (s *Service) GetMessage(ctx context.Context, chatID, messageID string) (models.Message, error) {
	return s.resolveMessage(ctx, chatID, messageID)
}

// ReactToMessage adds count reactions (default 1 when count <= 0) of the
// given emoji. Reaction totals survive concurrent reactors through the
// versioned read-modify-write path.
func (s *Service) ReactToMessage(ctx context.Context, chatID, messageID, emoji string, count int) error {
	op := "react_to_message"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":    {Value: chatID, Type: "string", Required: true},
		"message_id": {Value: messageID, Type: "string", Required: true},
		"emoji":      {Value: emoji, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	if count <= 0 {
		count = 1
	}
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	err = s.mutateMapAttr(TableChatMessages, messageKey(msg), "reactions", func(m map[string]any) {
		cur, _ := store.AsInt64(m[emoji])
		m[emoji] = cur + int64(count)
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID, "emoji", emoji)
	return nil
}

// EditMessage replaces the message content and stamps edited_at.
func (s *Service) EditMessage(ctx context.Context, chatID, messageID string, content map[string]any) error {
	op := "edit_message"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":    {Value: chatID, Type: "string", Required: true},
		"message_id": {Value: messageID, Type: "string", Required: true},
		"content":    {Value: content, Type: "object", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	if text, ok := content["text"].(string); ok {
		if err := validation.CheckLength(text, s.limits.MaxMessageChars); err != nil {
			return s.fail(op, err, false)
		}
	}
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	_, err = s.st.UpdateItem(TableChatMessages, messageKey(msg), store.Item{
		"content":   content,
		"edited_at": time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID)
	return nil
}

// DeleteMessage soft-deletes a message. The row stays in place with a
// deleted_at stamp so history pagination and cursors keep working.
func (s *Service) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	op := "delete_message"
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	_, err = s.st.UpdateItem(TableChatMessages, messageKey(msg), store.Item{
		"deleted_at": time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID)
	return nil
}

// PinMessage pins or unpins a message. Unpinning clears the pin stamp.
func (s *Service) PinMessage(ctx context.Context, chatID, messageID string, pinned bool) error {
	op := "pin_message"
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	attrs := store.Item{"is_pinned": pinned}
	if pinned {
		attrs["pinned_at"] = time.Now().UTC().UnixNano()
	} else {
		attrs["pinned_at"] = nil
	}
	if _, err := s.st.UpdateItem(TableChatMessages, messageKey(msg), attrs); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID, "pinned", pinned)
	return nil
}

// FlagMessageUrgent marks a message urgent for client emphasis.
func (s *Service) FlagMessageUrgent(ctx context.Context, chatID, messageID string, urgent bool) error {
	op := "flag_message_urgent"
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	if _, err := s.st.UpdateItem(TableChatMessages, messageKey(msg), store.Item{"is_urgent": urgent}); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID, "urgent", urgent)
	return nil
}

// LockMessageReplies closes or reopens the reply thread under a message.
func (s *Service) LockMessageReplies(ctx context.Context, chatID, messageID string, locked bool) error {
	op := "lock_message_replies"
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	if _, err := s.st.UpdateItem(TableChatMessages, messageKey(msg), store.Item{"locked": locked}); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID, "locked", locked)
	return nil
}

// attachToContent merges extra keys into the message content mapping
// through the versioned path so concurrent attachments compose.
func (s *Service) attachToContent(ctx context.Context, op, chatID, messageID string, extra map[string]any) error {
	msg, err := s.resolveMessage(ctx, chatID, messageID)
	if err != nil {
		return s.fail(op, err, false)
	}
	err = s.mutateMapAttr(TableChatMessages, messageKey(msg), "content", func(m map[string]any) {
		for k, v := range extra {
			m[k] = v
		}
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "message_id", messageID)
	return nil
}

// LinkPollToMessage records a poll reference on the message content.
func (s *Service) LinkPollToMessage(ctx context.Context, chatID, messageID, pollID string) error {
	if pollID == "" {
		return s.fail("link_poll_to_message", errs.Validation("poll_id is required"), false)
	}
	return s.attachToContent(ctx, "link_poll_to_message", chatID, messageID, map[string]any{"poll_id": pollID})
}

// AttachTaskToMessage records a task reference on the message content.
func (s *Service) AttachTaskToMessage(ctx context.Context, chatID, messageID, taskID string) error {
	if taskID == "" {
		return s.fail("attach_task_to_message", errs.Validation("task_id is required"), false)
	}
	return s.attachToContent(ctx, "attach_task_to_message", chatID, messageID, map[string]any{"task_id": taskID})
}

// AttachVirtualGift records a gift payload on the message content.
func (s *Service) AttachVirtualGift(ctx context.Context, chatID, messageID string, gift map[string]any) error {
	if len(gift) == 0 {
		return s.fail("attach_virtual_gift", errs.Validation("gift payload is required"), false)
	}
	return s.attachToContent(ctx, "attach_virtual_gift", chatID, messageID, map[string]any{"gift": gift})
}

// AttachTip records a tip transaction on the message content. Moving the
// money is an external collaborator's job.
func (s *Service) AttachTip(ctx context.Context, chatID, messageID string, amount float64, currency string) error {
	op := "attach_tip"
	if amount <= 0 {
		return s.fail(op, errs.Validation("tip amount must be positive"), false)
	}
	if currency == "" {
		currency = "USD"
	}
	return s.attachToContent(ctx, op, chatID, messageID, map[string]any{
		"transaction": map[string]any{"amount": amount, "currency": currency, "type": "tip"},
	})
}
