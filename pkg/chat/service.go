// Package chat implements the persistence operations of the chat system on
// top of the generic store engine: chat lifecycle, the per-user chat
// fan-out, time-ordered messages with tagged-union payloads, and per-user
// notification/read state. Everything relational is a nested mapping on a
// single row mutated through the read-modify-write coordinator.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"chatstore/pkg/config"
	"chatstore/pkg/errs"
	"chatstore/pkg/models"
	"chatstore/pkg/store"
	"chatstore/pkg/utils"
	"chatstore/pkg/validation"
)

// Service exposes every chat storage operation. All methods are safe for
// concurrent use; cross-writer guarantees are those of the underlying
// store primitives only.
type Service struct {
	st     *store.Store
	limits config.LimitsConfig

	resolveAttempts int
	resolveBackoff  time.Duration
	rmwAttempts     int
}

// New builds a Service over an opened store whose tables were registered
// with EnsureTables.
func New(st *store.Store, limits config.LimitsConfig) *Service {
	return &Service{
		st:              st,
		limits:          limits,
		resolveAttempts: 4,
		resolveBackoff:  25 * time.Millisecond,
		rmwAttempts:     3,
	}
}

// toItem converts a typed model into a store row via its JSON shape.
// UseNumber keeps nanosecond timestamps exact through the round trip; the
// row key is derived from them.
func toItem(v any) (store.Item, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Internal("encode row", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var it store.Item
	if err := dec.Decode(&it); err != nil {
		return nil, errs.Internal("encode row", err)
	}
	return it, nil
}

// fromItem decodes a store row into a typed model.
func fromItem(it store.Item, v any) error {
	b, err := json.Marshal(it)
	if err != nil {
		return errs.Internal("decode row", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errs.Internal("decode row", err)
	}
	return nil
}

// CreateChatInput carries the attributes shared by the chat create
// operations. Roles, when set, fixes the participants representation to a
// role mapping; otherwise Participants fixes it to a member list. The
// representation never changes after creation.
type CreateChatInput struct {
	CreatedBy    string
	Participants []string
	Roles        map[string]string
	Name         string
	Metadata     map[string]any
}

func (in CreateChatInput) participants() models.Participants {
	if in.Roles != nil {
		return models.NewRoleMap(in.Roles)
	}
	return models.NewMemberList(in.Participants)
}

// CreateChat creates a private (non-group) chat and returns its id.
func (s *Service) CreateChat(ctx context.Context, in CreateChatInput) (string, error) {
	op := "create_chat"
	fields, err := validation.Sanitize(map[string]validation.Field{
		"created_by":   {Value: in.CreatedBy, Type: "string", Required: true},
		"participants": {Value: in.Participants, Type: "array", Required: in.Roles == nil},
		"name":         {Value: in.Name, Type: "string"},
	})
	if err != nil {
		return "", s.fail(op, err, true)
	}
	c := models.Chat{
		ChatID:       utils.GenChatID(),
		IsGroup:      false,
		CreatedBy:    fields["created_by"].(string),
		Participants: in.participants(),
		Name:         in.Name,
		Metadata:     in.Metadata,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	if err := s.putChat(c); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", c.ChatID)
	return c.ChatID, nil
}

// CreateChimeChat creates a group chat with a mode and participant cap.
func (s *Service) CreateChimeChat(ctx context.Context, in CreateChatInput, mode string, maxParticipants int) (string, error) {
	op := "create_chime_chat"
	fields, err := validation.Sanitize(map[string]validation.Field{
		"created_by":   {Value: in.CreatedBy, Type: "string", Required: true},
		"participants": {Value: in.Participants, Type: "array", Required: in.Roles == nil},
		"mode":         {Value: mode, Type: "string", Default: "private"},
	})
	if err != nil {
		return "", s.fail(op, err, true)
	}
	if maxParticipants <= 0 {
		maxParticipants = len(in.Participants)
	}
	m, _ := fields["mode"].(string)
	c := models.Chat{
		ChatID:          utils.GenChatID(),
		IsGroup:         true,
		CreatedBy:       in.CreatedBy,
		Participants:    in.participants(),
		Name:            in.Name,
		Mode:            m,
		MaxParticipants: maxParticipants,
		Metadata:        in.Metadata,
		CreatedAt:       time.Now().UTC().UnixNano(),
	}
	if err := s.putChat(c); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", c.ChatID)
	return c.ChatID, nil
}

// GroupChatInput extends CreateChatInput with the discovery metadata of a
// general-purpose group.
type GroupChatInput struct {
	CreateChatInput
	Description   string
	CoverImageURL string
	Rules         map[string]any
	Category      string
	Type          string
}

// CreateGroupChat creates a general group chat with discovery metadata.
func (s *Service) CreateGroupChat(ctx context.Context, in GroupChatInput) (string, error) {
	op := "create_group_chat"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"created_by":   {Value: in.CreatedBy, Type: "string", Required: true},
		"participants": {Value: in.Participants, Type: "array", Required: in.Roles == nil},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	c := models.Chat{
		ChatID:        utils.GenChatID(),
		IsGroup:       true,
		CreatedBy:     in.CreatedBy,
		Participants:  in.participants(),
		Name:          in.Name,
		Description:   in.Description,
		CoverImageURL: in.CoverImageURL,
		Rules:         in.Rules,
		Category:      in.Category,
		Type:          in.Type,
		Metadata:      in.Metadata,
		CreatedAt:     time.Now().UTC().UnixNano(),
	}
	if err := s.putChat(c); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", c.ChatID)
	return c.ChatID, nil
}

// EventChatInput describes a pay-per-event chat. Payment settlement is an
// external collaborator; the core only persists the price and event link.
type EventChatInput struct {
	CreateChatInput
	Description string
	EventID     string
	EventPrice  float64
}

// CreateEventChat creates a pay-per-event chat.
func (s *Service) CreateEventChat(ctx context.Context, in EventChatInput) (string, error) {
	op := "create_event_chat"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"created_by":   {Value: in.CreatedBy, Type: "string", Required: true},
		"participants": {Value: in.Participants, Type: "array", Required: in.Roles == nil},
		"event_id":     {Value: in.EventID, Type: "string", Required: true},
		"event_price":  {Value: in.EventPrice, Type: "number", Required: true},
	}); err != nil {
		return "", s.fail(op, err, true)
	}
	c := models.Chat{
		ChatID:       utils.GenChatID(),
		IsGroup:      true,
		CreatedBy:    in.CreatedBy,
		Participants: in.participants(),
		Name:         in.Name,
		Description:  in.Description,
		EventID:      in.EventID,
		EventPrice:   in.EventPrice,
		AccessLevel:  "pay-per-event",
		Metadata:     in.Metadata,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}
	if err := s.putChat(c); err != nil {
		return "", s.fail(op, err, true)
	}
	s.ok(op, "chat_id", c.ChatID)
	return c.ChatID, nil
}

func (s *Service) putChat(c models.Chat) error {
	it, err := toItem(c)
	if err != nil {
		return err
	}
	return s.st.PutItem(TableChats, it)
}

// GetChat returns a chat row by id.
func (s *Service) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var c models.Chat
	if chatID == "" {
		return c, errs.Validation("chat_id is required")
	}
	it, err := s.st.GetItem(TableChats, store.Item{"chat_id": chatID})
	if err != nil {
		return c, err
	}
	if err := fromItem(it, &c); err != nil {
		return c, err
	}
	return c, nil
}

// ArchiveChat stamps archived_at on the chat. Valid from the active and
// auto_expired states; once set the stamp never changes, so archiving an
// archived chat is a no-op.
func (s *Service) ArchiveChat(ctx context.Context, chatID string) error {
	op := "archive_chat"
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return s.fail(op, err, false)
	}
	if c.ArchivedAt != 0 {
		s.ok(op, "chat_id", chatID, "already_archived", true)
		return nil
	}
	_, err = s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, store.Item{
		"archived_at": time.Now().UTC().UnixNano(),
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID)
	return nil
}

// UpdateChatMode switches a chat between private and broadcast modes and
// optionally adjusts the participant cap.
func (s *Service) UpdateChatMode(ctx context.Context, chatID, mode string, maxParticipants *int) error {
	op := "update_chat_mode"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"mode":    {Value: mode, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	attrs := store.Item{"mode": mode}
	if maxParticipants != nil {
		attrs["max_participants"] = *maxParticipants
	}
	if _, err := s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, attrs); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "mode", mode)
	return nil
}

// UpdateChatAccess sets the chat access level (free, premium, private, ...).
func (s *Service) UpdateChatAccess(ctx context.Context, chatID, accessLevel string) error {
	op := "update_chat_access"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":      {Value: chatID, Type: "string", Required: true},
		"access_level": {Value: accessLevel, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	if _, err := s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, store.Item{"access_level": accessLevel}); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "access_level", accessLevel)
	return nil
}

// UpdateChatSubscriptionFlag toggles subscriber-only access.
func (s *Service) UpdateChatSubscriptionFlag(ctx context.Context, chatID string, required bool) error {
	op := "update_chat_subscription_flag"
	if chatID == "" {
		return s.fail(op, errs.Validation("chat_id is required"), false)
	}
	if _, err := s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, store.Item{"subscription_required": required}); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "subscription_required", required)
	return nil
}

// UpdateMembershipTiers replaces the chat's membership tier list.
func (s *Service) UpdateMembershipTiers(ctx context.Context, chatID string, tiers []string) error {
	op := "update_membership_tiers"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"tiers":   {Value: tiers, Type: "array", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	if _, err := s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, store.Item{"membership_tiers": tiers}); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID)
	return nil
}

// metadataFields maps update-metadata input keys to stored attribute names.
var metadataFields = map[string]string{
	"name":          "name",
	"description":   "description",
	"coverImageUrl": "cover_image_url",
	"rulesJson":     "rules_json",
	"category":      "category",
	"type":          "type",
}

// UpdateChatMetadata applies a sparse metadata update: only recognized,
// present keys are written. An empty update is a successful no-op.
func (s *Service) UpdateChatMetadata(ctx context.Context, chatID string, metadata map[string]any) error {
	op := "update_chat_metadata"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id":  {Value: chatID, Type: "string", Required: true},
		"metadata": {Value: metadata, Type: "object", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	attrs := store.Item{}
	for key, attr := range metadataFields {
		if v, ok := metadata[key]; ok && validation.HasValue(v) {
			attrs[attr] = v
		}
	}
	if len(attrs) == 0 {
		s.ok(op, "chat_id", chatID, "noop", true)
		return nil
	}
	if _, err := s.st.UpdateItem(TableChats, store.Item{"chat_id": chatID}, attrs); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID)
	return nil
}

// SetChatRole assigns a role to a user in a role-mapped chat. Chats whose
// participants are a plain member list reject role assignment instead of
// silently coercing the representation.
func (s *Service) SetChatRole(ctx context.Context, chatID, userID, role string) error {
	op := "set_chat_role"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"user_id": {Value: userID, Type: "string", Required: true},
		"role":    {Value: role, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return s.fail(op, err, false)
	}
	if c.Participants.Kind != models.ParticipantsRoles {
		return s.fail(op, errs.Validation("chat %s stores participants as a member list", chatID), false)
	}
	err = s.mutateMapAttr(TableChats, store.Item{"chat_id": chatID}, "participants", func(m map[string]any) {
		m[userID] = role
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "user_id", userID, "role", role)
	return nil
}

// JoinChat appends a user to a list-shaped participants attribute.
// Idempotent: joining twice leaves a single entry. Role-mapped chats
// reject joins; membership there is assigned via SetChatRole.
func (s *Service) JoinChat(ctx context.Context, chatID, userID string) error {
	op := "join_chat"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"chat_id": {Value: chatID, Type: "string", Required: true},
		"user_id": {Value: userID, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return s.fail(op, err, false)
	}
	if c.Participants.Kind != models.ParticipantsList {
		return s.fail(op, errs.Validation("chat %s stores participants as a role map", chatID), false)
	}
	err = s.mutateListAttr(TableChats, store.Item{"chat_id": chatID}, "participants", func(members []string) []string {
		for _, id := range members {
			if id == userID {
				return members
			}
		}
		return append(members, userID)
	})
	if err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "chat_id", chatID, "user_id", userID)
	return nil
}

// UpsertUserChat writes one row of the per-user chat fan-out. Keeping the
// fan-out in step with message traffic is the caller's concern; the core
// only persists the row.
func (s *Service) UpsertUserChat(ctx context.Context, ref models.UserChatRef) error {
	op := "upsert_user_chat"
	if _, err := validation.Sanitize(map[string]validation.Field{
		"user_id": {Value: ref.UserID, Type: "string", Required: true},
		"chat_id": {Value: ref.ChatID, Type: "string", Required: true},
	}); err != nil {
		return s.fail(op, err, false)
	}
	it, err := toItem(ref)
	if err != nil {
		return s.fail(op, err, false)
	}
	if err := s.st.PutItem(TableUserChats, it); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", ref.UserID, "chat_id", ref.ChatID)
	return nil
}

// RemoveUserChat deletes one fan-out row.
func (s *Service) RemoveUserChat(ctx context.Context, ref models.UserChatRef) error {
	op := "remove_user_chat"
	key := store.Item{
		"user_id":         ref.UserID,
		"featured":        ref.Featured,
		"is_critical":     ref.IsCritical,
		"last_message_ts": ref.LastMessageTS,
		"chat_id":         ref.ChatID,
	}
	if err := s.st.DeleteItem(TableUserChats, key); err != nil {
		return s.fail(op, err, false)
	}
	s.ok(op, "user_id", ref.UserID, "chat_id", ref.ChatID)
	return nil
}

// UserChatPage is one page of a user's chat fan-out.
type UserChatPage struct {
	Chats  []models.UserChatRef
	Cursor string
}

// FetchUserChats lists a user's chats: featured first, then critical, then
// newest activity, which is exactly the composite sort order of the
// user_chats partition read in descending direction.
func (s *Service) FetchUserChats(ctx context.Context, userID, cursor string, limit int) (UserChatPage, error) {
	var out UserChatPage
	if userID == "" {
		return out, errs.Validation("user_id is required")
	}
	if limit > s.limits.MaxPageSize && s.limits.MaxPageSize > 0 {
		limit = s.limits.MaxPageSize
	}
	page, err := s.st.Query(TableUserChats, store.QueryInput{
		Partition: userID,
		Limit:     limit,
		Cursor:    cursor,
	})
	if err != nil {
		return out, err
	}
	for _, it := range page.Items {
		var ref models.UserChatRef
		if err := fromItem(it, &ref); err != nil {
			return out, err
		}
		out.Chats = append(out.Chats, ref)
	}
	out.Cursor = page.Cursor
	return out, nil
}
