package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Chat lifecycle states derived from the archived_at / auto_expired
// attributes. A chat only moves forward: active -> auto_expired ->
// archived, with an explicit archive allowed from either live state.
const (
	StateActive      = "active"
	StateAutoExpired = "auto_expired"
	StateArchived    = "archived"
)

// Chat is a row in the chats table, keyed by chat_id. The chat_id is
// opaque to callers but sortable and embeds the creation timestamp.
type Chat struct {
	ChatID               string         `json:"chat_id"`
	IsGroup              bool           `json:"is_group"`
	CreatedBy            string         `json:"created_by"`
	Participants         Participants   `json:"participants"`
	Name                 string         `json:"name,omitempty"`
	Description          string         `json:"description,omitempty"`
	CoverImageURL        string         `json:"cover_image_url,omitempty"`
	Rules                map[string]any `json:"rules_json,omitempty"`
	Category             string         `json:"category,omitempty"`
	Type                 string         `json:"type,omitempty"`
	Mode                 string         `json:"mode,omitempty"`
	MaxParticipants      int            `json:"max_participants,omitempty"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	AccessLevel          string         `json:"access_level,omitempty"`
	SubscriptionRequired bool           `json:"subscription_required,omitempty"`
	MembershipTiers      []string       `json:"membership_tiers,omitempty"`
	EventID              string         `json:"event_id,omitempty"`
	EventPrice           float64        `json:"event_price,omitempty"`
	CreatedAt            int64          `json:"created_at"`
	ArchivedAt           int64          `json:"archived_at,omitempty"`
	AutoExpired          bool           `json:"auto_expired,omitempty"`
}

// State reports the lifecycle state implied by the row's markers.
func (c Chat) State() string {
	if c.ArchivedAt != 0 {
		return StateArchived
	}
	if c.AutoExpired {
		return StateAutoExpired
	}
	return StateActive
}

// ParticipantsKind distinguishes the two persisted shapes of the
// participants attribute. The kind is fixed when the chat is created and
// never coerced at read time.
type ParticipantsKind int

const (
	// ParticipantsList stores a plain list of user ids.
	ParticipantsList ParticipantsKind = iota
	// ParticipantsRoles stores a user id -> role mapping.
	ParticipantsRoles
)

// Participants is the tagged variant for the chats.participants attribute:
// either a list of user ids or a user id -> role mapping. It serializes to
// a JSON array or object respectively, matching the stored layout.
type Participants struct {
	Kind    ParticipantsKind
	Members []string
	Roles   map[string]string
}

// NewMemberList builds a list-shaped participants value.
func NewMemberList(ids []string) Participants {
	return Participants{Kind: ParticipantsList, Members: ids}
}

// NewRoleMap builds a role-map-shaped participants value.
func NewRoleMap(roles map[string]string) Participants {
	if roles == nil {
		roles = map[string]string{}
	}
	return Participants{Kind: ParticipantsRoles, Roles: roles}
}

// Contains reports whether the given user is a participant under either
// representation.
func (p Participants) Contains(userID string) bool {
	if p.Kind == ParticipantsRoles {
		_, ok := p.Roles[userID]
		return ok
	}
	for _, id := range p.Members {
		if id == userID {
			return true
		}
	}
	return false
}

func (p Participants) MarshalJSON() ([]byte, error) {
	if p.Kind == ParticipantsRoles {
		if p.Roles == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(p.Roles)
	}
	if p.Members == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p.Members)
}

func (p *Participants) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || string(t) == "null" {
		*p = Participants{Kind: ParticipantsList}
		return nil
	}
	switch t[0] {
	case '[':
		var ids []string
		if err := json.Unmarshal(t, &ids); err != nil {
			return err
		}
		*p = Participants{Kind: ParticipantsList, Members: ids}
		return nil
	case '{':
		var roles map[string]string
		if err := json.Unmarshal(t, &roles); err != nil {
			return err
		}
		*p = Participants{Kind: ParticipantsRoles, Roles: roles}
		return nil
	}
	return fmt.Errorf("participants: expected JSON array or object, got %q", t[0])
}
