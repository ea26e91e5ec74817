package models

import (
	"encoding/json"
	"testing"
)

func TestParticipantsJSONShapes(t *testing.T) {
	list := NewMemberList([]string{"a", "b"})
	b, err := json.Marshal(list)
	if err != nil {
		t.Fatalf("marshal list: %v", err)
	}
	if string(b) != `["a","b"]` {
		t.Fatalf("list shape = %s", b)
	}

	roles := NewRoleMap(map[string]string{"a": "owner"})
	b, err = json.Marshal(roles)
	if err != nil {
		t.Fatalf("marshal roles: %v", err)
	}
	if string(b) != `{"a":"owner"}` {
		t.Fatalf("roles shape = %s", b)
	}

	var p Participants
	if err := json.Unmarshal([]byte(`["x","y"]`), &p); err != nil {
		t.Fatalf("unmarshal array: %v", err)
	}
	if p.Kind != ParticipantsList || len(p.Members) != 2 {
		t.Fatalf("decoded list wrong: %+v", p)
	}
	if err := json.Unmarshal([]byte(`{"x":"admin"}`), &p); err != nil {
		t.Fatalf("unmarshal object: %v", err)
	}
	if p.Kind != ParticipantsRoles || p.Roles["x"] != "admin" {
		t.Fatalf("decoded roles wrong: %+v", p)
	}
	if err := json.Unmarshal([]byte(`"scalar"`), &p); err == nil {
		t.Fatal("scalar participants must be rejected")
	}

	if !list.Contains("a") || list.Contains("z") {
		t.Fatal("list Contains wrong")
	}
	if !roles.Contains("a") || roles.Contains("z") {
		t.Fatal("roles Contains wrong")
	}
}

func TestChatStateProgression(t *testing.T) {
	c := Chat{}
	if c.State() != StateActive {
		t.Fatalf("state = %s, want active", c.State())
	}
	c.AutoExpired = true
	if c.State() != StateAutoExpired {
		t.Fatalf("state = %s, want auto_expired", c.State())
	}
	c.ArchivedAt = 123
	if c.State() != StateArchived {
		t.Fatalf("state = %s, want archived", c.State())
	}
}

func TestRenderPreview(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		content     map[string]any
		want        string
	}{
		{"text", ContentText, map[string]any{"text": "hello"}, "hello"},
		{"voice", ContentVoice, map[string]any{"audio_url": "https://cdn/a.ogg"}, "[Audio] https://cdn/a.ogg"},
		{"mixed", ContentMixed, map[string]any{
			"elements": []any{
				map[string]any{"text": "part one"},
				map[string]any{"image": "skip"},
				map[string]any{"text": "part two"},
			},
		}, "part one part two"},
		{"product", ContentProduct, map[string]any{
			"product_recommendation": map[string]any{"name": "Widget"},
		}, "[Product] Widget"},
	}
	for _, tc := range cases {
		got := RenderPreview(tc.contentType, tc.content)
		if got != tc.want {
			t.Fatalf("%s: preview = %q, want %q", tc.name, got, tc.want)
		}
	}
	// unknown types fall back to the raw JSON body
	raw := RenderPreview("mystery", map[string]any{"k": "v"})
	if raw == "" {
		t.Fatal("unknown type preview empty")
	}
}
