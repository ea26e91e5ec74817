package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RenderPreview produces a best-effort human-readable preview of a message
// payload by pattern-matching on the content type. Unrecognized types fall
// back to raw serialization; nothing here is authoritative, it only feeds
// list views and notifications.
func RenderPreview(contentType string, content map[string]any) string {
	switch contentType {
	case ContentText:
		if s, ok := content["text"].(string); ok {
			return s
		}
		return ""
	case ContentMixed:
		elems, _ := content["elements"].([]any)
		parts := make([]string, 0, len(elems))
		for _, e := range elems {
			if m, ok := e.(map[string]any); ok {
				if s, ok := m["text"].(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, " ")
	case ContentVoice:
		url, _ := content["audio_url"].(string)
		return fmt.Sprintf("[Audio] %s", url)
	case ContentProduct:
		if pr, ok := content["product_recommendation"].(map[string]any); ok {
			if name, ok := pr["name"].(string); ok {
				return fmt.Sprintf("[Product] %s", name)
			}
		}
		return "[Product]"
	case ContentExcl:
		return "[Exclusive] " + rawJSON(content)
	case ContentPaid:
		return "[Paid Media] " + rawJSON(content)
	default:
		return rawJSON(content)
	}
}

func rawJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
