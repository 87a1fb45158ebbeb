package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"driftchat/pkg/domain"
)

// NormalizeContent collapses heterogeneous message content into the canonical
// stored shape so reads always see predictable structure. The boolean reports
// whether the message should be persisted at all; system-role messages are
// dropped.
//
// Rules, in priority order:
//   - system role: dropped
//   - string: wrapped as {"text": s}
//   - assistant object: kept as-is when it has a "text" field, re-wrapped from
//     its "content" field, or (for sequences) each part collapsed to a string
//     and joined with newlines
//   - anything else: objects kept as-is, scalars wrapped as {"text": ...}
func NormalizeContent(role domain.Role, content any) (any, bool) {
	if role == domain.RoleSystem {
		return nil, false
	}
	if s, ok := content.(string); ok {
		return map[string]any{"text": s}, true
	}
	if role == domain.RoleAssistant {
		switch c := content.(type) {
		case map[string]any:
			if _, ok := c["text"]; ok {
				return c, true
			}
			if v, ok := c["content"]; ok {
				return map[string]any{"text": v}, true
			}
			return c, true
		case []any:
			parts := make([]string, 0, len(c))
			for _, item := range c {
				parts = append(parts, collapsePart(item))
			}
			return map[string]any{"text": strings.Join(parts, "\n")}, true
		}
		return map[string]any{"text": stringify(content)}, true
	}
	switch content.(type) {
	case map[string]any, []any:
		return content, true
	}
	return map[string]any{"text": stringify(content)}, true
}

// collapsePart reduces one element of an assistant content sequence to plain
// text: the raw string, its "text" or "content" field, or a JSON fallback.
func collapsePart(item any) string {
	if s, ok := item.(string); ok {
		return s
	}
	if m, ok := item.(map[string]any); ok {
		if t, ok := m["text"].(string); ok && t != "" {
			return t
		}
		if c, ok := m["content"].(string); ok && c != "" {
			return c
		}
		return jsonString(m)
	}
	return jsonString(item)
}

func jsonString(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return stringify(v)
	}
	return string(raw)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// encodeContent normalizes and serializes message content for storage. The
// boolean is false when the message must not be persisted.
func encodeContent(role domain.Role, content any) ([]byte, bool, error) {
	canonical, keep := NormalizeContent(role, content)
	if !keep {
		return nil, false, nil
	}
	raw, err := json.Marshal(canonical)
	if err != nil {
		return nil, false, fmt.Errorf("encode message content: %w", err)
	}
	return raw, true, nil
}

// decodeContent parses stored canonical JSON back into a structured value.
func decodeContent(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode message content: %w", err)
	}
	return v, nil
}
