package store

import (
	"reflect"
	"testing"

	"driftchat/pkg/domain"
)

func TestNormalizeContentDropsSystemMessages(t *testing.T) {
	shapes := []any{
		"plain text",
		map[string]any{"text": "hello"},
		[]any{"a", "b"},
		42,
	}
	for _, shape := range shapes {
		if _, keep := NormalizeContent(domain.RoleSystem, shape); keep {
			t.Fatalf("system message with content %v should be dropped", shape)
		}
	}
}

func TestNormalizeContentWrapsStrings(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleUser, domain.RoleAssistant} {
		got, keep := NormalizeContent(role, "hello world")
		if !keep {
			t.Fatalf("string content should be kept for role %s", role)
		}
		want := map[string]any{"text": "hello world"}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("role %s: got %v, want %v", role, got, want)
		}
	}
}

func TestNormalizeContentAssistantObjectWithText(t *testing.T) {
	content := map[string]any{"text": "answer", "model": "m1"}
	got, keep := NormalizeContent(domain.RoleAssistant, content)
	if !keep {
		t.Fatalf("expected content kept")
	}
	if !reflect.DeepEqual(got, content) {
		t.Fatalf("object with text field should be stored as-is, got %v", got)
	}
}

func TestNormalizeContentAssistantObjectWithContentField(t *testing.T) {
	got, keep := NormalizeContent(domain.RoleAssistant, map[string]any{"content": "inner"})
	if !keep {
		t.Fatalf("expected content kept")
	}
	want := map[string]any{"text": "inner"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeContentAssistantSequenceJoined(t *testing.T) {
	content := []any{
		"first",
		map[string]any{"text": "second"},
		map[string]any{"content": "third"},
		map[string]any{"kind": "tool-call"},
	}
	got, keep := NormalizeContent(domain.RoleAssistant, content)
	if !keep {
		t.Fatalf("expected content kept")
	}
	want := map[string]any{"text": "first\nsecond\nthird\n{\"kind\":\"tool-call\"}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeContentAssistantScalarWrapped(t *testing.T) {
	got, keep := NormalizeContent(domain.RoleAssistant, 7)
	if !keep {
		t.Fatalf("expected content kept")
	}
	want := map[string]any{"text": "7"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNormalizeContentUserObjectStoredAsIs(t *testing.T) {
	content := map[string]any{"attachment": "img.png", "caption": "photo"}
	got, keep := NormalizeContent(domain.RoleUser, content)
	if !keep {
		t.Fatalf("expected content kept")
	}
	if !reflect.DeepEqual(got, content) {
		t.Fatalf("non-assistant object should be stored as-is, got %v", got)
	}
}

func TestNormalizeContentUserScalarWrapped(t *testing.T) {
	got, keep := NormalizeContent(domain.RoleUser, true)
	if !keep {
		t.Fatalf("expected content kept")
	}
	want := map[string]any{"text": "true"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEncodeDecodeContentRoundTrip(t *testing.T) {
	raw, keep, err := encodeContent(domain.RoleAssistant, []any{"part one", "part two"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !keep {
		t.Fatalf("expected content kept")
	}
	parsed, err := decodeContent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{"text": "part one\npart two"}
	if !reflect.DeepEqual(parsed, want) {
		t.Fatalf("got %v, want %v", parsed, want)
	}
}

func TestEncodeContentSkipsSystem(t *testing.T) {
	raw, keep, err := encodeContent(domain.RoleSystem, "ignored")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if keep || raw != nil {
		t.Fatalf("system content must not be encoded for storage")
	}
}
