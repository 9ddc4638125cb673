package message

import "testing"

func TestNewMessage(t *testing.T) {
	msg := NewMessage(RoleUser, "hello")

	if msg.Role != RoleUser {
		t.Errorf("expected role %q, got %q", RoleUser, msg.Role)
	}
	if msg.Text() != "hello" {
		t.Errorf("expected content 'hello', got %q", msg.Text())
	}
	if msg.ID == "" {
		t.Errorf("expected non-empty message ID")
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewMessage(RoleSystem, "x")
		if seen[msg.ID] {
			t.Fatalf("duplicate message ID %s", msg.ID)
		}
		seen[msg.ID] = true
	}
}

func TestClone(t *testing.T) {
	msg := NewMessage(RoleAssistant, "answer")
	msg.Metadata["k"] = "v"

	cloned := Clone(msg)
	if cloned == msg {
		t.Fatalf("Clone returned same pointer")
	}
	cloned.Metadata["k"] = "changed"
	if msg.Metadata["k"] != "v" {
		t.Errorf("mutating clone metadata affected original")
	}
}

func TestCloneNil(t *testing.T) {
	if Clone(nil) != nil {
		t.Errorf("Clone(nil) should return nil")
	}
}

func TestTextNil(t *testing.T) {
	var msg *Message
	if msg.Text() != "" {
		t.Errorf("nil message Text should be empty")
	}
}
