package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"chat_message","conversation_id":"c1","text":"I am go market yesterday"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	chat, ok := msg.(ChatMessage)
	if !ok {
		t.Fatalf("message type = %T, want ChatMessage", msg)
	}
	if chat.ConversationID != "c1" || chat.Text != "I am go market yesterday" {
		t.Fatalf("unexpected chat message: %+v", chat)
	}
}

func TestParseClientMessageChatWithoutConversationID(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"chat_message","text":"hello"}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chat, ok := msg.(ChatMessage)
	if !ok {
		t.Fatalf("message type = %T, want ChatMessage", msg)
	}
	if chat.ConversationID != "" {
		t.Fatalf("ConversationID = %q, want empty (server assigns one)", chat.ConversationID)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","conversation_id":"c1","action":"reset"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.ConversationID != "c1" || control.Action != "reset" {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmptyText(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"chat_message","conversation_id":"c1","text":""}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestParseClientMessageRejectsControlWithoutAction(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{"type":"client_control","conversation_id":"c1"}`)); err == nil {
		t.Fatalf("expected validation error")
	}
}
