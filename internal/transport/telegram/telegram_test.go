package telegram

import (
	"testing"

	"medassist/internal/transport"
	"medassist/pkg/logx"
)

func TestParseCallbackData(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		data    string
		action  transport.Action
		payload string
		ok      bool
	}{
		{name: "confirm", data: "confirm|abc-123", action: transport.ActionConfirm, payload: "abc-123", ok: true},
		{name: "snooze", data: "snooze|abc-123", action: transport.ActionSnooze, payload: "abc-123", ok: true},
		{name: "telebot prefix", data: "\fremind|confirm|abc-123", action: transport.ActionConfirm, payload: "abc-123", ok: true},
		{name: "bare prefix", data: "\fsnooze|abc-123", action: transport.ActionSnooze, payload: "abc-123", ok: true},
		{name: "unknown action", data: "delete|abc-123"},
		{name: "no separator", data: "confirm"},
		{name: "empty", data: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			action, payload, ok := parseCallbackData(tt.data)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if action != tt.action || payload != tt.payload {
				t.Fatalf("parsed (%s, %s), want (%s, %s)", action, payload, tt.action, tt.payload)
			}
		})
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
