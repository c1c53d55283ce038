package testutil

import (
	"context"
	"testing"

	"github.com/seanpoyner/ollama-code/internal/confirm"
)

func TestCannedChatterReplaysScript(t *testing.T) {
	c := &CannedChatter{Replies: []string{"first", "second"}}

	for _, want := range []string{"first", "second", "second"} {
		got, err := c.Chat(context.Background(), nil)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("Chat = %q, want %q", got, want)
		}
	}
	if c.Calls != 3 {
		t.Errorf("Calls = %d, want 3", c.Calls)
	}
}

func TestScriptedConfirmerRecordsRequests(t *testing.T) {
	s := &ScriptedConfirmer{Decisions: []confirm.Decision{confirm.Deny, confirm.Approve}}

	first := s.Confirm(context.Background(), confirm.Request{Kind: confirm.KindFileWrite, Payload: "a.py"})
	second := s.Confirm(context.Background(), confirm.Request{Kind: confirm.KindFileWrite, Payload: "b.py"})
	third := s.Confirm(context.Background(), confirm.Request{Kind: confirm.KindShellCommand, Payload: "ls"})

	if first != confirm.Deny || second != confirm.Approve || third != confirm.Approve {
		t.Errorf("decisions = %v %v %v", first, second, third)
	}
	if len(s.Seen) != 3 {
		t.Fatalf("Seen = %d requests, want 3", len(s.Seen))
	}
	if s.Seen[1].Payload != "b.py" {
		t.Errorf("Seen[1].Payload = %q", s.Seen[1].Payload)
	}
}
