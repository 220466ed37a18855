package cli

import (
	"flag"
	"io"
	"reflect"
	"testing"
	"time"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("approval-publish", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParsePublishConfig(t *testing.T) {
	cfg, err := ParsePublishConfig(newFlagSet(), []string{
		"-message-id", "123",
		"-channel", "c1",
		"-guild", "g1",
		"-author", "ana",
		"-content", "PAYOUT $1,200",
		"-roles", "r1, r2,,",
		"-reactor", "u1",
	}, "✅")
	if err != nil {
		t.Fatalf("ParsePublishConfig: %v", err)
	}
	if cfg.Emoji != "✅" {
		t.Errorf("Emoji = %q, want configured default", cfg.Emoji)
	}

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg, err := cfg.Reaction(now)
	if err != nil {
		t.Fatalf("Reaction: %v", err)
	}
	if msg.MessageID != "123" || msg.Content != "PAYOUT $1,200" || !msg.Timestamp.Equal(now) {
		t.Errorf("unexpected message %+v", msg)
	}
	if !reflect.DeepEqual(msg.ReactorRoleIDs, []string{"r1", "r2"}) {
		t.Errorf("ReactorRoleIDs = %v", msg.ReactorRoleIDs)
	}
}

func TestParsePublishConfig_Required(t *testing.T) {
	tests := map[string][]string{
		"missing message id": {"-content", "PAYOUT 1"},
		"missing content":    {"-message-id", "1"},
		"unknown flag":       {"-message-id", "1", "-content", "x", "-nope"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePublishConfig(newFlagSet(), args, "✅"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPublishConfig_ReactionAt(t *testing.T) {
	cfg := PublishConfig{MessageID: "1", Content: "PAYOUT 1", At: "2024-05-01T10:00:00Z"}
	msg, err := cfg.Reaction(time.Now())
	if err != nil {
		t.Fatalf("Reaction: %v", err)
	}
	if want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC); !msg.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, want)
	}

	cfg.At = "yesterday"
	if _, err := cfg.Reaction(time.Now()); err == nil {
		t.Error("expected error for invalid -at")
	}
}
