package chatbus

import (
	"testing"
	"time"
)

func TestFormatEmpty(t *testing.T) {
	if got := Format(nil); got != "(no messages yet)" {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestFormatOrdering(t *testing.T) {
	msgs := []Message{
		{Sender: "quiet-heron", Text: "starting task", Timestamp: time.Now()},
		{Sender: "swift-otter", Text: "found the login form", Timestamp: time.Now()},
	}
	out := Format(msgs)
	iFirst := indexOf(out, "quiet-heron")
	iSecond := indexOf(out, "swift-otter")
	if iFirst < 0 || iSecond < 0 || iFirst > iSecond {
		t.Fatalf("expected chronological order in formatted output, got %q", out)
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg := ConfigFromEnv()
	if cfg.MaxMessages != MaxRoomMessages {
		t.Fatalf("expected default max messages %d, got %d", MaxRoomMessages, cfg.MaxMessages)
	}
	if cfg.DefaultRoom == "" {
		t.Fatal("expected a non-empty default room")
	}
}
