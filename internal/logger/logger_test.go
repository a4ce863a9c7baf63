package logger

import "testing"

func TestSanitizeKVsRedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{"fcm_token", "abc", "habit", "h1", "dangling"})
	if out[1] != "[REDACTED]" {
		t.Fatalf("token value not redacted: %v", out)
	}
	if out[3] != "h1" {
		t.Fatalf("plain value changed: %v", out)
	}
	if len(out) != 5 || out[4] != "dangling" {
		t.Fatalf("dangling key lost: %v", out)
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	l.With("k", "v").Info("discarded")
}
