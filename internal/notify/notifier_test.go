package notify

import "testing"

func TestNewSMTPNotifier(t *testing.T) {
	n := NewSMTPNotifier("smtp.example.com", 587, "mailer", "hunter2", "no-reply@example.com")
	if n.Addr != "smtp.example.com:587" {
		t.Errorf("Addr = %q", n.Addr)
	}
	if n.From != "no-reply@example.com" {
		t.Errorf("From = %q", n.From)
	}
	if n.Auth == nil {
		t.Error("credentials supplied but Auth is nil")
	}

	// Unauthenticated submission (local dev sink).
	open := NewSMTPNotifier("localhost", 1025, "", "", "dev@localhost")
	if open.Auth != nil {
		t.Error("Auth must be nil without a username")
	}
}

func TestLogNotifier_AlwaysSucceeds(t *testing.T) {
	if err := (LogNotifier{}).Send("a@example.com", "subject", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
