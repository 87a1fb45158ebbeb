package mail

import (
	"net/smtp"
	"strings"
	"testing"
)

func testConfig() Config {
	return Config{
		Host:        "smtp.example.com",
		Port:        "587",
		Username:    "noreply@example.com",
		Password:    "hunter2",
		FrontendURL: "https://chat.example.com/",
	}
}

func TestResetLinkEmbedsToken(t *testing.T) {
	m := New(testConfig())
	link := m.ResetLink("abc123")
	if link != "https://chat.example.com/reset-password?token=abc123" {
		t.Fatalf("unexpected link: %q", link)
	}
}

func TestResetLinkEscapesToken(t *testing.T) {
	m := New(testConfig())
	link := m.ResetLink("a b&c")
	if !strings.Contains(link, "token=a+b%26c") {
		t.Fatalf("token not query-escaped: %q", link)
	}
}

func TestSendPasswordReset(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m := NewWithSender(testConfig(), func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	})

	if err := m.SendPasswordReset("alice@example.com", "tok-1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected smtp addr: %q", gotAddr)
	}
	if gotFrom != "noreply@example.com" {
		t.Fatalf("unexpected sender: %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "alice@example.com" {
		t.Fatalf("unexpected recipients: %v", gotTo)
	}
	body := string(gotMsg)
	if !strings.Contains(body, "Subject: Password Reset Request") {
		t.Fatalf("missing subject header: %q", body)
	}
	if !strings.Contains(body, "https://chat.example.com/reset-password?token=tok-1") {
		t.Fatalf("missing reset link: %q", body)
	}
}
