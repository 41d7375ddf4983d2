package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestSMTPProviderSendTemplate(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "billing@example.com"})
	p.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"amina@example.com"}, "Payment received", "payment_received", map[string]string{
		"FirstName": "Amina",
		"Message":   "Your payment was received.",
		"Amount":    "KES 1,500.00",
		"Balance":   "KES 0.00",
	})
	if err != nil {
		t.Fatalf("send template: %v", err)
	}
	if gotAddr != "mail.local:2525" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if len(gotTo) != 1 || gotTo[0] != "amina@example.com" {
		t.Fatalf("unexpected recipients %v", gotTo)
	}
	for _, want := range []string{"Subject: Payment received", "Dear Amina,", "KES 1,500.00"} {
		if !strings.Contains(gotMsg, want) {
			t.Fatalf("message missing %q:\n%s", want, gotMsg)
		}
	}
}

func TestSMTPProviderRequiresRecipient(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	if err := p.Send(context.Background(), nil, "s", "b"); err != ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, err := Render("missing", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
