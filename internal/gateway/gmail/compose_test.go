package gmail

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/lu-zhengda/mailsession/internal/gateway"
)

func TestComposeMessage(t *testing.T) {
	raw, err := composeMessage("me@example.com", gateway.DraftInput{
		Subject:    "Fwd: Héllo",
		Body:       "see below",
		Recipients: []string{"a@example.com", "b@example.com"},
	}, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}

	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	subject, err := r.Header.Subject()
	if err != nil || subject != "Fwd: Héllo" {
		t.Errorf("Subject = %q, %v", subject, err)
	}
	to, err := r.Header.AddressList("To")
	if err != nil || len(to) != 2 {
		t.Errorf("To = %v, %v", to, err)
	}
	from, err := r.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "me@example.com" {
		t.Errorf("From = %v, %v", from, err)
	}
	if id := r.Header.Get("Message-Id"); id == "" {
		t.Error("expected a Message-Id header")
	}

	p, err := r.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	body, _ := io.ReadAll(p.Body)
	if string(body) != "see below" {
		t.Errorf("body = %q", body)
	}
}

func TestComposeMessage_NoRecipients(t *testing.T) {
	raw, err := composeMessage("", gateway.DraftInput{Subject: "empty"}, time.Now())
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}
	if bytes.Contains(raw, []byte("To:")) {
		t.Error("no To header expected without recipients")
	}
}
