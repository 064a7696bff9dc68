package session

import (
	"strings"
	"testing"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

func TestPrefixSubject(t *testing.T) {
	tests := []struct {
		prefix  string
		subject string
		want    string
	}{
		{replyPrefix, "Hello", "Re: Hello"},
		{replyPrefix, "Re: Hello", "Re: Hello"},
		{replyPrefix, "RE: Hello", "RE: Hello"},
		{forwardPrefix, "Hello", "Fwd: Hello"},
		{forwardPrefix, "Re: Hello", "Fwd: Re: Hello"},
		{forwardPrefix, "fwd: Hello", "fwd: Hello"},
		{replyPrefix, "", "Re: "},
	}
	for _, tt := range tests {
		if got := prefixSubject(tt.prefix, tt.subject); got != tt.want {
			t.Errorf("prefixSubject(%q, %q) = %q, want %q", tt.prefix, tt.subject, got, tt.want)
		}
	}
}

func sampleEmail() *domain.Email {
	return &domain.Email{
		ID:      "1",
		Subject: "Lunch",
		Body:    "Noon works?",
		From:    domain.Address{Name: "Alice", Email: "alice@example.com"},
		Date:    time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestReplyFields(t *testing.T) {
	f := ReplyFields(sampleEmail())
	if f.Subject != "Re: Lunch" {
		t.Errorf("Subject = %q", f.Subject)
	}
	if len(f.Recipients) != 1 || f.Recipients[0] != "alice@example.com" {
		t.Errorf("Recipients = %v", f.Recipients)
	}
	want := "\n\n---------- Original Message ----------\n" +
		"From: Alice <alice@example.com>\n" +
		"Date: Fri, Mar 1, 2024 at 12:30 PM\n" +
		"Subject: Lunch\n\n" +
		"Noon works?"
	if f.Body != want {
		t.Errorf("Body = %q\nwant %q", f.Body, want)
	}
}

func TestForwardFields(t *testing.T) {
	f := ForwardFields(sampleEmail())
	if f.Subject != "Fwd: Lunch" {
		t.Errorf("Subject = %q", f.Subject)
	}
	if f.Recipients == nil || len(f.Recipients) != 0 {
		t.Errorf("Recipients = %v, want empty", f.Recipients)
	}
	if !strings.Contains(f.Body, forwardedBanner) || !strings.HasSuffix(f.Body, "Noon works?") {
		t.Errorf("Body = %q", f.Body)
	}
}
