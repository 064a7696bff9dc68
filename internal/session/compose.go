package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

const (
	replyPrefix   = "Re: "
	forwardPrefix = "Fwd: "

	originalBanner  = "---------- Original Message ----------"
	forwardedBanner = "---------- Forwarded Message ----------"
)

// quoteDateLayout is how quoted messages render their date.
const quoteDateLayout = "Mon, Jan 2, 2006 at 3:04 PM"

// DraftFields are the editable parts of a draft.
type DraftFields struct {
	// ID selects the draft to overwrite. Empty means the active draft, or a
	// new draft when none is active.
	ID         string
	Subject    string
	Body       string
	Recipients []string
}

// prefixSubject adds prefix unless the subject already carries it.
func prefixSubject(prefix, subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), strings.ToLower(prefix)) {
		return subject
	}
	return prefix + subject
}

func quote(banner string, e *domain.Email) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(banner)
	b.WriteString("\n")
	fmt.Fprintf(&b, "From: %s\n", e.From.String())
	fmt.Fprintf(&b, "Date: %s\n", formatQuoteDate(e.Date))
	fmt.Fprintf(&b, "Subject: %s\n\n", e.Subject)
	b.WriteString(e.Body)
	return b.String()
}

func formatQuoteDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(quoteDateLayout)
}

// ReplyFields builds the draft replying to e.
func ReplyFields(e *domain.Email) DraftFields {
	recipients := []string{}
	if e.From.Email != "" {
		recipients = append(recipients, e.From.Email)
	}
	return DraftFields{
		Subject:    prefixSubject(replyPrefix, e.Subject),
		Body:       quote(originalBanner, e),
		Recipients: recipients,
	}
}

// ForwardFields builds the draft forwarding e. Recipients start empty.
func ForwardFields(e *domain.Email) DraftFields {
	return DraftFields{
		Subject:    prefixSubject(forwardPrefix, e.Subject),
		Body:       quote(forwardedBanner, e),
		Recipients: []string{},
	}
}
