package gmail

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// composeMessage builds the RFC 5322 form of a draft.
func composeMessage(from string, in gateway.DraftInput, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetSubject(in.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if from != "" {
		h.SetAddressList("From", []*mail.Address{{Address: from}})
	}

	to := make([]*mail.Address, 0, len(in.Recipients))
	for _, r := range in.Recipients {
		to = append(to, &mail.Address{Address: r})
	}
	if len(to) > 0 {
		h.SetAddressList("To", to)
	}
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, in.Body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}
