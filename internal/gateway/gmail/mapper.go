package gmail

import (
	"encoding/base64"
	"net/mail"
	"slices"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// mapMessage converts a Gmail API Message to a domain Email. Collections are
// always non-nil.
func mapMessage(msg *gmailapi.Message) *domain.Email {
	var headers []*gmailapi.MessagePartHeader
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}

	text, html := extractBody(msg.Payload)
	if text == "" {
		text = html
	}
	date := parseDate(findHeader(headers, "Date"))
	if date.IsZero() && msg.InternalDate > 0 {
		date = time.UnixMilli(msg.InternalDate)
	}

	labelIDs := make([]string, 0, len(msg.LabelIds))
	labelIDs = append(labelIDs, msg.LabelIds...)

	to := parseAddressList(findHeader(headers, "To"))
	if to == nil {
		to = []domain.Address{}
	}

	return &domain.Email{
		ID:          msg.Id,
		From:        parseAddress(findHeader(headers, "From")),
		To:          to,
		Subject:     findHeader(headers, "Subject"),
		Body:        text,
		Date:        date,
		IsRead:      !containsLabel(msg.LabelIds, labelUnread),
		IsStarred:   containsLabel(msg.LabelIds, labelStarred),
		Folder:      folderOf(msg.LabelIds),
		LabelIDs:    labelIDs,
		Attachments: extractAttachments(msg.Id, msg.Payload),
	}
}

func mapLabel(l *gmailapi.Label) domain.Label {
	labelType := domain.LabelTypeUser
	if l.Type == "system" {
		labelType = domain.LabelTypeSystem
	}
	color := ""
	if l.Color != nil {
		color = l.Color.BackgroundColor
	}
	return domain.Label{
		ID:                    l.Id,
		Name:                  l.Name,
		Color:                 color,
		Type:                  labelType,
		LabelListVisibility:   l.LabelListVisibility,
		MessageListVisibility: l.MessageListVisibility,
	}
}

func mapLabelStats(l *gmailapi.Label) domain.LabelStats {
	base := mapLabel(l)
	return domain.LabelStats{
		LabelID: base.ID,
		Name:    base.Name,
		Color:   base.Color,
		Total:   int(l.MessagesTotal),
		Unread:  int(l.MessagesUnread),
	}
}

func mapDraft(d *gmailapi.Draft) domain.Draft {
	draft := domain.Draft{ID: d.Id, Recipients: []string{}}
	if d.Message == nil {
		return draft
	}
	e := mapMessage(d.Message)
	draft.Subject = e.Subject
	draft.Body = e.Body
	for _, a := range e.To {
		draft.Recipients = append(draft.Recipients, a.Email)
	}
	if d.Message.InternalDate > 0 {
		draft.UpdatedAt = time.UnixMilli(d.Message.InternalDate)
		draft.CreatedAt = draft.UpdatedAt
	}
	return draft
}

// findHeader performs a case-insensitive lookup for a header value.
func findHeader(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseAddress parses an RFC 5322 address string into a domain Address.
// Falls back to treating the entire string as a bare email if parsing fails.
func parseAddress(s string) domain.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Address{}
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return domain.Address{Email: s}
	}
	return domain.Address{Name: addr.Name, Email: addr.Address}
}

// parseAddressList parses a comma-separated list of RFC 5322 addresses.
func parseAddressList(s string) []domain.Address {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parsed, err := mail.ParseAddressList(s)
	if err != nil {
		var addrs []domain.Address
		for _, p := range strings.Split(s, ",") {
			if a := parseAddress(p); a.Email != "" {
				addrs = append(addrs, a)
			}
		}
		return addrs
	}

	addrs := make([]domain.Address, 0, len(parsed))
	for _, a := range parsed {
		addrs = append(addrs, domain.Address{Name: a.Name, Email: a.Address})
	}
	return addrs
}

// parseDate tries the date formats commonly found in email headers.
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2 Jan 2006 15:04:05 -0700",
		time.RFC3339,
		"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
		"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func containsLabel(labels []string, label string) bool {
	return slices.Contains(labels, label)
}

// extractBody walks the payload tree for the first text/plain and text/html parts.
func extractBody(payload *gmailapi.MessagePart) (text, html string) {
	if payload == nil {
		return "", ""
	}

	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			t, h := extractBody(part)
			if text == "" && t != "" {
				text = t
			}
			if html == "" && h != "" {
				html = h
			}
		}
		return text, html
	}

	data := ""
	if payload.Body != nil {
		data = decodeBase64URL(payload.Body.Data)
	}
	switch payload.MimeType {
	case "text/plain":
		return data, ""
	case "text/html":
		return "", data
	}
	return "", ""
}

// extractAttachments collects attachment metadata in payload order. The URL
// is the Gmail API path of the attachment body.
func extractAttachments(msgID string, payload *gmailapi.MessagePart) []domain.Attachment {
	attachments := []domain.Attachment{}
	if payload != nil {
		collectAttachments(msgID, payload, &attachments)
	}
	return attachments
}

func collectAttachments(msgID string, part *gmailapi.MessagePart, attachments *[]domain.Attachment) {
	if part.Filename != "" && part.Body != nil {
		a := domain.Attachment{Name: part.Filename, Size: part.Body.Size}
		if part.Body.AttachmentId != "" {
			a.URL = "gmail/v1/users/me/messages/" + msgID + "/attachments/" + part.Body.AttachmentId
		}
		*attachments = append(*attachments, a)
	}
	for _, p := range part.Parts {
		collectAttachments(msgID, p, attachments)
	}
}

// decodeBase64URL decodes Gmail's URL-safe base64 strings, padded or not.
func decodeBase64URL(s string) string {
	if s == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return ""
	}
	return string(data)
}
