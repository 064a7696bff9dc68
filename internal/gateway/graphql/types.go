package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// flexID accepts ids encoded either as JSON strings or numbers.
type flexID string

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*id = flexID(n.String())
	return nil
}

// flexTime accepts RFC 3339 strings or epoch milliseconds, as string or number.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*t = flexTime{}
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	*t = flexTime(parseTime(raw))
	return nil
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", time.RFC1123Z} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

type wireUser struct {
	ID     flexID  `json:"id"`
	Name   *string `json:"name"`
	Email  string  `json:"email"`
	Avatar *string `json:"avatar"`
}

type wireLabel struct {
	ID                    flexID  `json:"id"`
	Name                  string  `json:"name"`
	Color                 *string `json:"color"`
	Type                  *string `json:"type"`
	LabelListVisibility   *string `json:"labelListVisibility"`
	MessageListVisibility *string `json:"messageListVisibility"`
}

type wireLabelStat struct {
	LabelID flexID  `json:"labelId"`
	Name    string  `json:"name"`
	Total   int     `json:"total"`
	Unread  int     `json:"unread"`
	Color   *string `json:"color"`
}

type wireSender struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

type wireAttachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type wireEmail struct {
	ID          flexID           `json:"id"`
	Subject     *string          `json:"subject"`
	Body        *string          `json:"body"`
	Sender      *wireSender      `json:"sender"`
	Recipients  []string         `json:"recipients"`
	Date        flexTime         `json:"date"`
	IsRead      *bool            `json:"isRead"`
	IsStarred   *bool            `json:"isStarred"`
	Folder      *string          `json:"folder"`
	LabelIDs    []flexID         `json:"labelIds"`
	Labels      []wireLabel      `json:"labels"`
	Attachments []wireAttachment `json:"attachments"`
}

type wireDraft struct {
	ID         flexID   `json:"id"`
	Subject    *string  `json:"subject"`
	Body       *string  `json:"body"`
	Recipients []string `json:"recipients"`
	CreatedAt  flexTime `json:"createdAt"`
	UpdatedAt  flexTime `json:"updatedAt"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w wireUser) toDomain() domain.User {
	return domain.User{
		ID:        string(w.ID),
		Name:      deref(w.Name),
		Email:     w.Email,
		AvatarURL: deref(w.Avatar),
		Provider:  "graphql",
	}
}

func (w wireLabel) toDomain() domain.Label {
	l := domain.Label{
		ID:                    string(w.ID),
		Name:                  w.Name,
		Color:                 deref(w.Color),
		Type:                  domain.LabelType(strings.ToLower(deref(w.Type))),
		LabelListVisibility:   deref(w.LabelListVisibility),
		MessageListVisibility: deref(w.MessageListVisibility),
	}
	if l.Type == "" {
		l.Type = domain.LabelTypeUser
	}
	if l.LabelListVisibility == "" {
		l.LabelListVisibility = domain.VisibilityShow
	}
	if l.MessageListVisibility == "" {
		l.MessageListVisibility = "show"
	}
	return l
}

func (w wireLabelStat) toDomain() domain.LabelStats {
	return domain.LabelStats{
		LabelID: string(w.LabelID),
		Name:    w.Name,
		Color:   deref(w.Color),
		Total:   w.Total,
		Unread:  w.Unread,
	}
}

// toDomain normalizes the wire email. Missing collections become empty
// slices; label ids come from labelIds, falling back to the embedded labels.
func (w wireEmail) toDomain() domain.Email {
	e := domain.Email{
		ID:          string(w.ID),
		Subject:     deref(w.Subject),
		Body:        deref(w.Body),
		Date:        time.Time(w.Date),
		To:          make([]domain.Address, 0, len(w.Recipients)),
		LabelIDs:    make([]string, 0, len(w.LabelIDs)),
		Attachments: make([]domain.Attachment, 0, len(w.Attachments)),
	}
	if w.Sender != nil {
		e.From = domain.Address{Name: deref(w.Sender.Name), Email: w.Sender.Email}
	}
	if w.IsRead != nil {
		e.IsRead = *w.IsRead
	}
	if w.IsStarred != nil {
		e.IsStarred = *w.IsStarred
	}
	if w.Folder != nil {
		e.Folder = domain.Folder(strings.ToLower(*w.Folder))
	}
	for _, r := range w.Recipients {
		e.To = append(e.To, domain.Address{Email: r})
	}
	for _, id := range w.LabelIDs {
		e.LabelIDs = append(e.LabelIDs, string(id))
	}
	if len(e.LabelIDs) == 0 {
		for _, l := range w.Labels {
			e.LabelIDs = append(e.LabelIDs, string(l.ID))
		}
	}
	for _, a := range w.Attachments {
		e.Attachments = append(e.Attachments, domain.Attachment{Name: a.Name, Size: a.Size, URL: a.URL})
	}
	return e
}

func (w wireDraft) toDomain() domain.Draft {
	d := domain.Draft{
		ID:         string(w.ID),
		Subject:    deref(w.Subject),
		Body:       deref(w.Body),
		Recipients: make([]string, 0, len(w.Recipients)),
		CreatedAt:  time.Time(w.CreatedAt),
		UpdatedAt:  time.Time(w.UpdatedAt),
	}
	d.Recipients = append(d.Recipients, w.Recipients...)
	return d
}

func mapEmails(ws []wireEmail) []domain.Email {
	out := make([]domain.Email, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}

func mapLabels(ws []wireLabel) []domain.Label {
	out := make([]domain.Label, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}

func mapDrafts(ws []wireDraft) []domain.Draft {
	out := make([]domain.Draft, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}

func mapUsers(ws []wireUser) []domain.User {
	out := make([]domain.User, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}
