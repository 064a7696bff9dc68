package cli

import (
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// ---------------------------------------------------------------------------
// User JSON types (user list)
// ---------------------------------------------------------------------------

type jsonUser struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	Provider  string `json:"provider,omitempty"`
	Current   bool   `json:"current"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toJSONUsers(users []domain.User, currentID string) []jsonUser {
	out := make([]jsonUser, 0, len(users))
	for _, u := range users {
		ju := jsonUser{
			ID:       u.ID,
			Name:     u.Name,
			Email:    u.Email,
			Provider: u.Provider,
			Current:  u.ID == currentID,
		}
		if !u.CreatedAt.IsZero() {
			ju.CreatedAt = u.CreatedAt.Format(time.DateOnly)
		}
		out = append(out, ju)
	}
	return out
}

// ---------------------------------------------------------------------------
// Email JSON types (list, read, search)
// ---------------------------------------------------------------------------

type jsonEmail struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	From        jsonAddress      `json:"from"`
	To          []jsonAddress    `json:"to,omitempty"`
	Date        string           `json:"date"`
	Folder      string           `json:"folder"`
	IsRead      bool             `json:"is_read"`
	IsStarred   bool             `json:"is_starred"`
	Labels      []string         `json:"labels,omitempty"`
	Body        string           `json:"body,omitempty"`
	Attachments []jsonAttachment `json:"attachments,omitempty"`
}

type jsonAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type jsonAttachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

func toJSONAddress(a domain.Address) jsonAddress {
	return jsonAddress{Name: a.Name, Email: a.Email}
}

func toJSONAddresses(addrs []domain.Address) []jsonAddress {
	if len(addrs) == 0 {
		return nil
	}
	out := make([]jsonAddress, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, toJSONAddress(a))
	}
	return out
}

// toJSONEmail converts e. The body and attachments are only included when
// withBody is set, so list output stays small.
func toJSONEmail(e domain.Email, withBody bool) jsonEmail {
	je := jsonEmail{
		ID:        e.ID,
		Subject:   e.Subject,
		From:      toJSONAddress(e.From),
		To:        toJSONAddresses(e.To),
		Date:      formatDate(e.Date, time.RFC3339),
		Folder:    string(e.Folder),
		IsRead:    e.IsRead,
		IsStarred: e.IsStarred,
		Labels:    e.LabelIDs,
	}
	if withBody {
		je.Body = e.Body
		for _, a := range e.Attachments {
			je.Attachments = append(je.Attachments, jsonAttachment{Name: a.Name, Size: a.Size, URL: a.URL})
		}
	}
	return je
}

func toJSONEmails(emails []domain.Email) []jsonEmail {
	out := make([]jsonEmail, 0, len(emails))
	for _, e := range emails {
		out = append(out, toJSONEmail(e, false))
	}
	return out
}

// ---------------------------------------------------------------------------
// Label JSON types (labels)
// ---------------------------------------------------------------------------

type jsonLabel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Type   string `json:"type"`
	Hidden bool   `json:"hidden,omitempty"`
}

func toJSONLabels(labels []domain.Label) []jsonLabel {
	out := make([]jsonLabel, 0, len(labels))
	for _, l := range labels {
		out = append(out, jsonLabel{
			ID:     l.ID,
			Name:   l.Name,
			Color:  l.Color,
			Type:   string(l.Type),
			Hidden: l.Hidden(),
		})
	}
	return out
}

type jsonLabelStats struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Total  int    `json:"total"`
	Unread int    `json:"unread"`
}

func toJSONLabelStats(stats []domain.LabelStats) []jsonLabelStats {
	out := make([]jsonLabelStats, 0, len(stats))
	for _, st := range stats {
		out = append(out, jsonLabelStats{
			ID:     st.LabelID,
			Name:   st.Name,
			Color:  st.Color,
			Total:  st.Total,
			Unread: st.Unread,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Draft JSON types (draft list, compose, reply, forward)
// ---------------------------------------------------------------------------

type jsonDraft struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body,omitempty"`
	Recipients []string `json:"recipients"`
	UpdatedAt  string   `json:"updated_at,omitempty"`
}

func toJSONDraft(d domain.Draft) jsonDraft {
	recipients := d.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return jsonDraft{
		ID:         d.ID,
		Subject:    d.Subject,
		Body:       d.Body,
		Recipients: recipients,
		UpdatedAt:  formatDate(d.UpdatedAt, time.RFC3339),
	}
}

func toJSONDrafts(drafts []domain.Draft) []jsonDraft {
	out := make([]jsonDraft, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, toJSONDraft(d))
	}
	return out
}

// ---------------------------------------------------------------------------
// Action result JSON type (star, move, label, send, ...)
// ---------------------------------------------------------------------------

type jsonAction struct {
	OK      bool   `json:"ok"`
	Action  string `json:"action"`
	EmailID string `json:"email_id,omitempty"`
	LabelID string `json:"label_id,omitempty"`
	DraftID string `json:"draft_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Folder  string `json:"folder,omitempty"`
}

// ---------------------------------------------------------------------------
// Suggestion JSON type (suggest)
// ---------------------------------------------------------------------------

type jsonSuggestion struct {
	EmailID     string   `json:"email_id"`
	Suggestions []string `json:"suggestions"`
	Summary     string   `json:"summary,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}
