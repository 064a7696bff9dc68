package session

import (
	"fmt"
	"slices"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

// Mode is the coarse state of the selection state machine.
type Mode int

const (
	ModeViewing Mode = iota
	ModeEmailOpen
	ModeComposing
)

func (m Mode) String() string {
	switch m {
	case ModeViewing:
		return "viewing"
	case ModeEmailOpen:
		return "email-open"
	case ModeComposing:
		return "composing"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// View is the email list being looked at: a folder or a label, optionally
// narrowed by a search query and filter. Folder and LabelID are never both
// set.
type View struct {
	Folder  domain.Folder
	LabelID string
	Query   string
	Filter  gateway.SearchFilter
	UseAI   bool
}

// FolderView returns the view of folder f.
func FolderView(f domain.Folder) View { return View{Folder: f} }

// LabelView returns the view of the label with the given id.
func LabelView(id string) View { return View{LabelID: id} }

// EmailQuery converts the view into the gateway query that lists it.
func (v View) EmailQuery() gateway.EmailQuery {
	return gateway.EmailQuery{
		Folder:  v.Folder,
		LabelID: v.LabelID,
		Query:   v.Query,
		Filter:  v.Filter,
		UseAI:   v.UseAI,
	}
}

// Equal reports whether v and o list the same emails.
func (v View) Equal(o View) bool {
	return v.Folder == o.Folder && v.LabelID == o.LabelID && v.Query == o.Query &&
		v.UseAI == o.UseAI && v.Filter.Equal(o.Filter)
}

func (v View) String() string {
	s := "folder:" + string(v.Folder)
	if v.LabelID != "" {
		s = "label:" + v.LabelID
	}
	if v.Query != "" {
		s += fmt.Sprintf(" q=%q", v.Query)
	}
	if v.Filter.DateRange != gateway.DateAny {
		s += " since:" + string(v.Filter.DateRange)
	}
	if v.Filter.HasAttachments {
		s += " has:attachment"
	}
	for _, id := range v.Filter.LabelIDs {
		s += " with:" + id
	}
	if v.UseAI {
		s += " ai"
	}
	return s
}

// Selection is the client-only part of the session.
type Selection struct {
	View
	EmailID       string
	ActiveDraftID string
	Composing     bool
}

// Mode derives the state machine state from the selection.
func (s Selection) Mode() Mode {
	switch {
	case s.Composing:
		return ModeComposing
	case s.EmailID != "":
		return ModeEmailOpen
	}
	return ModeViewing
}

// Loaded reports which collections hold a fetched result for the current
// user. A collection that is not loaded is an empty placeholder.
type Loaded struct {
	Users      bool
	Emails     bool
	Labels     bool
	Drafts     bool
	LabelStats bool
}

// Snapshot is a consistent copy of the session state. Version increases with
// every committed change.
type Snapshot struct {
	Version     uint64
	CurrentUser *domain.User
	Users       []domain.User
	Emails      []domain.Email
	Labels      []domain.Label
	LabelStats  []domain.LabelStats
	Drafts      []domain.Draft
	Detail      *domain.Email
	Selection   Selection
	Loaded      Loaded
	UnreadCount int
	DraftCount  int
}

// SelectedEmail returns the open email, or nil.
func (s *Snapshot) SelectedEmail() *domain.Email {
	if s.Selection.EmailID == "" || s.Detail == nil || s.Detail.ID != s.Selection.EmailID {
		return nil
	}
	return s.Detail
}

// ActiveDraft returns the draft being composed, or nil.
func (s *Snapshot) ActiveDraft() *domain.Draft {
	if s.Selection.ActiveDraftID == "" {
		return nil
	}
	return domain.FindDraft(s.Drafts, s.Selection.ActiveDraftID)
}

// FindEmail returns the listed email with the given id, or nil.
func (s *Snapshot) FindEmail(id string) *domain.Email {
	for i := range s.Emails {
		if s.Emails[i].ID == id {
			return &s.Emails[i]
		}
	}
	return nil
}

// FindLabel returns the label with the given id, or nil.
func (s *Snapshot) FindLabel(id string) *domain.Label {
	for i := range s.Labels {
		if s.Labels[i].ID == id {
			return &s.Labels[i]
		}
	}
	return nil
}

func (s *Snapshot) clone() Snapshot {
	out := *s
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	out.Users = slices.Clone(s.Users)
	out.Labels = slices.Clone(s.Labels)
	out.LabelStats = slices.Clone(s.LabelStats)
	out.Selection.Filter.LabelIDs = slices.Clone(s.Selection.Filter.LabelIDs)
	out.Emails = cloneEmails(s.Emails)
	out.Drafts = make([]domain.Draft, len(s.Drafts))
	for i, d := range s.Drafts {
		d.Recipients = slices.Clone(d.Recipients)
		out.Drafts[i] = d
	}
	if s.Detail != nil {
		d := cloneEmail(*s.Detail)
		out.Detail = &d
	}
	return out
}

func cloneEmail(e domain.Email) domain.Email {
	e.To = slices.Clone(e.To)
	e.LabelIDs = slices.Clone(e.LabelIDs)
	e.Attachments = slices.Clone(e.Attachments)
	return e
}

func cloneEmails(emails []domain.Email) []domain.Email {
	out := make([]domain.Email, len(emails))
	for i, e := range emails {
		out[i] = cloneEmail(e)
	}
	return out
}
