package domain

import "time"

type Address struct {
	Name  string
	Email string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email
	}
	return a.Name + " <" + a.Email + ">"
}

type Attachment struct {
	Name string
	Size int64
	URL  string
}

type Email struct {
	ID          string
	Subject     string
	Body        string
	From        Address
	To          []Address
	Date        time.Time
	IsRead      bool
	IsStarred   bool
	Folder      Folder
	LabelIDs    []string
	Attachments []Attachment
}

func (e *Email) HasLabel(labelID string) bool {
	for _, l := range e.LabelIDs {
		if l == labelID {
			return true
		}
	}
	return false
}

// IsUnreadInbox reports whether the email counts towards the unread badge.
func (e *Email) IsUnreadInbox() bool {
	return e.Folder == FolderInbox && !e.IsRead
}

// CountUnread returns the number of unread emails in the inbox folder.
func CountUnread(emails []Email) int {
	n := 0
	for i := range emails {
		if emails[i].IsUnreadInbox() {
			n++
		}
	}
	return n
}
