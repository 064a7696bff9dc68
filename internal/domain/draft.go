package domain

import "time"

// Draft is an email that has not been sent yet. Subject and Body are
// optional on the backend and are empty when absent.
type Draft struct {
	ID         string
	Subject    string
	Body       string
	Recipients []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FindDraft returns the draft with the given id, or nil.
func FindDraft(drafts []Draft, id string) *Draft {
	for i := range drafts {
		if drafts[i].ID == id {
			return &drafts[i]
		}
	}
	return nil
}
