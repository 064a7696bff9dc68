package session

import "errors"

var (
	// ErrNoEmailSelected is returned by actions that need an open email.
	ErrNoEmailSelected = errors.New("no email selected")
	// ErrNoActiveDraft is returned when sending or editing without an active draft.
	ErrNoActiveDraft = errors.New("no active draft")
	// ErrInvalidFolder rejects a folder outside the fixed set.
	ErrInvalidFolder = errors.New("invalid folder")
	// ErrEmptyID rejects an empty email, label, draft or user id.
	ErrEmptyID = errors.New("id must not be empty")
	// ErrUnknownDraft is returned for a draft id missing from the draft list.
	ErrUnknownDraft = errors.New("unknown draft")
)
