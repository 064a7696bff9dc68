package domain

import (
	"fmt"
	"strings"
)

// Folder is one of the fixed mailbox partitions.
type Folder string

const (
	FolderInbox   Folder = "inbox"
	FolderSent    Folder = "sent"
	FolderDrafts  Folder = "drafts"
	FolderSpam    Folder = "spam"
	FolderTrash   Folder = "trash"
	FolderStarred Folder = "starred"
	FolderSnoozed Folder = "snoozed"
)

// Folders lists every folder in sidebar order.
var Folders = []Folder{
	FolderInbox,
	FolderStarred,
	FolderSnoozed,
	FolderSent,
	FolderDrafts,
	FolderSpam,
	FolderTrash,
}

// Valid reports whether f is one of the known folders.
func (f Folder) Valid() bool {
	for _, known := range Folders {
		if f == known {
			return true
		}
	}
	return false
}

// ParseFolder parses a folder name case-insensitively.
func ParseFolder(s string) (Folder, error) {
	f := Folder(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown folder %q", s)
	}
	return f, nil
}
