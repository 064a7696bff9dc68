package gmail

import (
	"fmt"
	"strings"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
)

const (
	labelInbox   = "INBOX"
	labelSent    = "SENT"
	labelDraft   = "DRAFT"
	labelSpam    = "SPAM"
	labelTrash   = "TRASH"
	labelStarred = "STARRED"
	labelUnread  = "UNREAD"
)

// folderFilter returns the system label and search query selecting folder.
func folderFilter(f domain.Folder) (label, query string, err error) {
	switch f {
	case domain.FolderInbox:
		return labelInbox, "", nil
	case domain.FolderSent:
		return labelSent, "", nil
	case domain.FolderDrafts:
		return labelDraft, "", nil
	case domain.FolderSpam:
		return labelSpam, "", nil
	case domain.FolderTrash:
		return labelTrash, "", nil
	case domain.FolderStarred:
		return labelStarred, "", nil
	case domain.FolderSnoozed:
		return "", "in:snoozed", nil
	}
	return "", "", fmt.Errorf("%w: %q", gateway.ErrInvalidFolder, f)
}

// folderOf derives the mailbox folder from a message's system labels.
func folderOf(labelIDs []string) domain.Folder {
	switch {
	case containsLabel(labelIDs, labelTrash):
		return domain.FolderTrash
	case containsLabel(labelIDs, labelSpam):
		return domain.FolderSpam
	case containsLabel(labelIDs, labelDraft):
		return domain.FolderDrafts
	case containsLabel(labelIDs, labelInbox):
		return domain.FolderInbox
	case containsLabel(labelIDs, labelSent):
		return domain.FolderSent
	}
	return ""
}

// filterQuery renders the date and attachment parts of f as Gmail search
// operators. Label ids are passed as list parameters instead.
func filterQuery(f gateway.SearchFilter, now time.Time) string {
	var parts []string
	if since := f.DateRange.Since(now); !since.IsZero() {
		parts = append(parts, "after:"+since.Format("2006/01/02"))
	}
	if f.HasAttachments {
		parts = append(parts, "has:attachment")
	}
	return strings.Join(parts, " ")
}

func joinQuery(parts ...string) string {
	nonEmpty := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}
