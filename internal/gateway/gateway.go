package gateway

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

// DateRange limits a search to recently received email.
type DateRange string

const (
	DateAny   DateRange = ""
	DateToday DateRange = "today"
	DateWeek  DateRange = "week"
	DateMonth DateRange = "month"
	DateYear  DateRange = "year"
)

// ParseDateRange parses a date range name. "all" and "" mean no limit.
func ParseDateRange(s string) (DateRange, error) {
	switch r := DateRange(s); r {
	case DateAny, DateToday, DateWeek, DateMonth, DateYear:
		return r, nil
	case "all":
		return DateAny, nil
	}
	return "", fmt.Errorf("%w: unknown date range %q", ErrInvalidInput, s)
}

// Since returns the earliest date inside the range, or the zero time when
// the range is unbounded.
func (r DateRange) Since(now time.Time) time.Time {
	switch r {
	case DateToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case DateWeek:
		return now.AddDate(0, 0, -7)
	case DateMonth:
		return now.AddDate(0, -1, 0)
	case DateYear:
		return now.AddDate(-1, 0, 0)
	}
	return time.Time{}
}

// SearchFilter narrows a listing beyond its folder or label.
type SearchFilter struct {
	DateRange      DateRange `validate:"omitempty,oneof=today week month year"`
	HasAttachments bool
	LabelIDs       []string `validate:"dive,required"`
}

// IsZero reports whether the filter narrows nothing.
func (f SearchFilter) IsZero() bool {
	return f.DateRange == DateAny && !f.HasAttachments && len(f.LabelIDs) == 0
}

// Equal reports whether f and o narrow the same way.
func (f SearchFilter) Equal(o SearchFilter) bool {
	return f.DateRange == o.DateRange && f.HasAttachments == o.HasAttachments && slices.Equal(f.LabelIDs, o.LabelIDs)
}

// EmailQuery selects the email list to fetch. Exactly one of Folder or
// LabelID is set; Query and Filter optionally narrow the result. UseAI asks
// the backend for a semantic rather than keyword match of Query.
type EmailQuery struct {
	Folder  domain.Folder
	LabelID string
	Query   string
	Filter  SearchFilter
	UseAI   bool
}

// Enhanced reports whether the query needs the backend's filtered search.
func (q EmailQuery) Enhanced() bool {
	return q.UseAI || !q.Filter.IsZero()
}

// LabelInput carries the fields of a new label.
type LabelInput struct {
	Name  string `validate:"required,max=225"`
	Color string `validate:"omitempty,hexcolor"`
}

// DraftInput carries the fields of a draft. An empty ID creates a new draft;
// otherwise the existing draft is replaced.
type DraftInput struct {
	ID         string
	Subject    string
	Body       string
	Recipients []string `validate:"dive,email"`
}

// Gateway is the contract for every remote operation the session performs.
// Implementations perform I/O only and never touch session state. Failures
// are reported as *NetworkError or *RemoteError.
type Gateway interface {
	FetchEmails(ctx context.Context, q EmailQuery) ([]domain.Email, error)
	FetchEmailByID(ctx context.Context, id string) (*domain.Email, error)
	FetchLabels(ctx context.Context) ([]domain.Label, error)
	FetchDrafts(ctx context.Context) ([]domain.Draft, error)
	FetchCurrentUser(ctx context.Context) (*domain.User, error)
	FetchAllUsers(ctx context.Context) ([]domain.User, error)
	FetchLabelStats(ctx context.Context) ([]domain.LabelStats, error)

	CreateLabel(ctx context.Context, in LabelInput) (*domain.Label, error)
	DeleteLabel(ctx context.Context, id string) error
	SetStarred(ctx context.Context, id string, starred bool) error
	MoveEmail(ctx context.Context, id string, folder domain.Folder) error
	ApplyLabel(ctx context.Context, emailID, labelID string) error
	RemoveLabel(ctx context.Context, emailID, labelID string) error

	SaveDraft(ctx context.Context, in DraftInput) (*domain.Draft, error)
	SendEmail(ctx context.Context, draftID string) (*domain.Email, error)
	SwitchUser(ctx context.Context, userID string) (*domain.User, error)
}
