package domain

type LabelType string

const (
	LabelTypeSystem LabelType = "system"
	LabelTypeUser   LabelType = "user"
)

// Visibility values mirror the backend's label list/message list flags.
const (
	VisibilityShow         = "labelShow"
	VisibilityShowIfUnread = "labelShowIfUnread"
	VisibilityHide         = "labelHide"
)

type Label struct {
	ID                    string
	Name                  string
	Color                 string
	Type                  LabelType
	LabelListVisibility   string
	MessageListVisibility string
}

// Hidden reports whether the label should be left out of the label list.
func (l *Label) Hidden() bool {
	return l.LabelListVisibility == VisibilityHide
}

// LabelStats holds the message totals of one label.
type LabelStats struct {
	LabelID string
	Name    string
	Color   string
	Total   int
	Unread  int
}
