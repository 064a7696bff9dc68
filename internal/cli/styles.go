package cli

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#7C3AED")
	mutedColor   = lipgloss.Color("#6B7280")
	errorColor   = lipgloss.Color("#EF4444")
)

// styles render terminal decoration for one output. Writers that are not
// terminals get plain text.
type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	err    lipgloss.Style
}

func (rt *runtime) style() *styles {
	if rt.styles != nil {
		return rt.styles
	}
	r := lipgloss.NewRenderer(rt.out)
	rt.styles = &styles{
		title:  r.NewStyle().Foreground(primaryColor).Bold(true),
		header: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Foreground(mutedColor),
		err:    lipgloss.NewRenderer(rt.errOut).NewStyle().Foreground(errorColor),
	}
	return rt.styles
}
