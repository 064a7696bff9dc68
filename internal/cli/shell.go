package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

func newShellCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Run commands in one session",
		Long: `Start an interactive session. Every line is run as a mailsession command
against the same loaded session, so the open email, the active draft and the
current view carry over from one command to the next. Type "exit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			rt.shared = true
			defer func() { rt.shared = false }()

			jsonOut := rt.jsonFlag
			st := rt.style()
			scanner := bufio.NewScanner(rt.in)
			for {
				if !jsonOut {
					rt.printf("%s ", st.title.Render(fmt.Sprintf("mailsession [%s]>", a.Session.Selection().View)))
				}
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}
				words, err := splitArgs(line)
				if err != nil {
					fmt.Fprintln(rt.errOut, st.err.Render("Error: "+err.Error()))
					continue
				}
				if words[0] == "shell" {
					fmt.Fprintln(rt.errOut, st.err.Render("Error: already in a shell"))
					continue
				}

				sub := newRootCmd(rt)
				rt.jsonFlag = jsonOut
				sub.SetArgs(words)
				sub.SetIn(rt.in)
				if err := sub.ExecuteContext(cmd.Context()); err != nil {
					fmt.Fprintln(rt.errOut, st.err.Render("Error: "+err.Error()))
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// splitArgs splits a shell line into words with POSIX-style quoting.
// Pipes, redirections and command separators are rejected.
func splitArgs(line string) ([]string, error) {
	p := shellwords.NewParser()
	words, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}
	if p.Position >= 0 {
		op := "operator"
		if rs := []rune(line); p.Position < len(rs) {
			op = fmt.Sprintf("operator %q", rs[p.Position])
		}
		return nil, fmt.Errorf("unsupported %s", op)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return words, nil
}
